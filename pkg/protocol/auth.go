// Package protocol defines the JSON bodies exchanged between the browser (or
// any client agent) and the BFF. Tokens never appear here; they travel only in
// http-only cookies.
package protocol

// Route paths served by the BFF.
const (
	PathLogin   = "/api/auth/login"
	PathRefresh = "/api/auth/refresh"
	PathLogout  = "/api/auth/logout"
	PathMe      = "/api/auth/me"
)

// LoginRequest is the POST /api/auth/login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// User is the non-sensitive user projection shown to the client.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SessionResponse answers a successful login or refresh.
type SessionResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

// MeResponse answers GET /api/auth/me.
type MeResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Message string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (e *ErrorResponse) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}
