// Package errmap translates domain errors into transport responses.
package errmap

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// Public messages. These are the only strings a browser ever sees for a
// failure; internal error text stays in the logs.
const (
	MsgNoRefreshToken      = "No refresh token provided"
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgSessionExpired      = "Session expired, please login again"
	MsgNotAuthenticated    = "Not authenticated"
	MsgInvalidAuthResponse = "Invalid authentication response"
	MsgAuthFailed          = "Authentication failed"
	MsgRateLimited         = "Too many login attempts"
	MsgUnavailable         = "Service temporarily unavailable"
	MsgNotFound            = "Not found"
	MsgInvalidRequest      = "Invalid request"
	MsgInternal            = "Internal server error"
)

// HTTPError represents an HTTP error response. It serializes as
// {"error": "<public message>", "code": "<CODE>"}.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Code       string `json:"code"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// httpMapping defines a domain error to HTTP status/code/message mapping.
type httpMapping struct {
	err        error
	statusCode int
	code       string
	message    string
}

// httpMappings maps domain errors to HTTP responses.
// Order matters: first match wins (via errors.Is).
var httpMappings = []httpMapping{
	// Refresh state machine, most specific first
	{domain.ErrNoRefreshToken, http.StatusUnauthorized, "NO_REFRESH_TOKEN", MsgNoRefreshToken},
	{domain.ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", MsgInvalidRefreshToken},
	{domain.ErrSessionExpired, http.StatusUnauthorized, "SESSION_EXPIRED", MsgSessionExpired},

	// Missing or unusable session
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHENTICATED", MsgNotAuthenticated},
	{domain.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHENTICATED", MsgNotAuthenticated},
	{domain.ErrWrongTokenKind, http.StatusUnauthorized, "UNAUTHENTICATED", MsgNotAuthenticated},

	// Upstream answers
	{domain.ErrUpstreamRejected, http.StatusUnauthorized, "UPSTREAM_REJECTED", MsgAuthFailed},
	{domain.ErrInvalidAuthResponse, http.StatusInternalServerError, "INVALID_AUTH_RESPONSE", MsgInvalidAuthResponse},
	{domain.ErrUpstreamUnavailable, http.StatusInternalServerError, "UPSTREAM_UNAVAILABLE", MsgInternal},

	// Validation errors
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT", MsgInvalidRequest},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", MsgNotFound},

	// Operational
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", MsgRateLimited},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE", MsgUnavailable},
}

// ToHTTPError converts a domain error to an HTTP error.
//
// Two error shapes carry their own public text: an InputError names the
// missing field, and an upstream login rejection repeats the upstream's own
// message.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		he := HTTPError{StatusCode: m.statusCode, Code: m.code, Message: m.message}

		var inputErr *domain.InputError
		if errors.As(err, &inputErr) {
			he.Message = inputErr.Error()
		}
		var upstreamErr *domain.UpstreamError
		if m.err == domain.ErrUpstreamRejected && errors.As(err, &upstreamErr) && upstreamErr.Message != "" {
			he.Message = upstreamErr.Message
		}
		return he
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: MsgInternal}
}

// ToHTTPStatusCode extracts just the HTTP status code for a domain error.
func ToHTTPStatusCode(err error) int {
	return ToHTTPError(err).StatusCode
}

// WriteError maps err and writes it as a JSON error body.
func WriteError(w http.ResponseWriter, err error) HTTPError {
	he := ToHTTPError(err)
	WriteJSON(w, he.StatusCode, he)
	return he
}

// WriteJSON writes v as a JSON response with the given status. Responses are
// never cached: they either carry a session or describe one.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
