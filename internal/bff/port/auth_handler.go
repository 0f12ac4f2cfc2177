// Package port adapts HTTP requests to the bff app services.
package port

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aelexs/jellyfin-bff/internal/bff/app"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/errmap"
	"github.com/aelexs/jellyfin-bff/internal/session"
	"github.com/aelexs/jellyfin-bff/pkg/protocol"
)

// authService is a narrow, consumer-defined interface for the auth service
// operations the handler requires. The *app.AuthService satisfies this.
type authService interface {
	Login(ctx context.Context, in app.LoginInput) (*app.SessionResult, error)
	Refresh(ctx context.Context, refreshToken string) (*app.SessionResult, error)
}

// AuthHandler serves /api/auth/*. Tokens only ever leave through cookies.
type AuthHandler struct {
	svc     authService
	cookies session.Cookies
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler backed by the given AuthService.
func NewAuthHandler(svc *app.AuthService, cookies session.Cookies, logger *slog.Logger) *AuthHandler {
	return newAuthHandler(svc, cookies, logger)
}

func newAuthHandler(svc authService, cookies session.Cookies, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{svc: svc, cookies: cookies, logger: logger}
}

// Login authenticates against the upstream and sets both cookie slots.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errmap.WriteError(w, err)
		return
	}

	result, err := h.svc.Login(r.Context(), app.LoginInput{
		Username: req.Username,
		Password: req.Password,
		ClientIP: clientIP(r),
	})
	if err != nil {
		errmap.WriteError(w, err)
		return
	}

	h.cookies.SetPair(w, result.Pair)
	errmap.WriteJSON(w, http.StatusOK, sessionResponse(result))
}

// Refresh rotates the pair carried by the refresh-token cookie. Failures
// leave the cookies untouched.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(domain.RefreshTokenCookie); err == nil {
		token = c.Value
	}

	result, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		errmap.WriteError(w, err)
		return
	}

	h.cookies.SetPair(w, result.Pair)
	errmap.WriteJSON(w, http.StatusOK, sessionResponse(result))
}

// Logout clears both cookie slots. It needs no session and always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	h.logger.InfoContext(r.Context(), "auth.logout")
	errmap.WriteJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Logged out successfully"})
}

// Me returns the resolved session. It must sit behind Resolver.Require.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	rec, ok := session.FromContext(r.Context())
	if !ok {
		errmap.WriteError(w, domain.ErrUnauthorized)
		return
	}
	errmap.WriteJSON(w, http.StatusOK, protocol.MeResponse{UserID: rec.UserID, Username: rec.Username})
}

func sessionResponse(result *app.SessionResult) protocol.SessionResponse {
	return protocol.SessionResponse{
		Success: true,
		User:    protocol.User{ID: result.User.ID, Username: result.User.Username},
	}
}
