package session

import (
	"net/http"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// Cookies writes and clears the two token slots.
type Cookies struct {
	// Secure marks cookies HTTPS-only; set in production.
	Secure bool
}

// SetPair stores both tokens, each living as long as the token itself.
func (c Cookies) SetPair(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, c.cookie(domain.AccessTokenCookie, pair.Access.Token, int(domain.AccessTokenLifetime.Seconds())))
	http.SetCookie(w, c.cookie(domain.RefreshTokenCookie, pair.Refresh.Token, int(domain.RefreshTokenLifetime.Seconds())))
}

// Clear expires both slots. It is safe to call with no session present.
func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(domain.AccessTokenCookie, "", -1))
	http.SetCookie(w, c.cookie(domain.RefreshTokenCookie, "", -1))
}

func (c Cookies) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
