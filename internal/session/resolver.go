// Package session turns the two cookie-borne tokens into a session record.
// Every consumer (edge gatekeeper, API handlers) resolves through the same
// Resolver so the access-before-refresh precedence lives in one place.
package session

import (
	"context"
	"net/http"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/errmap"
)

// Record is the resolved, request-scoped view of a session. It is derived
// from a verified token and never stored server-side.
type Record struct {
	UserID        string              `json:"userId"`
	Username      string              `json:"username"`
	JellyfinToken domain.SecretString `json:"-"`
}

// Claims rebuilds the token claims for re-issuing a pair.
func (r Record) Claims() auth.SessionClaims {
	return auth.SessionClaims{
		UserID:        r.UserID,
		Username:      r.Username,
		JellyfinToken: r.JellyfinToken,
	}
}

// Source reports which cookie slot produced a Record.
type Source int

const (
	SourceNone Source = iota
	SourceAccess
	SourceRefresh
)

func (s Source) String() string {
	switch s {
	case SourceAccess:
		return "access"
	case SourceRefresh:
		return "refresh"
	}
	return "none"
}

// verifier is the slice of auth.Codec the resolver needs.
type verifier interface {
	VerifyKind(token string, kind auth.Kind) (*auth.Claims, error)
}

// Resolver resolves sessions from cookie values. It is pure apart from the
// codec's clock and never calls the upstream.
type Resolver struct {
	codec verifier
}

// NewResolver returns a Resolver verifying tokens with codec.
func NewResolver(codec *auth.Codec) *Resolver {
	return &Resolver{codec: codec}
}

// Resolve applies the fixed order: a valid access token wins; otherwise a
// valid refresh token; otherwise nothing. Each token is accepted only from
// its own slot.
func (r *Resolver) Resolve(access, refresh string) (Record, Source, bool) {
	if access != "" {
		if claims, err := r.codec.VerifyKind(access, auth.KindAccess); err == nil {
			return recordFrom(claims), SourceAccess, true
		}
	}
	if refresh != "" {
		if claims, err := r.codec.VerifyKind(refresh, auth.KindRefresh); err == nil {
			return recordFrom(claims), SourceRefresh, true
		}
	}
	return Record{}, SourceNone, false
}

// FromRequest resolves the session carried by the request cookies.
func (r *Resolver) FromRequest(req *http.Request) (Record, Source, bool) {
	return r.Resolve(cookieValue(req, domain.AccessTokenCookie), cookieValue(req, domain.RefreshTokenCookie))
}

// Require rejects requests without a session with 401 and otherwise stores
// the Record in the request context for downstream handlers.
func (r *Resolver) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec, _, ok := r.FromRequest(req)
		if !ok {
			errmap.WriteError(w, domain.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, req.WithContext(NewContext(req.Context(), rec)))
	})
}

func recordFrom(c *auth.Claims) Record {
	return Record{
		UserID:        c.UserID,
		Username:      c.Username,
		JellyfinToken: domain.SecretString(c.JellyfinToken),
	}
}

func cookieValue(req *http.Request, name string) string {
	c, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying rec.
func NewContext(ctx context.Context, rec Record) context.Context {
	return context.WithValue(ctx, ctxKey{}, rec)
}

// FromContext returns the Record stored by Require, if any.
func FromContext(ctx context.Context) (Record, bool) {
	rec, ok := ctx.Value(ctxKey{}).(Record)
	return rec, ok
}
