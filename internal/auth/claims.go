package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// Kind distinguishes the two token slots. A token is only accepted from the
// slot matching its kind.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Lifetime returns the fixed validity window for tokens of this kind.
func (k Kind) Lifetime() time.Duration {
	switch k {
	case KindAccess:
		return domain.AccessTokenLifetime
	case KindRefresh:
		return domain.RefreshTokenLifetime
	}
	return 0
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// SessionClaims is the identity carried by every token: who the user is
// upstream and the Jellyfin token that acts on their behalf.
type SessionClaims struct {
	UserID        string
	Username      string
	JellyfinToken domain.SecretString
}

// Claims is the JWT body. Both token kinds share it; Kind tells them apart.
type Claims struct {
	jwt.RegisteredClaims
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	JellyfinToken string `json:"jellyfinToken"`
	Kind          Kind   `json:"type"`
}

// Session strips kind and timestamps, leaving the identity payload.
func (c *Claims) Session() SessionClaims {
	return SessionClaims{
		UserID:        c.UserID,
		Username:      c.Username,
		JellyfinToken: domain.SecretString(c.JellyfinToken),
	}
}

// IssuedToken is a signed token plus the metadata the caller needs to set
// cookie lifetimes.
type IssuedToken struct {
	Token     string
	JTI       string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is the unit of issuance: an access and a refresh token minted
// together from identical claims.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
