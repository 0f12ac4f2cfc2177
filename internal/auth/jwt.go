package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// ErrTokenExpired is returned when a validly signed token has expired.
// Callers can use errors.Is to check for this condition without importing
// the JWT library directly.
var ErrTokenExpired = jwt.ErrTokenExpired

// Verify checks signature, issuer, audience and expiry and returns the
// decoded claims including Kind. Every failure wraps domain.ErrInvalidToken;
// callers treat it as "not authenticated", never as a system error.
//
// A token is expired from the instant its exp is reached.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrInvalidToken)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, c.keyFunc,
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	if !claims.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown token type %q", domain.ErrInvalidToken, claims.Kind)
	}
	if claims.UserID == "" || claims.JellyfinToken == "" {
		return nil, fmt.Errorf("%w: missing session claims", domain.ErrInvalidToken)
	}

	return &claims, nil
}

// VerifyKind verifies the token and additionally requires it to be of the
// given kind. An access token read from the refresh slot, or the reverse,
// fails with domain.ErrWrongTokenKind.
func (c *Codec) VerifyKind(tokenString string, kind Kind) (*Claims, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: want %s, got %s", domain.ErrWrongTokenKind, kind, claims.Kind)
	}
	return claims, nil
}

func (c *Codec) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("missing or invalid kid in token header")
	}

	return c.keyStore.VerificationKey(kid)
}
