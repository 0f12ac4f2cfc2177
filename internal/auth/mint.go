package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// Codec creates and verifies signed, time-bound session tokens.
type Codec struct {
	keyStore KeyStore
	issuer   string
	audience string
	clock    domain.Clock
}

// CodecConfig holds configuration for creating a Codec.
type CodecConfig struct {
	KeyStore KeyStore
	Issuer   string
	Audience string
	Clock    domain.Clock
}

// NewCodec creates a token codec. The key store is injected so the codec
// never reads the signing secret from ambient state.
func NewCodec(cfg CodecConfig) *Codec {
	clock := cfg.Clock
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &Codec{
		keyStore: cfg.KeyStore,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		clock:    clock,
	}
}

// Issue signs an HS256 token embedding claims and kind. The expiry is
// derived from kind: 15 minutes for access, 7 days for refresh.
func (c *Codec) Issue(claims SessionClaims, kind Kind) (IssuedToken, error) {
	if !kind.Valid() {
		return IssuedToken{}, fmt.Errorf("issue token: unknown kind %q", kind)
	}
	if claims.UserID == "" || claims.JellyfinToken.IsEmpty() {
		return IssuedToken{}, fmt.Errorf("issue token: incomplete session claims: %w", domain.ErrInvalidInput)
	}

	secret, keyID, err := c.keyStore.SigningKey()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("get signing key: %w", err)
	}

	now := domain.TokenTime(c.clock)
	expiresAt := now.Add(kind.Lifetime())
	jti := uuid.NewString()

	body := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		UserID:        claims.UserID,
		Username:      claims.Username,
		JellyfinToken: claims.JellyfinToken.Expose(),
		Kind:          kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &body)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return IssuedToken{
		Token:     signed,
		JTI:       jti,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// IssuePair mints an access and a refresh token from the same claims.
func (c *Codec) IssuePair(claims SessionClaims) (TokenPair, error) {
	access, err := c.Issue(claims, KindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.Issue(claims, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}
