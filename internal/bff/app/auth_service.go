// Package app holds the BFF use cases: login, refresh and the media
// listings. Handlers in port translate HTTP to these calls.
package app

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/jellyfin"
)

var tracer = otel.Tracer("bff/app")

var (
	tokenMintedTotal  metric.Int64Counter
	authFailuresTotal metric.Int64Counter
	rateLimitsTotal   metric.Int64Counter
)

func init() {
	m := otel.Meter("bff/app")

	tokenMintedTotal, _ = m.Int64Counter("auth_token_minted_total",
		metric.WithDescription("Total token pairs minted"))
	authFailuresTotal, _ = m.Int64Counter("security_auth_failures_total",
		metric.WithDescription("Total authentication failures"))
	rateLimitsTotal, _ = m.Int64Counter("security_rate_limits_total",
		metric.WithDescription("Total rate limit hits"))
}

// Upstream is the slice of the Jellyfin client the auth flows need.
type Upstream interface {
	AuthenticateByName(ctx context.Context, username, password string) (*jellyfin.AuthResult, error)
	IsValid(ctx context.Context, token domain.SecretString, userID string) bool
}

// TokenCodec mints and verifies session tokens.
type TokenCodec interface {
	IssuePair(claims auth.SessionClaims) (auth.TokenPair, error)
	VerifyKind(token string, kind auth.Kind) (*auth.Claims, error)
}

// LoginLimiter bounds login attempts.
type LoginLimiter interface {
	AllowLogin(ctx context.Context, clientIP, username string) (bool, error)
}

// UserView is the non-sensitive user projection returned to the browser.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SessionResult is a freshly minted pair plus the user it belongs to.
type SessionResult struct {
	Pair auth.TokenPair
	User UserView
}

// AuthServiceConfig holds the dependencies for AuthService.
type AuthServiceConfig struct {
	Upstream Upstream
	Codec    TokenCodec
	Limiter  LoginLimiter
	Logger   *slog.Logger
}

// AuthService implements the session issuer and the refresh orchestrator.
// It holds no per-session state; every call stands alone.
type AuthService struct {
	upstream Upstream
	codec    TokenCodec
	limiter  LoginLimiter
	logger   *slog.Logger
}

// NewAuthService creates an AuthService. A nil limiter admits every attempt.
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = allowAll{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		upstream: cfg.Upstream,
		codec:    cfg.Codec,
		limiter:  limiter,
		logger:   logger,
	}
}

type allowAll struct{}

func (allowAll) AllowLogin(context.Context, string, string) (bool, error) { return true, nil }
