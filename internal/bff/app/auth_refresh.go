package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/observability"
)

// Refresh rotates a refresh token into a brand-new pair.
//
//   - no token: domain.ErrNoRefreshToken
//   - bad signature, expired, malformed or wrong kind: domain.ErrInvalidRefreshToken
//   - upstream no longer accepts the embedded Jellyfin token: domain.ErrSessionExpired
//
// Otherwise a new pair with the same claims and a full new lifetime is
// minted. The old refresh token is not consulted for expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*SessionResult, error) {
	ctx, span := tracer.Start(ctx, "auth.refresh")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	if refreshToken == "" {
		span.SetStatus(codes.Error, "no refresh token")
		return nil, domain.ErrNoRefreshToken
	}

	// 1. Verify locally.
	claims, err := s.codec.VerifyKind(refreshToken, auth.KindRefresh)
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_refresh_token")))
		span.SetStatus(codes.Error, "invalid refresh token")
		logger.InfoContext(ctx, "auth.refresh_rejected",
			"reason", "invalid_refresh_token",
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRefreshToken, err)
	}

	// 2. Re-validate upstream. This is where out-of-band revocation lands.
	if !s.upstream.IsValid(ctx, domain.SecretString(claims.JellyfinToken), claims.UserID) {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "upstream_revoked")))
		span.SetStatus(codes.Error, "upstream rejected token")
		logger.InfoContext(ctx, "auth.refresh_rejected",
			"reason", "upstream_revoked",
			"user_id", claims.UserID,
		)
		return nil, domain.ErrSessionExpired
	}

	// 3. Mint a fresh, independent pair.
	result, err := s.mint(ctx, claims.Session(), "refresh")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.InfoContext(ctx, "auth.token_refreshed",
		"user_id", claims.UserID,
		"previous_jti", claims.ID,
		"jti", result.Pair.Refresh.JTI,
	)
	return result, nil
}
