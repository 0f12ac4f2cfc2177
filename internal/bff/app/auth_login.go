package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/observability"
)

// LoginInput is a validated login request.
type LoginInput struct {
	Username string
	Password string
	ClientIP string
}

// Login authenticates against the upstream and mints a token pair.
//
// Upstream rejections surface as *domain.UpstreamError without retry. A
// success answer lacking the access token or user id is
// domain.ErrInvalidAuthResponse, since no session can be built from it.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*SessionResult, error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	if in.Username == "" {
		return nil, &domain.InputError{Field: "username"}
	}
	if in.Password == "" {
		return nil, &domain.InputError{Field: "password"}
	}

	// 1. Rate limit, fail closed.
	allowed, err := s.limiter.AllowLogin(ctx, in.ClientIP, in.Username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter unavailable")
		logger.ErrorContext(ctx, "auth.rate_limiter_unavailable", "error", err)
		return nil, fmt.Errorf("%w: login rate limiter: %w", domain.ErrUnavailable, err)
	}
	if !allowed {
		rateLimitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", "login")))
		span.SetStatus(codes.Error, "rate limited")
		logger.WarnContext(ctx, "auth.login_rate_limited",
			"username", in.Username,
			"client_ip", in.ClientIP,
		)
		return nil, domain.ErrRateLimited
	}

	// 2. Upstream authentication.
	res, err := s.upstream.AuthenticateByName(ctx, in.Username, in.Password)
	if err != nil {
		reason := "upstream_unavailable"
		if errors.Is(err, domain.ErrUpstreamRejected) {
			reason = "bad_credentials"
		}
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		span.SetStatus(codes.Error, reason)
		logger.WarnContext(ctx, "auth.login_failed",
			"username", in.Username,
			"reason", reason,
			"error", err,
		)
		return nil, fmt.Errorf("authenticate %q: %w", in.Username, err)
	}

	// 3. Both the upstream token and the user id are needed for claims.
	if res.AccessToken.IsEmpty() || res.User.ID == "" {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_auth_response")))
		span.SetStatus(codes.Error, "invalid auth response")
		logger.ErrorContext(ctx, "auth.login_failed",
			"username", in.Username,
			"reason", "invalid_auth_response",
			"has_user_id", res.User.ID != "",
		)
		return nil, domain.ErrInvalidAuthResponse
	}

	// 4. Mint.
	claims := auth.SessionClaims{
		UserID:        res.User.ID,
		Username:      res.User.Name,
		JellyfinToken: res.AccessToken,
	}
	result, err := s.mint(ctx, claims, "login")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.InfoContext(ctx, "auth.login",
		"user_id", claims.UserID,
		"username", claims.Username,
	)
	return result, nil
}

// mint issues a pair from claims and records it.
func (s *AuthService) mint(ctx context.Context, claims auth.SessionClaims, flow string) (*SessionResult, error) {
	pair, err := s.codec.IssuePair(claims)
	if err != nil {
		return nil, fmt.Errorf("issue token pair: %w", err)
	}
	tokenMintedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", flow)))

	return &SessionResult{
		Pair: pair,
		User: UserView{ID: claims.UserID, Username: claims.Username},
	}, nil
}
