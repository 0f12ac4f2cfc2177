package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// User is the upstream user projection returned on login.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// AuthResult is the upstream login answer. Fields may be empty; callers
// decide whether the result is usable.
type AuthResult struct {
	AccessToken domain.SecretString
	User        User
}

type authenticateRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authenticateResponse struct {
	AccessToken string `json:"AccessToken"`
	User        *User  `json:"User"`
	Message     string `json:"Message"`
}

// AuthenticateByName submits credentials upstream. It never retries.
//
// A non-JSON body yields domain.ErrUpstreamUnavailable. A non-success status
// yields *domain.UpstreamError carrying the upstream's own message.
func (c *Client) AuthenticateByName(ctx context.Context, username, password string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "jellyfin.authenticate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	if err := c.waitAuthSlot(ctx); err != nil {
		span.SetStatus(codes.Error, "rate bound")
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/Users/AuthenticateByName", "",
		authenticateRequest{Username: username, Pw: password})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read login response: %w", domain.ErrUpstreamUnavailable, err)
	}

	var body authenticateResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		c.logger.ErrorContext(ctx, "jellyfin.invalid_response",
			slog.String("op", "authenticate"),
			slog.Int("status", resp.StatusCode),
			slog.String("body", excerpt(raw)),
		)
		span.SetStatus(codes.Error, "non-JSON response")
		return nil, fmt.Errorf("%w: login response is not JSON", domain.ErrUpstreamUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: body.Message}
	}

	result := &AuthResult{AccessToken: domain.SecretString(body.AccessToken)}
	if body.User != nil {
		result.User = *body.User
	}
	return result, nil
}

// IsValid reports whether token is still accepted upstream for userID by
// reading the user's own record. Any non-2xx status, transport failure,
// timeout or rate-bound wait failure counts as invalid.
//
// Callers invoke it only at rotation boundaries, never per request.
func (c *Client) IsValid(ctx context.Context, token domain.SecretString, userID string) bool {
	ctx, span := tracer.Start(ctx, "jellyfin.validate_token")
	defer span.End()

	if token.IsEmpty() || userID == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	if err := c.waitAuthSlot(ctx); err != nil {
		span.SetStatus(codes.Error, "rate bound")
		return false
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/Users/"+url.PathEscape(userID), token, nil)
	if err != nil {
		return false
	}

	resp, err := c.do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "jellyfin.validate_failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		span.SetStatus(codes.Error, "transport")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	if !ok {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return ok
}
