package domain_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ErrUnavailable", domain.ErrUnavailable, true},
		{"ErrRateLimited", domain.ErrRateLimited, true},
		{"ErrUpstreamUnavailable", domain.ErrUpstreamUnavailable, true},
		{"upstream 502", &domain.UpstreamError{StatusCode: http.StatusBadGateway}, true},
		{"upstream 401", &domain.UpstreamError{StatusCode: http.StatusUnauthorized}, false},
		{"ErrUnauthorized", domain.ErrUnauthorized, false},
		{"wrapped ErrUnavailable", fmt.Errorf("context: %w", domain.ErrUnavailable), true},
		{"random error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsRetryable(tt.err))
		})
	}
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ErrInvalidInput", domain.ErrInvalidInput, true},
		{"InputError", &domain.InputError{Field: "username"}, true},
		{"ErrInvalidRefreshToken", domain.ErrInvalidRefreshToken, true},
		{"ErrSessionExpired", domain.ErrSessionExpired, true},
		{"upstream 401", &domain.UpstreamError{StatusCode: http.StatusUnauthorized, Message: "bad"}, true},
		{"upstream 500", &domain.UpstreamError{StatusCode: http.StatusInternalServerError}, false},
		{"ErrUnavailable", domain.ErrUnavailable, false},
		{"wrapped ErrNotFound", fmt.Errorf("context: %w", domain.ErrNotFound), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsClientError(tt.err))
		})
	}
}

func TestIsUnauthenticated(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ErrUnauthorized", domain.ErrUnauthorized, true},
		{"ErrNoRefreshToken", domain.ErrNoRefreshToken, true},
		{"wrapped ErrWrongTokenKind", fmt.Errorf("verify: %w", domain.ErrWrongTokenKind), true},
		{"ErrInvalidInput", domain.ErrInvalidInput, false},
		{"ErrUpstreamUnavailable", domain.ErrUpstreamUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsUnauthenticated(tt.err))
		})
	}
}

func TestInputError(t *testing.T) {
	err := &domain.InputError{Field: "password"}

	assert.Equal(t, "password is required", err.Error())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpstreamError(t *testing.T) {
	err := fmt.Errorf("login: %w", &domain.UpstreamError{StatusCode: 401, Message: "Invalid user or password"})

	var upstream *domain.UpstreamError
	assert.True(t, errors.As(err, &upstream))
	assert.Equal(t, "Invalid user or password", upstream.Message)
	assert.ErrorIs(t, err, domain.ErrUpstreamRejected)
	assert.NotErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestIsValidImageType(t *testing.T) {
	assert.True(t, domain.IsValidImageType(domain.ImagePrimary))
	assert.True(t, domain.IsValidImageType(domain.ImageThumb))
	assert.False(t, domain.IsValidImageType("Banner"))
	assert.False(t, domain.IsValidImageType(""))
}
