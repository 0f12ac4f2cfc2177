package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// Input errors
	ErrInvalidInput = errors.New("invalid input")

	// Authentication errors
	ErrUnauthorized        = errors.New("authentication required")
	ErrNoRefreshToken      = errors.New("no refresh token provided")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrSessionExpired      = errors.New("upstream session no longer valid")
	ErrInvalidToken        = errors.New("invalid token")
	ErrWrongTokenKind      = errors.New("token kind does not match slot")

	// Upstream errors
	ErrInvalidAuthResponse = errors.New("invalid authentication response")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamRejected    = errors.New("upstream rejected credentials")

	// Operational errors
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrUnavailable = errors.New("service temporarily unavailable")
	ErrNotFound    = errors.New("resource not found")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
)

// UpstreamError carries a non-success answer from the Jellyfin server.
// Message is the upstream's own text and may be shown to the user on login.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match ErrUpstreamRejected for 4xx answers and
// ErrUpstreamUnavailable for everything else.
func (e *UpstreamError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return ErrUpstreamRejected
	}
	return ErrUpstreamUnavailable
}

// InputError names the request field that failed validation.
type InputError struct {
	Field string
}

func (e *InputError) Error() string {
	return e.Field + " is required"
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrRateLimited)
}

// clientErrors enumerates all domain errors that represent client-side issues.
var clientErrors = []error{
	ErrInvalidInput,
	ErrUnauthorized,
	ErrNoRefreshToken,
	ErrInvalidRefreshToken,
	ErrSessionExpired,
	ErrInvalidToken,
	ErrWrongTokenKind,
	ErrUpstreamRejected,
	ErrNotFound,
}

// IsClientError returns true if the error represents a client-side issue
// that will not succeed on retry without client-side changes.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsUnauthenticated returns true if the error means the caller has no usable session.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNoRefreshToken) ||
		errors.Is(err, ErrInvalidRefreshToken) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrWrongTokenKind)
}
