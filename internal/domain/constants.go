package domain

import "time"

// Token lifetimes. The refresh lifetime bounds how long a session survives
// without activity; the access lifetime bounds per-request staleness.
const (
	AccessTokenLifetime  = 15 * time.Minute
	RefreshTokenLifetime = 7 * 24 * time.Hour

	// ClientRefreshInterval is how often a client agent rotates its pair.
	// Must stay well inside AccessTokenLifetime.
	ClientRefreshInterval = 10 * time.Minute

	// MinSigningSecretLength is the minimum HS256 secret size in bytes.
	MinSigningSecretLength = 32
)

// Cookie slot names and the edge refresh signal.
const (
	AccessTokenCookie  = "access-token"
	RefreshTokenCookie = "refresh-token"

	// RefreshSignalHeader is set on page responses whose session could only be
	// resolved from the refresh token.
	RefreshSignalHeader = "X-Refresh-Token"
)

// Page paths used by the edge gatekeeper.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Timeout contracts for outbound calls.
const (
	UpstreamAuthTimeout    = 10 * time.Second // login + token validation
	UpstreamCatalogTimeout = 30 * time.Second // bulk catalog reads
	RedisTimeout           = 2 * time.Second
	SecretsManagerTimeout  = 5 * time.Second

	// Graceful shutdown
	GracefulShutdownTimeout = 30 * time.Second
	ShutdownDrainDelay      = 2 * time.Second
	ShutdownHTTPTimeout     = 15 * time.Second
	ShutdownOTELTimeout     = 5 * time.Second
)

// Login rate limiting defaults.
const (
	LoginRateLimit       = 10
	LoginRateLimitWindow = 15 * time.Minute
)

// ImageType names an upstream artwork slot.
type ImageType string

const (
	ImagePrimary  ImageType = "Primary"
	ImageBackdrop ImageType = "Backdrop"
	ImageLogo     ImageType = "Logo"
	ImageThumb    ImageType = "Thumb"
)

// IsValidImageType checks if an image type is one the proxy serves.
func IsValidImageType(t ImageType) bool {
	switch t {
	case ImagePrimary, ImageBackdrop, ImageLogo, ImageThumb:
		return true
	}
	return false
}
