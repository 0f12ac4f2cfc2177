// Package config provides configuration loading using koanf.
// Precedence: env → compiled defaults. Secrets Manager is consulted later by
// the composition root, only for the signing secret.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// Config holds all service configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	HTTPPort int `koanf:"http_port"`

	Jellyfin JellyfinConfig `koanf:"jellyfin"`
	Auth     AuthConfig     `koanf:"auth"`
	Login    LoginConfig    `koanf:"login"`
	Web      WebConfig      `koanf:"web"`

	// Infrastructure configurations
	Redis RedisConfig `koanf:"redis"`
	AWS   AWSConfig   `koanf:"aws"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// JellyfinConfig describes the upstream server and how the BFF identifies
// itself to it.
type JellyfinConfig struct {
	URL            string        `koanf:"url"` // Required, no default host
	AuthTimeout    time.Duration `koanf:"auth_timeout"`
	CatalogTimeout time.Duration `koanf:"catalog_timeout"`
	RateLimit      float64       `koanf:"rate_limit"`
	RateBurst      int           `koanf:"rate_burst"`
	Client         string        `koanf:"client"`
	Device         string        `koanf:"device"`
	DeviceID       string        `koanf:"device_id"`
	Version        string        `koanf:"version"`
}

// AuthConfig holds token signing configuration.
type AuthConfig struct {
	JWTSecret domain.SecretString `koanf:"jwt_secret"`
	SecretID  string              `koanf:"secret_id"` // Secrets Manager id, used when JWTSecret is empty
	KeyID     string              `koanf:"key_id"`
	Issuer    string              `koanf:"issuer"`
	Audience  string              `koanf:"audience"`
	DevSecret bool                `koanf:"dev_secret"` // Honoured only in local
}

// LoginConfig bounds login attempts per client IP and per username.
type LoginConfig struct {
	RateLimit  int           `koanf:"rate_limit"`
	RateWindow time.Duration `koanf:"rate_window"`
}

// WebConfig points at the front-end bundle served behind the gatekeeper.
type WebConfig struct {
	StaticDir string `koanf:"static_dir"`
	// Comma-separated CIDRs of reverse proxies allowed to set X-Forwarded-For.
	TrustedProxies string `koanf:"trusted_proxies"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string        `koanf:"addr"` // Empty disables the login limiter
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// AWSConfig holds AWS SDK configuration.
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // LocalStack endpoint for development
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// sections are the env prefixes that map onto nested structs. JELLYFIN_AUTH_TIMEOUT
// becomes jellyfin.auth_timeout; LOG_LEVEL stays log_level.
var sections = map[string]bool{
	"jellyfin": true,
	"auth":     true,
	"login":    true,
	"web":      true,
	"redis":    true,
	"aws":      true,
	"otel":     true,
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "json",
		HTTPPort:    3000,

		Jellyfin: JellyfinConfig{
			AuthTimeout:    domain.UpstreamAuthTimeout,
			CatalogTimeout: domain.UpstreamCatalogTimeout,
			RateLimit:      20,
			RateBurst:      40,
			Client:         "JellyfinBFF",
			Device:         "GoServer",
			DeviceID:       "jellyfin-bff",
			Version:        "1.0.0",
		},
		Auth: AuthConfig{
			KeyID:    "bff-key-1",
			Issuer:   "jellyfin-bff",
			Audience: "jellyfin-bff-web",
		},
		Login: LoginConfig{
			RateLimit:  domain.LoginRateLimit,
			RateWindow: domain.LoginRateLimitWindow,
		},
		Web: WebConfig{
			StaticDir: "./web",
		},
		Redis: RedisConfig{
			DB:      0,
			Timeout: domain.RedisTimeout,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		OTEL: OTELConfig{
			ServiceName: "jellyfin-bff",
		},
	}
}

// envKey maps an environment variable name onto a koanf path.
func envKey(s string) string {
	key := strings.ToLower(s)
	if section, rest, ok := strings.Cut(key, "_"); ok && sections[section] {
		return section + "." + rest
	}
	return key
}

// Load loads configuration following the precedence:
// 1. Environment variables (highest)
// 2. Compiled defaults (lowest)
//
// Required keys missing → startup failure.
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	err := k.Load(env.Provider("", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRequired checks that required configuration is present. The signing
// secret may still arrive from Secrets Manager, so only its shape is checked.
func validateRequired(cfg *Config) error {
	if cfg.Jellyfin.URL == "" {
		return fmt.Errorf("%w: jellyfin.url", domain.ErrConfigRequired)
	}
	u, err := url.Parse(cfg.Jellyfin.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: jellyfin.url must be an absolute URL", domain.ErrConfigRequired)
	}

	if !cfg.Auth.JWTSecret.IsEmpty() && len(cfg.Auth.JWTSecret.Expose()) < domain.MinSigningSecretLength {
		return fmt.Errorf("%w: auth.jwt_secret must be at least %d bytes",
			domain.ErrConfigRequired, domain.MinSigningSecretLength)
	}

	if cfg.Auth.JWTSecret.IsEmpty() && cfg.Auth.SecretID == "" && !cfg.AllowsDevSecret() {
		return fmt.Errorf("%w: auth.jwt_secret or auth.secret_id", domain.ErrConfigRequired)
	}

	if cfg.Auth.Issuer == "" || cfg.Auth.Audience == "" {
		return fmt.Errorf("%w: auth.issuer and auth.audience", domain.ErrConfigRequired)
	}

	return nil
}

// AllowsDevSecret reports whether an ephemeral signing secret may be
// generated. Only an explicit opt-in in the local environment qualifies.
func (c *Config) AllowsDevSecret() bool {
	return c.IsLocal() && c.Auth.DevSecret
}

// JellyfinBaseURL returns the upstream URL without a trailing slash.
func (c *Config) JellyfinBaseURL() string {
	return strings.TrimRight(c.Jellyfin.URL, "/")
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}
