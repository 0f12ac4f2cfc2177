// Package jellyfin is the BFF's client for the upstream Jellyfin server:
// credential login, token liveness checks, catalog reads, image streaming
// and library refresh.
package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

var tracer = otel.Tracer("jellyfin")

// maxBodyBytes caps JSON responses read from the upstream.
const maxBodyBytes = 8 << 20

// Config configures a Client.
type Config struct {
	BaseURL        string
	AuthTimeout    time.Duration
	CatalogTimeout time.Duration

	// RateLimit bounds auth-path calls (login, validate) per second.
	// Zero or negative disables the bound.
	RateLimit float64
	RateBurst int

	// Identity sent in X-Emby-Authorization.
	ClientName string
	Device     string
	DeviceID   string
	Version    string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to a single Jellyfin server. It is safe for concurrent use.
type Client struct {
	baseURL        string
	identity       string
	authTimeout    time.Duration
	catalogTimeout time.Duration
	limiter        *rate.Limiter
	http           *http.Client
	logger         *slog.Logger
}

// New creates a Client. Missing timeouts fall back to the package defaults.
func New(cfg Config) *Client {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = domain.UpstreamAuthTimeout
	}
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = domain.UpstreamCatalogTimeout
	}
	if cfg.HTTPClient == nil {
		// Per-call contexts carry the deadlines.
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    20,
				IdleConnTimeout: 30 * time.Second,
			},
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		identity: fmt.Sprintf(`MediaBrowser Client=%q, Device=%q, DeviceId=%q, Version=%q`,
			cfg.ClientName, cfg.Device, cfg.DeviceID, cfg.Version),
		authTimeout:    cfg.AuthTimeout,
		catalogTimeout: cfg.CatalogTimeout,
		limiter:        rate.NewLimiter(limit, burst),
		http:           cfg.HTTPClient,
		logger:         cfg.Logger,
	}
}

// authorization builds the X-Emby-Authorization value, with the user's
// token appended when there is one.
func (c *Client) authorization(token domain.SecretString) string {
	if token.IsEmpty() {
		return c.identity
	}
	return fmt.Sprintf(`%s, Token=%q`, c.identity, token.Expose())
}

func (c *Client) newRequest(ctx context.Context, method, path string, token domain.SecretString, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Emby-Authorization", c.authorization(token))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and maps transport failures, including timeouts, to
// domain.ErrUpstreamUnavailable.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrUpstreamUnavailable, req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// waitAuthSlot blocks until the auth-path limiter admits a call or ctx ends.
func (c *Client) waitAuthSlot(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: auth rate bound: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

// excerpt trims an upstream body for logging.
func excerpt(b []byte) string {
	const n = 256
	if len(b) > n {
		return string(b[:n]) + "…"
	}
	return string(b)
}
