// Package authclient is a client agent for the BFF session API. It keeps a
// cookie-bearing HTTP client logged in: an initial refresh on Start, a
// periodic refresh while authenticated, and an immediate refresh whenever a
// page response carries the edge refresh signal.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/pkg/protocol"
)

// DefaultRefreshInterval keeps the access token well inside its lifetime.
const DefaultRefreshInterval = domain.ClientRefreshInterval

// refreshTimeout bounds one shared refresh request.
const refreshTimeout = 15 * time.Second

var (
	// ErrClosed is returned by operations on a closed Controller.
	ErrClosed = errors.New("authclient: controller closed")

	// ErrSuperseded is returned to refresh callers whose flight was overtaken
	// by a login or logout.
	ErrSuperseded = errors.New("authclient: session replaced during refresh")
)

// Config configures a Controller.
type Config struct {
	BaseURL         string
	HTTPClient      *http.Client // copied; a cookie jar is added when missing
	RefreshInterval time.Duration
	Logger          *slog.Logger
}

// State is a snapshot of the client's view of the session.
type State struct {
	User            *protocol.User
	IsAuthenticated bool
	IsLoading       bool
}

// Controller owns the session of one client. It is safe for concurrent use.
type Controller struct {
	base     *url.URL
	client   *http.Client
	jar      http.CookieJar
	interval time.Duration
	logger   *slog.Logger

	sf singleflight.Group

	// session serializes everything that writes session cookies into the
	// jar: refresh flights, login and logout.
	session sync.Mutex

	mu           sync.Mutex
	state        State
	gen          uint64 // bumped whenever login or logout replaces the session
	cancelFlight context.CancelFunc
	closed       bool
	stopTicker   context.CancelFunc
	lifetime     context.Context
	endLifetime  context.CancelFunc
	wg           sync.WaitGroup
}

// New creates a Controller. The state starts as loading until Start runs.
func New(cfg Config) (*Controller, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("authclient: base url %q must be absolute", cfg.BaseURL)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	if cfg.HTTPClient != nil {
		cp := *cfg.HTTPClient
		client = &cp
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("authclient: cookie jar: %w", err)
		}
		client.Jar = jar
	}

	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		base:     base,
		client:   client,
		jar:      client.Jar,
		interval: interval,
		logger:   logger,
		state:    State{IsLoading: true},
	}
	c.lifetime, c.endLifetime = context.WithCancel(context.Background())

	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	client.Transport = &signalTransport{next: next, onSignal: c.refreshInBackground}

	return c, nil
}

// Start materializes the session with one refresh. A failed refresh is the
// logged-out state, not an error. If ctx ends first the refresh carries on in
// the background and Start returns the state as it stands.
func (c *Controller) Start(ctx context.Context) State {
	if err := c.Refresh(ctx); err != nil {
		c.logger.DebugContext(ctx, "authclient.start_unauthenticated", "error", err)
	}
	return c.State()
}

// State returns a snapshot of the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// HTTPClient returns the cookie-bearing client. Responses fetched through it
// are watched for the refresh signal.
func (c *Controller) HTTPClient() *http.Client {
	return c.client
}

// Do sends req with the session cookies.
func (c *Controller) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}

// Login authenticates and, on success, starts the periodic refresher. A
// refresh in flight is abandoned. A rejected login returns the server's
// *protocol.ErrorResponse and leaves the state untouched.
func (c *Controller) Login(ctx context.Context, username, password string) (State, error) {
	if c.isClosed() {
		return c.State(), ErrClosed
	}
	body, err := json.Marshal(protocol.LoginRequest{Username: username, Password: password})
	if err != nil {
		return c.State(), fmt.Errorf("authclient: encode login: %w", err)
	}

	c.mu.Lock()
	c.interruptLocked()
	c.mu.Unlock()

	c.session.Lock()
	defer c.session.Unlock()

	var resp protocol.SessionResponse
	if err := c.post(ctx, protocol.PathLogin, body, &resp); err != nil {
		return c.State(), err
	}

	c.mu.Lock()
	c.gen++
	c.setAuthenticatedLocked(resp.User)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "authclient.login", "user_id", resp.User.ID)
	return c.State(), nil
}

// Logout clears local state, abandons any refresh in flight, asks the server
// to clear the cookies and then empties the jar whatever the outcome. The
// server error, if any, is only logged.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.interruptLocked()
	c.setLoggedOutLocked()
	c.mu.Unlock()

	// Wait out the abandoned flight so its Set-Cookie cannot land after the
	// jar is cleared.
	c.session.Lock()
	defer c.session.Unlock()

	if err := c.post(ctx, protocol.PathLogout, nil, nil); err != nil {
		c.logger.WarnContext(ctx, "authclient.logout_request_failed", "error", err)
	}

	c.jar.SetCookies(c.base, []*http.Cookie{
		{Name: domain.AccessTokenCookie, Path: "/", MaxAge: -1},
		{Name: domain.RefreshTokenCookie, Path: "/", MaxAge: -1},
	})
}

// Refresh rotates the token pair. Concurrent callers share one request, which
// runs on the controller's own context: a caller whose ctx ends gets ctx.Err()
// while the shared request continues for the others. A rejected or failed
// request moves the state to logged out.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	ch := c.sf.DoChan("refresh", func() (any, error) {
		return nil, c.refreshOnce()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshOnce performs one refresh flight and applies its outcome only if no
// login or logout happened meanwhile.
func (c *Controller) refreshOnce() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	c.session.Lock()
	defer c.session.Unlock()

	c.mu.Lock()
	gen := c.gen
	ctx, cancel := context.WithTimeout(c.lifetime, refreshTimeout)
	c.cancelFlight = cancel
	c.mu.Unlock()
	defer cancel()

	var resp protocol.SessionResponse
	err := c.post(ctx, protocol.PathRefresh, nil, &resp)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelFlight = nil
	if gen != c.gen {
		return ErrSuperseded
	}
	if err != nil {
		// Abandoned by Login or Close: not an authentication failure.
		if errors.Is(ctx.Err(), context.Canceled) {
			return err
		}
		c.gen++
		c.setLoggedOutLocked()
		return err
	}
	c.setAuthenticatedLocked(resp.User)
	return nil
}

// Close stops background refreshes and waits for them to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.endLifetime()
	c.mu.Unlock()

	c.wg.Wait()
	c.client.CloseIdleConnections()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) setAuthenticatedLocked(u protocol.User) {
	c.state = State{User: &u, IsAuthenticated: true}
	c.startTickerLocked()
}

func (c *Controller) setLoggedOutLocked() {
	c.state = State{}
	if c.stopTicker != nil {
		c.stopTicker()
		c.stopTicker = nil
	}
}

// interruptLocked cancels the refresh request in flight, if any.
func (c *Controller) interruptLocked() {
	if c.cancelFlight != nil {
		c.cancelFlight()
		c.cancelFlight = nil
	}
}

// startTickerLocked starts the periodic refresher unless one is running.
func (c *Controller) startTickerLocked() {
	if c.closed || c.stopTicker != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.lifetime)
	c.stopTicker = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
					c.logger.InfoContext(ctx, "authclient.periodic_refresh_failed", "error", err)
				}
			}
		}
	}()
}

// refreshInBackground runs one refresh off the caller's goroutine.
func (c *Controller) refreshInBackground() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Refresh(c.lifetime); err != nil && c.lifetime.Err() == nil {
			c.logger.InfoContext(c.lifetime, "authclient.signal_refresh_failed", "error", err)
		}
	}()
}

// post sends a JSON POST and decodes a 2xx body into out when non-nil.
// Non-2xx answers become *protocol.ErrorResponse.
func (c *Controller) post(ctx context.Context, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+path, rd)
	if err != nil {
		return fmt.Errorf("authclient: build %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("authclient: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &protocol.ErrorResponse{}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("authclient: decode %s: %w", path, err)
	}
	return nil
}
