// Package edge gates page requests before they reach the front-end bundle.
// It is a pure function of the request cookies and never calls the upstream;
// revocation is only observed at the next refresh.
package edge

import (
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/session"
)

// DefaultPublicPrefixes pass through without a session.
var DefaultPublicPrefixes = []string{
	"/api/auth/login",
	"/api/auth/refresh",
	"/static",
	"/branding",
	"/public",
	"/favicon.ico",
}

var refreshSignalsTotal metric.Int64Counter

func init() {
	m := otel.Meter("edge")
	refreshSignalsTotal, _ = m.Int64Counter("edge_refresh_signals_total",
		metric.WithDescription("Page responses carrying the refresh signal"))
}

// resolver is the slice of session.Resolver the gatekeeper needs.
type resolver interface {
	FromRequest(r *http.Request) (session.Record, session.Source, bool)
}

// Config holds the dependencies for a Gatekeeper.
type Config struct {
	Resolver       resolver
	Next           http.Handler
	PublicPrefixes []string // nil means DefaultPublicPrefixes
	Logger         *slog.Logger
}

// Gatekeeper redirects unauthenticated page requests to the login page and
// flags sessions that only survived through the refresh token.
type Gatekeeper struct {
	resolver resolver
	next     http.Handler
	public   []string
	logger   *slog.Logger
}

// New creates a Gatekeeper.
func New(cfg Config) *Gatekeeper {
	public := cfg.PublicPrefixes
	if public == nil {
		public = DefaultPublicPrefixes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatekeeper{
		resolver: cfg.Resolver,
		next:     cfg.Next,
		public:   public,
		logger:   logger,
	}
}

// ServeHTTP implements http.Handler.
//
// Order: the login page first (bounce authenticated users home), then public
// prefixes, then the session check. A panic while resolving degrades to
// "not authenticated". The refresh signal is set whenever only the refresh
// token authenticated, so an expired or tampered access cookie triggers it as
// well as a missing one.
func (g *Gatekeeper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == domain.LoginPath || strings.HasPrefix(path, domain.LoginPath+"/") {
		if _, _, ok := g.resolve(r); ok {
			g.redirect(w, r, domain.HomePath, "authenticated_on_login")
			return
		}
		g.next.ServeHTTP(w, r)
		return
	}

	if g.isPublic(path) {
		g.next.ServeHTTP(w, r)
		return
	}

	rec, source, ok := g.resolve(r)
	if !ok {
		g.redirect(w, r, domain.LoginPath, "no_session")
		return
	}

	if source == session.SourceRefresh {
		w.Header().Set(domain.RefreshSignalHeader, "true")
		refreshSignalsTotal.Add(r.Context(), 1)
	}

	g.next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), rec)))
}

func (g *Gatekeeper) resolve(r *http.Request) (rec session.Record, source session.Source, ok bool) {
	defer func() {
		if v := recover(); v != nil {
			g.logger.ErrorContext(r.Context(), "edge.resolve_panic", "panic", v, "path", r.URL.Path)
			rec, source, ok = session.Record{}, session.SourceNone, false
		}
	}()
	return g.resolver.FromRequest(r)
}

func (g *Gatekeeper) isPublic(path string) bool {
	for _, p := range g.public {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (g *Gatekeeper) redirect(w http.ResponseWriter, r *http.Request, to, reason string) {
	g.logger.DebugContext(r.Context(), "edge.redirect",
		slog.String("from", r.URL.Path),
		slog.String("to", to),
		slog.String("reason", reason),
	)
	http.Redirect(w, r, to, http.StatusFound)
}
