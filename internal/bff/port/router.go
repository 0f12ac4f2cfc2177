package port

import (
	"log/slog"
	"net/http"
)

// requirer wraps handlers that need a resolved session.
type requirer interface {
	Require(next http.Handler) http.Handler
}

// RouterConfig holds the handlers and the session gate for the API routes.
type RouterConfig struct {
	Auth     *AuthHandler
	Media    *MediaHandler
	Sessions requirer
}

// NewAPIRouter registers the /api routes on a fresh mux.
func NewAPIRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()
	protect := func(h http.HandlerFunc) http.Handler { return cfg.Sessions.Require(h) }

	mux.HandleFunc("POST /api/auth/login", cfg.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", cfg.Auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", cfg.Auth.Logout)
	mux.Handle("GET /api/auth/me", protect(cfg.Auth.Me))

	mux.Handle("GET /api/media/movies", protect(cfg.Media.Movies))
	mux.Handle("GET /api/media/shows", protect(cfg.Media.Shows))
	mux.Handle("GET /api/media/seasons", protect(cfg.Media.Seasons))
	mux.Handle("GET /api/media/episodes", protect(cfg.Media.Episodes))
	mux.Handle("GET /api/media/continue-watching", protect(cfg.Media.ContinueWatching))
	mux.Handle("GET /api/media/details", protect(cfg.Media.ItemDetails))
	mux.Handle("GET /api/media/popular", protect(cfg.Media.MostPopular))
	mux.Handle("GET /api/media/images/{itemId}/{type}", protect(cfg.Media.Image))
	mux.Handle("GET /api/subtitles", protect(cfg.Media.Subtitle))
	mux.Handle("POST /api/actions/refresh", protect(cfg.Media.RefreshLibrary))

	return mux
}

// Wrap applies client address resolution, the access log and panic recovery
// to h.
func Wrap(logger *slog.Logger, proxies TrustedProxies, h http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return ResolveClientIP(proxies, AccessLog(logger, Recover(logger, h)))
}
