package port

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/errmap"
	"github.com/aelexs/jellyfin-bff/internal/observability"
)

// Recover turns a handler panic into a 500 JSON body for /api/* and a login
// redirect for pages. http.ErrAbortHandler is re-raised.
func Recover(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			observability.WithTraceID(r.Context(), logger).ErrorContext(r.Context(), "http.panic",
				slog.Any("panic", v),
				slog.String("path", r.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)
			if strings.HasPrefix(r.URL.Path, "/api/") {
				errmap.WriteJSON(w, http.StatusInternalServerError, errmap.HTTPError{
					Message: errmap.MsgInternal,
					Code:    "INTERNAL",
				})
				return
			}
			http.Redirect(w, r, domain.LoginPath, http.StatusFound)
		}()
		next.ServeHTTP(w, r)
	})
}

// AccessLog writes one http.request record per request.
func AccessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := observability.NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.Status >= 500 {
			level = slog.LevelError
		}
		observability.WithTraceID(r.Context(), logger).Log(r.Context(), level, "http.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.Status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("client_ip", clientIP(r)),
		)
	})
}
