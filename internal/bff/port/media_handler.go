package port

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aelexs/jellyfin-bff/internal/bff/app"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/errmap"
	"github.com/aelexs/jellyfin-bff/internal/jellyfin"
	"github.com/aelexs/jellyfin-bff/internal/session"
	"github.com/aelexs/jellyfin-bff/pkg/protocol"
)

// mediaService is the slice of *app.MediaService the handler uses.
type mediaService interface {
	Movies(ctx context.Context, rec session.Record) ([]app.MediaItem, error)
	Shows(ctx context.Context, rec session.Record) ([]app.MediaItem, error)
	Image(ctx context.Context, rec session.Record, itemID string, imageType domain.ImageType) (*jellyfin.Stream, error)
	RefreshLibrary(ctx context.Context, rec session.Record) error
	Seasons(ctx context.Context, rec session.Record, seriesID string) ([]app.Season, error)
	Episodes(ctx context.Context, rec session.Record, seasonID string) ([]app.Episode, error)
	ContinueWatching(ctx context.Context, rec session.Record) ([]app.ResumeItem, error)
	ItemDetails(ctx context.Context, rec session.Record, itemID string) (*app.ItemDetails, error)
	MostPopular(ctx context.Context, rec session.Record) (*app.FeaturedItem, error)
	Subtitle(ctx context.Context, rec session.Record, path string) (*jellyfin.Stream, error)
}

type itemsResponse struct {
	Items []app.MediaItem `json:"items"`
}

type resumeResponse struct {
	Items []app.ResumeItem `json:"items"`
}

type seasonsResponse struct {
	Seasons []app.Season `json:"seasons"`
}

type episodesResponse struct {
	Episodes []app.Episode `json:"episodes"`
}

type itemDetailsResponse struct {
	Item *app.ItemDetails `json:"item"`
}

// MediaHandler serves /api/media/* and /api/actions/*. Every route sits
// behind Resolver.Require.
type MediaHandler struct {
	svc    mediaService
	logger *slog.Logger
}

// NewMediaHandler creates a MediaHandler backed by the given MediaService.
func NewMediaHandler(svc *app.MediaService, logger *slog.Logger) *MediaHandler {
	return newMediaHandler(svc, logger)
}

func newMediaHandler(svc mediaService, logger *slog.Logger) *MediaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandler{svc: svc, logger: logger}
}

// Movies lists the user's movies.
func (h *MediaHandler) Movies(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.Movies)
}

// Shows lists the user's series.
func (h *MediaHandler) Shows(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.Shows)
}

func (h *MediaHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, session.Record) ([]app.MediaItem, error)) {
	rec, ok := session.FromContext(r.Context())
	if !ok {
		errmap.WriteError(w, domain.ErrUnauthorized)
		return
	}
	items, err := fetch(r.Context(), rec)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "media.list_failed", "user_id", rec.UserID, "error", err)
		errmap.WriteError(w, err)
		return
	}
	errmap.WriteJSON(w, http.StatusOK, itemsResponse{Items: items})
}

// Image streams an item image from the upstream.
func (h *MediaHandler) Image(w http.ResponseWriter, r *http.Request) {
	rec, ok := session.FromContext(r.Context())
	if !ok {
		errmap.WriteError(w, domain.ErrUnauthorized)
		return
	}

	img, err := h.svc.Image(r.Context(), rec, r.PathValue("itemId"), domain.ImageType(r.PathValue("type")))
	if err != nil {
		errmap.WriteError(w, err)
		return
	}
	h.stream(w, r, img, "", "private, max-age=86400")
}

// Subtitle streams a subtitle track named by the path query parameter.
func (h *MediaHandler) Subtitle(w http.ResponseWriter, r *http.Request) {
	rec, ok := session.FromContext(r.Context())
	if !ok {
		errmap.WriteError(w, domain.ErrUnauthorized)
		return
	}

	track, err := h.svc.Subtitle(r.Context(), rec, r.URL.Query().Get("path"))
	if err != nil {
		errmap.WriteError(w, err)
		return
	}
	h.stream(w, r, track, "text/vtt", "private, max-age=3600")
}

// stream copies an upstream body to w. fallbackType is used when the
// upstream sent no Content-Type.
func (h *MediaHandler) stream(w http.ResponseWriter, r *http.Request, s *jellyfin.Stream, fallbackType, cacheControl string) {
	defer s.Close()

	contentType := s.ContentType
	if contentType == "" {
		contentType = fallbackType
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if s.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(s.ContentLength, 10))
	}
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, s.Body); err != nil {
		h.logger.WarnContext(r.Context(), "media.stream_aborted", "path", r.URL.Path, "error", err)
	}
}

// Seasons lists the seasons of the seriesId query parameter.
func (h *MediaHandler) Seasons(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "seasons", func(ctx context.Context, rec session.Record) (any, error) {
		seasons, err := h.svc.Seasons(ctx, rec, r.URL.Query().Get("seriesId"))
		return seasonsResponse{Seasons: seasons}, err
	})
}

// Episodes lists the episodes of the seasonId query parameter.
func (h *MediaHandler) Episodes(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "episodes", func(ctx context.Context, rec session.Record) (any, error) {
		episodes, err := h.svc.Episodes(ctx, rec, r.URL.Query().Get("seasonId"))
		return episodesResponse{Episodes: episodes}, err
	})
}

// ContinueWatching lists the user's in-progress items.
func (h *MediaHandler) ContinueWatching(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "continue_watching", func(ctx context.Context, rec session.Record) (any, error) {
		items, err := h.svc.ContinueWatching(ctx, rec)
		return resumeResponse{Items: items}, err
	})
}

// ItemDetails returns the itemId query parameter's detail view.
func (h *MediaHandler) ItemDetails(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "item_details", func(ctx context.Context, rec session.Record) (any, error) {
		item, err := h.svc.ItemDetails(ctx, rec, r.URL.Query().Get("itemId"))
		return itemDetailsResponse{Item: item}, err
	})
}

// MostPopular returns the featured title.
func (h *MediaHandler) MostPopular(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "most_popular", func(ctx context.Context, rec session.Record) (any, error) {
		return h.svc.MostPopular(ctx, rec)
	})
}

// serve runs fetch for the session in the request context and writes its
// result as JSON.
func (h *MediaHandler) serve(w http.ResponseWriter, r *http.Request, op string, fetch func(context.Context, session.Record) (any, error)) {
	rec, ok := session.FromContext(r.Context())
	if !ok {
		errmap.WriteError(w, domain.ErrUnauthorized)
		return
	}
	body, err := fetch(r.Context(), rec)
	if err != nil {
		he := errmap.WriteError(w, err)
		if he.StatusCode >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "media.request_failed", "op", op, "user_id", rec.UserID, "error", err)
		}
		return
	}
	errmap.WriteJSON(w, http.StatusOK, body)
}

// RefreshLibrary triggers an upstream library scan.
func (h *MediaHandler) RefreshLibrary(w http.ResponseWriter, r *http.Request) {
	rec, ok := session.FromContext(r.Context())
	if !ok {
		errmap.WriteError(w, domain.ErrUnauthorized)
		return
	}
	if err := h.svc.RefreshLibrary(r.Context(), rec); err != nil {
		errmap.WriteError(w, err)
		return
	}
	errmap.WriteJSON(w, http.StatusOK, protocol.MessageResponse{Message: "Success"})
}
