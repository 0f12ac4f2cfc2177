package port

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/jellyfin-bff/internal/bff/app"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/jellyfin"
	"github.com/aelexs/jellyfin-bff/internal/session"
)

type stubMediaService struct {
	moviesFn  func(ctx context.Context, rec session.Record) ([]app.MediaItem, error)
	showsFn   func(ctx context.Context, rec session.Record) ([]app.MediaItem, error)
	imageFn   func(ctx context.Context, rec session.Record, itemID string, imageType domain.ImageType) (*jellyfin.Stream, error)
	refreshFn func(ctx context.Context, rec session.Record) error

	seasonsFn  func(ctx context.Context, rec session.Record, seriesID string) ([]app.Season, error)
	episodesFn func(ctx context.Context, rec session.Record, seasonID string) ([]app.Episode, error)
	continueFn func(ctx context.Context, rec session.Record) ([]app.ResumeItem, error)
	detailsFn  func(ctx context.Context, rec session.Record, itemID string) (*app.ItemDetails, error)
	popularFn  func(ctx context.Context, rec session.Record) (*app.FeaturedItem, error)
	subtitleFn func(ctx context.Context, rec session.Record, path string) (*jellyfin.Stream, error)
}

func (s *stubMediaService) Seasons(ctx context.Context, rec session.Record, seriesID string) ([]app.Season, error) {
	return s.seasonsFn(ctx, rec, seriesID)
}

func (s *stubMediaService) Episodes(ctx context.Context, rec session.Record, seasonID string) ([]app.Episode, error) {
	return s.episodesFn(ctx, rec, seasonID)
}

func (s *stubMediaService) ContinueWatching(ctx context.Context, rec session.Record) ([]app.ResumeItem, error) {
	return s.continueFn(ctx, rec)
}

func (s *stubMediaService) ItemDetails(ctx context.Context, rec session.Record, itemID string) (*app.ItemDetails, error) {
	return s.detailsFn(ctx, rec, itemID)
}

func (s *stubMediaService) MostPopular(ctx context.Context, rec session.Record) (*app.FeaturedItem, error) {
	return s.popularFn(ctx, rec)
}

func (s *stubMediaService) Subtitle(ctx context.Context, rec session.Record, path string) (*jellyfin.Stream, error) {
	return s.subtitleFn(ctx, rec, path)
}

func (s *stubMediaService) Movies(ctx context.Context, rec session.Record) ([]app.MediaItem, error) {
	return s.moviesFn(ctx, rec)
}

func (s *stubMediaService) Shows(ctx context.Context, rec session.Record) ([]app.MediaItem, error) {
	return s.showsFn(ctx, rec)
}

func (s *stubMediaService) Image(ctx context.Context, rec session.Record, itemID string, imageType domain.ImageType) (*jellyfin.Stream, error) {
	return s.imageFn(ctx, rec, itemID, imageType)
}

func (s *stubMediaService) RefreshLibrary(ctx context.Context, rec session.Record) error {
	return s.refreshFn(ctx, rec)
}

var _ mediaService = (*stubMediaService)(nil)

var alice = session.Record{UserID: "user-0001", Username: "alice", JellyfinToken: "jf-token"}

func withSession(r *http.Request) *http.Request {
	return r.WithContext(session.NewContext(r.Context(), alice))
}

func TestMediaHandler_Movies(t *testing.T) {
	h := newMediaHandler(&stubMediaService{
		moviesFn: func(_ context.Context, rec session.Record) ([]app.MediaItem, error) {
			assert.Equal(t, alice, rec)
			return []app.MediaItem{{ID: "m1", Name: "Heat", Duration: "2h 50m", ImageURL: app.ImageURL("m1")}}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Movies(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/movies", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "Heat", items[0].(map[string]any)["Name"])
	assert.Equal(t, "/api/media/images/m1/Primary", items[0].(map[string]any)["ImageUrl"])
}

func TestMediaHandler_ShowsErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"upstream 401", &domain.UpstreamError{StatusCode: 401, Message: "Authentication failed with Jellyfin server"}, http.StatusUnauthorized},
		{"upstream down", domain.ErrUpstreamUnavailable, http.StatusInternalServerError},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newMediaHandler(&stubMediaService{
				showsFn: func(context.Context, session.Record) ([]app.MediaItem, error) { return nil, tt.err },
			}, nil)

			rec := httptest.NewRecorder()
			h.Shows(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/shows", nil)))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestMediaHandler_NoSession(t *testing.T) {
	h := newMediaHandler(&stubMediaService{}, nil)

	for name, fn := range map[string]http.HandlerFunc{
		"movies":   h.Movies,
		"shows":    h.Shows,
		"image":    h.Image,
		"refresh":  h.RefreshLibrary,
		"seasons":  h.Seasons,
		"episodes": h.Episodes,
		"continue": h.ContinueWatching,
		"details":  h.ItemDetails,
		"popular":  h.MostPopular,
		"subtitle": h.Subtitle,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fn(rec, httptest.NewRequest(http.MethodGet, "/api/media/x", nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestMediaHandler_Image(t *testing.T) {
	h := newMediaHandler(&stubMediaService{
		imageFn: func(_ context.Context, _ session.Record, itemID string, imageType domain.ImageType) (*jellyfin.Stream, error) {
			assert.Equal(t, "m1", itemID)
			assert.Equal(t, domain.ImagePrimary, imageType)
			return &jellyfin.Stream{
				Body:          io.NopCloser(strings.NewReader("PNGDATA")),
				ContentType:   "image/png",
				ContentLength: 7,
			}, nil
		},
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/media/images/{itemId}/{type}", h.Image)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/images/m1/Primary", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "7", rec.Header().Get("Content-Length"))
	assert.Equal(t, "PNGDATA", rec.Body.String())
}

func TestMediaHandler_RefreshLibrary(t *testing.T) {
	h := newMediaHandler(&stubMediaService{
		refreshFn: func(context.Context, session.Record) error { return nil },
	}, nil)

	rec := httptest.NewRecorder()
	h.RefreshLibrary(rec, withSession(httptest.NewRequest(http.MethodPost, "/api/actions/refresh", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Success", decodeBody(t, rec)["message"])
}

func TestMediaHandler_Seasons(t *testing.T) {
	h := newMediaHandler(&stubMediaService{
		seasonsFn: func(_ context.Context, _ session.Record, seriesID string) ([]app.Season, error) {
			assert.Equal(t, "s-1", seriesID)
			return []app.Season{{ID: "se1", Name: "Season 1"}}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Seasons(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/seasons?seriesId=s-1", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	seasons, ok := decodeBody(t, rec)["seasons"].([]any)
	require.True(t, ok)
	require.Len(t, seasons, 1)
	assert.Equal(t, "se1", seasons[0].(map[string]any)["Id"])
}

func TestMediaHandler_Episodes(t *testing.T) {
	h := newMediaHandler(&stubMediaService{
		episodesFn: func(_ context.Context, _ session.Record, seasonID string) ([]app.Episode, error) {
			if seasonID == "" {
				return nil, &domain.InputError{Field: "seasonId"}
			}
			return []app.Episode{{ID: "e1", Duration: "45m"}}, nil
		},
	}, nil)

	t.Run("lists episodes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Episodes(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/episodes?seasonId=se1", nil)))

		require.Equal(t, http.StatusOK, rec.Code)
		episodes, ok := decodeBody(t, rec)["episodes"].([]any)
		require.True(t, ok)
		assert.Len(t, episodes, 1)
	})

	t.Run("missing seasonId is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Episodes(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/episodes", nil)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "seasonId is required", decodeBody(t, rec)["error"])
	})
}

func TestMediaHandler_ContinueWatching(t *testing.T) {
	h := newMediaHandler(&stubMediaService{
		continueFn: func(context.Context, session.Record) ([]app.ResumeItem, error) {
			return []app.ResumeItem{{ID: "e1", ContinueFrom: 600, ImageURL: "/api/media/images/s-1/Thumb"}}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.ContinueWatching(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/continue-watching", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	items, ok := decodeBody(t, rec)["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "/api/media/images/s-1/Thumb", items[0].(map[string]any)["ImageUrl"])
}

func TestMediaHandler_ItemDetails(t *testing.T) {
	h := newMediaHandler(&stubMediaService{
		detailsFn: func(_ context.Context, _ session.Record, itemID string) (*app.ItemDetails, error) {
			if itemID == "gone" {
				return nil, domain.ErrNotFound
			}
			return &app.ItemDetails{MediaItem: app.MediaItem{ID: itemID, Name: "Heat"}, Genres: []string{}}, nil
		},
	}, nil)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ItemDetails(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/details?itemId=m1", nil)))

		require.Equal(t, http.StatusOK, rec.Code)
		item, ok := decodeBody(t, rec)["item"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Heat", item["Name"])
		assert.Equal(t, "m1", item["Id"])
		assert.Nil(t, item["BackdropUrl"])
	})

	t.Run("upstream not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ItemDetails(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/details?itemId=gone", nil)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMediaHandler_MostPopular(t *testing.T) {
	h := newMediaHandler(&stubMediaService{
		popularFn: func(context.Context, session.Record) (*app.FeaturedItem, error) {
			return &app.FeaturedItem{ID: "m1", Name: "Heat", Rating: 9.1, ImageBg: "/api/media/images/m1/Backdrop"}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.MostPopular(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/media/popular", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "m1", body["id"])
	assert.Equal(t, 9.1, body["rating"])
	assert.Equal(t, "/api/media/images/m1/Backdrop", body["imageBg"])
}

func TestMediaHandler_Subtitle(t *testing.T) {
	h := newMediaHandler(&stubMediaService{
		subtitleFn: func(_ context.Context, _ session.Record, path string) (*jellyfin.Stream, error) {
			if path == "" {
				return nil, &domain.InputError{Field: "path"}
			}
			assert.Equal(t, "/Videos/v1/src/Subtitles/2/0/Stream.vtt", path)
			return &jellyfin.Stream{Body: io.NopCloser(strings.NewReader("WEBVTT\n"))}, nil
		},
	}, nil)

	t.Run("streams as vtt", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Subtitle(rec, withSession(httptest.NewRequest(http.MethodGet,
			"/api/subtitles?path=%2FVideos%2Fv1%2Fsrc%2FSubtitles%2F2%2F0%2FStream.vtt", nil)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/vtt", rec.Header().Get("Content-Type"))
		assert.Equal(t, "WEBVTT\n", rec.Body.String())
	})

	t.Run("missing path is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Subtitle(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/subtitles", nil)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
