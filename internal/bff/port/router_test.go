package port

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/bff/app"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/domain/domaintest"
	"github.com/aelexs/jellyfin-bff/internal/session"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.Codec) {
	t.Helper()
	store, err := auth.NewStaticKeyStore([]byte(strings.Repeat("r", domain.MinSigningSecretLength)), "router-key")
	require.NoError(t, err)
	codec := auth.NewCodec(auth.CodecConfig{
		KeyStore: store,
		Issuer:   "jellyfin-bff",
		Audience: "jellyfin-bff-web",
		Clock:    domaintest.NewFakeClock(fixedTime),
	})

	authH := newAuthHandler(&stubAuthService{
		loginFn: func(context.Context, app.LoginInput) (*app.SessionResult, error) { return sampleResult(), nil },
	}, session.Cookies{}, nil)
	mediaH := newMediaHandler(&stubMediaService{
		moviesFn: func(context.Context, session.Record) ([]app.MediaItem, error) { return nil, nil },
	}, nil)

	mux := NewAPIRouter(RouterConfig{Auth: authH, Media: mediaH, Sessions: session.NewResolver(codec)})
	return Wrap(nil, nil, mux), codec
}

func TestAPIRouter(t *testing.T) {
	router, codec := newTestRouter(t)

	pair, err := codec.IssuePair(auth.SessionClaims{UserID: "user-0001", Username: "alice", JellyfinToken: "jf"})
	require.NoError(t, err)

	t.Run("login is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"a","password":"b"}`)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("me without session is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Not authenticated", decodeBody(t, rec)["error"])
	})

	t.Run("me with refresh cookie only resolves", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: domain.RefreshTokenCookie, Value: pair.Refresh.Token})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", decodeBody(t, rec)["username"])
	})

	t.Run("movies with access cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/media/movies", nil)
		req.AddCookie(&http.Cookie{Name: domain.AccessTokenCookie, Value: pair.Access.Token})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"items":null}`, rec.Body.String())
	})

	t.Run("browse routes require a session", func(t *testing.T) {
		for _, path := range []string{
			"/api/media/seasons?seriesId=s-1",
			"/api/media/episodes?seasonId=se1",
			"/api/media/continue-watching",
			"/api/media/details?itemId=m1",
			"/api/media/popular",
			"/api/subtitles?path=%2FVideos%2Fv1%2FSubtitles%2F1%2F0%2FStream.vtt",
		} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		}
	})

	t.Run("wrong method is 405", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
