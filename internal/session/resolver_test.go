package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/domain/domaintest"
	"github.com/aelexs/jellyfin-bff/internal/session"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestCodec(t *testing.T) (*auth.Codec, *domaintest.FakeClock) {
	t.Helper()
	store, err := auth.NewStaticKeyStore([]byte(strings.Repeat("r", 40)), "k1")
	require.NoError(t, err)
	clock := domaintest.NewFakeClock(testStart)
	return auth.NewCodec(auth.CodecConfig{
		KeyStore: store,
		Issuer:   "jellyfin-bff",
		Audience: "jellyfin-bff-web",
		Clock:    clock,
	}), clock
}

func claimsFor(username string) auth.SessionClaims {
	return auth.SessionClaims{
		UserID:        "uid-" + username,
		Username:      username,
		JellyfinToken: domain.SecretString("jf-" + username),
	}
}

func issue(t *testing.T, codec *auth.Codec, username string, kind auth.Kind) string {
	t.Helper()
	tok, err := codec.Issue(claimsFor(username), kind)
	require.NoError(t, err)
	return tok.Token
}

func TestResolve(t *testing.T) {
	codec, _ := newTestCodec(t)
	resolver := session.NewResolver(codec)

	access := issue(t, codec, "from-access", auth.KindAccess)
	refresh := issue(t, codec, "from-refresh", auth.KindRefresh)

	tests := []struct {
		name         string
		access       string
		refresh      string
		wantOK       bool
		wantSource   session.Source
		wantUsername string
	}{
		{"both valid prefers access", access, refresh, true, session.SourceAccess, "from-access"},
		{"access only", access, "", true, session.SourceAccess, "from-access"},
		{"refresh only", "", refresh, true, session.SourceRefresh, "from-refresh"},
		{"garbage access falls back to refresh", "garbage", refresh, true, session.SourceRefresh, "from-refresh"},
		{"neither", "", "", false, session.SourceNone, ""},
		{"refresh token in access slot", refresh, "", false, session.SourceNone, ""},
		{"access token in refresh slot", "", access, false, session.SourceNone, ""},
		{"swapped slots", refresh, access, false, session.SourceNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, src, ok := resolver.Resolve(tt.access, tt.refresh)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSource, src)
			assert.Equal(t, tt.wantUsername, rec.Username)
		})
	}
}

func TestResolve_PrecedenceIsDeterministic(t *testing.T) {
	codec, _ := newTestCodec(t)
	resolver := session.NewResolver(codec)

	access := issue(t, codec, "marker-a", auth.KindAccess)
	refresh := issue(t, codec, "marker-r", auth.KindRefresh)

	for i := 0; i < 50; i++ {
		rec, src, ok := resolver.Resolve(access, refresh)
		require.True(t, ok)
		require.Equal(t, "access", src.String())
		require.Equal(t, "marker-a", rec.Username)
	}
}

func TestResolve_ExpiredAccessFallsBackToRefresh(t *testing.T) {
	codec, clock := newTestCodec(t)
	resolver := session.NewResolver(codec)

	access := issue(t, codec, "alice", auth.KindAccess)
	refresh := issue(t, codec, "alice", auth.KindRefresh)

	clock.Advance(domain.AccessTokenLifetime)

	rec, src, ok := resolver.Resolve(access, refresh)
	require.True(t, ok)
	assert.Equal(t, session.SourceRefresh, src)
	assert.Equal(t, "uid-alice", rec.UserID)
	assert.Equal(t, "jf-alice", rec.JellyfinToken.Expose())

	clock.Advance(domain.RefreshTokenLifetime)

	_, src, ok = resolver.Resolve(access, refresh)
	assert.False(t, ok)
	assert.Equal(t, session.SourceNone, src)
}

func TestFromRequest(t *testing.T) {
	codec, _ := newTestCodec(t)
	resolver := session.NewResolver(codec)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: domain.RefreshTokenCookie, Value: issue(t, codec, "bob", auth.KindRefresh)})

	rec, src, ok := resolver.FromRequest(req)

	require.True(t, ok)
	assert.Equal(t, session.SourceRefresh, src)
	assert.Equal(t, "bob", rec.Username)
}

func TestRequire(t *testing.T) {
	codec, _ := newTestCodec(t)
	resolver := session.NewResolver(codec)

	var seen session.Record
	handler := resolver.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := session.FromContext(r.Context())
		require.True(t, ok)
		seen = rec
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("no cookies is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Not authenticated", body["error"])
	})

	t.Run("valid access cookie passes record through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: domain.AccessTokenCookie, Value: issue(t, codec, "carol", auth.KindAccess)})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "carol", seen.Username)
	})
}

func TestRecord_JSONOmitsJellyfinToken(t *testing.T) {
	rec := session.Record{UserID: "u1", Username: "dave", JellyfinToken: "jf-secret"}

	b, err := json.Marshal(rec)

	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u1","username":"dave"}`, string(b))
}

func TestRecord_Claims(t *testing.T) {
	rec := session.Record{UserID: "u1", Username: "dave", JellyfinToken: "jf"}

	assert.Equal(t, auth.SessionClaims{UserID: "u1", Username: "dave", JellyfinToken: "jf"}, rec.Claims())
}

func TestFromContext_Empty(t *testing.T) {
	_, ok := session.FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
