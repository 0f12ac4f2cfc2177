package app_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/bff/app"
	"github.com/aelexs/jellyfin-bff/internal/domain"
	"github.com/aelexs/jellyfin-bff/internal/domain/domaintest"
	"github.com/aelexs/jellyfin-bff/internal/jellyfin"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testStart = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// stubUpstream implements app.Upstream with function fields.
type stubUpstream struct {
	authenticateFn func(ctx context.Context, username, password string) (*jellyfin.AuthResult, error)
	isValidFn      func(ctx context.Context, token domain.SecretString, userID string) bool
}

func (s *stubUpstream) AuthenticateByName(ctx context.Context, username, password string) (*jellyfin.AuthResult, error) {
	if s.authenticateFn != nil {
		return s.authenticateFn(ctx, username, password)
	}
	return &jellyfin.AuthResult{
		AccessToken: domain.SecretString("jf-token-abc"),
		User:        jellyfin.User{ID: "user-0001", Name: username},
	}, nil
}

func (s *stubUpstream) IsValid(ctx context.Context, token domain.SecretString, userID string) bool {
	if s.isValidFn != nil {
		return s.isValidFn(ctx, token, userID)
	}
	return true
}

// stubLimiter implements app.LoginLimiter with function fields.
type stubLimiter struct {
	allowLoginFn func(ctx context.Context, clientIP, username string) (bool, error)
}

func (s *stubLimiter) AllowLogin(ctx context.Context, clientIP, username string) (bool, error) {
	if s.allowLoginFn != nil {
		return s.allowLoginFn(ctx, clientIP, username)
	}
	return true, nil
}

type testHarness struct {
	svc      *app.AuthService
	codec    *auth.Codec
	clock    *domaintest.FakeClock
	upstream *stubUpstream
	limiter  *stubLimiter
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	store, err := auth.NewStaticKeyStore([]byte("app-test-"+strings.Repeat("k", domain.MinSigningSecretLength)), "test-key-001")
	require.NoError(t, err)

	clock := domaintest.NewFakeClock(testStart)
	codec := auth.NewCodec(auth.CodecConfig{
		KeyStore: store,
		Issuer:   "jellyfin-bff",
		Audience: "jellyfin-bff-web",
		Clock:    clock,
	})

	h := &testHarness{
		codec:    codec,
		clock:    clock,
		upstream: &stubUpstream{},
		limiter:  &stubLimiter{},
	}
	h.svc = app.NewAuthService(app.AuthServiceConfig{
		Upstream: h.upstream,
		Codec:    codec,
		Limiter:  h.limiter,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

// loginPair logs in as alice and returns the minted pair.
func (h *testHarness) loginPair(t *testing.T) auth.TokenPair {
	t.Helper()
	res, err := h.svc.Login(context.Background(), app.LoginInput{
		Username: "alice",
		Password: "pw",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)
	return res.Pair
}

func TestNewAuthService_NilLimiterAdmits(t *testing.T) {
	h := newTestHarness(t)
	svc := app.NewAuthService(app.AuthServiceConfig{
		Upstream: h.upstream,
		Codec:    h.codec,
	})

	_, err := svc.Login(context.Background(), app.LoginInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)
}
