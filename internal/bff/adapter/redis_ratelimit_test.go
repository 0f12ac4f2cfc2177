package adapter_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/jellyfin-bff/internal/bff/adapter"
	redisclient "github.com/aelexs/jellyfin-bff/internal/redis"
)

func newTestLimiter(t *testing.T, limit int) (*adapter.LoginLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redisclient.NewClient(redisclient.Config{
		Addr:    mr.Addr(),
		Timeout: 2 * time.Second,
	})
	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})

	return adapter.NewLoginLimiter(client.RDB, limit, 15*time.Minute), mr
}

func TestLoginLimiter_AllowLogin(t *testing.T) {
	t.Run("allows exactly up to the limit", func(t *testing.T) {
		rl, _ := newTestLimiter(t, 3)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			allowed, err := rl.AllowLogin(ctx, "10.0.0.1", "alice")
			require.NoError(t, err)
			assert.True(t, allowed, "attempt %d should be allowed", i+1)
		}

		allowed, err := rl.AllowLogin(ctx, "10.0.0.1", "alice")
		require.NoError(t, err)
		assert.False(t, allowed, "fourth attempt should be rejected")
	})

	t.Run("username window is case-insensitive across IPs", func(t *testing.T) {
		rl, _ := newTestLimiter(t, 2)
		ctx := context.Background()

		_, _ = rl.AllowLogin(ctx, "10.0.0.1", "Alice")
		_, _ = rl.AllowLogin(ctx, "10.0.0.2", "ALICE")
		allowed, err := rl.AllowLogin(ctx, "10.0.0.3", "alice")

		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("ip window spans usernames", func(t *testing.T) {
		rl, _ := newTestLimiter(t, 2)
		ctx := context.Background()

		_, _ = rl.AllowLogin(ctx, "10.0.0.9", "a")
		_, _ = rl.AllowLogin(ctx, "10.0.0.9", "b")
		allowed, err := rl.AllowLogin(ctx, "10.0.0.9", "c")

		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("sets TTL on first attempt", func(t *testing.T) {
		rl, mr := newTestLimiter(t, 5)

		_, err := rl.AllowLogin(context.Background(), "10.0.0.1", "bob")
		require.NoError(t, err)

		assert.Equal(t, 15*time.Minute, mr.TTL("login:ip:10.0.0.1"))
		assert.Equal(t, 15*time.Minute, mr.TTL("login:user:bob"))
	})

	t.Run("window expiry resets the counter", func(t *testing.T) {
		rl, mr := newTestLimiter(t, 1)
		ctx := context.Background()

		_, _ = rl.AllowLogin(ctx, "10.0.0.1", "carol")
		allowed, _ := rl.AllowLogin(ctx, "10.0.0.1", "carol")
		require.False(t, allowed)

		mr.FastForward(16 * time.Minute)

		allowed, err := rl.AllowLogin(ctx, "10.0.0.1", "carol")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("fails closed when redis is down", func(t *testing.T) {
		rl, mr := newTestLimiter(t, 5)
		mr.Close()

		allowed, err := rl.AllowLogin(context.Background(), "10.0.0.1", "dave")

		require.Error(t, err)
		assert.False(t, allowed)
	})
}

func TestNoopLimiter(t *testing.T) {
	allowed, err := adapter.NoopLimiter{}.AllowLogin(context.Background(), "", "")

	require.NoError(t, err)
	assert.True(t, allowed)
}
