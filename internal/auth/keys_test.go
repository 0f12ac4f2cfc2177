package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/jellyfin-bff/internal/auth"
	"github.com/aelexs/jellyfin-bff/internal/domain"
)

func TestStaticKeyStore(t *testing.T) {
	secret := testSecret("primary")
	store, err := auth.NewStaticKeyStore(secret, "key-001")
	require.NoError(t, err)

	t.Run("SigningKey returns configured secret and ID", func(t *testing.T) {
		key, kid, err := store.SigningKey()
		require.NoError(t, err)
		assert.Equal(t, secret, key)
		assert.Equal(t, "key-001", kid)
	})

	t.Run("VerificationKey returns secret for known kid", func(t *testing.T) {
		key, err := store.VerificationKey("key-001")
		require.NoError(t, err)
		assert.Equal(t, secret, key)
	})

	t.Run("VerificationKey returns error for unknown kid", func(t *testing.T) {
		_, err := store.VerificationKey("unknown-key")
		assert.Error(t, err)
	})

	t.Run("AddVerificationKey does not change the signing key", func(t *testing.T) {
		old := testSecret("previous")
		store.AddVerificationKey("key-000", old)

		key, err := store.VerificationKey("key-000")
		require.NoError(t, err)
		assert.Equal(t, old, key)

		_, kid, err := store.SigningKey()
		require.NoError(t, err)
		assert.Equal(t, "key-001", kid)
	})

	t.Run("secret is copied on construction", func(t *testing.T) {
		raw := testSecret("mutable")
		s, err := auth.NewStaticKeyStore(raw, "k")
		require.NoError(t, err)
		raw[0] = 'X'

		key, _, err := s.SigningKey()
		require.NoError(t, err)
		assert.NotEqual(t, raw[0], key[0])
	})
}

func TestNewStaticKeyStore_Rejects(t *testing.T) {
	t.Run("short secret", func(t *testing.T) {
		_, err := auth.NewStaticKeyStore([]byte("fallback-secret"), "key-001")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfigRequired)
	})

	t.Run("empty key ID", func(t *testing.T) {
		_, err := auth.NewStaticKeyStore(testSecret("x"), "")
		assert.ErrorIs(t, err, domain.ErrConfigRequired)
	})
}

func TestNewEphemeralKeyStore(t *testing.T) {
	a, err := auth.NewEphemeralKeyStore("dev")
	require.NoError(t, err)
	b, err := auth.NewEphemeralKeyStore("dev")
	require.NoError(t, err)

	ka, _, err := a.SigningKey()
	require.NoError(t, err)
	kb, _, err := b.SigningKey()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(ka), domain.MinSigningSecretLength)
	assert.NotEqual(t, ka, kb, "each ephemeral store must get its own secret")
}
