package auth

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// KeyStore provides the HMAC secrets used to sign and verify session tokens.
// The signing secret is loaded once at startup and never read from the
// environment afterwards.
type KeyStore interface {
	// SigningKey returns the current signing secret and its key ID.
	SigningKey() ([]byte, string, error)

	// VerificationKey returns the secret for the given key ID.
	VerificationKey(kid string) ([]byte, error)
}

// StaticKeyStore is a KeyStore backed by in-memory secrets.
type StaticKeyStore struct {
	mu    sync.RWMutex
	keyID string
	keys  map[string]domain.SecretBytes
}

// NewStaticKeyStore creates a StaticKeyStore whose signing key is secret.
// Secrets shorter than domain.MinSigningSecretLength are rejected.
func NewStaticKeyStore(secret []byte, keyID string) (*StaticKeyStore, error) {
	if len(secret) < domain.MinSigningSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes: %w",
			domain.MinSigningSecretLength, domain.ErrConfigRequired)
	}
	if keyID == "" {
		return nil, fmt.Errorf("key ID must not be empty: %w", domain.ErrConfigRequired)
	}
	return &StaticKeyStore{
		keyID: keyID,
		keys: map[string]domain.SecretBytes{
			keyID: domain.SecretBytes(append([]byte(nil), secret...)),
		},
	}, nil
}

// NewEphemeralKeyStore generates a random signing secret. Tokens signed with
// it do not survive a restart; use it for local development only.
func NewEphemeralKeyStore(keyID string) (*StaticKeyStore, error) {
	secret := make([]byte, 2*domain.MinSigningSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate ephemeral secret: %w", err)
	}
	return NewStaticKeyStore(secret, keyID)
}

// SigningKey returns the signing secret and its key ID.
func (s *StaticKeyStore) SigningKey() ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[s.keyID]
	if !ok || key.IsEmpty() {
		return nil, "", fmt.Errorf("no signing key available")
	}
	return key.Expose(), s.keyID, nil
}

// VerificationKey returns the secret for the given key ID.
func (s *StaticKeyStore) VerificationKey(kid string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key ID %q", kid)
	}
	return key.Expose(), nil
}

// AddVerificationKey registers a secret that is accepted for verification
// but never used for signing. Tokens signed before a secret rotation stay
// valid until they expire.
func (s *StaticKeyStore) AddVerificationKey(kid string, secret []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[kid] = domain.SecretBytes(append([]byte(nil), secret...))
}
