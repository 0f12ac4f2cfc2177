package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/aelexs/jellyfin-bff/internal/domain"
)

// smClient is the narrow consumer-defined interface for Secrets Manager operations.
type smClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// secretJSONKey is the field read when the secret is stored as a JSON object.
const secretJSONKey = "jwt_secret"

// SigningSecretSource loads the HS256 signing secret from Secrets Manager.
type SigningSecretSource struct {
	sm smClient
}

// NewSigningSecretSource creates a source backed by sm.
func NewSigningSecretSource(sm smClient) *SigningSecretSource {
	return &SigningSecretSource{sm: sm}
}

// Load fetches secretID once. The value may be the raw secret, a JSON object
// with a "jwt_secret" field, or binary. Secrets shorter than the minimum
// length are rejected so the service refuses to start.
func (s *SigningSecretSource) Load(ctx context.Context, secretID string) (domain.SecretBytes, error) {
	ctx, cancel := context.WithTimeout(ctx, domain.SecretsManagerTimeout)
	defer cancel()

	out, err := s.sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching signing secret %q from Secrets Manager: %w", secretID, err)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(extractSecret(*out.SecretString))
	case len(out.SecretBinary) > 0:
		raw = out.SecretBinary
	default:
		return nil, fmt.Errorf("%w: signing secret %q is empty", domain.ErrConfigRequired, secretID)
	}

	if len(raw) < domain.MinSigningSecretLength {
		return nil, fmt.Errorf("%w: signing secret %q must be at least %d bytes",
			domain.ErrConfigRequired, secretID, domain.MinSigningSecretLength)
	}
	return domain.SecretBytes(raw), nil
}

func extractSecret(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var doc map[string]string
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return trimmed
	}
	return doc[secretJSONKey]
}
