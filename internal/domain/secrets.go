package domain

import "log/slog"

const redacted = "[REDACTED]"

// SecretString wraps sensitive string values such as the Jellyfin access
// token carried in a session. It never prints, logs or marshals its value.
type SecretString string

// String returns a redacted placeholder, never the actual value.
func (s SecretString) String() string {
	return redacted
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// MarshalJSON keeps the value out of any JSON body it ends up in.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Expose returns the actual secret value. Call it only at the point of use
// (signing, the upstream Authorization header).
func (s SecretString) Expose() string {
	return string(s)
}

// IsEmpty returns true if the secret is empty.
func (s SecretString) IsEmpty() bool {
	return len(s) == 0
}

// SecretBytes wraps sensitive byte values such as the token signing secret.
type SecretBytes []byte

// String returns a redacted placeholder.
func (s SecretBytes) String() string {
	return redacted
}

// LogValue implements slog.LogValuer.
func (s SecretBytes) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Expose returns the actual secret bytes.
func (s SecretBytes) Expose() []byte {
	return []byte(s)
}

// IsEmpty returns true if the secret is empty.
func (s SecretBytes) IsEmpty() bool {
	return len(s) == 0
}

var (
	_ slog.LogValuer = SecretString("")
	_ slog.LogValuer = SecretBytes{}
)
