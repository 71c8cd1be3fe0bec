package security

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// IsULID reports whether s parses as a ULID.
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// GenerateIdempotencyKey returns a random UUID for write requests that must not be applied twice.
func GenerateIdempotencyKey() string {
	return uuid.NewString()
}

// Fingerprint returns a short, non-reversible digest of a secret for cache keys and logs.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}
