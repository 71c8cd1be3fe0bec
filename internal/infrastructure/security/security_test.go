package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	info := InspectToken(signed(t, jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(exp)}))

	assert.True(t, info.IsJWT)
	assert.Equal(t, "user-1", info.Subject)
	assert.True(t, exp.Equal(info.ExpiresAt))

	assert.False(t, InspectToken("opaque").IsJWT)
}

func TestTokenUsable(t *testing.T) {
	now := time.Now()

	assert.False(t, TokenUsable("", now))
	assert.True(t, TokenUsable("opaque-session-token", now))
	assert.True(t, TokenUsable(signed(t, jwt.RegisteredClaims{Subject: "no-exp"}), now))
	assert.True(t, TokenUsable(signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}), now))
	assert.False(t, TokenUsable(signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))}), now))
}

func TestGenerators(t *testing.T) {
	id := GenerateULID()
	assert.Len(t, id, 26)
	assert.True(t, IsULID(id))
	assert.False(t, IsULID("not-a-ulid"))

	_, err := uuid.Parse(GenerateIdempotencyKey())
	assert.NoError(t, err)
	assert.NotEqual(t, GenerateIdempotencyKey(), GenerateIdempotencyKey())

	assert.Equal(t, "", Fingerprint(""))
	assert.Len(t, Fingerprint("secret"), 16)
	assert.Equal(t, Fingerprint("a"), Fingerprint("a"))
	assert.NotEqual(t, Fingerprint("a"), Fingerprint("b"))
}

func TestTokenCipher(t *testing.T) {
	for _, key := range []string{
		"0123456789abcdef0123456789abcdef",
		"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		"raw-key-16-bytes",
	} {
		c, err := NewTokenCipher(key)
		require.NoError(t, err, key)

		sealed, err := c.Seal("bearer-token")
		require.NoError(t, err)
		assert.True(t, IsSealed(sealed))

		opened, err := c.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "bearer-token", opened)
	}
}

func TestTokenCipherRejects(t *testing.T) {
	_, err := NewTokenCipher("")
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, err = NewTokenCipher("short")
	assert.ErrorIs(t, err, ErrInvalidKeyLen)

	c, err := NewTokenCipher("raw-key-16-bytes")
	require.NoError(t, err)
	other, err := NewTokenCipher("another-16-bytes")
	require.NoError(t, err)

	sealed, err := c.Seal("x")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = c.Open(sealedPrefix + "!!!")
	assert.ErrorIs(t, err, ErrCiphertext)

	plain, err := c.Open("legacy-plaintext")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plaintext", plain)
}
