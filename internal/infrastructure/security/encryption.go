package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values written by TokenCipher.Seal so plaintext rows
// written before a key was configured can still be read.
const sealedPrefix = "enc:v1:"

var (
	ErrEmptyKey      = errors.New("empty encryption key")
	ErrInvalidKeyLen = errors.New("invalid key length: must be 16, 24 or 32 bytes")
	ErrCiphertext    = errors.New("malformed ciphertext")
)

// TokenCipher seals visitor tokens at rest with AES-GCM.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher accepts a hex encoded key or a raw 16/24/32 byte key.
func NewTokenCipher(key string) (*TokenCipher, error) {
	keyBytes, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &TokenCipher{aead: gcm}, nil
}

func parseKey(key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if len(key) == 32 || len(key) == 48 || len(key) == 64 {
		if decoded, err := hex.DecodeString(key); err == nil {
			return decoded, nil
		}
	}
	switch len(key) {
	case 16, 24, 32:
		return []byte(key), nil
	}
	return nil, ErrInvalidKeyLen
}

// Seal encrypts plaintext and returns a prefixed base64 string.
func (c *TokenCipher) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as-is.
func (c *TokenCipher) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	size := c.aead.NonceSize()
	if len(data) < size {
		return "", ErrCiphertext
	}
	plaintext, err := c.aead.Open(nil, data[:size], data[size:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether value was produced by Seal.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
