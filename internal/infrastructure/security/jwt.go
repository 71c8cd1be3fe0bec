// Package security provides bearer token inspection and ID generation
package security

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenInfo holds the unverified claims the front cares about.
// Signatures are verified by the backend, never here.
type TokenInfo struct {
	IsJWT     bool
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// InspectToken reads the registered claims of a JWT without verifying it.
// Opaque tokens return IsJWT=false.
func InspectToken(tokenString string) TokenInfo {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return TokenInfo{}
	}
	info := TokenInfo{IsJWT: true, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}

// TokenUsable reports whether a bearer token should be sent at now.
// Opaque tokens are always sent; JWTs are dropped once exp has passed.
func TokenUsable(tokenString string, now time.Time) bool {
	if tokenString == "" {
		return false
	}
	info := InspectToken(tokenString)
	if !info.IsJWT || info.ExpiresAt.IsZero() {
		return true
	}
	return info.ExpiresAt.After(now)
}
