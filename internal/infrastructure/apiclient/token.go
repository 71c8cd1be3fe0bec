package apiclient

import (
	"context"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/security"
)

// TokenSource yields the bearer token for the visitor behind ctx.
// An empty token with a nil error means anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

type tokenKey struct{}

// ContextWithToken attaches an explicit bearer token to ctx.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token set by ContextWithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// ContextTokenSource reads the token attached with ContextWithToken.
var ContextTokenSource TokenSource = TokenSourceFunc(func(ctx context.Context) (string, error) {
	return TokenFromContext(ctx), nil
})

// ChainTokenSources returns the first non-empty token from sources in order.
func ChainTokenSources(sources ...TokenSource) TokenSource {
	return TokenSourceFunc(func(ctx context.Context) (string, error) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			token, err := src.Token(ctx)
			if err != nil {
				return "", err
			}
			if token != "" {
				return token, nil
			}
		}
		return "", nil
	})
}

// TokenUsable reports whether token should be sent. Opaque tokens are
// always sent; JWTs are dropped once their exp claim has passed.
func TokenUsable(token string, now time.Time) bool {
	return security.TokenUsable(token, now)
}
