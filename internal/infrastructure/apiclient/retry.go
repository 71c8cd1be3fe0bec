package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Backoff returns the wait after failed attempt n (1-based): 2^n seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

// CappedBackoff is Backoff limited to max.
func CappedBackoff(attempt int, max time.Duration) time.Duration {
	if d := Backoff(attempt); d < max {
		return d
	}
	return max
}

// RequestWithRetry retries Request up to maxAttempts times, waiting 2s, 4s, ...
// between attempts. Every error is retried. maxAttempts <= 0 uses the
// configured default.
func (c *Connector) RequestWithRetry(ctx context.Context, endpoint, method string, body any, maxAttempts int) (json.RawMessage, error) {
	if maxAttempts <= 0 {
		maxAttempts = c.retryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := c.Request(ctx, endpoint, method, body, nil)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}

		delay := Backoff(attempt)
		c.logger.API().Info("Retrying backend request",
			"endpoint", endpoint, "method", method, "attempt", attempt,
			"maxAttempts", maxAttempts, "delay", delay, "error", err.Error())
		c.metrics.ObserveRetry()

		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, fmt.Errorf("retry aborted after attempt %d (last error: %v): %w", attempt, lastErr, serr)
		}
	}

	c.logger.API().Warn("Backend request failed after retries",
		"endpoint", endpoint, "method", method, "attempts", maxAttempts, "error", lastErr.Error())
	return nil, lastErr
}
