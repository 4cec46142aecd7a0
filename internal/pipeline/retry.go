package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/studydeck/internal/embed"
	"github.com/dgallion1/studydeck/internal/generate"
)

const MaxRetries = 3

// IsRetryable reports whether a model error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *generate.RetryableError
	return errors.As(err, &retryErr)
}

// isRetryableEmbed treats every embedding failure as transient except a
// closed service and a cancelled context.
func isRetryableEmbed(err error) bool {
	return !errors.Is(err, embed.ErrClosed) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// withRetry runs fn up to MaxRetries times, sleeping backoff(attempt) after
// each retryable failure.
func withRetry(ctx context.Context, log *slog.Logger, what string, retryable func(error) bool, backoff func(int) time.Duration, fn func() error) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = fn()
		if lastErr == nil || !retryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable error", "op", what, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
