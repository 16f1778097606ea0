package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newBackOff returns the wait schedule between attempts: 0.5s doubling up
// to 8s, no jitter. Tests swap it for a zero backoff.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 8 * time.Second
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

// Retry runs fn up to attempts times, sleeping with exponential backoff
// between failures. It stops early when ctx is done or fn returns an error
// wrapped with backoff.Permanent. The last error is returned.
func Retry(ctx context.Context, attempts int, what string, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	attempt := 0
	op := func() error {
		attempt++
		return fn(attempt)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(attempts-1)), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		slog.Warn("retrying",
			"op", what,
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait,
			"error", err,
		)
	})
}
