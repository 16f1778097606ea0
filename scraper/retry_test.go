package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroBackOff(t *testing.T) {
	t.Helper()
	orig := newBackOff
	newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	t.Cleanup(func() { newBackOff = orig })
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	zeroBackOff(t)

	var seen []int
	err := Retry(context.Background(), 3, "test", func(attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRetryGivesUp(t *testing.T) {
	zeroBackOff(t)

	calls := 0
	err := Retry(context.Background(), 2, "test", func(int) error {
		calls++
		return errors.New("down")
	})
	require.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

func TestRetryPermanent(t *testing.T) {
	zeroBackOff(t)

	calls := 0
	err := Retry(context.Background(), 5, "test", func(int) error {
		calls++
		return backoff.Permanent(errors.New("fatal"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryAtLeastOnce(t *testing.T) {
	zeroBackOff(t)

	calls := 0
	_ = Retry(context.Background(), 0, "test", func(int) error {
		calls++
		return errors.New("x")
	})
	assert.Equal(t, 1, calls)
}

func TestRetryCanceledContext(t *testing.T) {
	zeroBackOff(t)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, "test", func(int) error {
		calls++
		cancel()
		return errors.New("x")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDefaultBackOffSchedule(t *testing.T) {
	b := newBackOff()
	b.Reset()
	var waits []string
	for i := 0; i < 6; i++ {
		waits = append(waits, b.NextBackOff().String())
	}
	assert.Equal(t, []string{"500ms", "1s", "2s", "4s", "8s", "8s"}, waits)
}
