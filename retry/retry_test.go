package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

type retryableError struct{ retryable bool }

func (e *retryableError) Error() string   { return "reconcile failed" }
func (e *retryableError) Retryable() bool { return e.retryable }

type timeoutNetError struct{ timeout bool }

func (e *timeoutNetError) Error() string   { return "dial tcp: timeout" }
func (e *timeoutNetError) Timeout() bool   { return e.timeout }
func (e *timeoutNetError) Temporary() bool { return e.timeout }

func TestShouldRetryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	cfg := DefaultConfig()

	properties.Property("nil error is never retryable", prop.ForAll(
		func(attempt int) bool {
			return !ShouldRetry(attempt, cfg, nil)
		},
		gen.IntRange(0, 10),
	))

	properties.Property("context.Canceled is never retryable", prop.ForAll(
		func(_ int) bool {
			return !ShouldRetry(1, cfg, context.Canceled)
		},
		gen.Int(),
	))

	properties.Property("context.DeadlineExceeded is retryable within budget", prop.ForAll(
		func(_ int) bool {
			return ShouldRetry(1, cfg, context.DeadlineExceeded)
		},
		gen.Int(),
	))

	properties.Property("exhausted budget never retries regardless of error", prop.ForAll(
		func(_ int) bool {
			return !ShouldRetry(cfg.MaxRetries+1, cfg, context.DeadlineExceeded)
		},
		gen.Int(),
	))

	properties.Property("Retryable errors defer to their own judgment", prop.ForAll(
		func(retryable bool) bool {
			err := &retryableError{retryable: retryable}
			return ShouldRetry(1, cfg, err) == retryable
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestShouldRetryNetworkTimeout(t *testing.T) {
	var netErr net.Error = &timeoutNetError{timeout: true}
	assert.True(t, ShouldRetry(1, DefaultConfig(), netErr))

	var nonTimeout net.Error = &timeoutNetError{timeout: false}
	assert.False(t, ShouldRetry(1, DefaultConfig(), nonTimeout))
}

func TestNextDelayGrowsExponentiallyAndCaps(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxDelay: 8 * time.Second, MaxRetries: 10, JitterFraction: 0}
	assert.Equal(t, time.Second, NextDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, NextDelay(cfg, 2))
	assert.Equal(t, 4*time.Second, NextDelay(cfg, 3))
	assert.Equal(t, 8*time.Second, NextDelay(cfg, 4))
	assert.Equal(t, 8*time.Second, NextDelay(cfg, 5), "backoff must not exceed MaxDelay")
}

func TestNextDelayJitterStaysWithinBounds(t *testing.T) {
	cfg := Config{BaseDelay: 10 * time.Second, MaxDelay: time.Minute, MaxRetries: 5, JitterFraction: 0.25}
	for i := 0; i < 50; i++ {
		d := NextDelay(cfg, 1)
		assert.GreaterOrEqual(t, d, time.Duration(float64(cfg.BaseDelay)*0.75))
		assert.LessOrEqual(t, d, time.Duration(float64(cfg.BaseDelay)*1.25))
	}
}

func TestExhaustedErrorUnwraps(t *testing.T) {
	inner := errors.New("state retrieval failed")
	err := &ExhaustedError{Attempts: 5, LastError: inner}
	assert.True(t, errors.Is(err, inner))
}

func TestWaitReturnsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Wait(ctx, Config{BaseDelay: time.Hour}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
