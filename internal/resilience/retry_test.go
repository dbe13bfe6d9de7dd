package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(eris.New("flaky"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := eris.New("bad request")
	err := Do(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnQuotaError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return NewQuotaError("anthropic", eris.New("credits spent"))
	})
	require.Error(t, err)
	assert.True(t, IsQuota(err))
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnQuotaErrorWithCustomShouldRetry(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.ShouldRetry = func(error) bool { return true }

	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return NewQuotaError("anthropic", eris.New("credits spent"))
	})
	require.Error(t, err)
	assert.True(t, IsQuota(err))
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return NewTransientError(eris.New("still down"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoValReturnsValue(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetryConfig(), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(eris.New("hiccup"), 500)
		}
		return "payload", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "payload", val)
	assert.Equal(t, 2, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastRetryConfig(), func(ctx context.Context) error {
		calls++
		cancel()
		return NewTransientError(eris.New("flaky"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetryConfig()
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(eris.New("down"), 503)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     4 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0,
	})
	assert.Equal(t, time.Second, backoffDelay(0, cfg))
	assert.Equal(t, 2*time.Second, backoffDelay(1, cfg))
	assert.Equal(t, 4*time.Second, backoffDelay(2, cfg))
	assert.Equal(t, 4*time.Second, backoffDelay(5, cfg))
}

func TestBackoffDelayJitterStaysInRange(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	})
	for i := 0; i < 100; i++ {
		d := backoffDelay(0, cfg)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
