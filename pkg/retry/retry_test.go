package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast(opts ...Option) *Retrier {
	return New(append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}, opts...)...)
}

func TestDo_RetriesMarkedErrors(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_UnmarkedErrorsStopByDefault(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentStopsAndUnwraps(t *testing.T) {
	calls := 0
	err := fast(WithRetryIf(func(error) bool { return true })).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})

	assert.Equal(t, errFlaky, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedReturnsCause(t *testing.T) {
	var retries []int
	err := fast(WithMaxAttempts(3), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retries = append(retries, attempt)
	})).Do(context.Background(), func(context.Context) error {
		return Retryable(errFlaky)
	})

	assert.Equal(t, errFlaky, err)
	assert.Equal(t, []int{1, 2}, retries)
}

type hinted struct{ after time.Duration }

func (h hinted) Error() string             { return "slow down" }
func (h hinted) RetryAfter() time.Duration { return h.after }

func TestDo_HonoursDelayHint(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := fast(WithMaxAttempts(2), WithRetryIf(func(error) bool { return true }), WithOnRetry(func(_ int, _ error, d time.Duration) {
		delays = append(delays, d)
	})).Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return hinted{after: 20 * time.Millisecond}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, delays)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast().Do(ctx, func(context.Context) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errFlaky)
		}
		return 42, nil
	}, WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCalculateDelay_Capped(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithMaxDelay(3*time.Second), WithMultiplier(2), WithJitter(0))

	assert.Equal(t, time.Second, r.calculateDelay(1))
	assert.Equal(t, 2*time.Second, r.calculateDelay(2))
	assert.Equal(t, 3*time.Second, r.calculateDelay(5))
}

func TestStartupRetrier_RetriesAnyError(t *testing.T) {
	calls := 0
	r := StartupRetrier(WithInitialDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond), WithJitter(0))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 4 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestStartupRetrier_PermanentStops(t *testing.T) {
	calls := 0
	r := StartupRetrier(WithInitialDelay(time.Millisecond), WithJitter(0))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}
