package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)}
}

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

// floodWait is a failure carrying a server delay, like a Bot API 429.
type floodWait struct{ after time.Duration }

func (e floodWait) Error() string             { return "flood wait" }
func (e floodWait) RetryAfter() time.Duration { return e.after }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []string
	cb := New("test",
		WithThreshold(3),
		WithOnTransition(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrOpen)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	cb := New("test", WithThreshold(2))

	_ = cb.Execute(context.Background(), fail)
	require.NoError(t, cb.Execute(context.Background(), ok))
	_ = cb.Execute(context.Background(), fail)

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	clk := newClock()
	cb := New("test", WithThreshold(1), WithRecoveries(1), WithCooldown(time.Minute), WithClock(clk.now))

	require.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	require.Equal(t, StateOpen, cb.State())

	clk.advance(30 * time.Second)
	err := cb.Execute(context.Background(), ok)
	var open *OpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, 30*time.Second, open.Wait)
	assert.Equal(t, 30*time.Second, open.RetryAfter())

	clk.advance(31 * time.Second)
	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := newClock()
	cb := New("test", WithThreshold(1), WithCooldown(time.Minute), WithClock(clk.now))

	_ = cb.Execute(context.Background(), fail)
	clk.advance(time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrOpen)
}

func TestBreaker_HalfOpenLimitsTrials(t *testing.T) {
	clk := newClock()
	cb := New("test", WithThreshold(1), WithCooldown(time.Second), WithClock(clk.now))

	_ = cb.Execute(context.Background(), fail)
	clk.advance(time.Second)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		inner := cb.Execute(ctx, ok)
		var open *OpenError
		require.ErrorAs(t, inner, &open)
		assert.Zero(t, open.Wait)
		return nil
	})
	require.NoError(t, err)
}

func TestBreaker_OpenWindowHonoursDelayHint(t *testing.T) {
	clk := newClock()
	cb := New("test", WithThreshold(1), WithCooldown(30*time.Second), WithClock(clk.now))

	err := cb.Execute(context.Background(), func(context.Context) error {
		return floodWait{after: 2 * time.Minute}
	})
	require.Error(t, err)

	clk.advance(time.Minute)
	var open *OpenError
	require.ErrorAs(t, cb.Execute(context.Background(), ok), &open)
	assert.Equal(t, time.Minute, open.Wait)
	assert.Contains(t, open.Error(), "test: circuit open, retry in 1m0s")

	clk.advance(time.Minute)
	assert.NoError(t, cb.Execute(context.Background(), ok))
}

func TestBreaker_ShortHintKeepsCooldown(t *testing.T) {
	clk := newClock()
	cb := New("test", WithThreshold(1), WithCooldown(30*time.Second), WithClock(clk.now))

	_ = cb.Execute(context.Background(), func(context.Context) error {
		return floodWait{after: time.Second}
	})

	clk.advance(10 * time.Second)
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrOpen)
}

func TestBreaker_CountsFilter(t *testing.T) {
	notCounted := errors.New("bad request")
	cb := New("test", WithThreshold(1), WithCounts(func(err error) bool {
		return !errors.Is(err, notCounted)
	}))

	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return notCounted })
		assert.ErrorIs(t, err, notCounted)
	}

	assert.Equal(t, StateClosed, cb.State())
}
