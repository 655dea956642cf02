// Package circuitbreaker stops calling a dependency after repeated failures
// and lets trial calls through again once the dependency should be back.
//
// Failures may carry a server-provided delay (a retry.DelayHinter such as a
// Bot API 429 with retry_after). When the failure that opens the circuit
// carries one, the circuit stays open at least that long.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/pkg/retry"
)

// State is the breaker position.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the open window ends.
	StateOpen
	// StateHalfOpen lets a limited number of trial calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen matches every rejection, see OpenError.
var ErrOpen = errors.New("circuit open")

// OpenError is returned instead of calling the dependency.
type OpenError struct {
	Name string
	// Wait is how long until trial calls are let through. Zero means a
	// trial is already in flight.
	Wait time.Duration
}

func (e *OpenError) Error() string {
	if e.Wait <= 0 {
		return fmt.Sprintf("%s: circuit half-open, trial in flight", e.Name)
	}
	return fmt.Sprintf("%s: circuit open, retry in %s", e.Name, e.Wait.Round(time.Second))
}

// Is makes errors.Is(err, ErrOpen) hold.
func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// RetryAfter implements retry.DelayHinter.
func (e *OpenError) RetryAfter() time.Duration {
	return e.Wait
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config tunes a Breaker.
type Config struct {
	Name string

	// Threshold consecutive counted failures open the circuit.
	Threshold int

	// Recoveries consecutive trial successes close it again.
	Recoveries int

	// Cooldown is the minimum open window.
	Cooldown time.Duration

	// Trials is how many calls half-open lets through at once.
	Trials int

	// Counts decides which errors count as failures. Errors it rejects
	// prove the dependency answered and count as successes. Nil counts all.
	Counts func(error) bool

	OnTransition func(name string, from, to State)

	Now func() time.Time
}

func defaultConfig(name string) Config {
	return Config{
		Name:       name,
		Threshold:  5,
		Recoveries: 2,
		Cooldown:   30 * time.Second,
		Trials:     1,
		Now:        time.Now,
	}
}

// Option adjusts a Config.
type Option func(*Config)

// WithThreshold sets how many consecutive failures open the circuit.
func WithThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Threshold = n
		}
	}
}

// WithRecoveries sets how many trial successes close the circuit.
func WithRecoveries(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Recoveries = n
		}
	}
}

// WithCooldown sets the minimum open window.
func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Cooldown = d
		}
	}
}

// WithTrials sets the half-open concurrency.
func WithTrials(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Trials = n
		}
	}
}

// WithCounts sets the failure classifier.
func WithCounts(fn func(error) bool) Option {
	return func(c *Config) {
		c.Counts = fn
	}
}

// WithOnTransition sets the state change callback. It runs with the
// breaker locked and must not call back into it.
func WithOnTransition(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnTransition = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BREAKER
// ══════════════════════════════════════════════════════════════════════════════

// Breaker guards calls to one dependency.
type Breaker struct {
	config Config

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openUntil time.Time
	inFlight  int
}

// New returns a closed Breaker.
func New(name string, opts ...Option) *Breaker {
	config := defaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}
	return &Breaker{config: config}
}

// Execute runs fn unless the circuit rejects it, then records the outcome.
// Rejections return an *OpenError without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	b.record(trial, err)
	return err
}

// State returns the current position, moving open to half-open when the
// window has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && !b.config.Now().Before(b.openUntil) {
		b.transition(StateHalfOpen)
	}
	return b.state
}

// Name identifies the guarded dependency.
func (b *Breaker) Name() string {
	return b.config.Name
}

func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		now := b.config.Now()
		if now.Before(b.openUntil) {
			return false, &OpenError{Name: b.config.Name, Wait: b.openUntil.Sub(now)}
		}
		b.transition(StateHalfOpen)
	}

	if b.state == StateHalfOpen {
		if b.inFlight >= b.config.Trials {
			return false, &OpenError{Name: b.config.Name}
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial && b.inFlight > 0 {
		b.inFlight--
	}

	if !b.counts(err) {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.config.Recoveries {
				b.transition(StateClosed)
			}
		}
		return
	}

	b.successes = 0
	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.open(err)
	case b.state == StateClosed && b.failures >= b.config.Threshold:
		b.open(err)
	}
}

func (b *Breaker) counts(err error) bool {
	if err == nil {
		return false
	}
	if b.config.Counts == nil {
		return true
	}
	return b.config.Counts(err)
}

// open must be called with mu held.
func (b *Breaker) open(cause error) {
	window := b.config.Cooldown
	var hinter retry.DelayHinter
	if errors.As(cause, &hinter) && hinter.RetryAfter() > window {
		window = hinter.RetryAfter()
	}
	b.openUntil = b.config.Now().Add(window)
	b.transition(StateOpen)
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	b.inFlight = 0

	if b.config.OnTransition != nil {
		b.config.OnTransition(b.config.Name, from, to)
	}
}
