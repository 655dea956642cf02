package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Catches panics in handlers. The user gets a short apology, the log gets
// the stack. The bot keeps polling either way.
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace captures debug.Stack() for the log.
	EnableStackTrace bool

	// OnPanic is called for every logged panic, e.g. to count it.
	OnPanic func(ctx context.Context, info *PanicInfo)

	// UserErrorMessage is the reply sent when a handler panics.
	UserErrorMessage string

	// MaxPanicsPerMinute bounds how many panics are logged per minute.
	MaxPanicsPerMinute int

	Logger *slog.Logger
}

// DefaultRecoveryConfig returns sensible defaults for recovery middleware.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace:   true,
		UserErrorMessage:   "😔 Something went wrong. Please try again in a few minutes.",
		MaxPanicsPerMinute: 100,
	}
}

// PanicInfo contains information about a recovered panic.
type PanicInfo struct {
	Error         error
	PanicValue    any
	StackTrace    string
	CorrelationID string
	TelegramID    int64
	Command       string
	Timestamp     time.Time
}

// RecoveryResult represents the result of running a handler.
type RecoveryResult struct {
	Recovered   bool
	PanicInfo   *PanicInfo
	UserMessage string
}

// RecoveryMiddleware recovers from panics in handlers.
type RecoveryMiddleware struct {
	config  RecoveryConfig
	logger  *slog.Logger
	limiter *panicRateLimiter
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.UserErrorMessage == "" {
		config.UserErrorMessage = DefaultRecoveryConfig().UserErrorMessage
	}

	return &RecoveryMiddleware{
		config:  config,
		logger:  logger.With("middleware", "recovery"),
		limiter: newPanicRateLimiter(config.MaxPanicsPerMinute),
	}
}

// RecoverWithHandler runs handler and converts a panic into a RecoveryResult.
// The handler's own error is returned unchanged.
func (m *RecoveryMiddleware) RecoverWithHandler(
	ctx context.Context,
	telegramID int64,
	command string,
	handler func() error,
) (result *RecoveryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = m.handlePanic(ctx, r, telegramID, command)
			err = nil
		}
	}()

	return &RecoveryResult{}, handler()
}

func (m *RecoveryMiddleware) handlePanic(ctx context.Context, value any, telegramID int64, command string) *RecoveryResult {
	result := &RecoveryResult{Recovered: true, UserMessage: m.config.UserErrorMessage}
	if !m.limiter.allow() {
		return result
	}

	info := &PanicInfo{
		Error:         toError(value),
		PanicValue:    value,
		CorrelationID: CorrelationIDFromContext(ctx),
		TelegramID:    telegramID,
		Command:       command,
		Timestamp:     time.Now(),
	}
	if m.config.EnableStackTrace {
		info.StackTrace = string(debug.Stack())
	}
	result.PanicInfo = info

	m.logger.Error("handler panicked",
		"command", command,
		"telegram_id", telegramID,
		"correlation_id", info.CorrelationID,
		"panic", info.Error,
		"stack", info.StackTrace,
	)

	if m.config.OnPanic != nil {
		m.config.OnPanic(ctx, info)
	}
	return result
}

func toError(value any) error {
	switch v := value.(type) {
	case error:
		return v
	case string:
		return fmt.Errorf("%s", v)
	default:
		return fmt.Errorf("panic: %v", v)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// ContextWithCorrelationID tags ctx with the id of the update being handled.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the id set by ContextWithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// PANIC RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

type panicRateLimiter struct {
	mu        sync.Mutex
	count     int
	maxPerMin int
	window    time.Time
}

func newPanicRateLimiter(maxPerMin int) *panicRateLimiter {
	if maxPerMin <= 0 {
		maxPerMin = DefaultRecoveryConfig().MaxPanicsPerMinute
	}
	return &panicRateLimiter{maxPerMin: maxPerMin, window: time.Now()}
}

func (p *panicRateLimiter) allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.Sub(p.window) > time.Minute {
		p.count = 0
		p.window = now
	}
	if p.count >= p.maxPerMin {
		return false
	}
	p.count++
	return true
}
