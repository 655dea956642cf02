package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND LIMITER
// Bot API flood limits: about 30 messages per second overall and 20 per
// minute into one group. Sends wait for both buckets; a 429 pauses all sends.
// ══════════════════════════════════════════════════════════════════════════════

// SendLimiterConfig contains configuration for the SendLimiter.
type SendLimiterConfig struct {
	GlobalPerSecond float64
	GlobalBurst     int

	ChatPerMinute int
	ChatBurst     int

	// WaitTimeout is the maximum time a send waits for a token.
	WaitTimeout time.Duration

	// ChatIdleTTL drops per-chat buckets that have not been used for this long.
	ChatIdleTTL time.Duration
}

// DefaultSendLimiterConfig returns the documented Bot API limits.
func DefaultSendLimiterConfig() SendLimiterConfig {
	return SendLimiterConfig{
		GlobalPerSecond: 30,
		GlobalBurst:     30,
		ChatPerMinute:   20,
		ChatBurst:       20,
		WaitTimeout:     30 * time.Second,
		ChatIdleTTL:     time.Hour,
	}
}

// RateLimitError is returned when a send could not get a token in time.
type RateLimitError struct {
	ChatID     int64
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("send rate limit exceeded for chat %d, retry after %s", e.ChatID, e.RetryAfter)
}

type chatBucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// SendLimiter paces outbound messages.
type SendLimiter struct {
	config SendLimiterConfig
	global *rate.Limiter
	now    func() time.Time

	mu          sync.Mutex
	chats       map[int64]*chatBucket
	pausedUntil time.Time
	lastPrune   time.Time
}

// NewSendLimiter creates a new SendLimiter. Zero fields take the defaults.
func NewSendLimiter(config SendLimiterConfig) *SendLimiter {
	def := DefaultSendLimiterConfig()
	if config.GlobalPerSecond <= 0 {
		config.GlobalPerSecond = def.GlobalPerSecond
	}
	if config.GlobalBurst <= 0 {
		config.GlobalBurst = def.GlobalBurst
	}
	if config.ChatPerMinute <= 0 {
		config.ChatPerMinute = def.ChatPerMinute
	}
	if config.ChatBurst <= 0 {
		config.ChatBurst = def.ChatBurst
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = def.WaitTimeout
	}
	if config.ChatIdleTTL <= 0 {
		config.ChatIdleTTL = def.ChatIdleTTL
	}

	return &SendLimiter{
		config: config,
		global: rate.NewLimiter(rate.Limit(config.GlobalPerSecond), config.GlobalBurst),
		now:    time.Now,
		chats:  make(map[int64]*chatBucket),
	}
}

// Wait blocks until a message may be sent to chatID. It fails with a
// *RateLimitError when the wait would exceed WaitTimeout.
func (l *SendLimiter) Wait(ctx context.Context, chatID int64) error {
	chat, pause := l.reserveChat(chatID)

	if pause > 0 {
		if pause > l.config.WaitTimeout {
			return &RateLimitError{ChatID: chatID, RetryAfter: pause}
		}
		if err := sleep(ctx, pause); err != nil {
			return err
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.config.WaitTimeout)
	defer cancel()

	// rate.Limiter.Wait fails fast when the wait would pass the deadline.
	if err := chat.Wait(waitCtx); err != nil {
		return l.waitError(ctx, chatID, err)
	}
	if err := l.global.Wait(waitCtx); err != nil {
		return l.waitError(ctx, chatID, err)
	}
	return nil
}

func (l *SendLimiter) waitError(ctx context.Context, chatID int64, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &RateLimitError{ChatID: chatID, RetryAfter: l.config.WaitTimeout}
}

// Pause holds every send for d, after Telegram answered 429.
func (l *SendLimiter) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if until := l.now().Add(d); until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
}

// Chats returns the number of tracked chats.
func (l *SendLimiter) Chats() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chats)
}

func (l *SendLimiter) reserveChat(chatID int64) (*rate.Limiter, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) >= l.config.ChatIdleTTL/2 {
		for id, b := range l.chats {
			if now.Sub(b.lastUsed) > l.config.ChatIdleTTL {
				delete(l.chats, id)
			}
		}
		l.lastPrune = now
	}

	b, ok := l.chats[chatID]
	if !ok {
		b = &chatBucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.config.ChatPerMinute)), l.config.ChatBurst),
		}
		l.chats[chatID] = b
	}
	b.lastUsed = now

	var pause time.Duration
	if l.pausedUntil.After(now) {
		pause = l.pausedUntil.Sub(now)
	}
	return b.limiter, pause
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
