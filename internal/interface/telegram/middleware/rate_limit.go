// Package middleware contains Telegram bot middlewares for request processing.
package middleware

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Per-user token buckets for commands. Score submissions are not limited:
// the duplicate rule already bounds them to one per game.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained number of commands per user.
	RequestsPerMinute int

	// BurstSize is the number of commands a user can send back to back.
	BurstSize int

	// IdleTTL is how long an unused bucket is kept before pruning.
	IdleTTL time.Duration

	// BanDuration is how long a user who keeps hitting the limit is muted.
	BanDuration time.Duration

	// BanThreshold is the number of consecutive rejections before a mute.
	BanThreshold int

	// WhitelistedUsers are exempt from limiting.
	WhitelistedUsers map[int64]bool

	// OnRateLimited renders the reply for a limited user.
	OnRateLimited func(telegramID int64, retryAfter time.Duration) string
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
		IdleTTL:           10 * time.Minute,
		BanDuration:       5 * time.Minute,
		BanThreshold:      10,
		WhitelistedUsers:  make(map[int64]bool),
		OnRateLimited: func(_ int64, retryAfter time.Duration) string {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			if seconds < 60 {
				return fmt.Sprintf("⏳ Slow down! Try again in %d seconds.", seconds)
			}
			return fmt.Sprintf("⏳ Slow down! Try again in %d minutes.", (seconds+59)/60)
		},
	}
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	Allowed bool

	// RetryAfter is how long the user should wait before retrying.
	RetryAfter time.Duration

	// IsBanned indicates a temporary mute after repeated violations.
	IsBanned bool

	// ResponseMessage is set only for the first rejection of a streak,
	// so a spamming user gets one reply instead of one per message.
	ResponseMessage string
}

type bucket struct {
	limiter     *rate.Limiter
	lastSeen    time.Time
	violations  int
	bannedUntil time.Time
}

// RateLimiter implements per-user rate limiting.
type RateLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[int64]*bucket
	lastPrune time.Time
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// Idle buckets are pruned lazily on Check.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = defaults.BurstSize
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	if config.OnRateLimited == nil {
		config.OnRateLimited = defaults.OnRateLimited
	}

	return &RateLimiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[int64]*bucket),
	}
}

// Check consumes one token for telegramID.
func (rl *RateLimiter) Check(telegramID int64) *RateLimitResult {
	if rl.config.WhitelistedUsers[telegramID] {
		return &RateLimitResult{Allowed: true}
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.pruneLocked(now)

	b, ok := rl.buckets[telegramID]
	if !ok {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.config.RequestsPerMinute)/60), rl.config.BurstSize),
		}
		rl.buckets[telegramID] = b
	}
	b.lastSeen = now

	if now.Before(b.bannedUntil) {
		return &RateLimitResult{IsBanned: true, RetryAfter: b.bannedUntil.Sub(now)}
	}

	r := b.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay == 0 {
		b.violations = 0
		return &RateLimitResult{Allowed: true}
	}
	r.CancelAt(now)

	b.violations++
	result := &RateLimitResult{RetryAfter: delay}

	if rl.config.BanThreshold > 0 && b.violations >= rl.config.BanThreshold && rl.config.BanDuration > 0 {
		b.bannedUntil = now.Add(rl.config.BanDuration)
		b.violations = 0
		result.IsBanned = true
		result.RetryAfter = rl.config.BanDuration
		result.ResponseMessage = rl.config.OnRateLimited(telegramID, rl.config.BanDuration)
		return result
	}

	if b.violations == 1 {
		result.ResponseMessage = rl.config.OnRateLimited(telegramID, delay)
	}
	return result
}

// Size returns the number of tracked users.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastPrune) < rl.config.IdleTTL/2 {
		return
	}
	rl.lastPrune = now

	for id, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.config.IdleTTL && !now.Before(b.bannedUntil) {
			delete(rl.buckets, id)
		}
	}
}
