package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOCKER
// ══════════════════════════════════════════════════════════════════════════════

// Locker hands out SET NX locks. The token makes release a no-op once the
// lock expired and someone else took it.
type Locker struct {
	cache  *Cache
	logger *slog.Logger
}

// NewLocker creates a new Locker.
func NewLocker(cache *Cache, logger *slog.Logger) *Locker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{cache: cache, logger: logger}
}

// Acquire takes the named lock for ttl.
func (l *Locker) Acquire(ctx context.Context, resource string, ttl time.Duration) (func(), bool, error) {
	key := LockKey(resource)
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, key, token, ttl)
	if err != nil || !ok {
		return nil, false, err
	}

	release := func() {
		// The caller's context may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.cache.DeleteIfEquals(releaseCtx, key, token); err != nil {
			l.logger.Warn("lock release failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	return release, true, nil
}
