package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// Report views cached by ReportCache.
const (
	ViewDaily      = "daily"
	ViewWeeklyLive = "weekly-live"
	ViewSnapshot   = "snapshot"
	ViewAllTime    = "alltime"
)

// Default TTLs per view. Invalidation on events is the primary mechanism;
// the TTL only bounds staleness when an event is missed.
const (
	TTLDaily      = 5 * time.Minute
	TTLWeeklyLive = 5 * time.Minute
	TTLSnapshot   = 24 * time.Hour
	TTLAllTime    = 24 * time.Hour
)

// DailyKey is keyed by the game day so the board rolls over at opening time.
func DailyKey(gameDayStart time.Time) string {
	return PrefixReport + ViewDaily + ":" + timeutil.FormatDate(gameDayStart)
}

// WeeklyLiveKey is keyed by the week's Monday.
func WeeklyLiveKey(weekStart time.Time) string {
	return PrefixReport + ViewWeeklyLive + ":" + timeutil.FormatDate(weekStart)
}

// SnapshotKey holds the latest finalized week.
func SnapshotKey() string {
	return PrefixReport + ViewSnapshot + ":latest"
}

// AllTimeKey is keyed by the requested limit.
func AllTimeKey(limit int) string {
	return fmt.Sprintf("%s%s:%d", PrefixReport, ViewAllTime, limit)
}

func viewPattern(view string) string {
	return PrefixReport + view + ":*"
}

// TextStore is the subset of Cache used by ReportCache.
type TextStore interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ReportCache stores rendered report texts. Cache failures never fail a
// request: reads fall through to rendering and writes are logged.
// A nil *ReportCache renders every time.
type ReportCache struct {
	store  TextStore
	logger *slog.Logger
}

// NewReportCache creates a new ReportCache.
func NewReportCache(store TextStore, logger *slog.Logger) *ReportCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportCache{store: store, logger: logger.With(slog.String("component", "report_cache"))}
}

// GetOrRender returns the cached text for key or renders and stores it.
func (c *ReportCache) GetOrRender(
	ctx context.Context,
	key string,
	ttl time.Duration,
	render func(ctx context.Context) (string, error),
) (string, error) {
	if c == nil || c.store == nil {
		return render(ctx)
	}

	text, err := c.store.GetString(ctx, key)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	text, err = render(ctx)
	if err != nil {
		return "", err
	}

	if err := c.store.SetString(ctx, key, text, ttl); err != nil {
		c.logger.Warn("cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	return text, nil
}

// Invalidate drops every cached text of the given views.
func (c *ReportCache) Invalidate(ctx context.Context, views ...string) error {
	if c == nil || c.store == nil {
		return nil
	}

	var errs []error
	for _, view := range views {
		if err := c.store.DeleteByPattern(ctx, viewPattern(view)); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", view, err))
		}
	}

	return errors.Join(errs...)
}

// InvalidateLive drops the views that change with every accepted score.
func (c *ReportCache) InvalidateLive(ctx context.Context) error {
	return c.Invalidate(ctx, ViewDaily, ViewWeeklyLive)
}

// InvalidateFinal drops the views that change when a week is closed.
func (c *ReportCache) InvalidateFinal(ctx context.Context) error {
	return c.Invalidate(ctx, ViewSnapshot, ViewAllTime, ViewWeeklyLive)
}
