package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/query"
	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/persistence/redis"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram/presenter"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT HANDLERS
// !d, !w, !leaderboard/!lw and !alltime/!goat. A failed report never errors
// out of the handler; the user gets the "try again later" text.
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboards is the read side the report commands use.
type Leaderboards interface {
	Daily(ctx context.Context, now time.Time) (*query.DailyView, error)
	WeeklyLive(ctx context.Context, now time.Time) (*query.WeeklyView, error)
	WeeklySnapshot(ctx context.Context) (*query.WeeklyView, error)
	AllTime(ctx context.Context, limit int) (*query.AllTimeView, error)
}

// TextCache caches rendered report texts.
type TextCache interface {
	GetOrRender(ctx context.Context, key string, ttl time.Duration, render func(ctx context.Context) (string, error)) (string, error)
}

// ReportHandler renders the leaderboard commands.
type ReportHandler struct {
	boards    Leaderboards
	cache     TextCache
	presenter *presenter.LeaderboardPresenter
	location  *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// NewReportHandler creates a new ReportHandler. cache may be nil.
func NewReportHandler(
	boards Leaderboards,
	cache TextCache,
	location *time.Location,
	logger *slog.Logger,
) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ReportHandler{
		boards:    boards,
		cache:     cache,
		presenter: presenter.NewLeaderboardPresenter(),
		location:  location,
		logger:    logger.With("handler", "reports"),
		now:       time.Now,
	}
}

// Daily handles !d.
func (h *ReportHandler) Daily() CommandHandler {
	return HandlerFunc(func(ctx context.Context, req Request) (*Response, error) {
		now := h.now()
		key := redis.DailyKey(timeutil.GameDayStart(now, h.location))

		return h.render(ctx, "daily", key, redis.TTLDaily, func(ctx context.Context) (string, error) {
			view, err := h.boards.Daily(ctx, now)
			if err != nil {
				return "", err
			}
			return h.presenter.Daily(view), nil
		})
	})
}

// WeeklyLive handles !w.
func (h *ReportHandler) WeeklyLive() CommandHandler {
	return HandlerFunc(func(ctx context.Context, req Request) (*Response, error) {
		now := h.now()
		key := redis.WeeklyLiveKey(timeutil.StartOfWeek(now, h.location))

		return h.render(ctx, "weekly_live", key, redis.TTLWeeklyLive, func(ctx context.Context) (string, error) {
			view, err := h.boards.WeeklyLive(ctx, now)
			if err != nil {
				return "", err
			}
			return h.presenter.Weekly(view), nil
		})
	})
}

// Snapshot handles !leaderboard and !lw.
func (h *ReportHandler) Snapshot() CommandHandler {
	return HandlerFunc(func(ctx context.Context, req Request) (*Response, error) {
		return h.render(ctx, "snapshot", redis.SnapshotKey(), redis.TTLSnapshot, func(ctx context.Context) (string, error) {
			view, err := h.boards.WeeklySnapshot(ctx)
			if err != nil {
				return "", err
			}
			return h.presenter.Weekly(view), nil
		})
	})
}

// AllTime handles !alltime and !goat.
func (h *ReportHandler) AllTime() CommandHandler {
	return HandlerFunc(func(ctx context.Context, req Request) (*Response, error) {
		return h.render(ctx, "alltime", redis.AllTimeKey(query.BoardSize), redis.TTLAllTime, func(ctx context.Context) (string, error) {
			view, err := h.boards.AllTime(ctx, query.BoardSize)
			if err != nil {
				return "", err
			}
			return h.presenter.AllTime(view), nil
		})
	})
}

func (h *ReportHandler) render(
	ctx context.Context,
	view, key string,
	ttl time.Duration,
	render func(ctx context.Context) (string, error),
) (*Response, error) {
	var (
		text string
		err  error
	)
	if h.cache != nil {
		text, err = h.cache.GetOrRender(ctx, key, ttl, render)
	} else {
		text, err = render(ctx)
	}

	if err != nil {
		h.logger.Error("report failed", "view", view, "error", err)
		return Reply(presenter.TryLater), nil
	}
	return Reply(text), nil
}
