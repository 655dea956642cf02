// Package jobs contains the league's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY CLOSE JOB
// ══════════════════════════════════════════════════════════════════════════════

// WeekCloser runs aggregation then finalization for one week.
type WeekCloser interface {
	Handle(ctx context.Context, cmd command.CloseWeekCommand) (*command.CloseWeekResult, error)
}

// WeeklyCloseConfig contains configuration for the weekly close job.
type WeeklyCloseConfig struct {
	// Location is the league timezone the week is resolved in.
	Location *time.Location

	// Timeout is the maximum duration for one close.
	Timeout time.Duration

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// DefaultWeeklyCloseConfig returns sensible defaults.
func DefaultWeeklyCloseConfig(loc *time.Location) WeeklyCloseConfig {
	return WeeklyCloseConfig{
		Location: loc,
		Timeout:  2 * time.Minute,
		Now:      time.Now,
	}
}

// WeeklyCloseStats describes the last run.
type WeeklyCloseStats struct {
	StartedAt time.Time
	WeekStart time.Time
	Players   int
	Awarded   int
	Skipped   bool
	Err       error
}

// WeeklyCloseJob closes the week that contains the run time. It is meant
// for the Sunday 23:59 schedule, when that week is complete.
type WeeklyCloseJob struct {
	closer WeekCloser
	config WeeklyCloseConfig
	logger *slog.Logger

	lastStats atomic.Pointer[WeeklyCloseStats]
}

// NewWeeklyCloseJob creates a new weekly close job.
func NewWeeklyCloseJob(closer WeekCloser, config WeeklyCloseConfig, logger *slog.Logger) *WeeklyCloseJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Location == nil {
		config.Location = timeutil.MustLoadLocation(timeutil.DefaultTimezone)
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &WeeklyCloseJob{
		closer: closer,
		config: config,
		logger: logger.With("job", "weekly_close"),
	}
}

// Name returns the job name.
func (j *WeeklyCloseJob) Name() string {
	return "weekly_close"
}

// Description returns a human-readable description.
func (j *WeeklyCloseJob) Description() string {
	return "Aggregates the game week's points and freezes the weekly awards"
}

// Run closes the current week. A close already running in another process
// counts as success.
func (j *WeeklyCloseJob) Run(ctx context.Context) error {
	now := j.config.Now()
	weekStart := timeutil.StartOfWeek(now, j.config.Location)
	stats := &WeeklyCloseStats{StartedAt: now, WeekStart: weekStart}
	defer j.lastStats.Store(stats)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	result, err := j.closer.Handle(ctx, command.CloseWeekCommand{
		WeekStart: weekStart,
		Trigger:   command.TriggerCron,
	})
	if errors.Is(err, shared.ErrCloseInProgress) {
		j.logger.Info("week close already in progress, skipping",
			"week_start", weekStart.Format(timeutil.DateLayout),
		)
		stats.Skipped = true
		return nil
	}
	if err != nil {
		stats.Err = err
		return fmt.Errorf("close week %s: %w", weekStart.Format(timeutil.DateLayout), err)
	}

	stats.Players = result.Players
	stats.Awarded = len(result.Awards)

	return nil
}

// LastStats returns the stats of the previous run, or nil.
func (j *WeeklyCloseJob) LastStats() *WeeklyCloseStats {
	return j.lastStats.Load()
}
