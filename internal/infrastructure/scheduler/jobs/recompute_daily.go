package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// GameLocator finds the game being played in a time window.
type GameLocator interface {
	MaxGameNumberBetween(ctx context.Context, from, to time.Time) (int, bool, error)
}

// DailyRecomputer rebuilds one game's ranking.
type DailyRecomputer interface {
	Handle(ctx context.Context, cmd command.RecomputeDailyCommand) (*command.RecomputeDailyResult, error)
}

// RecomputeDailyJob re-ranks today's game. Submissions already recompute
// after every insert; this catches a recompute that failed after its
// score was stored.
type RecomputeDailyJob struct {
	games      GameLocator
	recomputer DailyRecomputer
	location   *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

// NewRecomputeDailyJob creates a new RecomputeDailyJob.
func NewRecomputeDailyJob(games GameLocator, recomputer DailyRecomputer, loc *time.Location, logger *slog.Logger) *RecomputeDailyJob {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = timeutil.MustLoadLocation(timeutil.DefaultTimezone)
	}

	return &RecomputeDailyJob{
		games:      games,
		recomputer: recomputer,
		location:   loc,
		now:        time.Now,
		logger:     logger.With("job", "recompute_daily"),
	}
}

// Name returns the job name.
func (j *RecomputeDailyJob) Name() string {
	return "recompute_daily"
}

// Description returns a human-readable description.
func (j *RecomputeDailyJob) Description() string {
	return "Re-ranks the current game day's game"
}

// Run recomputes the game of the current game day, if anyone played it.
func (j *RecomputeDailyJob) Run(ctx context.Context) error {
	now := j.now()
	from := timeutil.GameDayStart(now, j.location)
	to := timeutil.GameDayEnd(now, j.location)

	game, ok, err := j.games.MaxGameNumberBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("locate current game: %w", err)
	}
	if !ok {
		j.logger.Debug("no scores this game day")
		return nil
	}

	res, err := j.recomputer.Handle(ctx, command.RecomputeDailyCommand{GameNumber: game})
	if err != nil {
		return fmt.Errorf("recompute game %d: %w", game, err)
	}

	j.logger.Debug("game recomputed", "game_number", game, "players", len(res.Rankings))
	return nil
}
