package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE WEEK COMMAND
// Rolls a week's daily rankings into weekly points with the two bonuses.
// ══════════════════════════════════════════════════════════════════════════════

// AggregateWeekCommand identifies the week to aggregate.
type AggregateWeekCommand struct {
	// WeekStart must be Monday 00:00 in the league timezone.
	WeekStart time.Time
}

// validateWeekStart checks that t is the Monday boundary of its week.
func validateWeekStart(t time.Time, loc *time.Location) error {
	if t.IsZero() || !timeutil.StartOfWeek(t, loc).Equal(t) {
		return shared.ErrInvalidWeekStart
	}
	return nil
}

// AggregateWeekResult carries the rows that were written.
type AggregateWeekResult struct {
	WeekStart time.Time
	Points    []ranking.WeeklyPoints
	Winners   ranking.BonusWinners
}

// AggregateWeekHandler handles the AggregateWeekCommand.
type AggregateWeekHandler struct {
	tx       ranking.Transactor
	location *time.Location
	observer StageObserver
	logger   *slog.Logger
}

// NewAggregateWeekHandler creates a new AggregateWeekHandler.
func NewAggregateWeekHandler(
	tx ranking.Transactor,
	location *time.Location,
	observer StageObserver,
	logger *slog.Logger,
) *AggregateWeekHandler {
	if observer == nil {
		observer = nopStageObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AggregateWeekHandler{
		tx:       tx,
		location: location,
		observer: observer,
		logger:   logger,
	}
}

// Handle aggregates and upserts the week inside one transaction.
func (h *AggregateWeekHandler) Handle(ctx context.Context, cmd AggregateWeekCommand) (*AggregateWeekResult, error) {
	if err := validateWeekStart(cmd.WeekStart, h.location); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &AggregateWeekResult{WeekStart: cmd.WeekStart}

	err := h.tx.WithinTx(ctx, func(repo ranking.Repository) error {
		stats, err := repo.WeeklyStats(ctx, cmd.WeekStart, timeutil.WeekEnd(cmd.WeekStart))
		if err != nil {
			return err
		}

		result.Winners = ranking.DetermineBonuses(stats)
		result.Points = ranking.BuildWeeklyPoints(cmd.WeekStart, stats)
		return repo.UpsertWeeklyPoints(ctx, cmd.WeekStart, result.Points)
	})

	h.observer.ObserveStage(StageAggregateWeek, time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("aggregate_week: %s: %w", cmd.WeekStart.Format(timeutil.DateLayout), err)
	}

	h.logger.Info("week aggregated",
		"week_start", cmd.WeekStart.Format(timeutil.DateLayout),
		"players", len(result.Points),
		"most_wins_winner", result.Winners.MostWins,
		"high_score_winner", result.Winners.HighScore,
	)

	return result, nil
}
