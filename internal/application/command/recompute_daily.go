// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

// Stage names reported to a StageObserver.
const (
	StageRecomputeDaily = "recompute_daily"
	StageAggregateWeek  = "aggregate_week"
	StageFinalizeWeek   = "finalize_week"
)

// StageObserver receives the duration and outcome of each batch stage.
type StageObserver interface {
	ObserveStage(stage string, duration time.Duration, err error)
}

type nopStageObserver struct{}

func (nopStageObserver) ObserveStage(string, time.Duration, error) {}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE DAILY RANKING COMMAND
// Rebuilds the rank table of one game from its scores. Always a full
// overwrite, so it is safe to run after every submission and by hand.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeDailyCommand identifies the game to re-rank.
type RecomputeDailyCommand struct {
	GameNumber int
}

// Validate validates the command.
func (c RecomputeDailyCommand) Validate() error {
	if c.GameNumber <= 0 {
		return shared.ErrInvalidGameNumber
	}
	return nil
}

// RecomputeDailyResult carries the rank table that was written.
type RecomputeDailyResult struct {
	GameNumber int
	Rankings   []ranking.DailyRanking
	Duration   time.Duration
}

// RecomputeDailyHandler handles the RecomputeDailyCommand.
type RecomputeDailyHandler struct {
	tx        ranking.Transactor
	publisher shared.EventPublisher
	observer  StageObserver
	logger    *slog.Logger
}

// NewRecomputeDailyHandler creates a new RecomputeDailyHandler.
// publisher, observer and logger may be nil.
func NewRecomputeDailyHandler(
	tx ranking.Transactor,
	publisher shared.EventPublisher,
	observer StageObserver,
	logger *slog.Logger,
) *RecomputeDailyHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if observer == nil {
		observer = nopStageObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RecomputeDailyHandler{
		tx:        tx,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
	}
}

// Handle loads, ranks and upserts the game inside one transaction.
func (h *RecomputeDailyHandler) Handle(ctx context.Context, cmd RecomputeDailyCommand) (*RecomputeDailyResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	var rankings []ranking.DailyRanking

	err := h.tx.WithinTx(ctx, func(repo ranking.Repository) error {
		scores, err := repo.GameScores(ctx, cmd.GameNumber)
		if err != nil {
			return err
		}

		rankings = ranking.RankGame(cmd.GameNumber, scores)
		return repo.UpsertDailyRankings(ctx, rankings)
	})

	duration := time.Since(start)
	h.observer.ObserveStage(StageRecomputeDaily, duration, err)

	if err != nil {
		return nil, fmt.Errorf("recompute_daily: game %d: %w", cmd.GameNumber, err)
	}

	h.logger.Debug("daily ranking recomputed",
		"game_number", cmd.GameNumber,
		"players", len(rankings),
		"duration", duration,
	)
	_ = h.publisher.Publish(shared.NewDailyRankingRecomputedEvent(cmd.GameNumber, len(rankings)))

	return &RecomputeDailyResult{
		GameNumber: cmd.GameNumber,
		Rankings:   rankings,
		Duration:   duration,
	}, nil
}
