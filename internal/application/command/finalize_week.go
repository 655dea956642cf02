package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FINALIZE WEEK COMMAND
// Freezes the week's top ten into the award table. Reruns overwrite.
// ══════════════════════════════════════════════════════════════════════════════

// FinalizeWeekCommand identifies the week to finalize.
type FinalizeWeekCommand struct {
	WeekStart time.Time
}

// FinalizeWeekResult carries the awards that were written.
type FinalizeWeekResult struct {
	WeekStart time.Time
	Awards    []ranking.WeeklyAward
}

// FinalizeWeekHandler handles the FinalizeWeekCommand.
type FinalizeWeekHandler struct {
	tx       ranking.Transactor
	location *time.Location
	observer StageObserver
	logger   *slog.Logger
}

// NewFinalizeWeekHandler creates a new FinalizeWeekHandler.
func NewFinalizeWeekHandler(
	tx ranking.Transactor,
	location *time.Location,
	observer StageObserver,
	logger *slog.Logger,
) *FinalizeWeekHandler {
	if observer == nil {
		observer = nopStageObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FinalizeWeekHandler{
		tx:       tx,
		location: location,
		observer: observer,
		logger:   logger,
	}
}

// Handle reads the week's points and upserts the awards in one transaction.
func (h *FinalizeWeekHandler) Handle(ctx context.Context, cmd FinalizeWeekCommand) (*FinalizeWeekResult, error) {
	if err := validateWeekStart(cmd.WeekStart, h.location); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &FinalizeWeekResult{WeekStart: cmd.WeekStart}

	err := h.tx.WithinTx(ctx, func(repo ranking.Repository) error {
		points, err := repo.WeeklyPoints(ctx, cmd.WeekStart)
		if err != nil {
			return err
		}

		result.Awards = ranking.FinalizeAwards(cmd.WeekStart, points)
		return repo.UpsertWeeklyAwards(ctx, cmd.WeekStart, result.Awards)
	})

	h.observer.ObserveStage(StageFinalizeWeek, time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("finalize_week: %s: %w", cmd.WeekStart.Format(timeutil.DateLayout), err)
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOSE WEEK
// Aggregation followed by finalization. Shared by the HTTP trigger, the cron
// job and the admin CLI.
// ══════════════════════════════════════════════════════════════════════════════

// Close-week triggers.
const (
	TriggerHTTP = "http"
	TriggerCron = "cron"
	TriggerCLI  = "cli"
)

// CloseWeekCommand identifies the week to close.
type CloseWeekCommand struct {
	WeekStart time.Time
	Trigger   string
}

// CloseWeekResult summarizes a close run.
type CloseWeekResult struct {
	RunID     string
	WeekStart time.Time
	Players   int
	Awards    []ranking.WeeklyAward
	Winners   ranking.BonusWinners
}

// closeLockTTL bounds how long a crashed run can block the next one.
const closeLockTTL = 2 * time.Minute

// Locker hands out named locks shared between processes. ok is false when
// another holder has the lock.
type Locker interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (release func(), ok bool, err error)
}

// CloseWeekHandler handles the CloseWeekCommand.
type CloseWeekHandler struct {
	aggregate *AggregateWeekHandler
	finalize  *FinalizeWeekHandler
	publisher shared.EventPublisher
	locker    Locker
	logger    *slog.Logger
}

// NewCloseWeekHandler creates a new CloseWeekHandler.
func NewCloseWeekHandler(
	aggregate *AggregateWeekHandler,
	finalize *FinalizeWeekHandler,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *CloseWeekHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CloseWeekHandler{
		aggregate: aggregate,
		finalize:  finalize,
		publisher: publisher,
		logger:    logger,
	}
}

// WithLocker makes overlapping runs for the same week fail with
// shared.ErrCloseInProgress. A locker error is logged and the run proceeds.
func (h *CloseWeekHandler) WithLocker(l Locker) *CloseWeekHandler {
	h.locker = l
	return h
}

// Handle aggregates then finalizes the week. Each step is its own
// transaction; a failed finalize leaves fresh weekly points and no new awards.
func (h *CloseWeekHandler) Handle(ctx context.Context, cmd CloseWeekCommand) (*CloseWeekResult, error) {
	runID := uuid.NewString()
	week := cmd.WeekStart.Format(timeutil.DateLayout)
	log := h.logger.With(
		"run_id", runID,
		"week_start", week,
		"trigger", cmd.Trigger,
	)

	if h.locker != nil {
		release, ok, err := h.locker.Acquire(ctx, "close-week:"+week, closeLockTTL)
		switch {
		case err != nil:
			log.Warn("close lock unavailable, continuing unlocked", "error", err)
		case !ok:
			log.Info("week close already running elsewhere")
			return nil, shared.ErrCloseInProgress
		default:
			defer release()
		}
	}

	aggregated, err := h.aggregate.Handle(ctx, AggregateWeekCommand{WeekStart: cmd.WeekStart})
	if err != nil {
		log.Error("weekly aggregation failed", "error", err)
		return nil, err
	}

	finalized, err := h.finalize.Handle(ctx, FinalizeWeekCommand{WeekStart: cmd.WeekStart})
	if err != nil {
		log.Error("weekly finalization failed", "error", err)
		return nil, err
	}

	log.Info("week closed",
		"players", len(aggregated.Points),
		"awarded", len(finalized.Awards),
	)

	event := shared.NewWeekClosedEvent(cmd.WeekStart, len(aggregated.Points), len(finalized.Awards), cmd.Trigger)
	event.BaseEvent = event.BaseEvent.WithCorrelationID(runID)
	_ = h.publisher.Publish(event)

	return &CloseWeekResult{
		RunID:     runID,
		WeekStart: cmd.WeekStart,
		Players:   len(aggregated.Points),
		Awards:    finalized.Awards,
		Winners:   aggregated.Winners,
	}, nil
}
