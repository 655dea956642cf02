// Package eventhandler contains the reactions to domain events.
// Handlers run on the event bus and keep the side effects out of the
// commands: cache invalidation and bookkeeping.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

// invalidateTimeout bounds a cache round trip made from a handler.
const invalidateTimeout = 3 * time.Second

// ReportInvalidator drops cached report texts.
type ReportInvalidator interface {
	// InvalidateLive drops the daily and live weekly views.
	InvalidateLive(ctx context.Context) error

	// InvalidateFinal drops the finalized weekly and all-time views.
	InvalidateFinal(ctx context.Context) error
}

// ═══════════════════════════════════════════════════════════════════════════
// ON SCORE ACCEPTED HANDLER
// A new score or a re-ranked game changes today's board and the live week.
// ═══════════════════════════════════════════════════════════════════════════

// OnScoreAcceptedHandler invalidates the live report views.
type OnScoreAcceptedHandler struct {
	cache  ReportInvalidator
	logger *slog.Logger
}

// NewOnScoreAcceptedHandler creates a new OnScoreAcceptedHandler.
func NewOnScoreAcceptedHandler(cache ReportInvalidator, logger *slog.Logger) *OnScoreAcceptedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnScoreAcceptedHandler{
		cache:  cache,
		logger: logger.With("handler", "on_score_accepted"),
	}
}

// Handle reacts to ScoreAccepted and DailyRankingRecomputed.
func (h *OnScoreAcceptedHandler) Handle(event shared.Event) error {
	switch e := event.(type) {
	case shared.ScoreAcceptedEvent:
		h.logger.Debug("score accepted",
			"player_id", e.PlayerID,
			"game_number", e.GameNumber,
			"rank", e.Rank,
		)
	case shared.DailyRankingRecomputedEvent:
		h.logger.Debug("daily ranking recomputed",
			"game_number", e.GameNumber,
			"players", e.Players,
		)
	default:
		h.logger.Warn("unexpected event", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	return h.cache.InvalidateLive(ctx)
}
