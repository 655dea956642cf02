package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

// WeekCloseRecorder records completed week closes.
type WeekCloseRecorder interface {
	RecordWeekClosed(trigger string, at time.Time)
}

// ═══════════════════════════════════════════════════════════════════════════
// ON WEEK CLOSED HANDLER
// New awards change the snapshot and the all-time table.
// ═══════════════════════════════════════════════════════════════════════════

// OnWeekClosedHandler invalidates the finalized views and records the close.
type OnWeekClosedHandler struct {
	cache    ReportInvalidator
	recorder WeekCloseRecorder
	logger   *slog.Logger
}

// NewOnWeekClosedHandler creates a new OnWeekClosedHandler. recorder may be nil.
func NewOnWeekClosedHandler(cache ReportInvalidator, recorder WeekCloseRecorder, logger *slog.Logger) *OnWeekClosedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnWeekClosedHandler{
		cache:    cache,
		recorder: recorder,
		logger:   logger.With("handler", "on_week_closed"),
	}
}

// Handle reacts to WeekClosed.
func (h *OnWeekClosedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.WeekClosedEvent)
	if !ok {
		h.logger.Warn("unexpected event", "event_type", event.EventType())
		return nil
	}

	if h.recorder != nil {
		h.recorder.RecordWeekClosed(e.Trigger, e.OccurredAt())
	}

	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	if err := h.cache.InvalidateFinal(ctx); err != nil {
		h.logger.Error("failed to invalidate finalized reports",
			"week_start", e.WeekStart.Format("2006-01-02"),
			"error", err,
		)
		return err
	}

	return nil
}

// Register subscribes the league handlers to the bus.
func Register(
	bus shared.EventSubscriber,
	cache ReportInvalidator,
	recorder WeekCloseRecorder,
	logger *slog.Logger,
) error {
	scores := NewOnScoreAcceptedHandler(cache, logger)
	weeks := NewOnWeekClosedHandler(cache, recorder, logger)

	subscriptions := []struct {
		eventType shared.EventType
		handler   shared.EventHandler
	}{
		{shared.EventScoreAccepted, scores.Handle},
		{shared.EventDailyRankingRecomputed, scores.Handle},
		{shared.EventWeekClosed, weeks.Handle},
	}

	for _, s := range subscriptions {
		if err := bus.Subscribe(s.eventType, s.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.eventType, err)
		}
	}

	return nil
}
