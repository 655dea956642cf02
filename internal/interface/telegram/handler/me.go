package handler

import (
	"context"
	"log/slog"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/query"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram/presenter"
)

// PlayerStats is the query behind !me.
type PlayerStats interface {
	Handle(ctx context.Context, q query.PlayerStatsQuery) (*query.PlayerStatsResult, error)
}

// MeHandler handles !me: it registers the sender and shows their stats.
type MeHandler struct {
	stats     PlayerStats
	presenter *presenter.LeaderboardPresenter
	logger    *slog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(stats PlayerStats, logger *slog.Logger) *MeHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &MeHandler{
		stats:     stats,
		presenter: presenter.NewLeaderboardPresenter(),
		logger:    logger.With("handler", "me"),
	}
}

// Handle processes the !me command.
func (h *MeHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	if req.TelegramID <= 0 {
		return Reply("🤔 I can't tell who you are. Send <code>!me</code> from your own account."), nil
	}

	result, err := h.stats.Handle(ctx, query.PlayerStatsQuery{
		TelegramID: req.TelegramID,
		Name:       req.Name,
	})
	if err != nil {
		h.logger.Error("player stats failed", "telegram_id", req.TelegramID, "error", err)
		return Reply("😔 Couldn't load your stats. Please try again later."), nil
	}

	return Reply(h.presenter.PlayerStats(result)), nil
}
