package query

import (
	"context"
	"fmt"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER STATS QUERY
// Personal summary for the !me command. Asking for stats registers the
// player and refreshes the display name, like a score submission does.
// ══════════════════════════════════════════════════════════════════════════════

// PlayerStatsQuery identifies the asking account.
type PlayerStatsQuery struct {
	TelegramID int64
	Name       string
}

// PlayerStatsResult is the personal summary.
type PlayerStatsResult struct {
	Player *player.Player
	Stats  *player.Stats
}

// PlayerStatsHandler handles the PlayerStatsQuery.
type PlayerStatsHandler struct {
	players player.Repository
}

// NewPlayerStatsHandler creates a new PlayerStatsHandler.
func NewPlayerStatsHandler(players player.Repository) *PlayerStatsHandler {
	return &PlayerStatsHandler{players: players}
}

// Handle upserts the player and reads the aggregates.
func (h *PlayerStatsHandler) Handle(ctx context.Context, q PlayerStatsQuery) (*PlayerStatsResult, error) {
	p, err := player.New(q.TelegramID, q.Name)
	if err != nil {
		return nil, err
	}

	if err := h.players.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("player_stats: %w", err)
	}

	stats, err := h.players.Stats(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("player_stats: %w", err)
	}

	return &PlayerStatsResult{Player: p, Stats: stats}, nil
}
