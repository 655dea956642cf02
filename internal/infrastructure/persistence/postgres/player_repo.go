package postgres

import (
	"context"
	"fmt"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/player"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PlayerRepository implements player.Repository for PostgreSQL.
type PlayerRepository struct {
	conn *Connection
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(conn *Connection) *PlayerRepository {
	return &PlayerRepository{conn: conn}
}

const upsertPlayerSQL = `
	INSERT INTO players (telegram_id, name)
	VALUES ($1, $2)
	ON CONFLICT (telegram_id) DO UPDATE
	SET name = EXCLUDED.name, updated_at = NOW()
	RETURNING id, created_at, updated_at
`

// upsertPlayer is shared with the score submission transaction.
func upsertPlayer(ctx context.Context, q Querier, p *player.Player) error {
	err := q.QueryRow(ctx, upsertPlayerSQL, p.TelegramID, p.Name).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}
	return nil
}

// Upsert inserts the player or refreshes the stored name.
func (r *PlayerRepository) Upsert(ctx context.Context, p *player.Player) error {
	return upsertPlayer(ctx, r.conn, p)
}

// GetByTelegramID returns the player with the given Telegram account id.
func (r *PlayerRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*player.Player, error) {
	var p player.Player
	err := r.conn.QueryRow(ctx, `
		SELECT id, telegram_id, name, created_at, updated_at
		FROM players
		WHERE telegram_id = $1
	`, telegramID).Scan(&p.ID, &p.TelegramID, &p.Name, &p.CreatedAt, &p.UpdatedAt)

	if IsNoRows(err) {
		return nil, shared.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return &p, nil
}

// Count returns the number of known players.
func (r *PlayerRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return count, nil
}

// Stats aggregates the personal summary for a player.
func (r *PlayerRepository) Stats(ctx context.Context, playerID int64) (*player.Stats, error) {
	var stats player.Stats
	err := r.conn.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM scores WHERE player_id = $1),
			(SELECT COALESCE(MAX(score), 0) FROM scores WHERE player_id = $1),
			(SELECT COALESCE(AVG(score), 0)::float8 FROM scores WHERE player_id = $1),
			(SELECT COUNT(*) FROM daily_rankings WHERE player_id = $1 AND rank = 1),
			(SELECT COUNT(*) FROM weekly_awards WHERE player_id = $1 AND rank = 1),
			(SELECT COALESCE(SUM(total_points), 0) FROM weekly_awards WHERE player_id = $1)
	`, playerID).Scan(
		&stats.GamesPlayed,
		&stats.BestScore,
		&stats.AverageScore,
		&stats.DailyWins,
		&stats.WeeklyWins,
		&stats.AllTimePoints,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %w", err)
	}

	return &stats, nil
}
