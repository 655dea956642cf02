package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/player"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/score"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ScoreRepository implements score.Repository for PostgreSQL.
type ScoreRepository struct {
	conn *Connection
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(conn *Connection) *ScoreRepository {
	return &ScoreRepository{conn: conn}
}

// SaveSubmission upserts the player and inserts the score in one transaction.
// The (player_id, game_number) constraint decides concurrent duplicates.
func (r *ScoreRepository) SaveSubmission(ctx context.Context, p *player.Player, s *score.Score) error {
	rounds, err := json.Marshal(s.Rounds)
	if err != nil {
		return fmt.Errorf("failed to marshal rounds: %w", err)
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := upsertPlayer(ctx, tx, p); err != nil {
			return err
		}

		s.PlayerID = p.ID
		return tx.QueryRow(ctx, `
			INSERT INTO scores (player_id, game_number, score, max_score, percentage, rounds, raw_text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`,
			s.PlayerID,
			s.GameNumber,
			s.Value,
			s.MaxScore,
			s.Percentage,
			rounds,
			s.RawText,
			s.CreatedAt,
		).Scan(&s.ID)
	})

	if IsUniqueViolation(err) {
		return shared.ErrScoreAlreadySubmitted
	}
	if err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}

	return nil
}

// Exists reports whether the Telegram account already has a score for the game.
func (r *ScoreRepository) Exists(ctx context.Context, telegramID int64, gameNumber int) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM scores s
			JOIN players p ON p.id = s.player_id
			WHERE p.telegram_id = $1 AND s.game_number = $2
		)
	`, telegramID, gameNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check score: %w", err)
	}
	return exists, nil
}

// MaxGameNumberBetween returns the highest game number created in [from, to).
func (r *ScoreRepository) MaxGameNumberBetween(ctx context.Context, from, to time.Time) (int, bool, error) {
	var game *int
	err := r.conn.QueryRow(ctx, `
		SELECT MAX(game_number)
		FROM scores
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&game)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get current game number: %w", err)
	}
	if game == nil {
		return 0, false, nil
	}
	return *game, true, nil
}

// Latest returns the most recently created score.
func (r *ScoreRepository) Latest(ctx context.Context) (*score.Score, error) {
	var (
		s      score.Score
		rounds []byte
	)
	err := r.conn.QueryRow(ctx, `
		SELECT id, player_id, game_number, score, max_score, percentage::float8, rounds, raw_text, created_at
		FROM scores
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(
		&s.ID,
		&s.PlayerID,
		&s.GameNumber,
		&s.Value,
		&s.MaxScore,
		&s.Percentage,
		&rounds,
		&s.RawText,
		&s.CreatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest score: %w", err)
	}

	if len(rounds) > 0 {
		if err := json.Unmarshal(rounds, &s.Rounds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rounds: %w", err)
		}
	}

	return &s, nil
}
