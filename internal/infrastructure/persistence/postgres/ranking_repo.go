package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RankingRepository implements ranking.Repository on top of a Querier, so the
// same statements run on the pool or inside a transaction.
type RankingRepository struct {
	q   Querier
	loc *time.Location
}

// NewRankingRepository creates a RankingRepository bound to the pool.
// DATE columns are read back as midnight in loc.
func NewRankingRepository(conn *Connection, loc *time.Location) *RankingRepository {
	return &RankingRepository{q: conn, loc: loc}
}

// RankingTransactor implements ranking.Transactor.
type RankingTransactor struct {
	conn *Connection
	loc  *time.Location
}

// NewRankingTransactor creates a RankingTransactor.
func NewRankingTransactor(conn *Connection, loc *time.Location) *RankingTransactor {
	return &RankingTransactor{conn: conn, loc: loc}
}

// WithinTx runs fn with a repository bound to one transaction.
func (t *RankingTransactor) WithinTx(ctx context.Context, fn func(repo ranking.Repository) error) error {
	return t.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(&RankingRepository{q: tx, loc: t.loc})
	})
}

// dateParam renders a calendar date for DATE columns without zone shifts.
func dateParam(t time.Time) string {
	return t.Format(timeutil.DateLayout)
}

// localDate reinterprets a scanned DATE as midnight in loc.
func localDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ─────────────────────────────────────────────────────────────────────────────
// Daily
// ─────────────────────────────────────────────────────────────────────────────

// GameScores returns every score of a game in submission order.
func (r *RankingRepository) GameScores(ctx context.Context, gameNumber int) ([]ranking.GameScore, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, player_id, score, created_at
		FROM scores
		WHERE game_number = $1
		ORDER BY created_at, id
	`, gameNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query game scores: %w", err)
	}
	defer rows.Close()

	var scores []ranking.GameScore
	for rows.Next() {
		var s ranking.GameScore
		if err := rows.Scan(&s.ScoreID, &s.PlayerID, &s.Score, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game score: %w", err)
		}
		scores = append(scores, s)
	}

	return scores, rows.Err()
}

// UpsertDailyRankings overwrites rank and points per (game, player).
// created_at keeps the first ranking time; the weekly window reads it.
func (r *RankingRepository) UpsertDailyRankings(ctx context.Context, rankings []ranking.DailyRanking) error {
	batch := &pgx.Batch{}
	for _, dr := range rankings {
		batch.Queue(`
			INSERT INTO daily_rankings (game_number, player_id, rank, points_awarded)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (game_number, player_id) DO UPDATE
			SET rank = EXCLUDED.rank,
			    points_awarded = EXCLUDED.points_awarded,
			    updated_at = NOW()
		`, dr.GameNumber, dr.PlayerID, dr.Rank, dr.PointsAwarded)
	}

	if err := execBatch(ctx, r.q, batch); err != nil {
		return fmt.Errorf("failed to upsert daily rankings: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Weekly
// ─────────────────────────────────────────────────────────────────────────────

// WeeklyStats aggregates daily rankings created in [from, to) with their scores.
func (r *RankingRepository) WeeklyStats(ctx context.Context, from, to time.Time) ([]ranking.WeeklyStats, error) {
	rows, err := r.q.Query(ctx, `
		SELECT
			p.id,
			p.name,
			COALESCE(SUM(dr.points_awarded), 0),
			COUNT(*) FILTER (WHERE dr.rank = 1),
			COALESCE(MAX(s.score), 0),
			COALESCE(SUM(s.score), 0),
			COUNT(DISTINCT dr.game_number)
		FROM daily_rankings dr
		JOIN scores s ON s.player_id = dr.player_id AND s.game_number = dr.game_number
		JOIN players p ON p.id = dr.player_id
		WHERE dr.created_at >= $1 AND dr.created_at < $2
		GROUP BY p.id, p.name
		ORDER BY 3 DESC, p.id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly stats: %w", err)
	}
	defer rows.Close()

	var stats []ranking.WeeklyStats
	for rows.Next() {
		var s ranking.WeeklyStats
		if err := rows.Scan(
			&s.PlayerID,
			&s.Name,
			&s.TotalPoints,
			&s.DailyWins,
			&s.HighestScore,
			&s.TotalScore,
			&s.GamesPlayed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan weekly stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// UpsertWeeklyPoints overwrites the week's rows and drops players no longer in it.
func (r *RankingRepository) UpsertWeeklyPoints(ctx context.Context, weekStart time.Time, points []ranking.WeeklyPoints) error {
	week := dateParam(weekStart)
	keep := make([]int64, 0, len(points))

	batch := &pgx.Batch{}
	for _, wp := range points {
		keep = append(keep, wp.PlayerID)
		batch.Queue(`
			INSERT INTO weekly_points (
				week_start, player_id, total_points, daily_wins, highest_score,
				bonus_points, most_wins_bonus, high_score_bonus
			) VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (week_start, player_id) DO UPDATE
			SET total_points = EXCLUDED.total_points,
			    daily_wins = EXCLUDED.daily_wins,
			    highest_score = EXCLUDED.highest_score,
			    bonus_points = EXCLUDED.bonus_points,
			    most_wins_bonus = EXCLUDED.most_wins_bonus,
			    high_score_bonus = EXCLUDED.high_score_bonus,
			    updated_at = NOW()
		`,
			week,
			wp.PlayerID,
			wp.TotalPoints,
			wp.DailyWins,
			wp.HighestScore,
			wp.BonusPoints,
			wp.MostWinsBonus,
			wp.HighScoreBonus,
		)
	}
	batch.Queue(`
		DELETE FROM weekly_points
		WHERE week_start = $1::date AND NOT (player_id = ANY($2))
	`, week, keep)

	if err := execBatch(ctx, r.q, batch); err != nil {
		return fmt.Errorf("failed to upsert weekly points: %w", err)
	}
	return nil
}

// WeeklyPoints returns the stored weekly rows of a week.
func (r *RankingRepository) WeeklyPoints(ctx context.Context, weekStart time.Time) ([]ranking.WeeklyPoints, error) {
	rows, err := r.q.Query(ctx, `
		SELECT week_start, player_id, total_points, daily_wins, highest_score,
		       bonus_points, most_wins_bonus, high_score_bonus
		FROM weekly_points
		WHERE week_start = $1::date
		ORDER BY total_points DESC, player_id
	`, dateParam(weekStart))
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly points: %w", err)
	}
	defer rows.Close()

	var points []ranking.WeeklyPoints
	for rows.Next() {
		var wp ranking.WeeklyPoints
		if err := rows.Scan(
			&wp.WeekStart,
			&wp.PlayerID,
			&wp.TotalPoints,
			&wp.DailyWins,
			&wp.HighestScore,
			&wp.BonusPoints,
			&wp.MostWinsBonus,
			&wp.HighScoreBonus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan weekly points: %w", err)
		}
		wp.WeekStart = localDate(wp.WeekStart, r.loc)
		points = append(points, wp)
	}

	return points, rows.Err()
}

// UpsertWeeklyAwards overwrites the week's award table.
func (r *RankingRepository) UpsertWeeklyAwards(ctx context.Context, weekStart time.Time, awards []ranking.WeeklyAward) error {
	week := dateParam(weekStart)
	keep := make([]int64, 0, len(awards))

	batch := &pgx.Batch{}
	for _, a := range awards {
		keep = append(keep, a.PlayerID)
		batch.Queue(`
			INSERT INTO weekly_awards (
				week_start, player_id, rank, points_awarded, bonus_points,
				total_points, highest_score, most_wins_bonus, high_score_bonus
			) VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (week_start, player_id) DO UPDATE
			SET rank = EXCLUDED.rank,
			    points_awarded = EXCLUDED.points_awarded,
			    bonus_points = EXCLUDED.bonus_points,
			    total_points = EXCLUDED.total_points,
			    highest_score = EXCLUDED.highest_score,
			    most_wins_bonus = EXCLUDED.most_wins_bonus,
			    high_score_bonus = EXCLUDED.high_score_bonus
		`,
			week,
			a.PlayerID,
			a.Rank,
			a.PointsAwarded,
			a.BonusPoints,
			a.TotalPoints,
			a.HighestScore,
			a.Bonus.MostWins,
			a.Bonus.HighScore,
		)
	}
	batch.Queue(`
		DELETE FROM weekly_awards
		WHERE week_start = $1::date AND NOT (player_id = ANY($2))
	`, week, keep)

	if err := execBatch(ctx, r.q, batch); err != nil {
		return fmt.Errorf("failed to upsert weekly awards: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ReportRepository implements ranking.ReadRepository for PostgreSQL.
type ReportRepository struct {
	conn *Connection
	loc  *time.Location
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(conn *Connection, loc *time.Location) *ReportRepository {
	return &ReportRepository{conn: conn, loc: loc}
}

// DailyBoard returns the ranked entries of a game.
func (r *ReportRepository) DailyBoard(ctx context.Context, gameNumber, limit int) ([]ranking.DailyEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT p.id, p.name, dr.rank, s.score, s.percentage::float8, dr.points_awarded
		FROM daily_rankings dr
		JOIN scores s ON s.player_id = dr.player_id AND s.game_number = dr.game_number
		JOIN players p ON p.id = dr.player_id
		WHERE dr.game_number = $1
		ORDER BY dr.rank
		LIMIT NULLIF($2::int, 0)
	`, gameNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily board: %w", err)
	}
	defer rows.Close()

	var entries []ranking.DailyEntry
	for rows.Next() {
		var e ranking.DailyEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.Rank, &e.Score, &e.Percentage, &e.PointsAwarded); err != nil {
			return nil, fmt.Errorf("failed to scan daily entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GameSummary returns the averages and participation of a game.
func (r *ReportRepository) GameSummary(ctx context.Context, gameNumber int) (ranking.GameSummary, error) {
	summary := ranking.GameSummary{GameNumber: gameNumber}
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(score), 0)::float8, COALESCE(AVG(percentage), 0)::float8
		FROM scores
		WHERE game_number = $1
	`, gameNumber).Scan(&summary.Players, &summary.AverageScore, &summary.AverageAccuracy)
	if err != nil {
		return summary, fmt.Errorf("failed to get game summary: %w", err)
	}
	return summary, nil
}

// LatestAwardWeek returns the most recent finalized week.
func (r *ReportRepository) LatestAwardWeek(ctx context.Context) (time.Time, error) {
	var week *time.Time
	if err := r.conn.QueryRow(ctx, `SELECT MAX(week_start) FROM weekly_awards`).Scan(&week); err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest award week: %w", err)
	}
	if week == nil {
		return time.Time{}, shared.ErrNoFinalizedWeek
	}
	return localDate(*week, r.loc), nil
}

// WeeklyAwards returns the frozen award table of a week, by rank.
func (r *ReportRepository) WeeklyAwards(ctx context.Context, weekStart time.Time) ([]ranking.AwardEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT wa.week_start, wa.player_id, p.name, wa.rank, wa.points_awarded, wa.bonus_points,
		       wa.total_points, wa.highest_score, wa.most_wins_bonus, wa.high_score_bonus
		FROM weekly_awards wa
		JOIN players p ON p.id = wa.player_id
		WHERE wa.week_start = $1::date
		ORDER BY wa.rank
	`, dateParam(weekStart))
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly awards: %w", err)
	}
	defer rows.Close()

	var entries []ranking.AwardEntry
	for rows.Next() {
		var (
			e                   ranking.AwardEntry
			mostWins, highScore *bool
		)
		if err := rows.Scan(
			&e.WeekStart,
			&e.PlayerID,
			&e.Name,
			&e.Rank,
			&e.PointsAwarded,
			&e.BonusPoints,
			&e.TotalPoints,
			&e.HighestScore,
			&mostWins,
			&highScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan weekly award: %w", err)
		}
		e.WeekStart = localDate(e.WeekStart, r.loc)
		if mostWins != nil && highScore != nil {
			e.Bonus = ranking.BonusFlags{MostWins: *mostWins, HighScore: *highScore, Recorded: true}
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// AllTime sums awards per player across finalized weeks. limit 0 returns everyone.
func (r *ReportRepository) AllTime(ctx context.Context, limit int) ([]ranking.AllTimeEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT
			p.id,
			p.name,
			SUM(wa.total_points),
			SUM(wa.points_awarded),
			SUM(wa.bonus_points),
			MAX(wa.highest_score),
			COUNT(*)
		FROM weekly_awards wa
		JOIN players p ON p.id = wa.player_id
		GROUP BY p.id, p.name
		ORDER BY 3 DESC, 6 DESC, p.id
		LIMIT NULLIF($1::int, 0)
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query all-time standings: %w", err)
	}
	defer rows.Close()

	var entries []ranking.AllTimeEntry
	for rows.Next() {
		var e ranking.AllTimeEntry
		if err := rows.Scan(
			&e.PlayerID,
			&e.Name,
			&e.TotalPoints,
			&e.Payouts,
			&e.BonusPoints,
			&e.HighestScore,
			&e.Weeks,
		); err != nil {
			return nil, fmt.Errorf("failed to scan all-time entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
