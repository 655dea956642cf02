package ranking

import (
	"context"
	"time"
)

// Repository reads ranking inputs and writes the derived tables.
// Upserts overwrite existing rows with the same natural key. The weekly
// upserts also drop rows of that week whose player is no longer in the set.
type Repository interface {
	// GameScores returns every score of a game, in any order.
	GameScores(ctx context.Context, gameNumber int) ([]GameScore, error)
	UpsertDailyRankings(ctx context.Context, rankings []DailyRanking) error

	// WeeklyStats aggregates daily rankings created in [from, to).
	WeeklyStats(ctx context.Context, from, to time.Time) ([]WeeklyStats, error)
	UpsertWeeklyPoints(ctx context.Context, weekStart time.Time, points []WeeklyPoints) error
	WeeklyPoints(ctx context.Context, weekStart time.Time) ([]WeeklyPoints, error)

	UpsertWeeklyAwards(ctx context.Context, weekStart time.Time, awards []WeeklyAward) error
}

// Transactor runs fn against a Repository bound to one transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

// ═══════════════════════════════════════════════════════════════════════════
// READ MODELS
// ═══════════════════════════════════════════════════════════════════════════

// DailyEntry is one line of the daily board.
type DailyEntry struct {
	PlayerID      int64
	Name          string
	Rank          int
	Score         int
	Percentage    float64
	PointsAwarded int
}

// GameSummary aggregates all scores of one game.
type GameSummary struct {
	GameNumber      int
	AverageScore    float64
	AverageAccuracy float64
	Players         int
}

// AwardEntry is a frozen weekly award joined with the player name.
type AwardEntry struct {
	WeeklyAward
	Name string
}

// AllTimeEntry sums a player's awards across every finalized week.
type AllTimeEntry struct {
	PlayerID     int64
	Name         string
	TotalPoints  int
	Payouts      int
	BonusPoints  int
	HighestScore int
	Weeks        int
}

// ReadRepository serves the report views.
type ReadRepository interface {
	DailyBoard(ctx context.Context, gameNumber, limit int) ([]DailyEntry, error)
	GameSummary(ctx context.Context, gameNumber int) (GameSummary, error)

	// LatestAwardWeek returns shared.ErrNoFinalizedWeek when nothing was finalized yet.
	LatestAwardWeek(ctx context.Context) (time.Time, error)
	WeeklyAwards(ctx context.Context, weekStart time.Time) ([]AwardEntry, error)
	AllTime(ctx context.Context, limit int) ([]AllTimeEntry, error)
}
