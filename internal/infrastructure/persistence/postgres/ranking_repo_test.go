package postgres

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/player"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/score"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// testDatabaseEnv names a postgres:// URL for the SQL tests. They skip when
// it is unset.
const testDatabaseEnv = "LEAGUE_TEST_DATABASE_URL"

// testConnection returns a migrated connection whose search_path is a fresh
// schema, dropped when the test ends.
func testConnection(t *testing.T) *Connection {
	t.Helper()

	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		t.Skip(testDatabaseEnv + " not set")
	}
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.URL = dsn
	admin, err := NewConnection(ctx, cfg)
	require.NoError(t, err)

	schema := "league_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	cfg.URL = u.String()

	conn, err := NewConnection(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	return conn
}

type fixture struct {
	t      *testing.T
	conn   *Connection
	loc    *time.Location
	scores *ScoreRepository
	repo   *RankingRepository
}

func newFixture(t *testing.T) *fixture {
	conn := testConnection(t)
	loc := timeutil.MustLoadLocation(timeutil.DefaultTimezone)
	return &fixture{
		t:      t,
		conn:   conn,
		loc:    loc,
		scores: NewScoreRepository(conn),
		repo:   NewRankingRepository(conn, loc),
	}
}

func (f *fixture) player(telegramID int64, name string) *player.Player {
	p := &player.Player{TelegramID: telegramID, Name: name}
	require.NoError(f.t, NewPlayerRepository(f.conn).Upsert(context.Background(), p))
	return p
}

// played stores a score and its daily ranking, ranked at rankedAt.
func (f *fixture) played(p *player.Player, game, value, rank, points int, rankedAt time.Time) {
	ctx := context.Background()
	s := &score.Score{
		GameNumber: game,
		Value:      value,
		MaxScore:   25000,
		Percentage: float64(value) / 250,
		RawText:    "TimeGuessr",
		CreatedAt:  rankedAt,
	}
	require.NoError(f.t, f.scores.SaveSubmission(ctx, p, s))
	require.NoError(f.t, f.repo.UpsertDailyRankings(ctx, []ranking.DailyRanking{
		{GameNumber: game, PlayerID: p.ID, Rank: rank, PointsAwarded: points},
	}))
	_, err := f.conn.Exec(ctx, `
		UPDATE daily_rankings SET created_at = $1 WHERE game_number = $2 AND player_id = $3
	`, rankedAt, game, p.ID)
	require.NoError(f.t, err)
}

func (f *fixture) at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, f.loc)
}

func TestRankingRepository_WeeklyStats(t *testing.T) {
	f := newFixture(t)
	ana := f.player(1001, "Ana")
	ivo := f.player(1002, "Ivo")

	// Sunday night before the week opens; belongs to the previous week.
	f.played(ana, 99, 25000, 1, 10, f.at(2024, time.June, 9, 23, 30))
	f.played(ana, 100, 20000, 1, 10, f.at(2024, time.June, 10, 12, 0))
	f.played(ivo, 100, 18000, 2, 7, f.at(2024, time.June, 10, 12, 5))
	f.played(ivo, 101, 24000, 1, 10, f.at(2024, time.June, 11, 9, 0))
	f.played(ana, 101, 15000, 2, 7, f.at(2024, time.June, 11, 9, 5))
	// Ranked after the close; belongs to the next week.
	f.played(ivo, 107, 22000, 1, 10, f.at(2024, time.June, 17, 0, 1))

	from := f.at(2024, time.June, 10, 0, 0)
	stats, err := f.repo.WeeklyStats(context.Background(), from, from.AddDate(0, 0, 7))
	require.NoError(t, err)

	want := []ranking.WeeklyStats{
		{PlayerID: ana.ID, Name: "Ana", TotalPoints: 17, DailyWins: 1, HighestScore: 20000, TotalScore: 35000, GamesPlayed: 2},
		{PlayerID: ivo.ID, Name: "Ivo", TotalPoints: 17, DailyWins: 1, HighestScore: 24000, TotalScore: 42000, GamesPlayed: 2},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("WeeklyStats mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 17500.0, stats[0].AverageScore(), 0.001)
	assert.InDelta(t, 21000.0, stats[1].AverageScore(), 0.001)
}

func TestRankingRepository_WeeklyStats_EmptyWeek(t *testing.T) {
	f := newFixture(t)
	ana := f.player(1001, "Ana")
	f.played(ana, 99, 25000, 1, 10, f.at(2024, time.June, 9, 12, 0))

	from := f.at(2024, time.June, 10, 0, 0)
	stats, err := f.repo.WeeklyStats(context.Background(), from, from.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestReportRepository_AllTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.player(1001, "Ana")
	ivo := f.player(1002, "Ivo")
	f.player(1003, "Mara")

	first := f.at(2024, time.June, 3, 0, 0)
	second := f.at(2024, time.June, 10, 0, 0)
	require.NoError(t, f.repo.UpsertWeeklyAwards(ctx, first, []ranking.WeeklyAward{
		{PlayerID: ana.ID, Rank: 1, PointsAwarded: 10, BonusPoints: 5, TotalPoints: 15, HighestScore: 25000, Bonus: ranking.BonusFlags{MostWins: true}},
		{PlayerID: ivo.ID, Rank: 2, PointsAwarded: 7, TotalPoints: 7, HighestScore: 18000},
	}))
	require.NoError(t, f.repo.UpsertWeeklyAwards(ctx, second, []ranking.WeeklyAward{
		{PlayerID: ivo.ID, Rank: 1, PointsAwarded: 10, BonusPoints: 3, TotalPoints: 13, HighestScore: 24000, Bonus: ranking.BonusFlags{HighScore: true}},
		{PlayerID: ana.ID, Rank: 2, PointsAwarded: 7, TotalPoints: 7, HighestScore: 20000},
	}))

	reports := NewReportRepository(f.conn, f.loc)

	entries, err := reports.AllTime(ctx, 0)
	require.NoError(t, err)
	want := []ranking.AllTimeEntry{
		{PlayerID: ana.ID, Name: "Ana", TotalPoints: 22, Payouts: 17, BonusPoints: 5, HighestScore: 25000, Weeks: 2},
		{PlayerID: ivo.ID, Name: "Ivo", TotalPoints: 20, Payouts: 17, BonusPoints: 3, HighestScore: 24000, Weeks: 2},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("AllTime mismatch (-want +got):\n%s", diff)
	}

	top, err := reports.AllTime(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, ana.ID, top[0].PlayerID)

	latest, err := reports.LatestAwardWeek(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Equal(second), "latest week %s", latest)

	awards, err := reports.WeeklyAwards(ctx, second)
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, ivo.ID, awards[0].PlayerID)
	assert.Equal(t, ranking.BonusFlags{HighScore: true, Recorded: true}, awards[0].Bonus)
}

func TestReportRepository_AllTime_RewrittenWeekDropsPlayers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.player(1001, "Ana")
	ivo := f.player(1002, "Ivo")

	week := f.at(2024, time.June, 10, 0, 0)
	require.NoError(t, f.repo.UpsertWeeklyAwards(ctx, week, []ranking.WeeklyAward{
		{PlayerID: ana.ID, Rank: 1, PointsAwarded: 10, TotalPoints: 10, HighestScore: 20000},
		{PlayerID: ivo.ID, Rank: 2, PointsAwarded: 7, TotalPoints: 7, HighestScore: 18000},
	}))
	require.NoError(t, f.repo.UpsertWeeklyAwards(ctx, week, []ranking.WeeklyAward{
		{PlayerID: ivo.ID, Rank: 1, PointsAwarded: 10, TotalPoints: 10, HighestScore: 24000},
	}))

	entries, err := NewReportRepository(f.conn, f.loc).AllTime(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ivo.ID, entries[0].PlayerID)
	assert.Equal(t, 10, entries[0].TotalPoints)
}
