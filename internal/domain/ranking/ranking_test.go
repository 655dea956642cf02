package ranking

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	base      = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	weekStart = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
)

func TestDailyPoints(t *testing.T) {
	want := []int{10, 8, 7, 6, 5, 4, 3, 2, 1, 0, 0}
	for i, points := range want {
		assert.Equal(t, points, DailyPoints(i+1), "rank %d", i+1)
	}
	assert.Zero(t, DailyPoints(0))
}

func TestWeeklyPayout(t *testing.T) {
	assert.Equal(t, 250, WeeklyPayout(1))
	assert.Equal(t, 10, WeeklyPayout(10))
	assert.Zero(t, WeeklyPayout(11))
	assert.Len(t, WeeklyPayoutTable(), AwardedPlaces)
}

func TestRankGame_OrdersByScore(t *testing.T) {
	scores := []GameScore{
		{ScoreID: 1, PlayerID: 100, Score: 20000, CreatedAt: base},
		{ScoreID: 2, PlayerID: 200, Score: 15000, CreatedAt: base.Add(time.Minute)},
		{ScoreID: 3, PlayerID: 300, Score: 18000, CreatedAt: base.Add(2 * time.Minute)},
	}

	got := RankGame(623, scores)

	want := []DailyRanking{
		{GameNumber: 623, PlayerID: 100, Rank: 1, PointsAwarded: 10},
		{GameNumber: 623, PlayerID: 300, Rank: 2, PointsAwarded: 8},
		{GameNumber: 623, PlayerID: 200, Rank: 3, PointsAwarded: 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RankGame mismatch (-want +got):\n%s", diff)
	}
}

func TestRankGame_TiesKeepSubmissionOrder(t *testing.T) {
	scores := []GameScore{
		{ScoreID: 9, PlayerID: 2, Score: 19000, CreatedAt: base.Add(5 * time.Minute)},
		{ScoreID: 4, PlayerID: 1, Score: 19000, CreatedAt: base},
		{ScoreID: 7, PlayerID: 3, Score: 19000, CreatedAt: base},
	}

	got := RankGame(1, scores)

	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].PlayerID)
	assert.Equal(t, int64(3), got[1].PlayerID, "same timestamp falls back to score id")
	assert.Equal(t, int64(2), got[2].PlayerID)
}

func TestRankGame_Idempotent(t *testing.T) {
	var scores []GameScore
	for i := 0; i < 12; i++ {
		scores = append(scores, GameScore{
			ScoreID:   int64(i + 1),
			PlayerID:  int64(100 + i),
			Score:     10000 + (i%4)*1000,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	first := RankGame(5, scores)
	second := RankGame(5, reversed(scores))

	assert.Empty(t, cmp.Diff(first, second))
	assert.Zero(t, first[9].PointsAwarded)
	assert.Zero(t, first[11].PointsAwarded)
	assert.Equal(t, 12, first[11].Rank)
}

// reversed returns the same scores in reverse order.
func reversed(in []GameScore) []GameScore {
	out := make([]GameScore, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	return out
}

func TestRankGame_Empty(t *testing.T) {
	assert.Empty(t, RankGame(1, nil))
}

func TestDetermineBonuses_MostWinsTieBrokenByAverage(t *testing.T) {
	stats := []WeeklyStats{
		{PlayerID: 1, DailyWins: 3, TotalScore: 54000, GamesPlayed: 3, HighestScore: 20000, TotalPoints: 30},
		{PlayerID: 2, DailyWins: 3, TotalScore: 57000, GamesPlayed: 3, HighestScore: 19500, TotalPoints: 30},
		{PlayerID: 3, DailyWins: 1, TotalScore: 21000, GamesPlayed: 1, HighestScore: 21000, TotalPoints: 10},
	}

	winners := DetermineBonuses(stats)

	assert.Equal(t, int64(2), winners.MostWins)
	assert.Equal(t, int64(3), winners.HighScore)
}

func TestDetermineBonuses_FullTieHasNoWinner(t *testing.T) {
	stats := []WeeklyStats{
		{PlayerID: 1, DailyWins: 2, TotalScore: 40000, GamesPlayed: 2, HighestScore: 21000, TotalPoints: 20},
		{PlayerID: 2, DailyWins: 2, TotalScore: 40000, GamesPlayed: 2, HighestScore: 21000, TotalPoints: 20},
	}

	winners := DetermineBonuses(stats)

	assert.Equal(t, NoWinner, winners.MostWins)
	assert.Equal(t, NoWinner, winners.HighScore)
}

func TestDetermineBonuses_HighScoreTieBrokenByDailyWins(t *testing.T) {
	stats := []WeeklyStats{
		{PlayerID: 1, DailyWins: 1, TotalScore: 40000, GamesPlayed: 2, HighestScore: 22000, TotalPoints: 18},
		{PlayerID: 2, DailyWins: 2, TotalScore: 40000, GamesPlayed: 2, HighestScore: 22000, TotalPoints: 18},
	}

	winners := DetermineBonuses(stats)

	assert.Equal(t, int64(2), winners.HighScore)
	assert.Equal(t, int64(2), winners.MostWins)
}

func TestDetermineBonuses_NoWinsNoBonus(t *testing.T) {
	stats := []WeeklyStats{
		{PlayerID: 1, DailyWins: 0, HighestScore: 0},
		{PlayerID: 2, DailyWins: 0, HighestScore: 0},
	}

	winners := DetermineBonuses(stats)

	assert.Equal(t, NoWinner, winners.MostWins)
	assert.Equal(t, NoWinner, winners.HighScore)
	assert.Equal(t, BonusWinners{}, DetermineBonuses(nil))
}

func TestBuildWeeklyPoints_BothBonuses(t *testing.T) {
	stats := []WeeklyStats{
		{PlayerID: 1, TotalPoints: 45, DailyWins: 4, HighestScore: 24000, TotalScore: 100000, GamesPlayed: 5},
		{PlayerID: 2, TotalPoints: 30, DailyWins: 1, HighestScore: 20000, TotalScore: 90000, GamesPlayed: 5},
	}

	got := BuildWeeklyPoints(weekStart, stats)

	want := []WeeklyPoints{
		{WeekStart: weekStart, PlayerID: 1, TotalPoints: 45, DailyWins: 4, HighestScore: 24000,
			BonusPoints: 80, MostWinsBonus: true, HighScoreBonus: true},
		{WeekStart: weekStart, PlayerID: 2, TotalPoints: 30, DailyWins: 1, HighestScore: 20000},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildWeeklyPoints mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildWeeklyPoints_TotalsMatchDailySum(t *testing.T) {
	daily := map[int64][]int{
		1: {10, 8, 10},
		2: {8, 10, 7},
		3: {7, 7, 8},
	}

	var stats []WeeklyStats
	for id, pts := range daily {
		s := WeeklyStats{PlayerID: id, GamesPlayed: len(pts)}
		for _, p := range pts {
			s.TotalPoints += p
		}
		stats = append(stats, s)
	}

	for _, row := range BuildWeeklyPoints(weekStart, stats) {
		sum := 0
		for _, p := range daily[row.PlayerID] {
			sum += p
		}
		assert.Equal(t, sum, row.TotalPoints)
	}
}

func TestFinalizeAwards_Payouts(t *testing.T) {
	var points []WeeklyPoints
	for i := 0; i < 12; i++ {
		points = append(points, WeeklyPoints{
			WeekStart:   weekStart,
			PlayerID:    int64(i + 1),
			TotalPoints: 120 - i*10,
		})
	}
	points[0].BonusPoints = 50
	points[0].MostWinsBonus = true

	awards := FinalizeAwards(weekStart, points)

	require.Len(t, awards, AwardedPlaces)
	assert.Equal(t, int64(1), awards[0].PlayerID)
	assert.Equal(t, 250, awards[0].PointsAwarded)
	assert.Equal(t, 300, awards[0].TotalPoints)
	assert.Equal(t, int64(2), awards[1].PlayerID)
	assert.Equal(t, 180, awards[1].TotalPoints)
	assert.Equal(t, 10, awards[9].PointsAwarded)
	assert.True(t, awards[0].Bonus.Recorded)
	assert.True(t, awards[0].Bonus.MostWins)
}

func TestFinalizeAwards_DeterministicTies(t *testing.T) {
	points := []WeeklyPoints{
		{PlayerID: 7, TotalPoints: 50},
		{PlayerID: 3, TotalPoints: 50},
		{PlayerID: 5, TotalPoints: 50, HighestScore: 23000},
		{PlayerID: 9, TotalPoints: 50, BonusPoints: 30},
	}

	first := FinalizeAwards(weekStart, points)
	second := FinalizeAwards(weekStart, []WeeklyPoints{points[2], points[0], points[3], points[1]})

	assert.Empty(t, cmp.Diff(first, second))
	ids := []int64{first[0].PlayerID, first[1].PlayerID, first[2].PlayerID, first[3].PlayerID}
	assert.Equal(t, []int64{9, 5, 3, 7}, ids)
}

func TestWeeklyAward_BonusLabels(t *testing.T) {
	tests := []struct {
		name          string
		award         WeeklyAward
		wantMostWins  bool
		wantHighScore bool
	}{
		{"recorded high score only", WeeklyAward{BonusPoints: 30, Bonus: BonusFlags{HighScore: true, Recorded: true}}, false, true},
		{"recorded overrides total", WeeklyAward{BonusPoints: 80, Bonus: BonusFlags{MostWins: true, Recorded: true}}, true, false},
		{"legacy none", WeeklyAward{BonusPoints: 0}, false, false},
		{"legacy high score", WeeklyAward{BonusPoints: 30}, false, true},
		{"legacy most wins", WeeklyAward{BonusPoints: 50}, true, false},
		{"legacy both", WeeklyAward{BonusPoints: 80}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mostWins, highScore := tt.award.BonusLabels()
			assert.Equal(t, tt.wantMostWins, mostWins)
			assert.Equal(t, tt.wantHighScore, highScore)
		})
	}
}
