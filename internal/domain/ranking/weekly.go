package ranking

import (
	"time"
)

// NoWinner marks a bonus category nobody won.
const NoWinner int64 = 0

// WeeklyStats is one player's aggregate over a game week.
type WeeklyStats struct {
	PlayerID     int64
	Name         string
	TotalPoints  int
	DailyWins    int
	HighestScore int
	TotalScore   int
	GamesPlayed  int
}

// AverageScore is the mean daily score; it only serves as a tie-break.
func (s WeeklyStats) AverageScore() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.GamesPlayed)
}

// BonusWinners holds the player id of each bonus category, or NoWinner.
type BonusWinners struct {
	MostWins  int64
	HighScore int64
}

// For returns the flags and bonus total a player earned.
func (w BonusWinners) For(playerID int64) (mostWins, highScore bool, points int) {
	mostWins = w.MostWins != NoWinner && w.MostWins == playerID
	highScore = w.HighScore != NoWinner && w.HighScore == playerID
	if mostWins {
		points += MostWinsBonus
	}
	if highScore {
		points += HighScoreBonus
	}
	return mostWins, highScore, points
}

// WeeklyPoints is the materialized weekly standing of a player.
type WeeklyPoints struct {
	WeekStart      time.Time
	PlayerID       int64
	TotalPoints    int
	DailyWins      int
	HighestScore   int
	BonusPoints    int
	MostWinsBonus  bool
	HighScoreBonus bool
}

type compareFunc func(a, b WeeklyStats) int

func compareInts(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// byAverage compares mean scores exactly by cross-multiplying totals.
func byAverage(a, b WeeklyStats) int {
	if a.GamesPlayed == 0 || b.GamesPlayed == 0 {
		return compareInts(a.GamesPlayed, b.GamesPlayed)
	}
	return compareInts(a.TotalScore*b.GamesPlayed, b.TotalScore*a.GamesPlayed)
}

func byDailyWins(a, b WeeklyStats) int    { return compareInts(a.DailyWins, b.DailyWins) }
func byHighestScore(a, b WeeklyStats) int { return compareInts(a.HighestScore, b.HighestScore) }
func byTotalPoints(a, b WeeklyStats) int  { return compareInts(a.TotalPoints, b.TotalPoints) }

// DetermineBonuses picks at most one winner per bonus category.
//
// Most wins: players at the week's maximum daily wins (> 0), tie broken by
// average score, then highest score, then total points.
// Highest score: players at the week's maximum single score (> 0), tie broken
// by average score, then daily wins, then total points.
// A tie that survives the whole chain has no winner.
func DetermineBonuses(stats []WeeklyStats) BonusWinners {
	return BonusWinners{
		MostWins:  pickWinner(stats, byDailyWins, byAverage, byHighestScore, byTotalPoints),
		HighScore: pickWinner(stats, byHighestScore, byAverage, byDailyWins, byTotalPoints),
	}
}

// pickWinner narrows candidates to the leaders of primary, then applies each
// tie-break in order until a single leader remains.
func pickWinner(stats []WeeklyStats, primary compareFunc, tieBreaks ...compareFunc) int64 {
	candidates := leaders(stats, primary)
	if len(candidates) == 0 || primary(candidates[0], WeeklyStats{}) <= 0 {
		return NoWinner
	}

	for _, cmp := range tieBreaks {
		if len(candidates) == 1 {
			break
		}
		candidates = leaders(candidates, cmp)
	}

	if len(candidates) != 1 {
		return NoWinner
	}
	return candidates[0].PlayerID
}

// leaders returns every element that ties for the maximum under cmp.
func leaders(stats []WeeklyStats, cmp compareFunc) []WeeklyStats {
	if len(stats) == 0 {
		return nil
	}
	best := stats[0]
	for _, s := range stats[1:] {
		if cmp(s, best) > 0 {
			best = s
		}
	}
	var out []WeeklyStats
	for _, s := range stats {
		if cmp(s, best) == 0 {
			out = append(out, s)
		}
	}
	return out
}

// BuildWeeklyPoints materializes one WeeklyPoints row per player.
func BuildWeeklyPoints(weekStart time.Time, stats []WeeklyStats) []WeeklyPoints {
	winners := DetermineBonuses(stats)
	points := make([]WeeklyPoints, 0, len(stats))
	for _, s := range stats {
		mostWins, highScore, bonus := winners.For(s.PlayerID)
		points = append(points, WeeklyPoints{
			WeekStart:      weekStart,
			PlayerID:       s.PlayerID,
			TotalPoints:    s.TotalPoints,
			DailyWins:      s.DailyWins,
			HighestScore:   s.HighestScore,
			BonusPoints:    bonus,
			MostWinsBonus:  mostWins,
			HighScoreBonus: highScore,
		})
	}
	return points
}
