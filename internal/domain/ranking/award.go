package ranking

import (
	"sort"
	"time"
)

// BonusFlags records which bonus categories a weekly award included.
// Recorded is false for rows written before the flags existed.
type BonusFlags struct {
	MostWins  bool
	HighScore bool
	Recorded  bool
}

// WeeklyAward is one row of the frozen weekly result table.
// TotalPoints is the payout plus the bonus, not the week's league points.
type WeeklyAward struct {
	WeekStart     time.Time
	PlayerID      int64
	Rank          int
	PointsAwarded int
	BonusPoints   int
	TotalPoints   int
	HighestScore  int
	Bonus         BonusFlags
}

// BonusLabels reports which bonuses to show next to this award.
// Legacy rows without flags fall back to reading the bonus total: a total
// of at least MostWinsBonus implies the most-wins bonus, and what remains
// implies the high-score bonus when it reaches HighScoreBonus.
func (a WeeklyAward) BonusLabels() (mostWins, highScore bool) {
	if a.Bonus.Recorded {
		return a.Bonus.MostWins, a.Bonus.HighScore
	}
	rest := a.BonusPoints
	if rest >= MostWinsBonus {
		mostWins = true
		rest -= MostWinsBonus
	}
	return mostWins, rest >= HighScoreBonus
}

// SortWeekly orders weekly rows for finalization: total points desc, then
// bonus points, then highest score, then player id ascending.
func SortWeekly(points []WeeklyPoints) []WeeklyPoints {
	ordered := append([]WeeklyPoints(nil), points...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.BonusPoints != b.BonusPoints {
			return a.BonusPoints > b.BonusPoints
		}
		if a.HighestScore != b.HighestScore {
			return a.HighestScore > b.HighestScore
		}
		return a.PlayerID < b.PlayerID
	})
	return ordered
}

// FinalizeAwards freezes the top AwardedPlaces weekly rows into awards.
func FinalizeAwards(weekStart time.Time, points []WeeklyPoints) []WeeklyAward {
	ordered := SortWeekly(points)
	if len(ordered) > AwardedPlaces {
		ordered = ordered[:AwardedPlaces]
	}

	awards := make([]WeeklyAward, len(ordered))
	for i, p := range ordered {
		rank := i + 1
		payout := WeeklyPayout(rank)
		awards[i] = WeeklyAward{
			WeekStart:     weekStart,
			PlayerID:      p.PlayerID,
			Rank:          rank,
			PointsAwarded: payout,
			BonusPoints:   p.BonusPoints,
			TotalPoints:   payout + p.BonusPoints,
			HighestScore:  p.HighestScore,
			Bonus: BonusFlags{
				MostWins:  p.MostWinsBonus,
				HighScore: p.HighScoreBonus,
				Recorded:  true,
			},
		}
	}
	return awards
}
