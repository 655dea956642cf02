// Package ranking turns scores into standings: the daily rank table, the
// weekly aggregation with its two bonus categories, and the frozen weekly
// award table. Everything here is pure; persistence lives behind Repository.
package ranking

// Daily league points by rank; rank 10 and below earns nothing.
var dailyPoints = [...]int{10, 8, 7, 6, 5, 4, 3, 2, 1}

// Weekly payouts by final weekly rank; only the top 10 are ever awarded.
var weeklyPayouts = [...]int{250, 180, 150, 120, 100, 80, 60, 40, 20, 10}

// Weekly bonus values.
const (
	MostWinsBonus  = 50
	HighScoreBonus = 30
)

// AwardedPlaces is the number of places written to the weekly award table.
const AwardedPlaces = len(weeklyPayouts)

// DailyPoints returns the league points for a 1-based daily rank.
func DailyPoints(rank int) int {
	if rank < 1 || rank > len(dailyPoints) {
		return 0
	}
	return dailyPoints[rank-1]
}

// WeeklyPayout returns the payout for a 1-based weekly rank.
func WeeklyPayout(rank int) int {
	if rank < 1 || rank > len(weeklyPayouts) {
		return 0
	}
	return weeklyPayouts[rank-1]
}

// DailyPointsTable returns a copy of the daily table for rendering.
func DailyPointsTable() []int {
	return append([]int(nil), dailyPoints[:]...)
}

// WeeklyPayoutTable returns a copy of the payout table for rendering.
func WeeklyPayoutTable() []int {
	return append([]int(nil), weeklyPayouts[:]...)
}
