package ranking

import (
	"sort"
	"time"
)

// GameScore is one score of a game as seen by the daily ranking.
type GameScore struct {
	ScoreID   int64
	PlayerID  int64
	Score     int
	CreatedAt time.Time
}

// DailyRanking is the rank and points of a player for one game.
type DailyRanking struct {
	GameNumber    int
	PlayerID      int64
	Rank          int
	PointsAwarded int
}

// RankGame orders a game's scores and assigns positional ranks 1..N.
// Equal scores keep submission order: the earlier submission ranks higher.
// The input slice is not modified.
func RankGame(gameNumber int, scores []GameScore) []DailyRanking {
	ordered := append([]GameScore(nil), scores...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ScoreID < b.ScoreID
	})

	rankings := make([]DailyRanking, len(ordered))
	for i, s := range ordered {
		rank := i + 1
		rankings[i] = DailyRanking{
			GameNumber:    gameNumber,
			PlayerID:      s.PlayerID,
			Rank:          rank,
			PointsAwarded: DailyPoints(rank),
		}
	}
	return rankings
}

// FindPlayer returns the ranking row for a player, if present.
func FindPlayer(rankings []DailyRanking, playerID int64) (DailyRanking, bool) {
	for _, r := range rankings {
		if r.PlayerID == playerID {
			return r, true
		}
	}
	return DailyRanking{}, false
}
