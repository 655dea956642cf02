// Package query contains read operations following CQRS pattern.
// Each view is a self-contained use case with its own result type.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/player"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/score"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// BoardSize is the number of entries shown by every board.
const BoardSize = 10

// ══════════════════════════════════════════════════════════════════════════════
// VIEW MODELS
// ══════════════════════════════════════════════════════════════════════════════

// DailyView is the board of the game being played today.
// GameNumber is 0 when nobody has played yet.
type DailyView struct {
	GameNumber      int
	Entries         []ranking.DailyEntry
	AverageScore    float64
	AverageAccuracy float64
	PlayedToday     int
	TotalPlayers    int
}

// IsEmpty reports whether there is nothing to show yet.
func (v *DailyView) IsEmpty() bool {
	return v.GameNumber == 0 || len(v.Entries) == 0
}

// WeeklyEntry is one line of a weekly board.
type WeeklyEntry struct {
	Rank         int
	PlayerID     int64
	Name         string
	TotalPoints  int
	DailyWins    int
	HighestScore int
	GamesPlayed  int
	MostWins     bool
	HighScore    bool

	// Snapshot only.
	Payout      int
	BonusPoints int
	AwardTotal  int
}

// WeeklyView is the live or the finalized weekly board.
// Final is false while the week is still open and bonuses may change.
type WeeklyView struct {
	WeekStart time.Time
	Entries   []WeeklyEntry
	Final     bool
}

// IsEmpty reports whether there is nothing to show yet.
func (v *WeeklyView) IsEmpty() bool {
	return len(v.Entries) == 0
}

// AllTimeView is the cross-week standings table.
type AllTimeView struct {
	Entries []ranking.AllTimeEntry
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardService renders the four report views.
type LeaderboardService struct {
	reports  ranking.ReadRepository
	rankings ranking.Repository
	scores   score.Repository
	players  player.Repository
	location *time.Location
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(
	reports ranking.ReadRepository,
	rankings ranking.Repository,
	scores score.Repository,
	players player.Repository,
	location *time.Location,
) *LeaderboardService {
	return &LeaderboardService{
		reports:  reports,
		rankings: rankings,
		scores:   scores,
		players:  players,
		location: location,
	}
}

// Daily returns today's game board.
func (s *LeaderboardService) Daily(ctx context.Context, now time.Time) (*DailyView, error) {
	from := timeutil.GameDayStart(now, s.location)
	to := timeutil.GameDayEnd(now, s.location)

	game, ok, err := s.scores.MaxGameNumberBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily: resolve game: %w", err)
	}

	total, err := s.players.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("daily: count players: %w", err)
	}

	view := &DailyView{TotalPlayers: total}
	if !ok {
		return view, nil
	}
	view.GameNumber = game

	view.Entries, err = s.reports.DailyBoard(ctx, game, BoardSize)
	if err != nil {
		return nil, fmt.Errorf("daily: board: %w", err)
	}

	summary, err := s.reports.GameSummary(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("daily: summary: %w", err)
	}
	view.AverageScore = summary.AverageScore
	view.AverageAccuracy = summary.AverageAccuracy
	view.PlayedToday = summary.Players

	return view, nil
}

// WeeklyLive recomputes the open week on demand. Nothing is persisted and
// the bonus labels are provisional.
func (s *LeaderboardService) WeeklyLive(ctx context.Context, now time.Time) (*WeeklyView, error) {
	weekStart := timeutil.StartOfWeek(now, s.location)

	stats, err := s.rankings.WeeklyStats(ctx, weekStart, timeutil.WeekEnd(weekStart))
	if err != nil {
		return nil, fmt.Errorf("weekly live: %w", err)
	}

	winners := ranking.DetermineBonuses(stats)

	ordered := append([]ranking.WeeklyStats(nil), stats...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.DailyWins != b.DailyWins {
			return a.DailyWins > b.DailyWins
		}
		return a.PlayerID < b.PlayerID
	})
	if len(ordered) > BoardSize {
		ordered = ordered[:BoardSize]
	}

	view := &WeeklyView{WeekStart: weekStart}
	for i, st := range ordered {
		mostWins, highScore, _ := winners.For(st.PlayerID)
		view.Entries = append(view.Entries, WeeklyEntry{
			Rank:         i + 1,
			PlayerID:     st.PlayerID,
			Name:         st.Name,
			TotalPoints:  st.TotalPoints,
			DailyWins:    st.DailyWins,
			HighestScore: st.HighestScore,
			GamesPlayed:  st.GamesPlayed,
			MostWins:     mostWins,
			HighScore:    highScore,
		})
	}

	return view, nil
}

// WeeklySnapshot returns the most recently finalized week. An empty view
// with a zero WeekStart means no week was finalized yet.
func (s *LeaderboardService) WeeklySnapshot(ctx context.Context) (*WeeklyView, error) {
	weekStart, err := s.reports.LatestAwardWeek(ctx)
	if shared.IsNotFound(err) {
		return &WeeklyView{Final: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("weekly snapshot: %w", err)
	}

	awards, err := s.reports.WeeklyAwards(ctx, weekStart)
	if err != nil {
		return nil, fmt.Errorf("weekly snapshot: awards: %w", err)
	}

	view := &WeeklyView{WeekStart: weekStart, Final: true}
	for _, a := range awards {
		mostWins, highScore := a.BonusLabels()
		view.Entries = append(view.Entries, WeeklyEntry{
			Rank:         a.Rank,
			PlayerID:     a.PlayerID,
			Name:         a.Name,
			HighestScore: a.HighestScore,
			MostWins:     mostWins,
			HighScore:    highScore,
			Payout:       a.PointsAwarded,
			BonusPoints:  a.BonusPoints,
			AwardTotal:   a.TotalPoints,
		})
	}

	return view, nil
}

// AllTime returns the top players across every finalized week.
// limit <= 0 uses BoardSize.
func (s *LeaderboardService) AllTime(ctx context.Context, limit int) (*AllTimeView, error) {
	if limit <= 0 {
		limit = BoardSize
	}

	entries, err := s.reports.AllTime(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("all time: %w", err)
	}

	return &AllTimeView{Entries: entries}, nil
}
