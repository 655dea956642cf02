package command

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/player"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/score"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// memStore is an in-memory score.Repository, ranking.Repository and
// ranking.Transactor. Transactions are serialized and not rolled back.
type memStore struct {
	mu sync.Mutex

	players      map[int64]*player.Player // by telegram id
	scores       []score.Score
	daily        map[[2]int64]dailyRow // (game, player)
	weeklyPoints map[string][]ranking.WeeklyPoints
	awards       map[string][]ranking.WeeklyAward

	nextPlayerID int64
	nextScoreID  int64

	existsErr     error
	raceDuplicate bool
	rankErr       error
}

type dailyRow struct {
	ranking.DailyRanking
	CreatedAt time.Time
}

func newMemStore() *memStore {
	return &memStore{
		players:      make(map[int64]*player.Player),
		daily:        make(map[[2]int64]dailyRow),
		weeklyPoints: make(map[string][]ranking.WeeklyPoints),
		awards:       make(map[string][]ranking.WeeklyAward),
	}
}

func weekKey(t time.Time) string { return t.Format(timeutil.DateLayout) }

// ─── score.Repository ───────────────────────────────────────────────────────

func (m *memStore) SaveSubmission(_ context.Context, p *player.Player, s *score.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.raceDuplicate {
		return shared.ErrScoreAlreadySubmitted
	}

	stored, ok := m.players[p.TelegramID]
	if !ok {
		m.nextPlayerID++
		stored = &player.Player{ID: m.nextPlayerID, TelegramID: p.TelegramID, CreatedAt: s.CreatedAt}
		m.players[p.TelegramID] = stored
	}
	stored.Name = p.Name
	p.ID = stored.ID

	for _, existing := range m.scores {
		if existing.PlayerID == p.ID && existing.GameNumber == s.GameNumber {
			return shared.ErrScoreAlreadySubmitted
		}
	}

	m.nextScoreID++
	s.ID = m.nextScoreID
	s.PlayerID = p.ID
	m.scores = append(m.scores, *s)
	return nil
}

func (m *memStore) Exists(_ context.Context, telegramID int64, gameNumber int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.existsErr != nil {
		return false, m.existsErr
	}
	p, ok := m.players[telegramID]
	if !ok {
		return false, nil
	}
	for _, s := range m.scores {
		if s.PlayerID == p.ID && s.GameNumber == gameNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) MaxGameNumberBetween(_ context.Context, from, to time.Time) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	best, ok := 0, false
	for _, s := range m.scores {
		if !s.CreatedAt.Before(from) && s.CreatedAt.Before(to) && (!ok || s.GameNumber > best) {
			best, ok = s.GameNumber, true
		}
	}
	return best, ok, nil
}

func (m *memStore) Latest(_ context.Context) (*score.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.scores) == 0 {
		return nil, shared.ErrScoreNotFound
	}
	latest := m.scores[0]
	for _, s := range m.scores[1:] {
		if s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	return &latest, nil
}

// ─── ranking.Transactor / ranking.Repository ────────────────────────────────

func (m *memStore) WithinTx(_ context.Context, fn func(ranking.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(memTx{m})
}

// memTx runs repository calls while the store lock is held.
type memTx struct{ m *memStore }

func (t memTx) GameScores(_ context.Context, gameNumber int) ([]ranking.GameScore, error) {
	if t.m.rankErr != nil {
		return nil, t.m.rankErr
	}
	var out []ranking.GameScore
	for _, s := range t.m.scores {
		if s.GameNumber == gameNumber {
			out = append(out, ranking.GameScore{
				ScoreID:   s.ID,
				PlayerID:  s.PlayerID,
				Score:     s.Value,
				CreatedAt: s.CreatedAt,
			})
		}
	}
	return out, nil
}

func (t memTx) UpsertDailyRankings(_ context.Context, rankings []ranking.DailyRanking) error {
	for _, dr := range rankings {
		key := [2]int64{int64(dr.GameNumber), dr.PlayerID}
		row, ok := t.m.daily[key]
		if !ok {
			row.CreatedAt = t.m.scoreTime(dr.PlayerID, dr.GameNumber)
		}
		row.DailyRanking = dr
		t.m.daily[key] = row
	}
	return nil
}

func (m *memStore) scoreTime(playerID int64, game int) time.Time {
	for _, s := range m.scores {
		if s.PlayerID == playerID && s.GameNumber == game {
			return s.CreatedAt
		}
	}
	return time.Time{}
}

func (t memTx) WeeklyStats(_ context.Context, from, to time.Time) ([]ranking.WeeklyStats, error) {
	byPlayer := make(map[int64]*ranking.WeeklyStats)
	for _, row := range t.m.daily {
		if row.CreatedAt.Before(from) || !row.CreatedAt.Before(to) {
			continue
		}
		st, ok := byPlayer[row.PlayerID]
		if !ok {
			st = &ranking.WeeklyStats{PlayerID: row.PlayerID}
			byPlayer[row.PlayerID] = st
		}
		value := 0
		for _, s := range t.m.scores {
			if s.PlayerID == row.PlayerID && s.GameNumber == row.GameNumber {
				value = s.Value
			}
		}
		st.TotalPoints += row.PointsAwarded
		st.TotalScore += value
		st.GamesPlayed++
		if row.Rank == 1 {
			st.DailyWins++
		}
		if value > st.HighestScore {
			st.HighestScore = value
		}
	}

	out := make([]ranking.WeeklyStats, 0, len(byPlayer))
	for _, st := range byPlayer {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (t memTx) UpsertWeeklyPoints(_ context.Context, weekStart time.Time, points []ranking.WeeklyPoints) error {
	t.m.weeklyPoints[weekKey(weekStart)] = append([]ranking.WeeklyPoints(nil), points...)
	return nil
}

func (t memTx) WeeklyPoints(_ context.Context, weekStart time.Time) ([]ranking.WeeklyPoints, error) {
	return append([]ranking.WeeklyPoints(nil), t.m.weeklyPoints[weekKey(weekStart)]...), nil
}

func (t memTx) UpsertWeeklyAwards(_ context.Context, weekStart time.Time, awards []ranking.WeeklyAward) error {
	t.m.awards[weekKey(weekStart)] = append([]ranking.WeeklyAward(nil), awards...)
	return nil
}

// ─── event capture ──────────────────────────────────────────────────────────

type capturePublisher struct {
	events []shared.Event
}

func (c *capturePublisher) Publish(e shared.Event) error {
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) types() []shared.EventType {
	out := make([]shared.EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.EventType()
	}
	return out
}

var errStoreDown = errors.New("connection refused")
