package command

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

func newCloseWeekHandler(store *memStore, publisher shared.EventPublisher) *CloseWeekHandler {
	return NewCloseWeekHandler(
		NewAggregateWeekHandler(store, league, nil, nil),
		NewFinalizeWeekHandler(store, league, nil, nil),
		publisher,
		nil,
	)
}

// seedWeek plays three games in the week of Monday 10 June 2024.
func seedWeek(t *testing.T) *submitFixture {
	f := newSubmitFixture()

	// Game 623 on Monday: A wins.
	f.submit(t, 1, shareText(623, 20000), at(10, 9, 10))
	f.submit(t, 2, shareText(623, 15000), at(10, 9, 20))
	f.submit(t, 3, shareText(623, 18000), at(10, 9, 30))

	// Game 624 on Tuesday: B wins with the week's best score.
	f.submit(t, 1, shareText(624, 17000), at(11, 9, 10))
	f.submit(t, 2, shareText(624, 23000), at(11, 9, 20))
	f.submit(t, 3, shareText(624, 16000), at(11, 9, 30))

	// Game 625 on Wednesday: A wins again.
	f.submit(t, 1, shareText(625, 21000), at(12, 9, 10))
	f.submit(t, 2, shareText(625, 19000), at(12, 9, 20))

	return f
}

func TestCloseWeek_AggregatesAndFinalizes(t *testing.T) {
	f := seedWeek(t)
	weekStart := timeutil.StartOfWeek(at(12, 12, 0), league)

	result, err := newCloseWeekHandler(f.store, f.publisher).Handle(context.Background(), CloseWeekCommand{
		WeekStart: weekStart,
		Trigger:   TriggerCLI,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Players)

	// A: 10+8+10 = 28, B: 7+10+8 = 25, C: 8+7 = 15.
	points := f.store.weeklyPoints[weekKey(weekStart)]
	totals := map[int64]int{}
	for _, p := range points {
		totals[p.PlayerID] = p.TotalPoints
	}
	assert.Equal(t, map[int64]int{1: 28, 2: 25, 3: 15}, totals)

	assert.Equal(t, int64(1), result.Winners.MostWins)
	assert.Equal(t, int64(2), result.Winners.HighScore)

	require.Len(t, result.Awards, 3)
	assert.Equal(t, int64(1), result.Awards[0].PlayerID)
	assert.Equal(t, 250+ranking.MostWinsBonus, result.Awards[0].TotalPoints)
	assert.Equal(t, int64(2), result.Awards[1].PlayerID)
	assert.Equal(t, 180+ranking.HighScoreBonus, result.Awards[1].TotalPoints)
	assert.Equal(t, 150, result.Awards[2].TotalPoints)

	assert.Contains(t, f.publisher.types(), shared.EventWeekClosed)
}

func TestCloseWeek_RerunIsIdempotent(t *testing.T) {
	f := seedWeek(t)
	weekStart := timeutil.StartOfWeek(at(12, 12, 0), league)
	handler := newCloseWeekHandler(f.store, nil)

	_, err := handler.Handle(context.Background(), CloseWeekCommand{WeekStart: weekStart, Trigger: TriggerCron})
	require.NoError(t, err)
	first := append([]ranking.WeeklyAward(nil), f.store.awards[weekKey(weekStart)]...)

	_, err = handler.Handle(context.Background(), CloseWeekCommand{WeekStart: weekStart, Trigger: TriggerHTTP})
	require.NoError(t, err)

	if diff := cmp.Diff(first, f.store.awards[weekKey(weekStart)]); diff != "" {
		t.Errorf("awards changed on rerun (-first +second):\n%s", diff)
	}
}

func TestCloseWeek_EmptyWeek(t *testing.T) {
	store := newMemStore()
	weekStart := timeutil.StartOfWeek(at(17, 12, 0), league)

	result, err := newCloseWeekHandler(store, nil).Handle(context.Background(), CloseWeekCommand{WeekStart: weekStart})

	require.NoError(t, err)
	assert.Zero(t, result.Players)
	assert.Empty(t, result.Awards)
	assert.Equal(t, ranking.NoWinner, result.Winners.MostWins)
}

func TestCloseWeek_RejectsNonMonday(t *testing.T) {
	store := newMemStore()

	_, err := newCloseWeekHandler(store, nil).Handle(context.Background(), CloseWeekCommand{
		WeekStart: at(12, 0, 0),
	})

	assert.ErrorIs(t, err, shared.ErrInvalidWeekStart)
	assert.True(t, shared.IsValidation(err))
}

func TestRecomputeDaily_Idempotent(t *testing.T) {
	f := seedWeek(t)
	handler := NewRecomputeDailyHandler(f.store, nil, nil, nil)

	first, err := handler.Handle(context.Background(), RecomputeDailyCommand{GameNumber: 623})
	require.NoError(t, err)
	second, err := handler.Handle(context.Background(), RecomputeDailyCommand{GameNumber: 623})
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first.Rankings, second.Rankings))
	assert.Len(t, f.store.daily, 8)
}

func TestRecomputeDaily_RejectsInvalidGame(t *testing.T) {
	_, err := NewRecomputeDailyHandler(newMemStore(), nil, nil, nil).
		Handle(context.Background(), RecomputeDailyCommand{GameNumber: 0})

	assert.ErrorIs(t, err, shared.ErrInvalidGameNumber)
}

type fakeLocker struct {
	held     map[string]bool
	acquired []string
	released int
	err      error
}

func (l *fakeLocker) Acquire(_ context.Context, resource string, _ time.Duration) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[resource] {
		return nil, false, nil
	}
	l.acquired = append(l.acquired, resource)
	return func() { l.released++ }, true, nil
}

func TestCloseWeek_LockedElsewhere(t *testing.T) {
	f := seedWeek(t)
	weekStart := timeutil.StartOfWeek(at(12, 12, 0), league)
	locker := &fakeLocker{held: map[string]bool{"close-week:2024-06-10": true}}

	_, err := newCloseWeekHandler(f.store, nil).WithLocker(locker).
		Handle(context.Background(), CloseWeekCommand{WeekStart: weekStart})

	assert.ErrorIs(t, err, shared.ErrCloseInProgress)
	assert.Empty(t, f.store.awards)
}

func TestCloseWeek_ReleasesLock(t *testing.T) {
	f := seedWeek(t)
	weekStart := timeutil.StartOfWeek(at(12, 12, 0), league)
	locker := &fakeLocker{}

	_, err := newCloseWeekHandler(f.store, nil).WithLocker(locker).
		Handle(context.Background(), CloseWeekCommand{WeekStart: weekStart})

	require.NoError(t, err)
	assert.Equal(t, []string{"close-week:2024-06-10"}, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestCloseWeek_LockerFailureFallsThrough(t *testing.T) {
	f := seedWeek(t)
	weekStart := timeutil.StartOfWeek(at(12, 12, 0), league)

	_, err := newCloseWeekHandler(f.store, nil).WithLocker(&fakeLocker{err: errStoreDown}).
		Handle(context.Background(), CloseWeekCommand{WeekStart: weekStart})

	require.NoError(t, err)
	assert.Len(t, f.store.awards[weekKey(weekStart)], 3)
}
