package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
)

type fakeLocator struct {
	from, to time.Time
	game     int
	ok       bool
	err      error
}

func (f *fakeLocator) MaxGameNumberBetween(_ context.Context, from, to time.Time) (int, bool, error) {
	f.from, f.to = from, to
	return f.game, f.ok, f.err
}

type fakeRecomputer struct {
	games []int
	err   error
}

func (f *fakeRecomputer) Handle(_ context.Context, cmd command.RecomputeDailyCommand) (*command.RecomputeDailyResult, error) {
	f.games = append(f.games, cmd.GameNumber)
	if f.err != nil {
		return nil, f.err
	}
	return &command.RecomputeDailyResult{GameNumber: cmd.GameNumber}, nil
}

func newRecomputeJob(t *testing.T, games GameLocator, rec DailyRecomputer, now time.Time) *RecomputeDailyJob {
	t.Helper()
	j := NewRecomputeDailyJob(games, rec, now.Location(), nil)
	j.now = func() time.Time { return now }
	return j
}

func TestRecomputeDailyJob_RecomputesCurrentGame(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)

	// 08:30 still belongs to the game day that began yesterday at 09:00.
	now := time.Date(2024, 6, 12, 8, 30, 0, 0, loc)
	games := &fakeLocator{game: 412, ok: true}
	rec := &fakeRecomputer{}

	require.NoError(t, newRecomputeJob(t, games, rec, now).Run(context.Background()))

	assert.Equal(t, []int{412}, rec.games)
	assert.True(t, games.from.Equal(time.Date(2024, 6, 11, 9, 0, 0, 0, loc)), "from %s", games.from)
	assert.True(t, games.to.Equal(time.Date(2024, 6, 12, 9, 0, 0, 0, loc)), "to %s", games.to)
}

func TestRecomputeDailyJob_NothingPlayed(t *testing.T) {
	rec := &fakeRecomputer{}
	job := newRecomputeJob(t, &fakeLocator{}, rec, time.Now())

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, rec.games)
}

func TestRecomputeDailyJob_Errors(t *testing.T) {
	job := newRecomputeJob(t, &fakeLocator{err: errors.New("db down")}, &fakeRecomputer{}, time.Now())
	assert.ErrorContains(t, job.Run(context.Background()), "locate current game")

	job = newRecomputeJob(t, &fakeLocator{game: 3, ok: true}, &fakeRecomputer{err: errors.New("tx failed")}, time.Now())
	assert.ErrorContains(t, job.Run(context.Background()), "recompute game 3")
}
