package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

type fakeCloser struct {
	got    []command.CloseWeekCommand
	result *command.CloseWeekResult
	err    error
}

func (f *fakeCloser) Handle(_ context.Context, cmd command.CloseWeekCommand) (*command.CloseWeekResult, error) {
	f.got = append(f.got, cmd)
	return f.result, f.err
}

func newJob(t *testing.T, closer WeekCloser, now time.Time) *WeeklyCloseJob {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)

	cfg := DefaultWeeklyCloseConfig(loc)
	cfg.Now = func() time.Time { return now }
	return NewWeeklyCloseJob(closer, cfg, nil)
}

func TestWeeklyCloseJob_ClosesCurrentWeek(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)

	closer := &fakeCloser{result: &command.CloseWeekResult{
		Players: 4,
		Awards:  make([]ranking.WeeklyAward, 4),
	}}
	// Sunday 23:59 local.
	job := newJob(t, closer, time.Date(2024, 6, 16, 23, 59, 0, 0, loc))

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, closer.got, 1)
	assert.Equal(t, command.TriggerCron, closer.got[0].Trigger)
	assert.True(t, time.Date(2024, 6, 10, 0, 0, 0, 0, loc).Equal(closer.got[0].WeekStart))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 4, stats.Players)
	assert.Equal(t, 4, stats.Awarded)
	assert.False(t, stats.Skipped)
}

func TestWeeklyCloseJob_InProgressIsNotAFailure(t *testing.T) {
	closer := &fakeCloser{err: shared.ErrCloseInProgress}
	job := newJob(t, closer, time.Date(2024, 6, 16, 21, 59, 0, 0, time.UTC))

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, job.LastStats().Skipped)
}

func TestWeeklyCloseJob_Failure(t *testing.T) {
	boom := errors.New("db down")
	closer := &fakeCloser{err: boom}
	job := newJob(t, closer, time.Date(2024, 6, 16, 21, 59, 0, 0, time.UTC))

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, job.LastStats().Err, boom)
	assert.Equal(t, "weekly_close", job.Name())
}
