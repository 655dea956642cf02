package redis

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

type memTextStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	readErr error
}

func newMemTextStore() *memTextStore {
	return &memTextStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memTextStore) GetString(_ context.Context, key string) (string, error) {
	if m.readErr != nil {
		return "", m.readErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memTextStore) SetString(_ context.Context, key, value string, ttl time.Duration) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memTextStore) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
		}
	}
	return nil
}

func TestReportKeys(t *testing.T) {
	loc := timeutil.MustLoadLocation(timeutil.DefaultTimezone)
	day := time.Date(2024, 6, 10, 9, 0, 0, 0, loc)

	assert.Equal(t, "report:daily:2024-06-10", DailyKey(day))
	assert.Equal(t, "report:weekly-live:2024-06-10", WeeklyLiveKey(day))
	assert.Equal(t, "report:snapshot:latest", SnapshotKey())
	assert.Equal(t, "report:alltime:10", AllTimeKey(10))
	assert.Equal(t, "lock:close-week:2024-06-10", LockKey("close-week:2024-06-10"))
}

func TestReportCache_RendersOnceUntilInvalidated(t *testing.T) {
	store := newMemTextStore()
	cache := NewReportCache(store, nil)
	ctx := context.Background()
	renders := 0
	render := func(context.Context) (string, error) {
		renders++
		return "board", nil
	}

	for i := 0; i < 3; i++ {
		text, err := cache.GetOrRender(ctx, AllTimeKey(10), TTLAllTime, render)
		require.NoError(t, err)
		assert.Equal(t, "board", text)
	}
	assert.Equal(t, 1, renders)
	assert.Equal(t, TTLAllTime, store.ttls[AllTimeKey(10)])

	require.NoError(t, cache.Invalidate(ctx, ViewAllTime))
	_, err := cache.GetOrRender(ctx, AllTimeKey(10), TTLAllTime, render)
	require.NoError(t, err)
	assert.Equal(t, 2, renders)
}

func TestReportCache_InvalidateOnlyNamedViews(t *testing.T) {
	store := newMemTextStore()
	store.data["report:daily:2024-06-10"] = "d"
	store.data["report:weekly-live:2024-06-10"] = "w"
	store.data["report:snapshot:latest"] = "s"

	require.NoError(t, NewReportCache(store, nil).Invalidate(context.Background(), ViewDaily, ViewWeeklyLive))

	assert.Equal(t, map[string]string{"report:snapshot:latest": "s"}, store.data)
}

func TestReportCache_ReadFailureFallsThrough(t *testing.T) {
	store := newMemTextStore()
	store.readErr = errors.New("connection reset")

	text, err := NewReportCache(store, nil).GetOrRender(context.Background(), SnapshotKey(), TTLSnapshot,
		func(context.Context) (string, error) { return "fresh", nil })

	require.NoError(t, err)
	assert.Equal(t, "fresh", text)
}

func TestReportCache_RenderErrorNotCached(t *testing.T) {
	store := newMemTextStore()
	boom := errors.New("db down")

	_, err := NewReportCache(store, nil).GetOrRender(context.Background(), SnapshotKey(), TTLSnapshot,
		func(context.Context) (string, error) { return "", boom })

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestReportCache_NilRendersDirectly(t *testing.T) {
	var cache *ReportCache

	text, err := cache.GetOrRender(context.Background(), SnapshotKey(), TTLSnapshot,
		func(context.Context) (string, error) { return "direct", nil })

	require.NoError(t, err)
	assert.Equal(t, "direct", text)
	assert.NoError(t, cache.Invalidate(context.Background(), ViewDaily))
}

func TestConfig_Options(t *testing.T) {
	opts, err := Config{URL: "redis://:secret@cache:6380/2", PoolSize: 5}.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 5, opts.PoolSize)

	opts, err = DefaultConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
}

func TestReportCache_LiveAndFinal(t *testing.T) {
	store := newMemTextStore()
	cache := NewReportCache(store, nil)
	seed := func() {
		store.data["report:daily:2024-06-10"] = "d"
		store.data["report:weekly-live:2024-06-10"] = "w"
		store.data["report:snapshot:latest"] = "s"
		store.data["report:alltime:10"] = "a"
	}

	seed()
	require.NoError(t, cache.InvalidateLive(context.Background()))
	assert.ElementsMatch(t, []string{"report:snapshot:latest", "report:alltime:10"}, keysOf(store.data))

	seed()
	require.NoError(t, cache.InvalidateFinal(context.Background()))
	assert.ElementsMatch(t, []string{"report:daily:2024-06-10"}, keysOf(store.data))
}

func keysOf(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
