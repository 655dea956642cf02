package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

// ──────────────────────────────────────────────────────────────────────────────
// Weekly points
// ──────────────────────────────────────────────────────────────────────────────

type fakeCloser struct {
	got   command.CloseWeekCommand
	calls int
	err   error
}

func (f *fakeCloser) Handle(_ context.Context, cmd command.CloseWeekCommand) (*command.CloseWeekResult, error) {
	f.calls++
	f.got = cmd
	if f.err != nil {
		return nil, f.err
	}
	return &command.CloseWeekResult{RunID: "run-1", WeekStart: cmd.WeekStart, Players: 7}, nil
}

func newWeeklyHandler(t *testing.T, closer WeekCloser) (*WeeklyPointsHandler, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)

	h := NewWeeklyPointsHandler(closer, loc, nil)
	h.now = func() time.Time { return time.Date(2024, 6, 16, 23, 59, 0, 0, loc) }
	return h, loc
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWeeklyPoints_DefaultsToCurrentWeek(t *testing.T) {
	closer := &fakeCloser{}
	h, loc := newWeeklyHandler(t, closer)

	rec := serve(h, http.MethodPost, "/api/cron/weekly-points", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, closer.got.WeekStart.Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, loc)))
	assert.Equal(t, command.TriggerHTTP, closer.got.Trigger)

	var body WeeklyPointsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, WeeklyPointsResponse{
		Success:   true,
		Message:   "Weekly points calculation completed",
		WeekStart: "2024-06-10",
		Players:   7,
		RunID:     "run-1",
	}, body)
}

func TestWeeklyPoints_WeekStartSources(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"query", "/api/cron/weekly-points?week_start=2024-06-05", ""},
		{"json snake", "/api/cron/weekly-points", `{"week_start":"2024-06-05"}`},
		{"json camel", "/api/cron/weekly-points", `{"weekStart":"2024-06-03"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closer := &fakeCloser{}
			h, loc := newWeeklyHandler(t, closer)

			rec := serve(h, http.MethodPost, tt.target, tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, closer.got.WeekStart.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, loc)),
				"got %s", closer.got.WeekStart)
		})
	}
}

func TestWeeklyPoints_BadRequests(t *testing.T) {
	for name, tc := range map[string]struct{ target, body string }{
		"bad date": {"/api/cron/weekly-points?week_start=06/03/2024", ""},
		"bad json": {"/api/cron/weekly-points", `{"week_start":`},
	} {
		t.Run(name, func(t *testing.T) {
			closer := &fakeCloser{}
			h, _ := newWeeklyHandler(t, closer)

			rec := serve(h, http.MethodPost, tc.target, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, closer.calls)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestWeeklyPoints_Failures(t *testing.T) {
	closer := &fakeCloser{err: errors.New("db down")}
	h, _ := newWeeklyHandler(t, closer)

	rec := serve(h, http.MethodPost, "/api/cron/weekly-points", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"db down"}`, rec.Body.String())

	closer.err = shared.ErrCloseInProgress
	rec = serve(h, http.MethodPost, "/api/cron/weekly-points", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Bearer auth
// ──────────────────────────────────────────────────────────────────────────────

func authorized(auth *BearerAuth, header string) int {
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestBearerAuth_PlainSecret(t *testing.T) {
	auth, err := NewBearerAuth("s3cret", "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, authorized(auth, "Bearer s3cret"))
	assert.Equal(t, http.StatusNoContent, authorized(auth, "bearer s3cret"))
	assert.Equal(t, http.StatusUnauthorized, authorized(auth, "Bearer wrong"))
	assert.Equal(t, http.StatusUnauthorized, authorized(auth, "s3cret"))
	assert.Equal(t, http.StatusUnauthorized, authorized(auth, ""))
}

func TestBearerAuth_UnauthorizedBody(t *testing.T) {
	auth, err := NewBearerAuth("s3cret", "")
	require.NoError(t, err)

	h := auth.Middleware(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
}

func TestBearerAuth_Hash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	auth, err := NewBearerAuth("ignored", string(hash))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, authorized(auth, "Bearer s3cret"))
	assert.Equal(t, http.StatusUnauthorized, authorized(auth, "Bearer ignored"))
}

func TestNewBearerAuth_Errors(t *testing.T) {
	_, err := NewBearerAuth("", "")
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = NewBearerAuth("", "not-a-hash")
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Health
// ──────────────────────────────────────────────────────────────────────────────

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCompositeHealthChecker(t *testing.T) {
	checker := NewCompositeHealthChecker("test")
	checker.AddCheck("postgres", NewPingCheck(pinger{}))

	status := checker.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "All checks passed", status.Message)

	checker.AddCheck("redis", NewPingCheck(pinger{err: errors.New("connection refused")}))
	status = checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "Some checks failed: redis", status.Message)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.True(t, status.Checks["postgres"].Healthy)

	rec := httptest.NewRecorder()
	Health(checker)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	checker := NewCompositeHealthChecker("test")
	checker.SetTimeout(10 * time.Millisecond)
	checker.AddCheck("postgres", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "context deadline exceeded", status.Checks["postgres"].Message)
}
