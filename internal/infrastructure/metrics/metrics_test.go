package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

func TestManager_Counters(t *testing.T) {
	m := NewManager()

	m.RecordSubmission("accepted")
	m.RecordSubmission("accepted")
	m.RecordSubmission("duplicate")
	m.RecordCommand("d", 10*time.Millisecond, nil)
	m.RecordCommand("d", 10*time.Millisecond, errors.New("boom"))
	m.RecordWeekClosed("cron", time.Unix(1718575140, 0))
	m.ObserveJob("weekly_close", time.Second, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("d", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.weekCloses.WithLabelValues("cron")))
	assert.Equal(t, 1718575140.0, testutil.ToFloat64(m.lastWeekClose))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("weekly_close", StatusOK)))

	m.SetCircuitState("telegram-send", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.circuitState.WithLabelValues("telegram-send")))
}

func TestManager_IndependentRegistries(t *testing.T) {
	a, b := NewManager(), NewManager()

	a.RecordPet()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.pets))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.pets))
}

func TestManager_Handler(t *testing.T) {
	m := NewManager(WithNamespace("league"))
	m.ObserveStage("recompute_daily", time.Second, nil)
	m.ObserveEventHandler(shared.EventScoreAccepted, time.Millisecond, nil)
	m.RecordHTTPRequest(http.MethodPost, "/weekly-close", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `league_stage_duration_seconds_count{stage="recompute_daily",status="ok"} 1`))
	assert.True(t, strings.Contains(body, `league_http_requests_total{code="200",method="POST",route="/weekly-close"} 1`))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
