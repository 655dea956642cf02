// Package metrics provides Prometheus metrics for the league bot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

const defaultNamespace = "timeguessr"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// StatusOf maps an error to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Manager owns the registry and every collector.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	// Ingestion
	submissions *prometheus.CounterVec

	// Chat commands
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	pets            prometheus.Counter

	// Batch stages and week closes
	stageDuration *prometheus.HistogramVec
	weekCloses    *prometheus.CounterVec
	lastWeekClose prometheus.Gauge

	// Scheduled jobs
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	// Event bus
	eventHandlerDuration *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Chat transport
	telegramCalls *prometheus.CounterVec
	circuitState  *prometheus.GaugeVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// NewManager creates a manager with its own registry, so tests and
// multiple binaries in one process never collide on registration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: defaultNamespace,
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "submissions_total",
		Help:      "Score submissions by ingestion outcome",
	}, []string{"outcome"})

	m.commands = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "chat_commands_total",
		Help:      "Chat commands handled",
	}, []string{"command", "status"})

	m.commandDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "chat_command_duration_seconds",
		Help:      "Chat command latency",
		Buckets:   m.buckets,
	}, []string{"command"})

	m.pets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "pets_total",
		Help:      "Times the bot was petted",
	})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of ranking stages",
		Buckets:   m.buckets,
	}, []string{"stage", "status"})

	m.weekCloses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "week_closes_total",
		Help:      "Completed week closes by trigger",
	}, []string{"trigger"})

	m.lastWeekClose = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "last_week_close_timestamp_seconds",
		Help:      "Unix time of the last completed week close",
	})

	m.jobRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job and status",
	}, []string{"job", "status"})

	m.jobDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "job_duration_seconds",
		Help:      "Scheduled job duration",
		Buckets:   m.buckets,
	}, []string{"job"})

	m.eventHandlerDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "event_handler_duration_seconds",
		Help:      "Duration of domain event handlers",
		Buckets:   m.buckets,
	}, []string{"event_type", "status"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   m.buckets,
	}, []string{"method", "route"})

	m.telegramCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "telegram_api_calls_total",
		Help:      "Bot API calls by method and status",
	}, []string{"method", "status"})

	m.circuitState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "circuit_state",
		Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open",
	}, []string{"breaker"})
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORDERS
// ══════════════════════════════════════════════════════════════════════════════

// RecordSubmission counts one ingestion outcome.
func (m *Manager) RecordSubmission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

// RecordCommand counts one chat command and its latency.
func (m *Manager) RecordCommand(command string, duration time.Duration, err error) {
	m.commands.WithLabelValues(command, StatusOf(err)).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordPet counts one !pet.
func (m *Manager) RecordPet() {
	m.pets.Inc()
}

// ObserveStage records one ranking stage run.
func (m *Manager) ObserveStage(stage string, duration time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage, StatusOf(err)).Observe(duration.Seconds())
}

// RecordWeekClosed counts a completed close.
func (m *Manager) RecordWeekClosed(trigger string, at time.Time) {
	m.weekCloses.WithLabelValues(trigger).Inc()
	m.lastWeekClose.Set(float64(at.Unix()))
}

// ObserveJob records one scheduled job run.
func (m *Manager) ObserveJob(job string, duration time.Duration, err error) {
	m.jobRuns.WithLabelValues(job, StatusOf(err)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// ObserveEventHandler records one event handler execution.
func (m *Manager) ObserveEventHandler(eventType shared.EventType, duration time.Duration, err error) {
	m.eventHandlerDuration.WithLabelValues(string(eventType), StatusOf(err)).Observe(duration.Seconds())
}

// RecordHTTPRequest records one served HTTP request.
func (m *Manager) RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTelegramCall counts one Bot API call.
func (m *Manager) RecordTelegramCall(method string, err error) {
	m.telegramCalls.WithLabelValues(method, StatusOf(err)).Inc()
}

// SetCircuitState records a breaker position.
func (m *Manager) SetCircuitState(breaker string, state int) {
	m.circuitState.WithLabelValues(breaker).Set(float64(state))
}
