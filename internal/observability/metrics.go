// Package observability provides the metrics backends. Prometheus is the
// default; CloudWatch is available for deployments without a scraper.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"meteoalert/internal/alerts"
)

// Recorder is the full set of metrics the service emits. Consumers depend on
// narrower interfaces of their own.
type Recorder interface {
	RecordRequest(method, endpoint string, status int, d time.Duration)
	RecordProviderCall(op, outcome string, d time.Duration)
	RecordEvaluation(clauses []alerts.Clause)
	RecordDispatch(outcome string)
	RecordCacheLookup(result string)
	RecordPollCycle(users, failed int, d time.Duration)
}

var (
	_ Recorder = (*PrometheusMetrics)(nil)
	_ Recorder = (*CloudWatchMetrics)(nil)
	_ Recorder = Nop{}
)

// PrometheusMetrics holds the collectors exposed on /metrics.
type PrometheusMetrics struct {
	HTTPRequests      *prometheus.CounterVec   // labels: method, endpoint, status
	HTTPDuration      *prometheus.HistogramVec // labels: method, endpoint
	ProviderCalls     *prometheus.CounterVec   // labels: op={current,forecast}, outcome
	ProviderDuration  *prometheus.HistogramVec // labels: op
	Evaluations       *prometheus.CounterVec   // labels: result={alert,clear}
	AlertClauses      *prometheus.CounterVec   // labels: clause
	PushDispatches    *prometheus.CounterVec   // labels: outcome
	CacheLookups      *prometheus.CounterVec   // labels: result={hit,miss,error}
	PollCycleDuration prometheus.Histogram
	PollUsers         prometheus.Counter
	PollFailures      prometheus.Counter
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewPrometheusMetrics(namespace string, reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "endpoint", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_provider_calls_total",
			Help:      "Weather provider calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_provider_duration_seconds",
			Help:      "Weather provider latency by operation.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_evaluations_total",
			Help:      "Alert evaluations by result.",
		}, []string{"result"}),
		AlertClauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_clauses_total",
			Help:      "Triggered alert clauses.",
		}, []string{"clause"}),
		PushDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_dispatches_total",
			Help:      "Push dispatch decisions and delivery outcomes.",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_lookups_total",
			Help:      "Provider response cache lookups by result.",
		}, []string{"result"}),
		PollCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of one scheduled alert poll over all subscribed users.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		PollUsers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_users_total",
			Help:      "Users evaluated by the scheduled poller.",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Per-user failures during scheduled polls.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.ProviderCalls,
		m.ProviderDuration,
		m.Evaluations,
		m.AlertClauses,
		m.PushDispatches,
		m.CacheLookups,
		m.PollCycleDuration,
		m.PollUsers,
		m.PollFailures,
	)
	return m
}

func (m *PrometheusMetrics) RecordRequest(method, endpoint string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordProviderCall(op, outcome string, d time.Duration) {
	m.ProviderCalls.WithLabelValues(op, outcome).Inc()
	m.ProviderDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordEvaluation(clauses []alerts.Clause) {
	if len(clauses) == 0 {
		m.Evaluations.WithLabelValues("clear").Inc()
		return
	}
	m.Evaluations.WithLabelValues("alert").Inc()
	for _, c := range clauses {
		m.AlertClauses.WithLabelValues(string(c)).Inc()
	}
}

func (m *PrometheusMetrics) RecordDispatch(outcome string) {
	m.PushDispatches.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) RecordCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) RecordPollCycle(users, failed int, d time.Duration) {
	m.PollCycleDuration.Observe(d.Seconds())
	m.PollUsers.Add(float64(users))
	m.PollFailures.Add(float64(failed))
}

// Nop discards every metric.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordProviderCall(string, string, time.Duration) {}
func (Nop) RecordEvaluation([]alerts.Clause)                 {}
func (Nop) RecordDispatch(string)                            {}
func (Nop) RecordCacheLookup(string)                         {}
func (Nop) RecordPollCycle(int, int, time.Duration)          {}
