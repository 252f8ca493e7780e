package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	PollChecks      prometheus.Counter
	PollsAnswered   prometheus.Counter
	AuthFailures    prometheus.Counter
	RunnerFailures  prometheus.Counter
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pollevbot",
			Name:      "active_sessions",
			Help:      "Number of live session runners",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pollevbot",
			Name:      "sessions_started_total",
			Help:      "Total session runners started",
		}),
		PollChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pollevbot",
			Name:      "poll_checks_total",
			Help:      "Total poll detection calls issued",
		}),
		PollsAnswered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pollevbot",
			Name:      "polls_answered_total",
			Help:      "Total polls answered",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pollevbot",
			Name:      "auth_failures_total",
			Help:      "Total sessions that failed authentication",
		}),
		RunnerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pollevbot",
			Name:      "runner_failures_total",
			Help:      "Total runners that exited in the failed state",
		}),
	}
	r.MustRegister(
		m.ActiveSessions,
		m.SessionsStarted,
		m.PollChecks,
		m.PollsAnswered,
		m.AuthFailures,
		m.RunnerFailures,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
