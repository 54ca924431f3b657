// Package telemetry exposes prometheus metrics for the orchestration
// pipeline.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TracerName is the otel instrumentation scope for the orchestrator.
const TracerName = "github.com/fyrsmithlabs/birdsql/internal/orchestrator"

// Metrics holds the pipeline instruments. A nil *Metrics is valid and
// records nothing, so tests and library embedders can opt out.
type Metrics struct {
	questionsTotal   *prometheus.CounterVec
	agentTurnsTotal  *prometheus.CounterVec
	turnDurationSecs *prometheus.HistogramVec
	repairAttempts   prometheus.Histogram
}

// NewMetrics creates and registers the pipeline metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		questionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "birdsql_questions_total",
				Help: "Questions processed, by terminal status.",
			},
			[]string{"status"},
		),
		agentTurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "birdsql_agent_turns_total",
				Help: "Agent invocations, by role and outcome.",
			},
			[]string{"role", "outcome"},
		),
		turnDurationSecs: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "birdsql_agent_turn_duration_seconds",
				Help:    "Agent invocation latency in seconds, by role.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"role"},
		),
		repairAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "birdsql_repair_attempts",
				Help:    "Repair attempts used per question.",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
		),
	}
	reg.MustRegister(m.questionsTotal, m.agentTurnsTotal, m.turnDurationSecs, m.repairAttempts)
	return m
}

// ObserveQuestion records one finished question.
func (m *Metrics) ObserveQuestion(status string, repairAttempts int) {
	if m == nil {
		return
	}
	m.questionsTotal.WithLabelValues(status).Inc()
	m.repairAttempts.Observe(float64(repairAttempts))
}

// ObserveTurn records one agent invocation.
func (m *Metrics) ObserveTurn(role, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.agentTurnsTotal.WithLabelValues(role, outcome).Inc()
	m.turnDurationSecs.WithLabelValues(role).Observe(elapsed.Seconds())
}
