// Package metrics exposes Prometheus collectors for session activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "assessment"

// Metrics holds the assessment collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	questions          *prometheus.CounterVec
	dedupRewrites      prometheus.Counter
	generationDuration *prometheus.HistogramVec
	answers            *prometheus.CounterVec
	sessionsActive     prometheus.Gauge
	sessionsCompleted  prometheus.Counter
	evaluations        *prometheus.CounterVec
	dimensionFallbacks *prometheus.CounterVec
	circuitState       *prometheus.GaugeVec
}

// MustNewMetrics registers the collectors with reg and panics on a
// registration error. Tests pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "questions_shown_total",
			Help:      "Questions shown, by source.",
		}, []string{"source"}),
		dedupRewrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "dedup_rewrites_total",
			Help:      "Candidate questions rewritten because they repeated an earlier question.",
		}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "request_duration_seconds",
			Help:      "Question generation latency, by outcome.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"outcome"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "answers_recorded_total",
			Help:      "Answers recorded, by question type.",
		}, []string{"type"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions started and not yet complete.",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "completed_total",
			Help:      "Sessions that reached the question total.",
		}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "evaluations_total",
			Help:      "Evaluations produced, by scoring mode.",
		}, []string{"mode"}),
		dimensionFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "dimension_fallbacks_total",
			Help:      "Dimensions scored locally after delegation failed, by reason.",
		}, []string{"reason"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_state",
			Help:      "Circuit breaker state per service: 0 closed, 1 open, 2 half-open.",
		}, []string{"service"}),
	}
	reg.MustRegister(
		m.questions, m.dedupRewrites, m.generationDuration, m.answers,
		m.sessionsActive, m.sessionsCompleted, m.evaluations,
		m.dimensionFallbacks, m.circuitState,
	)
	return m
}

// QuestionShown counts a shown question and whether dedup rewrote it.
func (m *Metrics) QuestionShown(source string, rewritten bool) {
	if m == nil {
		return
	}
	m.questions.WithLabelValues(source).Inc()
	if rewritten {
		m.dedupRewrites.Inc()
	}
}

// ObserveGeneration records one generator call.
func (m *Metrics) ObserveGeneration(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// AnswerRecorded counts an answer.
func (m *Metrics) AnswerRecorded(questionType string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(questionType).Inc()
}

// SessionStarted increments the active gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionCompleted moves a session from active to completed.
func (m *Metrics) SessionCompleted() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessionsCompleted.Inc()
}

// SessionAbandoned decrements the active gauge for a session evicted before
// completion.
func (m *Metrics) SessionAbandoned() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// Evaluated counts an evaluation by the mode that produced it.
func (m *Metrics) Evaluated(mode string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(mode).Inc()
}

// DimensionFallback counts a dimension scored locally.
func (m *Metrics) DimensionFallback(reason string) {
	if m == nil {
		return
	}
	m.dimensionFallbacks.WithLabelValues(reason).Inc()
}

// CircuitState records a breaker state for service.
func (m *Metrics) CircuitState(service string, state int) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(service).Set(float64(state))
}
