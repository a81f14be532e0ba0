// Package metrics exposes Prometheus counters for the task lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's counters. A nil *Metrics records nothing.
type Metrics struct {
	Transitions         *prometheus.CounterVec
	Unlocked            prometheus.Counter
	SubmissionsRejected *prometheus.CounterVec
	Reviews             *prometheus.CounterVec
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "siteline",
			Name:      "task_transitions_total",
			Help:      "Committed task status transitions.",
		}, []string{"from", "to", "event"}),
		Unlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "siteline",
			Name:      "tasks_unlocked_total",
			Help:      "Tasks moved from LOCKED to ACTIVE by the scheduler.",
		}),
		SubmissionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "siteline",
			Name:      "submissions_rejected_total",
			Help:      "Report submissions rejected before any state change.",
		}, []string{"reason"}),
		Reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "siteline",
			Name:      "reviews_total",
			Help:      "Review decisions recorded.",
		}, []string{"decision"}),
	}
	for _, c := range []prometheus.Collector{m.Transitions, m.Unlocked, m.SubmissionsRejected, m.Reviews} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Transition(from, to, event string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to, event).Inc()
	if event == "unlock" {
		m.Unlocked.Inc()
	}
}

func (m *Metrics) RejectedSubmission(reason string) {
	if m == nil {
		return
	}
	m.SubmissionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Review(approve bool) {
	if m == nil {
		return
	}
	decision := "reject"
	if approve {
		decision = "approve"
	}
	m.Reviews.WithLabelValues(decision).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
