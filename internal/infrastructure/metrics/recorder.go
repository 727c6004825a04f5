package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects payment attempt metrics
type Recorder interface {
	AttemptTransition(from, to string)
	AttemptFinished(state, reason string, d time.Duration)
	ObserveStep(step string, d time.Duration, err error)
	SettlementReplay(outcome string)
}

type PrometheusRecorder struct {
	transitions *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	steps       *prometheus.HistogramVec
	replays     *prometheus.CounterVec
}

// NewPrometheusRecorder registers the swifty collectors on reg
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "swifty",
				Name:      "attempt_transitions_total",
				Help:      "Payment attempt state transitions",
			},
			[]string{"from", "to"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "swifty",
				Name:      "attempts_total",
				Help:      "Finished payment attempts by final state",
			},
			[]string{"state", "reason"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "swifty",
				Name:      "attempt_duration_seconds",
				Help:      "End to end payment attempt latency",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"state"},
		),
		steps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "swifty",
				Name:      "step_latency_seconds",
				Help:      "Latency of individual payment steps",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step", "status"},
		),
		replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "swifty",
				Name:      "settlement_replays_total",
				Help:      "Journaled settlement replays by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(r.transitions, r.attempts, r.duration, r.steps, r.replays)
	return r
}

func (p *PrometheusRecorder) AttemptTransition(from, to string) {
	p.transitions.With(prometheus.Labels{"from": from, "to": to}).Inc()
}

func (p *PrometheusRecorder) AttemptFinished(state, reason string, d time.Duration) {
	p.attempts.With(prometheus.Labels{"state": state, "reason": reason}).Inc()
	p.duration.With(prometheus.Labels{"state": state}).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStep(step string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.steps.With(prometheus.Labels{"step": step, "status": status}).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SettlementReplay(outcome string) {
	p.replays.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// NopRecorder discards everything
type NopRecorder struct{}

func (NopRecorder) AttemptTransition(string, string)              {}
func (NopRecorder) AttemptFinished(string, string, time.Duration) {}
func (NopRecorder) ObserveStep(string, time.Duration, error)      {}
func (NopRecorder) SettlementReplay(string)                       {}
