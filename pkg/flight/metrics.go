package flight

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeRejected  = "rejected"
	outcomeNoResult  = "no_result"
)

// Metrics collects dispatcher counters. A nil *Metrics records nothing.
type Metrics struct {
	moves               prometheus.Counter
	submissions         *prometheus.CounterVec
	outcomes            *prometheus.CounterVec
	stops               prometheus.Counter
	acquisitionFailures prometheus.Counter
	duration            prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		moves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dronearm_moves_total",
			Help: "Total number of move requests",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dronearm_trajectory_submissions_total",
			Help: "Trajectories submitted to the motion controller, by mode",
		}, []string{"mode"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dronearm_trajectory_outcomes_total",
			Help: "Results of synchronous trajectories, by outcome",
		}, []string{"outcome"}),
		stops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dronearm_stop_directives_total",
			Help: "Stop-trajectory directives issued",
		}),
		acquisitionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dronearm_limb_acquisition_failures_total",
			Help: "Moves where the limb binding could not be acquired",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dronearm_trajectory_duration_seconds",
			Help:    "Time from synchronous submission to controller result",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	for _, c := range []prometheus.Collector{m.moves, m.submissions, m.outcomes, m.stops, m.acquisitionFailures, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordMove() {
	if m == nil {
		return
	}
	m.moves.Inc()
}

func (m *Metrics) recordSubmit(mode Mode) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) recordOutcome(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordStop() {
	if m == nil {
		return
	}
	m.stops.Inc()
}

func (m *Metrics) recordAcquisitionFailure() {
	if m == nil {
		return
	}
	m.acquisitionFailures.Inc()
}
