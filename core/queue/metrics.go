package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	queueDepth     prometheus.Gauge
	mutationsTotal *prometheus.CounterVec
	replayConflict prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Gauge, *prometheus.CounterVec, prometheus.Counter) {
	depth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of dispatch orders currently queued",
		},
	)
	mut := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_mutations_total",
			Help: "Queue mutations by action",
		},
		[]string{"action"},
	)
	conf := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_replay_conflicts_total",
			Help: "Orders flagged CONFLICT during virtual state replay",
		},
	)
	return depth, mut, conf
}

func init() {
	queueDepth, mutationsTotal, replayConflict = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers queue metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(queueDepth, mutationsTotal, replayConflict)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	queueDepth, mutationsTotal, replayConflict = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func setQueueDepth(n int) { queueDepth.Set(float64(n)) }

func recordMutation(action string) { mutationsTotal.WithLabelValues(action).Inc() }

func recordConflict() { replayConflict.Inc() }
