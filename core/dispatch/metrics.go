package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	placementsTotal *prometheus.CounterVec
	batchVolume     *prometheus.HistogramVec
	fallbackTotal   prometheus.Counter
	conflictsTotal  prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter, prometheus.Counter) {
	placed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_placements_total",
			Help: "Placement attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)
	vol := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_batch_volume_m3",
			Help:    "Volume of placed dispatch orders",
			Buckets: prometheus.ExponentialBuckets(50, 2, 8),
		},
		[]string{"strategy"},
	)
	fb := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_greedy_fallback_total",
			Help: "Number of placements that fell back to the greedy strategy",
		},
	)
	conf := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_conflict_orders_total",
			Help: "Number of dispatch orders synthesized with CONFLICT status",
		},
	)
	return placed, vol, fb, conf
}

func init() {
	placementsTotal, batchVolume, fallbackTotal, conflictsTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers placement metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(placementsTotal, batchVolume, fallbackTotal, conflictsTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	placementsTotal, batchVolume, fallbackTotal, conflictsTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// RecordConflictOrder increments the conflict counter. Called by the
// scheduler when an order stays infeasible after all cycles.
func RecordConflictOrder() { conflictsTotal.Inc() }
