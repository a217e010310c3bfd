package metrics

import (
	"strconv"

	coremetrics "github.com/oilroute/dispatch/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records dispatch events in Prometheus metrics.
type PromSink struct {
	transfers *prometheus.CounterVec
	volume    *prometheus.HistogramVec
	placement *prometheus.CounterVec
	tankFill  *prometheus.GaugeVec
	depth     prometheus.Gauge
	conflicts prometheus.Gauge
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusAddr.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_events_total",
		Help: "Committed transfers by oil type and cleaning requirement",
	}, []string{"oil_type", "cleaning"})
	volume := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transfer_volume_m3",
		Help:    "Volume of committed transfers",
		Buckets: prometheus.ExponentialBuckets(50, 2, 8),
	}, []string{"oil_type"})
	placement := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_decisions_total",
		Help: "Planner decisions by strategy and outcome",
	}, []string{"strategy", "outcome"})
	tankFill := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tank_fill_ratio",
		Help: "Tank inventory over safe capacity",
	}, []string{"tank_id", "site_id"})
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_queue_depth",
		Help: "Dispatch orders currently queued",
	})
	conflicts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_queue_conflicts",
		Help: "Queued orders currently flagged CONFLICT",
	})

	if err := reg.Register(transfers); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transfers = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(volume); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			volume = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(placement); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			placement = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(tankFill); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			tankFill = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(depth); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			depth = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(conflicts); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			conflicts = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		transfers: transfers,
		volume:    volume,
		placement: placement,
		tankFill:  tankFill,
		depth:     depth,
		conflicts: conflicts,
	}, nil
}

// RecordTransfers increments the counters for each committed transfer.
func (s *PromSink) RecordTransfers(events []coremetrics.TransferEvent) error {
	for _, e := range events {
		s.transfers.WithLabelValues(string(e.OilType), strconv.FormatBool(e.CleaningRequired)).Inc()
		s.volume.WithLabelValues(string(e.OilType)).Observe(e.Volume)
	}
	return nil
}

// RecordPlacement counts planner decisions.
func (s *PromSink) RecordPlacement(ev coremetrics.PlacementEvent) error {
	s.placement.WithLabelValues(ev.Strategy, ev.Outcome).Inc()
	return nil
}

// RecordTankLevels sets the fill gauge for each tank.
func (s *PromSink) RecordTankLevels(events []coremetrics.TankLevelEvent) error {
	for _, e := range events {
		s.tankFill.WithLabelValues(e.TankID, e.SiteID).Set(e.FillRatio)
	}
	return nil
}

// RecordQueueSnapshot sets the queue gauges.
func (s *PromSink) RecordQueueSnapshot(ev coremetrics.QueueSnapshotEvent) error {
	s.depth.Set(float64(ev.Depth))
	s.conflicts.Set(float64(ev.Conflicts))
	return nil
}
