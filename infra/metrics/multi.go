package metrics

import coremetrics "github.com/oilroute/dispatch/core/metrics"

// MultiSink combines several sinks behind the core MetricsSink interface.
type MultiSink = coremetrics.MultiSink

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return coremetrics.NewMultiSink(sinks...)
}
