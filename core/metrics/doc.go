// Package metrics defines interfaces and event types for recording dispatch
// activity. Sinks like PromSink and InfluxSink record committed transfers,
// placement decisions, tank levels and queue snapshots and can be combined
// with NewMultiSink. The factory helpers return a MultiSink automatically
// when multiple sinks are configured.
package metrics
