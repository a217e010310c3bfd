package plugins

import (
	coremetrics "github.com/oilroute/dispatch/core/metrics"
	queuelog "github.com/oilroute/dispatch/core/queue/logging"
)

// LogStoreFactory builds a queue log store from raw config.
type LogStoreFactory func(name string, conf map[string]any) (queuelog.Store, error)

// MetricsFactory builds a metrics exporter from raw config.
type MetricsFactory func(name string, conf map[string]any) (coremetrics.MetricsSink, error)

var (
	LogStores        = map[string]LogStoreFactory{}
	MetricsExporters = map[string]MetricsFactory{}
)

func RegisterLogStore(name string, f LogStoreFactory) { LogStores[name] = f }
func RegisterMetrics(name string, f MetricsFactory)   { MetricsExporters[name] = f }
