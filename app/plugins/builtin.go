package plugins

import (
	"github.com/oilroute/dispatch/config"
	"github.com/oilroute/dispatch/core/factory"
	coremetrics "github.com/oilroute/dispatch/core/metrics"
	queuelog "github.com/oilroute/dispatch/core/queue/logging"
	inframetrics "github.com/oilroute/dispatch/infra/metrics"
)

func init() {
	RegisterLogStore("jsonl", func(name string, conf map[string]any) (queuelog.Store, error) {
		var lc config.LoggingConfig
		if err := factory.Decode(conf, &lc); err != nil {
			return nil, err
		}
		if lc.MaxSizeMB > 0 {
			return queuelog.NewRotatingJSONLStore(lc.Path, lc.MaxSizeMB, lc.MaxBackups, lc.MaxAgeDays)
		}
		return queuelog.NewJSONLStore(lc.Path)
	})
	RegisterLogStore("sqlite", func(name string, conf map[string]any) (queuelog.Store, error) {
		var lc config.LoggingConfig
		if err := factory.Decode(conf, &lc); err != nil {
			return nil, err
		}
		return queuelog.NewSQLiteStore(lc.Path)
	})

	RegisterMetrics("prometheus", func(name string, conf map[string]any) (coremetrics.MetricsSink, error) {
		var mc coremetrics.Config
		if err := factory.Decode(conf, &mc); err != nil {
			return nil, err
		}
		return inframetrics.NewPromSink(mc)
	})
	RegisterMetrics("influx", func(name string, conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return inframetrics.NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
