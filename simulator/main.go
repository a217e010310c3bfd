package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	coremetrics "github.com/oilroute/dispatch/core/metrics"
	"github.com/oilroute/dispatch/infra/metrics"
)

func main() {
	cfg := parseFlags()
	if err := (&cfg).Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strat := RandomAck{Delay: cfg.AckLatency, DropRate: cfg.DropRate}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if cfg.InfluxURL != "" {
		sink = metrics.NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	}

	var wg sync.WaitGroup
	for _, id := range strings.Split(cfg.Sites, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		site := &SimulatedSite{
			ID:       id,
			Broker:   cfg.Broker,
			AckTopic: cfg.AckTopic,
			Strategy: strat,
			Speedup:  cfg.Speedup,
			Metrics:  sink,
		}
		wg.Add(1)
		go func(s *SimulatedSite) {
			defer wg.Done()
			if err := s.Run(ctx); err != nil {
				log.Printf("%s: %v", s.ID, err)
			}
		}(site)
	}
	wg.Wait()
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.Sites, "sites", "depot_a", "comma separated site ids")
	flag.StringVar(&cfg.AckTopic, "ack-topic", "dispatch/ack", "acknowledgment topic")
	flag.DurationVar(&cfg.AckLatency, "ack-latency", 0, "ack latency")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "ack drop rate")
	flag.Float64Var(&cfg.Speedup, "speedup", 3600, "wall clock speedup for transfer execution")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.StringVar(&cfg.InfluxURL, "influx-url", "", "InfluxDB URL")
	flag.StringVar(&cfg.InfluxToken, "influx-token", "", "InfluxDB token")
	flag.StringVar(&cfg.InfluxOrg, "influx-org", "", "InfluxDB organization")
	flag.StringVar(&cfg.InfluxBucket, "influx-bucket", "", "InfluxDB bucket")
	flag.Parse()
	return cfg
}
