package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/oilroute/dispatch/core/metrics"
	"github.com/oilroute/dispatch/infra/logger"
)

// InfluxSink writes dispatch events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordTransfers writes committed transfers as line protocol events.
func (s *InfluxSink) RecordTransfers(events []coremetrics.TransferEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, e := range events {
		p := write.NewPointWithMeasurement("transfer_event").
			AddTag("order_id", e.OrderID).
			AddTag("customer_order_id", e.CustomerOrderID).
			AddTag("site_id", e.SiteID).
			AddTag("oil_type", string(e.OilType)).
			AddTag("cleaning", strconv.FormatBool(e.CleaningRequired)).
			AddTag("component", "queue_manager").
			AddField("volume_m3", round3(e.Volume)).
			AddField("source_tank", e.SourceTankID).
			AddField("target_tank", e.TargetTankID).
			AddField("duration_s", round3(e.End.Sub(e.Start).Seconds())).
			SetTime(e.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlacement persists one planner decision.
func (s *InfluxSink) RecordPlacement(ev coremetrics.PlacementEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("planner_decision").
		AddTag("customer_order_id", ev.CustomerOrderID).
		AddTag("strategy", ev.Strategy).
		AddTag("outcome", ev.Outcome).
		AddTag("component", "planner").
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTankLevels writes tank snapshots.
func (s *InfluxSink) RecordTankLevels(events []coremetrics.TankLevelEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, e := range events {
		p := write.NewPointWithMeasurement("tank_level").
			AddTag("tank_id", e.TankID).
			AddTag("site_id", e.SiteID).
			AddTag("oil_type", string(e.OilType)).
			AddField("inventory_m3", round3(e.Inventory)).
			AddField("fill_ratio", round3(e.FillRatio)).
			SetTime(e.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordQueueSnapshot writes a queue snapshot.
func (s *InfluxSink) RecordQueueSnapshot(ev coremetrics.QueueSnapshotEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("queue_snapshot").
		AddTag("component", "queue_manager").
		AddField("depth", ev.Depth).
		AddField("conflicts", ev.Conflicts).
		AddField("utilization", round3(ev.Utilization)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
