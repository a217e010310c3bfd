package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/oilroute/dispatch/core/metrics"
)

func newPromSink(t *testing.T) (*PromSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("new prom sink: %v", err)
	}
	return sink.(*PromSink), reg
}

func TestPromSinkRecordTransfers(t *testing.T) {
	sink, _ := newPromSink(t)
	events := []coremetrics.TransferEvent{
		{OilType: "diesel", Volume: 300, CleaningRequired: false},
		{OilType: "diesel", Volume: 150, CleaningRequired: false},
		{OilType: "bitumen", Volume: 500, CleaningRequired: true},
	}
	if err := sink.RecordTransfers(events); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := testutil.ToFloat64(sink.transfers.WithLabelValues("diesel", "false")); got != 2 {
		t.Errorf("diesel transfers = %.0f, want 2", got)
	}
	if got := testutil.ToFloat64(sink.transfers.WithLabelValues("bitumen", "true")); got != 1 {
		t.Errorf("bitumen transfers = %.0f, want 1", got)
	}
}

func TestPromSinkRecordPlacement(t *testing.T) {
	sink, _ := newPromSink(t)
	ev := coremetrics.PlacementEvent{Strategy: "deadline_priority", Outcome: "attempt"}
	if err := sink.RecordPlacement(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := sink.RecordPlacement(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := testutil.ToFloat64(sink.placement.WithLabelValues("deadline_priority", "attempt")); got != 2 {
		t.Errorf("decisions = %.0f, want 2", got)
	}
}

func TestPromSinkRecordTankLevels(t *testing.T) {
	sink, _ := newPromSink(t)
	err := sink.RecordTankLevels([]coremetrics.TankLevelEvent{
		{TankID: "T1", SiteID: "depot_a", FillRatio: 0.8},
		{TankID: "T1", SiteID: "depot_a", FillRatio: 0.6},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := testutil.ToFloat64(sink.tankFill.WithLabelValues("T1", "depot_a")); got != 0.6 {
		t.Errorf("fill = %.2f, want last write 0.6", got)
	}
}

func TestPromSinkRecordQueueSnapshot(t *testing.T) {
	sink, _ := newPromSink(t)
	if err := sink.RecordQueueSnapshot(coremetrics.QueueSnapshotEvent{Depth: 5, Conflicts: 2}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := testutil.ToFloat64(sink.depth); got != 5 {
		t.Errorf("depth = %.0f, want 5", got)
	}
	if got := testutil.ToFloat64(sink.conflicts); got != 2 {
		t.Errorf("conflicts = %.0f, want 2", got)
	}
}

func TestPromSinkReregistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := first.RecordTransfers([]coremetrics.TransferEvent{{OilType: "diesel"}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	s2 := second.(*PromSink)
	if got := testutil.ToFloat64(s2.transfers.WithLabelValues("diesel", "false")); got != 1 {
		t.Errorf("shared counter = %.0f, want 1", got)
	}
}
