package metrics

import (
	"time"

	"github.com/oilroute/dispatch/core/model"
)

// TransferEvent represents one committed transfer to be recorded.
type TransferEvent struct {
	OrderID          string
	CustomerOrderID  string
	SiteID           string
	OilType          model.OilType
	Volume           float64
	SourceTankID     string
	TargetTankID     string
	CleaningRequired bool
	Start            time.Time
	End              time.Time
	Time             time.Time
}

// MetricsSink records transfer events for observability purposes.
type MetricsSink interface {
	RecordTransfers(events []TransferEvent) error
}

// PlacementEvent captures one planner decision.
type PlacementEvent struct {
	CustomerOrderID string
	Strategy        string
	Outcome         string
	Time            time.Time
}

// PlacementRecorder records planner decisions.
type PlacementRecorder interface {
	RecordPlacement(ev PlacementEvent) error
}

// TankLevelEvent is a snapshot of one tank.
type TankLevelEvent struct {
	TankID    string
	SiteID    string
	OilType   model.OilType
	Inventory float64
	FillRatio float64
	Time      time.Time
}

// TankLevelRecorder records tank snapshots.
type TankLevelRecorder interface {
	RecordTankLevels(events []TankLevelEvent) error
}

// QueueSnapshotEvent captures the state of the dispatch queue.
type QueueSnapshotEvent struct {
	Depth       int
	Conflicts   int
	Utilization float64
	Time        time.Time
}

// QueueSnapshotRecorder records queue snapshots.
type QueueSnapshotRecorder interface {
	RecordQueueSnapshot(ev QueueSnapshotEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordTransfers([]TransferEvent) error { return nil }

func (NopSink) RecordPlacement(PlacementEvent) error { return nil }

func (NopSink) RecordTankLevels([]TankLevelEvent) error { return nil }

func (NopSink) RecordQueueSnapshot(QueueSnapshotEvent) error { return nil }
