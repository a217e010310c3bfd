package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTransfers forwards the events to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordTransfers(events []TransferEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransfers(events); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlacement forwards planner decisions to sinks that record them.
func (m *MultiSink) RecordPlacement(ev PlacementEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PlacementRecorder); ok {
			if err := rec.RecordPlacement(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTankLevels forwards tank snapshots to sinks that record them.
func (m *MultiSink) RecordTankLevels(events []TankLevelEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TankLevelRecorder); ok {
			if err := rec.RecordTankLevels(events); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordQueueSnapshot forwards queue snapshots to sinks that record them.
func (m *MultiSink) RecordQueueSnapshot(ev QueueSnapshotEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(QueueSnapshotRecorder); ok {
			if err := rec.RecordQueueSnapshot(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
