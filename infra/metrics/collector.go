package metrics

import (
	"context"
	"time"

	"github.com/oilroute/dispatch/core/events"
	coremetrics "github.com/oilroute/dispatch/core/metrics"
	"github.com/oilroute/dispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.OrderCompletedEvent:
					o := e.Order
					_ = sink.RecordTransfers([]coremetrics.TransferEvent{{
						OrderID:          o.ID,
						CustomerOrderID:  o.CustomerOrderID,
						SiteID:           o.SiteID,
						OilType:          o.OilType,
						Volume:           o.Volume,
						SourceTankID:     o.SourceTankID,
						TargetTankID:     o.TargetTankID,
						CleaningRequired: o.CleaningRequired,
						Start:            o.Start,
						End:              o.End,
						Time:             time.Now(),
					}})
				case events.StrategyEvent:
					if r, ok := sink.(coremetrics.PlacementRecorder); ok {
						_ = r.RecordPlacement(coremetrics.PlacementEvent{
							CustomerOrderID: e.CustomerOrderID,
							Strategy:        e.Strategy,
							Outcome:         e.Action,
							Time:            time.Now(),
						})
					}
				}
			}
		}
	}()
}
