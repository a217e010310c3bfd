// Package events defines the queue and placement events emitted on the
// event bus.
//
// Available event types:
//   - StrategyEvent: placement strategy selection and fallback information
//   - OrderQueuedEvent, OrderCompletedEvent, OrderRemovedEvent: queue lifecycle
//   - QueueRecalculatedEvent: virtual state chain rebuilt
package events
