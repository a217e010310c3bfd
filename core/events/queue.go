package events

import "github.com/oilroute/dispatch/core/model"

// OrderQueuedEvent is published when a dispatch order enters the queue.
type OrderQueuedEvent struct {
	Order    model.DispatchOrder
	Position int
}

// OrderCompletedEvent is published when the queue head commits into the
// real state.
type OrderCompletedEvent struct {
	Order model.DispatchOrder
}

// OrderRemovedEvent is published when an order leaves the queue without
// committing. Cancelled tells removal from cancellation apart from plain
// removal.
type OrderRemovedEvent struct {
	Order     model.DispatchOrder
	Cancelled bool
}

// QueueRecalculatedEvent is published after a full replay of the virtual
// state chain.
type QueueRecalculatedEvent struct {
	QueueLen int
}
