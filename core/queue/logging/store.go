package logging

import (
	"context"
	"time"

	"github.com/oilroute/dispatch/core/model"
)

// Queue mutation actions recorded in the log.
const (
	ActionAdd        = "add"
	ActionInsert     = "insert"
	ActionMove       = "move"
	ActionRemove     = "remove"
	ActionCancel     = "cancel"
	ActionComplete   = "complete"
	ActionConflict   = "conflict"
	ActionReschedule = "reschedule"
	ActionBootstrap  = "bootstrap"
)

// Record captures one queue mutation and the order it touched.
type Record struct {
	Timestamp time.Time           `json:"timestamp"`
	Action    string              `json:"action"`
	OrderID   string              `json:"order_id"`
	Order     model.DispatchOrder `json:"order"`
	QueueLen  int                 `json:"queue_len"`
	Detail    string              `json:"detail,omitempty"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start   time.Time
	End     time.Time
	OrderID string
	Action  string
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards all records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error { return nil }

func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }

func (NopStore) Close() error { return nil }
