package model

import (
	"math"
	"time"
)

// OrderStatus tracks a dispatch order through its lifecycle.
type OrderStatus int

const (
	StatusDraft OrderStatus = iota
	StatusScheduled
	StatusRunning
	StatusCompleted
	StatusCancelled
	StatusConflict
)

// String returns a human-readable representation of the status.
func (s OrderStatus) String() string {
	switch s {
	case StatusDraft:
		return "DRAFT"
	case StatusScheduled:
		return "SCHEDULED"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusConflict:
		return "CONFLICT"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusConflict
}

// CustomerOrderStatus tracks an external delivery request.
type CustomerOrderStatus string

const (
	CustomerPending    CustomerOrderStatus = "PENDING"
	CustomerProcessing CustomerOrderStatus = "PROCESSING"
	CustomerCompleted  CustomerOrderStatus = "COMPLETED"
)

// CustomerOrder is an external request for a total volume of one grade,
// possibly satisfied by several dispatch orders over time.
type CustomerOrder struct {
	ID               string              `json:"id"`
	CustomerID       string              `json:"customer_id"`
	SiteID           string              `json:"site_id"`
	OilType          OilType             `json:"oil_type"`
	RequiredVolume   float64             `json:"required_volume"`
	DispatchedVolume float64             `json:"dispatched_volume"`
	EarliestStart    time.Time           `json:"earliest_start"`
	Deadline         time.Time           `json:"deadline"`
	Priority         int                 `json:"priority"`
	EntryTankID      string              `json:"entry_tank_id"`
	Status           CustomerOrderStatus `json:"status"`
}

const volumeTolerance = 1e-6

// Undispatched returns the volume still to be scheduled, never negative.
func (o CustomerOrder) Undispatched() float64 {
	v := o.RequiredVolume - o.DispatchedVolume
	if v < 0 {
		return 0
	}
	return v
}

// FullyDispatched reports whether the dispatched volume covers the
// requirement within floating-point tolerance.
func (o CustomerOrder) FullyDispatched() bool {
	if o.RequiredVolume == 0 {
		return true
	}
	return math.Abs(o.DispatchedVolume-o.RequiredVolume) < volumeTolerance
}

// DispatchOrder is the atomic unit of execution: one transfer of a fixed
// volume of one grade from a source tank to a target tank along a resolved
// pipeline path.
type DispatchOrder struct {
	ID               string      `json:"id"`
	CustomerOrderID  string      `json:"customer_order_id"`
	SiteID           string      `json:"site_id"`
	OilType          OilType     `json:"oil_type"`
	Volume           float64     `json:"volume"`
	SourceTankID     string      `json:"source_tank_id"`
	TargetTankID     string      `json:"target_tank_id"`
	Path             []string    `json:"path"` // pipeline segment ids, empty for same-site moves
	Start            time.Time   `json:"start"`
	End              time.Time   `json:"end"`
	Status           OrderStatus `json:"status"`
	CleaningRequired bool        `json:"cleaning_required"`
	Priority         int         `json:"priority"`
	CreatedAt        time.Time   `json:"created_at"`
	Notes            string      `json:"notes,omitempty"`
}

// Clone returns an independent copy of the order.
func (o DispatchOrder) Clone() DispatchOrder {
	cp := o
	cp.Path = append([]string(nil), o.Path...)
	return cp
}

// Active reports whether the order occupies [Start, End) at t.
func (o DispatchOrder) Active(t time.Time) bool {
	return !t.Before(o.Start) && t.Before(o.End)
}
