package model

import "time"

// Reservation blocks a pipeline for one transfer over a half-open interval
// [Start, End).
type Reservation struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	OilType OilType   `json:"oil_type"`
	Volume  float64   `json:"volume"`
	OrderID string    `json:"order_id"`
}

// Overlaps reports whether two half-open intervals intersect.
func (r Reservation) Overlaps(other Reservation) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// ShutdownWindow marks a period during which a pipeline cannot carry product.
type ShutdownWindow struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

// Pipeline is one trunk or branch line. Capacity is expressed as throughput
// in m3/h and also bounds the volume of a single batch.
type Pipeline struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Capacity     float64          `json:"capacity"`
	CurrentOil   OilType          `json:"current_oil"`
	Shutdowns    []ShutdownWindow `json:"shutdowns,omitempty"`
	Reservations []Reservation    `json:"reservations,omitempty"`
}

// FreeDuring reports whether the interval [start, end) collides with an
// existing reservation or a shutdown window.
func (p Pipeline) FreeDuring(start, end time.Time) bool {
	probe := Reservation{Start: start, End: end}
	for _, res := range p.Reservations {
		if probe.Overlaps(res) {
			return false
		}
	}
	for _, w := range p.Shutdowns {
		if start.Before(w.End) && w.Start.Before(end) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the pipeline.
func (p Pipeline) Clone() Pipeline {
	cp := p
	cp.Shutdowns = append([]ShutdownWindow(nil), p.Shutdowns...)
	cp.Reservations = append([]Reservation(nil), p.Reservations...)
	return cp
}

// Branch is a directed connectivity edge used only for route discovery.
// From and To name arbitrary topology nodes: tank ids, site ids or pipeline
// ids.
type Branch struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Direct bool   `json:"direct,omitempty"` // tank-to-tank shortcut
}
