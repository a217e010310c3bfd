package orderbook

import (
	"fmt"
	"time"

	"github.com/oilroute/dispatch/core/model"
)

// Response mirrors the order book wire format.
type Response struct {
	OrderBook []struct {
		ID             string  `json:"id"`
		CustomerID     string  `json:"customer_id"`
		SiteID         string  `json:"site_id"`
		OilType        string  `json:"oil_type"`
		RequiredVolume float64 `json:"required_volume"`
		EarliestStart  string  `json:"earliest_start"`
		Deadline       string  `json:"deadline"`
		Priority       int     `json:"priority"`
		EntryTankID    string  `json:"entry_tank_id"`
	} `json:"order_book"`
}

// Orders converts the wire entries into customer orders. Timestamps are
// RFC3339; new orders start in the PENDING state.
func (r *Response) Orders() ([]model.CustomerOrder, error) {
	out := make([]model.CustomerOrder, 0, len(r.OrderBook))
	for _, e := range r.OrderBook {
		start, err := time.Parse(time.RFC3339, e.EarliestStart)
		if err != nil {
			return nil, fmt.Errorf("failed to parse earliest_start for order %s: %w", e.ID, err)
		}
		deadline, err := time.Parse(time.RFC3339, e.Deadline)
		if err != nil {
			return nil, fmt.Errorf("failed to parse deadline for order %s: %w", e.ID, err)
		}
		out = append(out, model.CustomerOrder{
			ID:             e.ID,
			CustomerID:     e.CustomerID,
			SiteID:         e.SiteID,
			OilType:        model.OilType(e.OilType),
			RequiredVolume: e.RequiredVolume,
			EarliestStart:  start,
			Deadline:       deadline,
			Priority:       e.Priority,
			EntryTankID:    e.EntryTankID,
			Status:         model.CustomerPending,
		})
	}
	return out, nil
}
