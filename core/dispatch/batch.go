package dispatch

import (
	"time"

	"github.com/oilroute/dispatch/core/model"
)

// SplitOrder converts the undispatched remainder of a customer order into
// dispatch-order drafts. A remainder up to twice the minimum batch size
// stays in one draft; anything larger is cut into exactly two equal halves
// so the sum is preserved exactly.
func SplitOrder(order model.CustomerOrder, minBatch float64, now time.Time) []model.DispatchOrder {
	remaining := order.Undispatched()
	if remaining <= 0 {
		return nil
	}
	draft := func(volume float64) model.DispatchOrder {
		return model.DispatchOrder{
			CustomerOrderID: order.ID,
			SiteID:          order.SiteID,
			OilType:         order.OilType,
			Volume:          volume,
			Priority:        order.Priority,
			Status:          model.StatusDraft,
			CreatedAt:       now,
		}
	}
	if remaining <= 2*minBatch {
		return []model.DispatchOrder{draft(remaining)}
	}
	half := remaining / 2
	return []model.DispatchOrder{draft(half), draft(remaining - half)}
}
