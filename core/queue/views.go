package queue

import (
	"time"

	"github.com/oilroute/dispatch/core/model"
)

const viewTimeFormat = "2006-01-02 15:04"

// StatusColor maps an order status to its display color.
func StatusColor(s model.OrderStatus) string {
	switch s {
	case model.StatusDraft:
		return "#6c757d"
	case model.StatusScheduled:
		return "#17a2b8"
	case model.StatusRunning:
		return "#28a745"
	case model.StatusCompleted:
		return "#6c757d"
	case model.StatusCancelled:
		return "#dc3545"
	case model.StatusConflict:
		return "#ffc107"
	default:
		return "#007bff"
	}
}

// OrderView is the presentation form of one queued order.
type OrderView struct {
	ID              string  `json:"id"`
	SourceTankID    string  `json:"source_tank_id"`
	TargetTankID    string  `json:"target_tank_id"`
	OilType         string  `json:"oil_type"`
	Volume          float64 `json:"volume"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	DurationMinutes int     `json:"duration_minutes"`
	Status          string  `json:"status"`
	Color           string  `json:"color"`
}

// StateInfo summarizes the committed resource state for status reporting.
type StateInfo struct {
	TankCount             int     `json:"tank_count"`
	PipelineCount         int     `json:"pipeline_count"`
	TotalDispatchOrders   int     `json:"total_dispatch_orders"`
	TotalVolumeDispatched float64 `json:"total_volume_dispatched"`
	OilSwitchCount        int     `json:"oil_switch_count"`
	ResourceUtilization   float64 `json:"resource_utilization"`
}

// Status is a full snapshot of the queue for operators and the MQTT feed.
type Status struct {
	TotalOrders             int         `json:"total_orders"`
	NextOrderID             string      `json:"next_order_id"`
	EstimatedCompletionTime string      `json:"estimated_completion_time"`
	Orders                  []OrderView `json:"orders"`
	IsIdle                  bool        `json:"is_idle"`
	RealSystemStateInfo     StateInfo   `json:"real_system_state_info"`
}

// Status builds the queue snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		TotalOrders: len(m.queue),
		IsIdle:      len(m.queue) == 0,
		Orders:      make([]OrderView, 0, len(m.queue)),
	}
	if len(m.queue) > 0 {
		st.NextOrderID = m.queue[0].ID
		st.EstimatedCompletionTime = m.queue[len(m.queue)-1].End.Format(viewTimeFormat)
	}
	for _, o := range m.queue {
		st.Orders = append(st.Orders, OrderView{
			ID:              o.ID,
			SourceTankID:    o.SourceTankID,
			TargetTankID:    o.TargetTankID,
			OilType:         string(o.OilType),
			Volume:          o.Volume,
			Start:           o.Start.Format(viewTimeFormat),
			End:             o.End.Format(viewTimeFormat),
			DurationMinutes: int(o.End.Sub(o.Start).Minutes()),
			Status:          o.Status.String(),
			Color:           StatusColor(o.Status),
		})
	}
	st.RealSystemStateInfo = StateInfo{
		TankCount:             len(m.real.Tanks),
		PipelineCount:         len(m.real.Pipelines),
		TotalDispatchOrders:   m.real.TotalDispatchOrders,
		TotalVolumeDispatched: m.real.TotalVolumeDispatched,
		OilSwitchCount:        m.real.OilSwitchCount,
		ResourceUtilization:   m.real.ResourceUtilization(),
	}
	return st
}

// GanttEntry is one bar on the schedule timeline.
type GanttEntry struct {
	OrderID string `json:"order_id"`
	Label   string `json:"label"`
	SiteID  string `json:"site_id"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Status  string `json:"status"`
	Color   string `json:"color"`
}

// Gantt renders the queue as timeline entries. A scheduled order whose window
// covers now is shown as RUNNING.
func (m *Manager) Gantt(now time.Time) []GanttEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GanttEntry, 0, len(m.queue))
	for _, o := range m.queue {
		status := o.Status
		if status == model.StatusScheduled && o.Active(now) {
			status = model.StatusRunning
		}
		out = append(out, GanttEntry{
			OrderID: o.ID,
			Label:   o.SourceTankID + " -> " + o.TargetTankID,
			SiteID:  o.SiteID,
			Start:   o.Start.Format(viewTimeFormat),
			End:     o.End.Format(viewTimeFormat),
			Status:  status.String(),
			Color:   StatusColor(status),
		})
	}
	return out
}
