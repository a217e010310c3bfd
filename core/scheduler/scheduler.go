package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oilroute/dispatch/core/dispatch"
	"github.com/oilroute/dispatch/core/logger"
	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/queue"
)

// Result reports the outcome of one scheduling run.
type Result struct {
	Placed    []model.DispatchOrder
	Conflicts []model.DispatchOrder
	Orders    []model.CustomerOrder
	Cycles    int
}

// RollingScheduler places customer orders into the dispatch queue over
// bounded passes.
type RollingScheduler struct {
	cfg     Config
	planCfg dispatch.Config
	planner *dispatch.Planner
	qm      *queue.Manager
	log     logger.Logger
}

// New validates the collaborators and returns a ready scheduler.
func New(cfg Config, planCfg dispatch.Config, planner *dispatch.Planner, qm *queue.Manager, log logger.Logger) (*RollingScheduler, error) {
	if planner == nil {
		return nil, errors.New("scheduler: planner is required")
	}
	if qm == nil {
		return nil, errors.New("scheduler: queue manager is required")
	}
	if log == nil {
		return nil, errors.New("scheduler: logger is required")
	}
	cfg.SetDefaults()
	planCfg.SetDefaults()
	return &RollingScheduler{cfg: cfg, planCfg: planCfg, planner: planner, qm: qm, log: log}, nil
}

// Run schedules the given customer orders. Orders are worked in priority
// order, highest first, largest remainder first. Each pass splits every
// unfinished order into batches and tries to place them against the state the
// queue tail leaves behind; the run stops early when a whole pass places
// nothing. Unfinished orders are returned with synthesized CONFLICT markers
// spanning their requested window.
func (s *RollingScheduler) Run(ctx context.Context, orders []model.CustomerOrder, now time.Time) (Result, error) {
	res := Result{Orders: make([]model.CustomerOrder, len(orders))}
	copy(res.Orders, orders)

	for cycle := 0; cycle < s.cfg.MaxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Cycles = cycle + 1
		placedAny := false

		for _, idx := range s.workOrder(res.Orders) {
			order := &res.Orders[idx]
			drafts := dispatch.SplitOrder(*order, s.cfg.MinBatchSize, now)
			for _, draft := range drafts {
				placed, err := s.placeDraft(*order, draft, now)
				if err != nil {
					s.log.Debugf("cycle %d: order %s batch %.1f m3 not placed: %v",
						cycle+1, order.ID, draft.Volume, err)
					continue
				}
				res.Placed = append(res.Placed, placed)
				order.DispatchedVolume += placed.Volume
				placedAny = true
			}
			switch {
			case order.FullyDispatched():
				order.Status = model.CustomerCompleted
			case order.DispatchedVolume > 0:
				order.Status = model.CustomerProcessing
			}
		}
		if !placedAny {
			break
		}
	}

	for i := range res.Orders {
		if res.Orders[i].FullyDispatched() {
			continue
		}
		conflict := s.conflictMarker(res.Orders[i], now)
		res.Conflicts = append(res.Conflicts, conflict)
		dispatch.RecordConflictOrder()
		s.log.Warnf("order %s keeps %.1f m3 unplaced after %d cycles",
			res.Orders[i].ID, res.Orders[i].Undispatched(), res.Cycles)
	}
	s.log.Infof("scheduling run done: %d placed, %d conflicts, %d cycles",
		len(res.Placed), len(res.Conflicts), res.Cycles)
	return res, nil
}

// placeDraft resolves one batch through the planner against the queue's tail
// state and enqueues the resulting dispatch order. The placement start sits
// one wash past the feasible moment whenever a grade switch is needed, so
// widening the slot backwards keeps it at or after that moment.
func (s *RollingScheduler) placeDraft(order model.CustomerOrder, draft model.DispatchOrder, now time.Time) (model.DispatchOrder, error) {
	tail := s.qm.TailState()
	horizon := s.horizon(now)

	pl, err := s.planner.Place(tail, order, draft.Volume, horizon)
	if err != nil {
		return model.DispatchOrder{}, err
	}

	draft.Volume = pl.Volume
	draft.SourceTankID = pl.SourceTankID
	draft.TargetTankID = pl.TargetTankID
	draft.Path = pl.Segments
	draft.CleaningRequired = pl.CleaningRequired
	draft.Start = pl.Start
	draft.End = pl.End
	if pl.CleaningRequired {
		wash := time.Duration(s.planCfg.WashHours * float64(time.Hour))
		draft.Start = pl.Start.Add(-wash)
	}
	if draft.Notes == "" {
		draft.Notes = fmt.Sprintf("%s via %s", order.ID, pl.Kind)
	}
	return s.qm.Add(draft)
}

// horizon is the moment new work can start: now, or the end of the current
// queue tail if that is later.
func (s *RollingScheduler) horizon(now time.Time) time.Time {
	queued := s.qm.Orders()
	if len(queued) == 0 {
		return now
	}
	if end := queued[len(queued)-1].End; end.After(now) {
		return end
	}
	return now
}

// workOrder returns order indices sorted by priority descending, then
// remaining volume descending, then id for determinism.
func (s *RollingScheduler) workOrder(orders []model.CustomerOrder) []int {
	idx := make([]int, 0, len(orders))
	for i := range orders {
		if !orders[i].FullyDispatched() {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		oa, ob := orders[idx[a]], orders[idx[b]]
		if oa.Priority != ob.Priority {
			return oa.Priority > ob.Priority
		}
		if oa.Undispatched() != ob.Undispatched() {
			return oa.Undispatched() > ob.Undispatched()
		}
		return oa.ID < ob.ID
	})
	return idx
}

// conflictMarker synthesizes a CONFLICT dispatch order covering the customer
// order's full requested window so the timeline shows the unplaced volume.
func (s *RollingScheduler) conflictMarker(order model.CustomerOrder, now time.Time) model.DispatchOrder {
	start := order.EarliestStart
	if start.IsZero() {
		start = now
	}
	end := order.Deadline
	if !end.After(start) {
		end = start.Add(time.Hour)
	}
	return model.DispatchOrder{
		ID:              queue.NewOrderID(now),
		CustomerOrderID: order.ID,
		SiteID:          order.SiteID,
		OilType:         order.OilType,
		Volume:          order.Undispatched(),
		Start:           start,
		End:             end,
		Status:          model.StatusConflict,
		Priority:        order.Priority,
		CreatedAt:       now,
		Notes:           "no feasible placement",
	}
}
