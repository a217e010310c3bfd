package dispatch

import (
	"fmt"
	"time"

	"github.com/oilroute/dispatch/core/events"
	"github.com/oilroute/dispatch/core/logger"
	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/path"
	"github.com/oilroute/dispatch/core/state"
	"github.com/oilroute/dispatch/internal/eventbus"
)

// Urgency and load thresholds driving strategy selection.
const (
	urgencyThreshold     = 0.85
	priorityThreshold    = 7
	utilizationThreshold = 0.8
)

// Planner selects an urgency-driven strategy per order and falls back to the
// greedy single-pass placement when the selected strategy fails. It owns no
// state; every call works against the snapshot it is given.
type Planner struct {
	cfg    Config
	finder *path.Finder
	bus    eventbus.EventBus
	log    logger.Logger

	deadline   DeadlineStrategy
	compat     CompatibilityStrategy
	balancing  BalancingStrategy
	throughput ThroughputStrategy
	greedy     GreedyStrategy
}

// NewPlanner validates the collaborators and returns a ready Planner.
func NewPlanner(cfg Config, finder *path.Finder, bus eventbus.EventBus, log logger.Logger) (*Planner, error) {
	if finder == nil {
		return nil, fmt.Errorf("path finder is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	cfg.SetDefaults()
	core := strategyCore{cfg: cfg, finder: finder}
	return &Planner{
		cfg:        cfg,
		finder:     finder,
		bus:        bus,
		log:        log,
		deadline:   DeadlineStrategy{core},
		compat:     CompatibilityStrategy{core},
		balancing:  BalancingStrategy{core},
		throughput: ThroughputStrategy{core},
		greedy:     GreedyStrategy{core},
	}, nil
}

// Place resolves a placement for one draft volume of the customer order.
// Failure of the selected strategy triggers the greedy fallback; only when
// both fail does the caller see an error, carrying the fallback's reason.
func (p *Planner) Place(st *state.ResourceState, order model.CustomerOrder, volume float64, now time.Time) (Placement, error) {
	strat := p.strategyFor(st, order, volume, now)
	p.publish(events.StrategyEvent{CustomerOrderID: order.ID, Strategy: strat.Name(), Action: "attempt"})

	pl, err := strat.Place(st, order, volume, now)
	if err == nil {
		placementsTotal.WithLabelValues(strat.Name(), "placed").Inc()
		batchVolume.WithLabelValues(strat.Name()).Observe(pl.Volume)
		return pl, nil
	}
	p.publish(events.StrategyEvent{CustomerOrderID: order.ID, Strategy: strat.Name(), Action: "failure", Err: err})
	placementsTotal.WithLabelValues(strat.Name(), "failed").Inc()
	p.log.Debugf("strategy %s failed for order %s: %v", strat.Name(), order.ID, err)

	p.publish(events.StrategyEvent{CustomerOrderID: order.ID, Strategy: p.greedy.Name(), Action: "greedy_fallback"})
	fallbackTotal.Inc()
	pl, err = p.greedy.Place(st, order, volume, now)
	if err != nil {
		placementsTotal.WithLabelValues(p.greedy.Name(), "failed").Inc()
		return Placement{}, err
	}
	placementsTotal.WithLabelValues(p.greedy.Name(), "placed").Inc()
	batchVolume.WithLabelValues(p.greedy.Name()).Observe(pl.Volume)
	return pl, nil
}

// strategyFor implements the selection rule: deadline priority for urgent or
// high-priority orders, compatibility when clean tanks exist, balancing under
// high load, throughput otherwise.
func (p *Planner) strategyFor(st *state.ResourceState, order model.CustomerOrder, volume float64, now time.Time) Strategy {
	switch {
	case p.urgency(order, volume, now) > urgencyThreshold || order.Priority > priorityThreshold:
		return p.deadline
	case p.hasCompatibleSource(st, order, volume):
		return p.compat
	case st.ResourceUtilization() > utilizationThreshold:
		return p.balancing
	default:
		return p.throughput
	}
}

// urgency relates the estimated processing time to the time left until the
// deadline, saturating at 1.
func (p *Planner) urgency(order model.CustomerOrder, volume float64, now time.Time) float64 {
	untilDeadline := order.Deadline.Sub(now).Seconds()
	if untilDeadline <= 0 {
		return 1
	}
	rate := p.cfg.DefaultFlowRate * order.OilType.FlowModifier()
	if rate <= 0 {
		return 1
	}
	estimate := volume / rate * 3600
	if untilDeadline < 1 {
		untilDeadline = 1
	}
	u := estimate / untilDeadline
	if u > 1 {
		return 1
	}
	return u
}

func (p *Planner) hasCompatibleSource(st *state.ResourceState, order model.CustomerOrder, volume float64) bool {
	for _, id := range st.TankIDs() {
		t := st.Tanks[id]
		if !t.Config.HasRole(model.RoleSource) || t.Status != model.TankAvailable {
			continue
		}
		if t.OilType == order.OilType && t.AvailableVolume() >= volume {
			return true
		}
	}
	return false
}

func (p *Planner) publish(ev events.StrategyEvent) {
	if p.bus != nil {
		p.bus.Publish(ev)
	}
}
