package dispatch

import (
	"errors"
	"time"

	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/path"
	"github.com/oilroute/dispatch/core/state"
)

// Placement failure reasons. They signal infeasibility for one attempt, not
// a system fault; the planner falls back or the caller records CONFLICT.
var (
	ErrNoSourceTank     = errors.New("no eligible source tank")
	ErrNoTargetTank     = errors.New("no eligible target tank")
	ErrNoRoute          = errors.New("no feasible route")
	ErrDeadlineExceeded = errors.New("transfer cannot finish before the deadline")
)

// Placement is a fully resolved transfer proposal for one draft. When
// CleaningRequired is set, Start already sits one wash past the earliest
// feasible moment, so the wash window precedes Start.
type Placement struct {
	Volume           float64
	SourceTankID     string
	TargetTankID     string
	Segments         []string
	Kind             path.Kind
	Start            time.Time
	End              time.Time
	CleaningRequired bool
}

// Strategy resolves source, target, route and timing for a volume of one
// customer order against a snapshot.
type Strategy interface {
	Name() string
	Place(st *state.ResourceState, order model.CustomerOrder, volume float64, now time.Time) (Placement, error)
}

type strategyCore struct {
	cfg    Config
	finder *path.Finder
}

// option evaluates one concrete source-tank choice: pick the best target at
// the order's site, compute the start (wash time first when the source tank
// or the line must switch grades) and resolve a route.
func (c strategyCore) option(st *state.ResourceState, order model.CustomerOrder, sourceID string, volume float64, now time.Time) (Placement, error) {
	targetID, ok := SelectTargetTank(st, order.SiteID, order.OilType, volume)
	if !ok {
		return Placement{}, ErrNoTargetTank
	}
	src := st.Tanks[sourceID]
	cleaning := src.OilType.IsSet() && src.OilType != order.OilType
	wash := time.Duration(c.cfg.WashHours * float64(time.Hour))

	start := now
	if order.EarliestStart.After(start) {
		start = order.EarliestStart
	}
	if cleaning {
		start = start.Add(wash)
	}
	route, ok := c.finder.Find(st, path.Request{
		SourceTankID: sourceID,
		TargetTankID: targetID,
		OilType:      order.OilType,
		Volume:       volume,
		Start:        start,
	})
	if !ok {
		return Placement{}, ErrNoRoute
	}
	if route.CleaningRequired && !cleaning {
		// A line flush delays pumping the same way a tank grade switch
		// does, so push the start and re-check the route at the later slot.
		cleaning = true
		start = start.Add(wash)
		route, ok = c.finder.Find(st, path.Request{
			SourceTankID: sourceID,
			TargetTankID: targetID,
			OilType:      order.OilType,
			Volume:       volume,
			Start:        start,
		})
		if !ok {
			return Placement{}, ErrNoRoute
		}
	}
	return Placement{
		Volume:           volume,
		SourceTankID:     sourceID,
		TargetTankID:     targetID,
		Segments:         route.Segments,
		Kind:             route.Kind,
		Start:            start,
		End:              start.Add(route.Duration),
		CleaningRequired: cleaning,
	}, nil
}

// sourceCandidates lists eligible source tanks by descending selection score.
func (c strategyCore) sourceCandidates(st *state.ResourceState, oil model.OilType, volume float64) []scoredTank {
	var out []scoredTank
	for _, id := range st.TankIDs() {
		t := st.Tanks[id]
		if !t.Config.HasRole(model.RoleSource) || t.Status != model.TankAvailable {
			continue
		}
		if t.AvailableVolume() < volume {
			continue
		}
		out = append(out, scoredTank{id: id, score: sourceScore(t, oil, volume)})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].score > out[j-1].score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// moderated shrinks a batch to a fraction of the tank's spare inventory
// without dropping below the minimum batch size or growing past the draft.
func (c strategyCore) moderated(volume, available, fraction float64) float64 {
	v := available * fraction
	if v < c.cfg.MinBatchSize {
		v = c.cfg.MinBatchSize
	}
	if v > volume {
		v = volume
	}
	return v
}

// DeadlineStrategy targets urgent orders: among all eligible sources it takes
// the option finishing earliest, tolerating thin margins elsewhere.
type DeadlineStrategy struct{ strategyCore }

func (DeadlineStrategy) Name() string { return "deadline_priority" }

func (s DeadlineStrategy) Place(st *state.ResourceState, order model.CustomerOrder, volume float64, now time.Time) (Placement, error) {
	cands := s.sourceCandidates(st, order.OilType, volume)
	if len(cands) == 0 {
		return Placement{}, ErrNoSourceTank
	}
	best, found := Placement{}, false
	lastErr := ErrNoRoute
	for _, c := range cands {
		pl, err := s.option(st, order, c.id, volume, now)
		if err != nil {
			lastErr = err
			continue
		}
		if pl.End.After(order.Deadline) {
			lastErr = ErrDeadlineExceeded
			continue
		}
		if !found || pl.End.Before(best.End) {
			best = pl
			found = true
		}
	}
	if !found {
		return Placement{}, lastErr
	}
	return best, nil
}

// CompatibilityStrategy minimises cleaning: only sources already holding the
// grade (or empty) are considered, with a moderate batch fraction.
type CompatibilityStrategy struct{ strategyCore }

func (CompatibilityStrategy) Name() string { return "compatibility_priority" }

func (s CompatibilityStrategy) Place(st *state.ResourceState, order model.CustomerOrder, volume float64, now time.Time) (Placement, error) {
	cands := s.sourceCandidates(st, order.OilType, volume)
	lastErr := ErrNoSourceTank
	for _, c := range cands {
		t := st.Tanks[c.id]
		if !t.AcceptsOil(order.OilType) {
			continue
		}
		v := s.moderated(volume, t.AvailableVolume(), 0.7)
		pl, err := s.option(st, order, c.id, v, now)
		if err != nil {
			lastErr = err
			continue
		}
		if pl.End.After(order.Deadline) {
			lastErr = ErrDeadlineExceeded
			continue
		}
		return pl, nil
	}
	return Placement{}, lastErr
}

// BalancingStrategy spreads load when overall utilization is high, weighing
// tank fill, spare inventory and grade compatibility.
type BalancingStrategy struct{ strategyCore }

func (BalancingStrategy) Name() string { return "resource_balancing" }

func (s BalancingStrategy) Place(st *state.ResourceState, order model.CustomerOrder, volume float64, now time.Time) (Placement, error) {
	type weighted struct {
		id    string
		score float64
	}
	var cands []weighted
	for _, c := range s.sourceCandidates(st, order.OilType, volume) {
		t := st.Tanks[c.id]
		fill := 0.0
		if t.Config.SafeCapacity > 0 {
			fill = t.Inventory / t.Config.SafeCapacity
		}
		spare := 0.0
		if t.Config.SafeCapacity > 0 {
			spare = t.AvailableVolume() / t.Config.SafeCapacity
		}
		compat := 0.6
		switch {
		case t.OilType == order.OilType:
			compat = 1.0
		case t.IsEmpty():
			compat = 0.8
		}
		cands = append(cands, weighted{id: c.id, score: (1-fill)*0.4 + spare*0.3 + compat*0.3})
	}
	if len(cands) == 0 {
		return Placement{}, ErrNoSourceTank
	}
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].score > cands[j-1].score; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
	lastErr := ErrNoRoute
	for _, c := range cands {
		t := st.Tanks[c.id]
		v := s.moderated(volume, t.AvailableVolume(), 0.6)
		pl, err := s.option(st, order, c.id, v, now)
		if err != nil {
			lastErr = err
			continue
		}
		if pl.End.After(order.Deadline) {
			lastErr = ErrDeadlineExceeded
			continue
		}
		return pl, nil
	}
	return Placement{}, lastErr
}

// ThroughputStrategy minimises total handling time, preferring large batches
// and the fastest route.
type ThroughputStrategy struct{ strategyCore }

func (ThroughputStrategy) Name() string { return "processing_time" }

func (s ThroughputStrategy) Place(st *state.ResourceState, order model.CustomerOrder, volume float64, now time.Time) (Placement, error) {
	cands := s.sourceCandidates(st, order.OilType, volume)
	if len(cands) == 0 {
		return Placement{}, ErrNoSourceTank
	}
	best, found := Placement{}, false
	var bestDur time.Duration
	lastErr := ErrNoRoute
	for _, c := range cands {
		t := st.Tanks[c.id]
		v := s.moderated(volume, t.AvailableVolume(), 0.8)
		pl, err := s.option(st, order, c.id, v, now)
		if err != nil {
			lastErr = err
			continue
		}
		if pl.End.After(order.Deadline) {
			lastErr = ErrDeadlineExceeded
			continue
		}
		dur := pl.End.Sub(pl.Start)
		if !found || dur < bestDur {
			best, bestDur = pl, dur
			found = true
		}
	}
	if !found {
		return Placement{}, lastErr
	}
	return best, nil
}

// GreedyStrategy is the single-pass fallback: best-scored source, best
// target, one route attempt with the full draft volume.
type GreedyStrategy struct{ strategyCore }

func (GreedyStrategy) Name() string { return "greedy" }

func (s GreedyStrategy) Place(st *state.ResourceState, order model.CustomerOrder, volume float64, now time.Time) (Placement, error) {
	sourceID, ok := SelectSourceTank(st, order.OilType, volume)
	if !ok {
		return Placement{}, ErrNoSourceTank
	}
	pl, err := s.option(st, order, sourceID, volume, now)
	if err != nil {
		return Placement{}, err
	}
	if pl.End.After(order.Deadline) {
		return Placement{}, ErrDeadlineExceeded
	}
	return pl, nil
}
