package state

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/oilroute/dispatch/core/model"
)

// Errors raised by Apply. Infeasibility discovered during placement is not an
// error; these indicate the caller offered a transfer the network cannot
// absorb.
var (
	ErrUnknownTank            = errors.New("unknown tank")
	ErrUnknownPipeline        = errors.New("unknown pipeline")
	ErrInsufficientInventory  = errors.New("insufficient inventory above minimum safe level")
	ErrTargetOverCapacity     = errors.New("target tank would exceed safe capacity")
	ErrReservationOverlap     = errors.New("pipeline reservation overlaps an existing reservation")
	ErrPipelineOverCapacity   = errors.New("volume exceeds pipeline capacity")
	ErrNonPositiveVolume      = errors.New("volume must be positive")
)

// ResourceState is an immutable-by-convention snapshot of the whole network:
// every tank and pipeline plus the global counters. Apply produces a new
// snapshot; the receiver is never mutated. Exactly one state per queue domain
// is the committed ("real") one, all others are speculative.
type ResourceState struct {
	Tanks     map[string]model.Tank
	Pipelines map[string]model.Pipeline
	Branches  []model.Branch

	OilSwitchCount        int
	HighPrioritySatisfied int
	TotalDispatchOrders   int
	TotalVolumeDispatched float64

	Now time.Time
}

// New builds the initial committed state from materialized domain objects.
func New(tanks []model.Tank, pipelines []model.Pipeline, branches []model.Branch, now time.Time) *ResourceState {
	s := &ResourceState{
		Tanks:     make(map[string]model.Tank, len(tanks)),
		Pipelines: make(map[string]model.Pipeline, len(pipelines)),
		Branches:  append([]model.Branch(nil), branches...),
		Now:       now,
	}
	for _, t := range tanks {
		s.Tanks[t.Config.ID] = t.Clone()
	}
	for _, p := range pipelines {
		s.Pipelines[p.ID] = p.Clone()
	}
	return s
}

// Clone returns a deep copy of the state.
func (s *ResourceState) Clone() *ResourceState {
	cp := &ResourceState{
		Tanks:                 make(map[string]model.Tank, len(s.Tanks)),
		Pipelines:             make(map[string]model.Pipeline, len(s.Pipelines)),
		Branches:              append([]model.Branch(nil), s.Branches...),
		OilSwitchCount:        s.OilSwitchCount,
		HighPrioritySatisfied: s.HighPrioritySatisfied,
		TotalDispatchOrders:   s.TotalDispatchOrders,
		TotalVolumeDispatched: s.TotalVolumeDispatched,
		Now:                   s.Now,
	}
	for id, t := range s.Tanks {
		cp.Tanks[id] = t.Clone()
	}
	for id, p := range s.Pipelines {
		cp.Pipelines[id] = p.Clone()
	}
	return cp
}

// Apply executes a dispatch order against the snapshot and returns the
// resulting snapshot. The source tank loses the volume, the target gains it,
// every path segment receives a reservation, and the counters advance. The
// receiver is left untouched. An order that would drive a tank outside its
// safe band or double-book a pipeline is rejected with an error.
func (s *ResourceState) Apply(order model.DispatchOrder) (*ResourceState, error) {
	if order.Volume <= 0 {
		return nil, fmt.Errorf("order %s: %w", order.ID, ErrNonPositiveVolume)
	}
	src, ok := s.Tanks[order.SourceTankID]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", order.SourceTankID, ErrUnknownTank)
	}
	dst, ok := s.Tanks[order.TargetTankID]
	if !ok {
		return nil, fmt.Errorf("target %q: %w", order.TargetTankID, ErrUnknownTank)
	}
	if src.Inventory-order.Volume < src.Config.MinSafeLevel {
		return nil, fmt.Errorf("source %q: %w", order.SourceTankID, ErrInsufficientInventory)
	}
	if dst.Inventory+order.Volume > dst.Config.SafeCapacity {
		return nil, fmt.Errorf("target %q: %w", order.TargetTankID, ErrTargetOverCapacity)
	}
	for _, pid := range order.Path {
		p, ok := s.Pipelines[pid]
		if !ok {
			return nil, fmt.Errorf("segment %q: %w", pid, ErrUnknownPipeline)
		}
		if order.Volume > p.Capacity {
			return nil, fmt.Errorf("segment %q: %w", pid, ErrPipelineOverCapacity)
		}
		if !p.FreeDuring(order.Start, order.End) {
			return nil, fmt.Errorf("segment %q: %w", pid, ErrReservationOverlap)
		}
	}

	next := s.Clone()

	switched := src.OilType.IsSet() && src.OilType != order.OilType
	src = next.Tanks[order.SourceTankID]
	src.Inventory -= order.Volume
	src.OilType = order.OilType
	next.Tanks[order.SourceTankID] = src

	dst = next.Tanks[order.TargetTankID]
	dst.Inventory += order.Volume
	dst.OilType = order.OilType
	next.Tanks[order.TargetTankID] = dst

	for _, pid := range order.Path {
		p := next.Pipelines[pid]
		p.Reservations = append(p.Reservations, model.Reservation{
			Start:   order.Start,
			End:     order.End,
			OilType: order.OilType,
			Volume:  order.Volume,
			OrderID: order.ID,
		})
		p.CurrentOil = order.OilType
		next.Pipelines[pid] = p
	}

	next.TotalDispatchOrders++
	next.TotalVolumeDispatched += order.Volume
	if switched {
		next.OilSwitchCount++
	}
	if order.Priority >= 7 {
		next.HighPrioritySatisfied++
	}
	return next, nil
}

// AvailableTanks returns the ids of tanks that can supply minVolume of the
// given grade: the grade must be unset or matching, the tank available, and
// the inventory must cover the volume on top of the minimum safe level.
// Results are sorted for determinism.
func (s *ResourceState) AvailableTanks(oil model.OilType, minVolume float64) []string {
	var ids []string
	for id, t := range s.Tanks {
		if t.Status != model.TankAvailable {
			continue
		}
		if !t.AcceptsOil(oil) {
			continue
		}
		if t.AvailableVolume() < minVolume {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConflictKind classifies a detected inconsistency.
type ConflictKind string

const (
	ConflictTankLow         ConflictKind = "tank_inventory_low"
	ConflictPipelineOverlap ConflictKind = "pipeline_time_conflict"
)

// Conflict describes one inconsistency found in the snapshot.
type Conflict struct {
	Kind       ConflictKind
	ResourceID string
	Detail     string
}

// Conflicts scans for tanks below their minimum safe level and for pairwise
// overlapping reservations on the same pipeline. The reservation scan is
// O(n^2) per pipeline; queues are short, this is a correctness check rather
// than a hot path.
func (s *ResourceState) Conflicts() []Conflict {
	var out []Conflict
	tankIDs := make([]string, 0, len(s.Tanks))
	for id := range s.Tanks {
		tankIDs = append(tankIDs, id)
	}
	sort.Strings(tankIDs)
	for _, id := range tankIDs {
		t := s.Tanks[id]
		if t.Inventory < t.Config.MinSafeLevel {
			out = append(out, Conflict{
				Kind:       ConflictTankLow,
				ResourceID: id,
				Detail:     fmt.Sprintf("inventory %.2f below minimum safe level %.2f", t.Inventory, t.Config.MinSafeLevel),
			})
		}
	}
	pipeIDs := make([]string, 0, len(s.Pipelines))
	for id := range s.Pipelines {
		pipeIDs = append(pipeIDs, id)
	}
	sort.Strings(pipeIDs)
	for _, id := range pipeIDs {
		p := s.Pipelines[id]
		for i := 0; i < len(p.Reservations); i++ {
			for j := i + 1; j < len(p.Reservations); j++ {
				if p.Reservations[i].Overlaps(p.Reservations[j]) {
					out = append(out, Conflict{
						Kind:       ConflictPipelineOverlap,
						ResourceID: id,
						Detail:     fmt.Sprintf("orders %s and %s overlap", p.Reservations[i].OrderID, p.Reservations[j].OrderID),
					})
				}
			}
		}
	}
	return out
}

// ResourceUtilization is the mean fill ratio (inventory over safe capacity)
// across all tanks, used by the heuristics to detect system load.
func (s *ResourceState) ResourceUtilization() float64 {
	if len(s.Tanks) == 0 {
		return 0
	}
	ratios := make([]float64, 0, len(s.Tanks))
	for _, t := range s.Tanks {
		if t.Config.SafeCapacity <= 0 {
			ratios = append(ratios, 0)
			continue
		}
		ratios = append(ratios, t.Inventory/t.Config.SafeCapacity)
	}
	return stat.Mean(ratios, nil)
}

// TankIDs returns all tank ids, sorted for deterministic iteration.
func (s *ResourceState) TankIDs() []string {
	ids := make([]string, 0, len(s.Tanks))
	for id := range s.Tanks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TanksAtSite returns the ids of tanks belonging to the site, sorted.
func (s *ResourceState) TanksAtSite(siteID string) []string {
	var ids []string
	for id, t := range s.Tanks {
		if t.Config.SiteID == siteID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
