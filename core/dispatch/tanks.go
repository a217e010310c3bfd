package dispatch

import (
	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/state"
)

// lowStockFraction is the fraction of safe capacity below which draining a
// source tank is discouraged.
const lowStockFraction = 0.3

// highFillWarn and highFillCritical are resulting-fill thresholds that
// penalise target tanks approaching their safe ceiling.
const (
	highFillWarn     = 0.8
	highFillCritical = 0.9
)

type scoredTank struct {
	id    string
	score float64
}

// SelectSourceTank scores every eligible source tank for the transfer and
// returns the best one. A tank is eligible when it carries the SOURCE role,
// is available, and holds the volume above its minimum safe level. Grade
// mismatch does not disqualify a tank, it only costs score (cleaning).
func SelectSourceTank(st *state.ResourceState, oil model.OilType, volume float64) (string, bool) {
	best, found := scoredTank{}, false
	for _, id := range st.TankIDs() {
		t := st.Tanks[id]
		if !t.Config.HasRole(model.RoleSource) || t.Status != model.TankAvailable {
			continue
		}
		if t.AvailableVolume() < volume {
			continue
		}
		s := sourceScore(t, oil, volume)
		if !found || s > best.score {
			best = scoredTank{id: id, score: s}
			found = true
		}
	}
	return best.id, found
}

func sourceScore(t model.Tank, oil model.OilType, volume float64) float64 {
	score := 0.0
	switch {
	case t.OilType == oil:
		score += 100
	case t.IsEmpty():
		score += 50
	default:
		score -= 20 // cleaning needed
	}
	if t.Config.SafeCapacity > 0 {
		util := t.Inventory / t.Config.SafeCapacity
		if util > 1 {
			util = 1
		}
		score += 30 * util
	}
	remaining := t.Inventory - volume
	if remaining <= t.Config.MinSafeLevel {
		score -= 50
	} else if remaining < t.Config.SafeCapacity*lowStockFraction {
		score -= 30
	}
	return score
}

// SelectTargetTank scores every eligible target tank at the site and returns
// the best one. Eligibility requires the TARGET role, availability, the site
// match, and free capacity for the volume.
func SelectTargetTank(st *state.ResourceState, siteID string, oil model.OilType, volume float64) (string, bool) {
	best, found := scoredTank{}, false
	for _, id := range st.TanksAtSite(siteID) {
		t := st.Tanks[id]
		if !t.Config.HasRole(model.RoleTarget) || t.Status != model.TankAvailable {
			continue
		}
		if t.FreeCapacity() < volume {
			continue
		}
		s := targetScore(t, oil, volume)
		if !found || s > best.score {
			best = scoredTank{id: id, score: s}
			found = true
		}
	}
	return best.id, found
}

func targetScore(t model.Tank, oil model.OilType, volume float64) float64 {
	score := 0.0
	switch {
	case t.OilType == oil:
		score += 100
	case t.IsEmpty():
		score += 50
	default:
		score -= 20
	}
	if t.Config.SafeCapacity > 0 {
		fill := (t.Inventory + volume) / t.Config.SafeCapacity
		if fill > 1 {
			fill = 1
		}
		score += 30 * fill
		if fill >= highFillCritical {
			score -= 50
		} else if fill >= highFillWarn {
			score -= 20
		}
	}
	return score
}
