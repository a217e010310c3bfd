package path

import (
	"time"

	"github.com/oilroute/dispatch/core/logger"
	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/state"
)

// Kind classifies how a route traverses the topology.
type Kind int

const (
	// KindSameSite is a local move between tanks of one site, no pipeline hop.
	KindSameSite Kind = iota
	// KindDirect uses a dedicated tank-to-tank branch.
	KindDirect
	// KindTrunk crosses sites through a trunk pipeline.
	KindTrunk
)

func (k Kind) String() string {
	switch k {
	case KindSameSite:
		return "same_site"
	case KindDirect:
		return "direct"
	case KindTrunk:
		return "trunk"
	default:
		return "unknown"
	}
}

// Route is a resolved, feasible path between two tanks.
type Route struct {
	Kind             Kind
	Segments         []string // pipeline ids, in traversal order
	Score            float64
	Duration         time.Duration
	CleaningRequired bool
}

// Request describes the transfer a route is needed for.
type Request struct {
	SourceTankID string
	TargetTankID string
	OilType      model.OilType
	Volume       float64
	Start        time.Time
}

// comfortableCapacityRatio separates "comfortably fits" from "marginally
// fits" when scoring a segment.
const comfortableCapacityRatio = 0.8

// Finder resolves routes through the branch topology. defaultRate bounds the
// duration of routes without a pipeline segment, in m3/h.
type Finder struct {
	defaultRate float64
	log         logger.Logger
}

// NewFinder returns a Finder with the given local transfer rate.
func NewFinder(defaultRate float64, log logger.Logger) *Finder {
	if defaultRate <= 0 {
		defaultRate = 500
	}
	return &Finder{defaultRate: defaultRate, log: log}
}

// Find resolves the best feasible route for the request, trying same-site,
// direct-branch and cross-site-trunk connections in that order. Absence of a
// route is an ordinary outcome, not an error. Among feasible candidates the
// highest score wins; ties keep the first candidate in enumeration order.
func (f *Finder) Find(st *state.ResourceState, req Request) (Route, bool) {
	src, ok := st.Tanks[req.SourceTankID]
	if !ok {
		return Route{}, false
	}
	dst, ok := st.Tanks[req.TargetTankID]
	if !ok {
		return Route{}, false
	}

	var candidates []Route
	if src.Config.SiteID == dst.Config.SiteID {
		candidates = append(candidates, Route{Kind: KindSameSite})
	}
	for _, b := range st.Branches {
		if b.From == req.SourceTankID && b.To == req.TargetTankID {
			candidates = append(candidates, Route{Kind: KindDirect})
			break
		}
	}
	candidates = append(candidates, f.trunkRoutes(st, src, dst)...)

	best := Route{}
	found := false
	for _, c := range candidates {
		route, ok := f.evaluate(st, req, c, src, dst)
		if !ok {
			continue
		}
		if !found || route.Score > best.Score {
			best = route
			found = true
		}
	}
	if !found && f.log != nil {
		f.log.Debugf("no feasible route %s -> %s for %.1f m3 of %s",
			req.SourceTankID, req.TargetTankID, req.Volume, req.OilType)
	}
	return best, found
}

// trunkRoutes enumerates four-edge chains tank->site->pipeline->site->tank
// where the middle two edges share the pipeline id.
func (f *Finder) trunkRoutes(st *state.ResourceState, src, dst model.Tank) []Route {
	var out []Route
	for _, e1 := range st.Branches {
		if e1.From != src.Config.ID || e1.To != src.Config.SiteID {
			continue
		}
		for _, e2 := range st.Branches {
			if e2.From != e1.To {
				continue
			}
			if _, isPipe := st.Pipelines[e2.To]; !isPipe {
				continue
			}
			for _, e3 := range st.Branches {
				if e3.From != e2.To || e3.To != dst.Config.SiteID {
					continue
				}
				for _, e4 := range st.Branches {
					if e4.From != e3.To || e4.To != dst.Config.ID {
						continue
					}
					out = append(out, Route{Kind: KindTrunk, Segments: []string{e2.To}})
				}
			}
		}
	}
	return out
}

// evaluate applies the feasibility filter and scoring to one candidate.
func (f *Finder) evaluate(st *state.ResourceState, req Request, c Route, src, dst model.Tank) (Route, bool) {
	dur := f.duration(st, req.Volume, req.OilType, c.Segments)
	if dur <= 0 {
		return Route{}, false
	}
	end := req.Start.Add(dur)

	score := 0.0
	for _, pid := range c.Segments {
		p, ok := st.Pipelines[pid]
		if !ok {
			return Route{}, false
		}
		if p.Capacity < req.Volume {
			return Route{}, false
		}
		if !p.FreeDuring(req.Start, end) {
			return Route{}, false
		}
		if p.CurrentOil == req.OilType {
			score += 100
		} else if p.CurrentOil.IsSet() {
			score -= 80
		}
		if req.Volume <= p.Capacity*comfortableCapacityRatio {
			score += 20
		} else {
			score -= 30
		}
	}

	c.Score = score
	c.Duration = dur
	c.CleaningRequired = f.cleaningRequired(st, req, c.Segments, src, dst)
	return c, true
}

func (f *Finder) cleaningRequired(st *state.ResourceState, req Request, segments []string, src, dst model.Tank) bool {
	if src.OilType.IsSet() && src.OilType != req.OilType {
		return true
	}
	if dst.OilType.IsSet() && dst.OilType != req.OilType {
		return true
	}
	for _, pid := range segments {
		p := st.Pipelines[pid]
		if p.CurrentOil.IsSet() && p.CurrentOil != req.OilType {
			return true
		}
	}
	return false
}

// duration derives the transfer time from the narrowest segment on the route,
// or from the local rate for routes without a pipeline hop. The grade's flow
// modifier applies in both cases; the floor is one minute.
func (f *Finder) duration(st *state.ResourceState, volume float64, oil model.OilType, segments []string) time.Duration {
	if volume <= 0 {
		return 0
	}
	rate := f.defaultRate
	for i, pid := range segments {
		p, ok := st.Pipelines[pid]
		if !ok {
			return 0
		}
		if i == 0 || p.Capacity < rate {
			rate = p.Capacity
		}
	}
	rate *= oil.FlowModifier()
	if rate <= 0 {
		return 0
	}
	d := time.Duration(volume / rate * float64(time.Hour))
	if d < time.Minute {
		d = time.Minute
	}
	return d
}
