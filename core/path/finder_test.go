package path

import (
	"testing"
	"time"

	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/state"
)

func testTopology(now time.Time) *state.ResourceState {
	tanks := []model.Tank{
		{Config: model.TankConfig{ID: "A1", SiteID: "site_a", SafeCapacity: 1000, MinSafeLevel: 50}, OilType: "diesel", Inventory: 800, Status: model.TankAvailable},
		{Config: model.TankConfig{ID: "A2", SiteID: "site_a", SafeCapacity: 1000, MinSafeLevel: 50}, Inventory: 100, Status: model.TankAvailable},
		{Config: model.TankConfig{ID: "B1", SiteID: "site_b", SafeCapacity: 1000, MinSafeLevel: 50}, Inventory: 0, Status: model.TankAvailable},
	}
	pipes := []model.Pipeline{
		{ID: "TRUNK", Capacity: 400, CurrentOil: "diesel"},
	}
	branches := []model.Branch{
		{ID: "b1", From: "A1", To: "site_a"},
		{ID: "b2", From: "site_a", To: "TRUNK"},
		{ID: "b3", From: "TRUNK", To: "site_b"},
		{ID: "b4", From: "site_b", To: "B1"},
		{ID: "d1", From: "A1", To: "B1", Direct: true},
	}
	return state.New(tanks, pipes, branches, now)
}

func TestFindSameSite(t *testing.T) {
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	st := testTopology(now)
	f := NewFinder(500, nil)
	route, ok := f.Find(st, Request{
		SourceTankID: "A1", TargetTankID: "A2",
		OilType: "diesel", Volume: 200, Start: now,
	})
	if !ok {
		t.Fatalf("expected a route")
	}
	if route.Kind != KindSameSite {
		t.Errorf("kind = %s, want same_site", route.Kind)
	}
	if len(route.Segments) != 0 {
		t.Errorf("same-site route must have no segments, got %v", route.Segments)
	}
	// 200 m3 at 500*1.1 m3/h for diesel.
	hours := 200.0 / (500 * 1.1)
	want := time.Duration(hours * float64(time.Hour))
	if route.Duration != want {
		t.Errorf("duration = %v, want %v", route.Duration, want)
	}
}

func TestFindPrefersMatchingTrunkOverDirty(t *testing.T) {
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	st := testTopology(now)
	f := NewFinder(500, nil)
	// A1 -> B1: both a direct branch (score 0) and a trunk carrying diesel
	// (+100 grade match, +20 comfortable volume) are available.
	route, ok := f.Find(st, Request{
		SourceTankID: "A1", TargetTankID: "B1",
		OilType: "diesel", Volume: 200, Start: now,
	})
	if !ok {
		t.Fatalf("expected a route")
	}
	if route.Kind != KindTrunk {
		t.Errorf("kind = %s, want trunk", route.Kind)
	}
	if route.Score != 120 {
		t.Errorf("score = %f, want 120", route.Score)
	}
	if route.CleaningRequired {
		t.Errorf("matching grades must not require cleaning")
	}
}

func TestFindFallsBackToDirectWhenTrunkDirty(t *testing.T) {
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	st := testTopology(now)
	f := NewFinder(500, nil)
	// Gasoline on a diesel trunk scores -80 +20 = -60; the direct branch
	// scores 0 and wins.
	route, ok := f.Find(st, Request{
		SourceTankID: "A1", TargetTankID: "B1",
		OilType: "gasoline", Volume: 200, Start: now,
	})
	if !ok {
		t.Fatalf("expected a route")
	}
	if route.Kind != KindDirect {
		t.Errorf("kind = %s, want direct", route.Kind)
	}
	if !route.CleaningRequired {
		t.Errorf("grade change out of a diesel tank must require cleaning")
	}
}

func TestFindInfeasibleVolume(t *testing.T) {
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	st := testTopology(now)
	// Remove the direct shortcut so only the 400 m3 trunk remains.
	st.Branches = st.Branches[:4]
	f := NewFinder(500, nil)
	if _, ok := f.Find(st, Request{
		SourceTankID: "A1", TargetTankID: "B1",
		OilType: "diesel", Volume: 450, Start: now,
	}); ok {
		t.Fatalf("route over trunk capacity must be infeasible")
	}
}

func TestFindRespectsReservations(t *testing.T) {
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	st := testTopology(now)
	st.Branches = st.Branches[:4]
	p := st.Pipelines["TRUNK"]
	p.Reservations = []model.Reservation{{Start: now, End: now.Add(4 * time.Hour), OrderID: "busy"}}
	st.Pipelines["TRUNK"] = p

	f := NewFinder(500, nil)
	if _, ok := f.Find(st, Request{
		SourceTankID: "A1", TargetTankID: "B1",
		OilType: "diesel", Volume: 200, Start: now,
	}); ok {
		t.Fatalf("reserved trunk must be infeasible")
	}
	// After the reservation ends the trunk is usable again.
	if _, ok := f.Find(st, Request{
		SourceTankID: "A1", TargetTankID: "B1",
		OilType: "diesel", Volume: 200, Start: now.Add(4 * time.Hour),
	}); !ok {
		t.Fatalf("expected a route after the reservation window")
	}
}

func TestFindUnknownTank(t *testing.T) {
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	st := testTopology(now)
	f := NewFinder(500, nil)
	if _, ok := f.Find(st, Request{SourceTankID: "nope", TargetTankID: "A2", OilType: "diesel", Volume: 10, Start: now}); ok {
		t.Fatalf("unknown source must not resolve")
	}
}
