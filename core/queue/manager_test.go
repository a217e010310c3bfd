package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/state"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

var testNow = time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, sourceInventory float64) *Manager {
	t.Helper()
	tanks := []model.Tank{
		{
			Config:    model.TankConfig{ID: "SRC", SiteID: "site_a", SafeCapacity: 10000, MinSafeLevel: 100, Roles: []model.TankRole{model.RoleSource}},
			OilType:   "diesel",
			Inventory: sourceInventory,
			Status:    model.TankAvailable,
		},
		{
			Config:    model.TankConfig{ID: "DST", SiteID: "site_b", SafeCapacity: 10000, Roles: []model.TankRole{model.RoleTarget}},
			OilType:   "diesel",
			Inventory: 0,
			Status:    model.TankAvailable,
		},
	}
	st := state.New(tanks, nil, nil, testNow)
	m, err := NewManager(st, 500, nil, nil, nopLogger{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.SetClock(func() time.Time { return testNow })
	return m
}

func draft(id string, volume float64) model.DispatchOrder {
	return model.DispatchOrder{
		ID:           id,
		SiteID:       "site_b",
		OilType:      "diesel",
		Volume:       volume,
		SourceTankID: "SRC",
		TargetTankID: "DST",
	}
}

func TestAddSchedulesOrder(t *testing.T) {
	m := newTestManager(t, 5000)
	got, err := m.Add(draft("", 500))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got.ID == "" {
		t.Errorf("expected a generated id")
	}
	if got.Status != model.StatusScheduled {
		t.Errorf("status = %s, want SCHEDULED", got.Status)
	}
	if !got.Start.Equal(testNow) {
		t.Errorf("start = %v, want %v", got.Start, testNow)
	}
	if want := m.EstimateDuration(500, "diesel"); got.End.Sub(got.Start) != want {
		t.Errorf("duration = %v, want %v", got.End.Sub(got.Start), want)
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
}

func TestAddAnchorsBehindTail(t *testing.T) {
	m := newTestManager(t, 5000)
	first, _ := m.Add(draft("o1", 500))
	second, err := m.Add(draft("o2", 500))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !second.Start.Equal(first.End) {
		t.Errorf("second start = %v, want predecessor end %v", second.Start, first.End)
	}
}

func TestAddKeepsFutureStart(t *testing.T) {
	m := newTestManager(t, 5000)
	tomorrow := testNow.Add(24 * time.Hour)

	o := draft("o1", 500)
	o.Start = tomorrow
	o.End = tomorrow.Add(4 * time.Hour)
	got, err := m.Add(o)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !got.Start.Equal(tomorrow) {
		t.Errorf("start = %v, want %v (planned window kept)", got.Start, tomorrow)
	}
	if !got.End.Equal(tomorrow.Add(4 * time.Hour)) {
		t.Errorf("end = %v, want %v", got.End, tomorrow.Add(4*time.Hour))
	}

	// A window overlapping the tail is still pushed behind it.
	o2 := draft("o2", 500)
	o2.Start = tomorrow.Add(time.Hour)
	o2.End = tomorrow.Add(3 * time.Hour)
	got2, err := m.Add(o2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !got2.Start.Equal(got.End) {
		t.Errorf("second start = %v, want predecessor end %v", got2.Start, got.End)
	}
	if got2.End.Sub(got2.Start) != 2*time.Hour {
		t.Errorf("second duration = %v, want 2h", got2.End.Sub(got2.Start))
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	m := newTestManager(t, 5000)
	if _, err := m.Add(draft("o1", 500)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.Add(draft("o1", 500)); !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("got %v, want %v", err, ErrDuplicateOrder)
	}
}

func TestInsertAtHeadShiftsQueue(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	m.Add(draft("o2", 500))
	m.Add(draft("o3", 500))

	if _, err := m.InsertAt(draft("o0", 300), 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	orders := m.Orders()
	wantIDs := []string{"o0", "o1", "o2", "o3"}
	for i, id := range wantIDs {
		if orders[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, orders[i].ID, id)
		}
	}
	// The new head starts no earlier than the displaced head did.
	if orders[0].Start.Before(testNow) {
		t.Errorf("head start %v before now", orders[0].Start)
	}
}

func TestInsertAtClampsPosition(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	if _, err := m.InsertAt(draft("front", 300), -5); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := m.InsertAt(draft("back", 300), 99); err != nil {
		t.Fatalf("insert: %v", err)
	}
	orders := m.Orders()
	if orders[0].ID != "front" || orders[len(orders)-1].ID != "back" {
		t.Errorf("clamped positions wrong: %v", orderIDs(orders))
	}
}

func TestInsertBeforeAndAfter(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	m.Add(draft("o3", 500))
	if _, err := m.InsertBefore(draft("o2", 300), "o3"); err != nil {
		t.Fatalf("insert before: %v", err)
	}
	if _, err := m.InsertAfter(draft("o4", 300), "o3"); err != nil {
		t.Fatalf("insert after: %v", err)
	}
	got := orderIDs(m.Orders())
	want := []string{"o1", "o2", "o3", "o4"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue = %v, want %v", got, want)
		}
	}
	if _, err := m.InsertBefore(draft("x", 100), "missing"); !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("got %v, want %v", err, ErrUnknownOrder)
	}
}

func orderIDs(orders []model.DispatchOrder) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func TestChainMatchesSequentialReplay(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	m.Add(draft("o2", 600))
	m.Add(draft("o3", 700))

	// Each virtual state carries the cumulative outflow of its prefix.
	wantSrc := []float64{4500, 3900, 3200}
	chain := m.StateChain()
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	for i, st := range chain {
		if got := st.Tanks["SRC"].Inventory; got != wantSrc[i] {
			t.Errorf("chain[%d] SRC inventory = %f, want %f", i, got, wantSrc[i])
		}
	}
	tail := m.TailState()
	if got := tail.Tanks["DST"].Inventory; got != 1800 {
		t.Errorf("tail DST inventory = %f, want 1800", got)
	}
	if tail.TotalDispatchOrders != 3 {
		t.Errorf("tail TotalDispatchOrders = %d, want 3", tail.TotalDispatchOrders)
	}
	// The committed state is untouched until completion.
	if got := m.RealState().Tanks["SRC"].Inventory; got != 5000 {
		t.Errorf("real SRC inventory = %f, want 5000", got)
	}
}

func TestReplayMarksConflictAndRecovers(t *testing.T) {
	// 1000 in SRC with a 100 minimum: o1 (500) fits, o2 (500) would breach
	// the minimum, o3 (300) fits against o1's state.
	m := newTestManager(t, 1000)
	m.Add(draft("o1", 500))
	m.Add(draft("o2", 500))
	m.Add(draft("o3", 300))

	orders := m.Orders()
	if orders[1].Status != model.StatusConflict {
		t.Fatalf("o2 status = %s, want CONFLICT", orders[1].Status)
	}
	if orders[2].Status != model.StatusScheduled {
		t.Errorf("o3 status = %s, want SCHEDULED", orders[2].Status)
	}
	// The conflicted order's virtual state is its predecessor's.
	v2, ok := m.VirtualState("o2")
	if !ok {
		t.Fatalf("missing virtual state for o2")
	}
	if got := v2.Tanks["SRC"].Inventory; got != 500 {
		t.Errorf("o2 virtual SRC inventory = %f, want 500 (predecessor state)", got)
	}
	if got := m.TailState().Tanks["SRC"].Inventory; got != 200 {
		t.Errorf("tail SRC inventory = %f, want 200 (o2 skipped)", got)
	}

	// Removing o1 frees the inventory; the replay heals o2.
	if err := m.Remove("o1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	orders = m.Orders()
	if orders[0].ID != "o2" || orders[0].Status != model.StatusScheduled {
		t.Errorf("o2 after removal = %s/%s, want o2/SCHEDULED", orders[0].ID, orders[0].Status)
	}
}

func TestCompleteCommitsHead(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	m.Add(draft("o2", 600))

	if err := m.Complete("o2"); !errors.Is(err, ErrNotHead) {
		t.Fatalf("got %v, want %v", err, ErrNotHead)
	}
	if err := m.Complete("o1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := m.RealState().Tanks["SRC"].Inventory; got != 4500 {
		t.Errorf("real SRC inventory = %f, want 4500", got)
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
	if _, ok := m.Order("o1"); ok {
		t.Errorf("completed order must leave the registry")
	}

	if err := m.Complete("o2"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := m.Complete("o2"); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("got %v, want %v", err, ErrEmptyQueue)
	}
}

func TestCompleteInfeasibleHeadMarksConflict(t *testing.T) {
	m := newTestManager(t, 1000)
	m.Add(draft("o1", 2000))
	if err := m.Complete("o1"); err == nil {
		t.Fatalf("expected an error committing an infeasible order")
	}
	head, _ := m.NextOrder()
	if head.Status != model.StatusConflict {
		t.Errorf("head status = %s, want CONFLICT", head.Status)
	}
	// Nothing was committed.
	if got := m.RealState().Tanks["SRC"].Inventory; got != 1000 {
		t.Errorf("real SRC inventory = %f, want 1000", got)
	}
}

func TestRegistryMirrorsQueue(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	m.Add(draft("o2", 500))
	m.Add(draft("o3", 500))

	if err := m.Cancel("o2"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok := m.Order("o2"); ok {
		t.Errorf("cancelled order must leave the registry")
	}
	if err := m.Remove("o3"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := m.Order("o3"); ok {
		t.Errorf("removed order must leave the registry")
	}
	if err := m.Complete("o1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("len = %d, want 0", m.Len())
	}
	if _, ok := m.Order("o1"); ok {
		t.Errorf("completed order must leave the registry")
	}
}

func TestMoveReanchorsOrder(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	m.Add(draft("o2", 500))
	m.Add(draft("o3", 500))

	if err := m.Move("o3", 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	got := orderIDs(m.Orders())
	want := []string{"o3", "o1", "o2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue = %v, want %v", got, want)
		}
	}
	if err := m.Move("o3", 9); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("got %v, want %v", err, ErrPositionOutOfRange)
	}
	if err := m.Move("missing", 0); !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("got %v, want %v", err, ErrUnknownOrder)
	}
}

func TestRescheduleFromNow(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	m.Add(draft("o2", 500))

	later := testNow.Add(3 * time.Hour)
	m.SetClock(func() time.Time { return later })
	m.RescheduleFromNow()

	orders := m.Orders()
	if !orders[0].Start.Equal(later) {
		t.Errorf("head start = %v, want %v", orders[0].Start, later)
	}
	if !orders[1].Start.Equal(orders[0].End) {
		t.Errorf("second start = %v, want %v", orders[1].Start, orders[0].End)
	}
}

func TestValidateFindsOverlapAndExpiry(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	m.Add(draft("o2", 500))
	// Preempting the head leaves the displaced order's window in place, so
	// the two head slots overlap until a reschedule.
	if _, err := m.InsertAt(draft("o0", 500), 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	issues := m.Validate()
	found := false
	for _, is := range issues {
		if is.OrderID == "o1" && is.Reason == "overlaps predecessor o0" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an overlap issue for o1, got %+v", issues)
	}

	pairs := m.ConflictingOrders()
	if len(pairs) == 0 {
		t.Errorf("expected conflicting pairs")
	}

	// After re-anchoring, the overlap disappears.
	m.RescheduleFromNow()
	if issues := m.Validate(); len(issues) != 0 {
		t.Errorf("expected no issues after reschedule, got %+v", issues)
	}
	if pairs := m.ConflictingOrders(); len(pairs) != 0 {
		t.Errorf("expected no conflicting pairs after reschedule, got %d", len(pairs))
	}
}

func TestOrdersBySiteAndStatus(t *testing.T) {
	m := newTestManager(t, 5000)
	m.Add(draft("o1", 500))
	other := draft("o2", 500)
	other.SiteID = "site_c"
	m.Add(other)
	m.Complete("o1")

	bySite := m.OrdersBySite("site_c")
	if len(bySite) != 1 || bySite[0].ID != "o2" {
		t.Errorf("OrdersBySite = %v", orderIDs(bySite))
	}
	// Completed orders are gone from the queue; only the log keeps them.
	if completed := m.OrdersByStatus(model.StatusCompleted); len(completed) != 0 {
		t.Errorf("OrdersByStatus(COMPLETED) = %v, want none", orderIDs(completed))
	}
	scheduled := m.OrdersByStatus(model.StatusScheduled)
	if len(scheduled) != 1 || scheduled[0].ID != "o2" {
		t.Errorf("OrdersByStatus(SCHEDULED) = %v", orderIDs(scheduled))
	}
}

func TestNewOrderIDFormat(t *testing.T) {
	id := NewOrderID(testNow)
	if len(id) != len("DISPATCH_")+10+1+8 {
		t.Errorf("unexpected id shape: %s", id)
	}
	if id[:9] != "DISPATCH_" {
		t.Errorf("id %s must start with DISPATCH_", id)
	}
	if id == NewOrderID(testNow) {
		t.Errorf("ids must be unique")
	}
}

func TestBootstrapSortsAndRepairsWindows(t *testing.T) {
	m := newTestManager(t, 5000)
	orders := []model.DispatchOrder{
		func() model.DispatchOrder {
			o := draft("late", 500)
			o.Start = testNow.Add(4 * time.Hour)
			o.End = testNow.Add(5 * time.Hour)
			return o
		}(),
		func() model.DispatchOrder {
			o := draft("tie", 500)
			o.Start = testNow.Add(time.Hour)
			o.End = testNow.Add(2 * time.Hour)
			o.Priority = 2
			return o
		}(),
		func() model.DispatchOrder {
			o := draft("early", 500)
			o.Start = testNow.Add(time.Hour)
			o.End = testNow.Add(2 * time.Hour)
			o.Priority = 9
			return o
		}(),
		draft("blank", 500),
	}

	if err := m.Bootstrap(orders); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	queued := m.Orders()
	if got, want := orderIDs(queued), []string{"blank", "early", "tie", "late"}; !equalIDs(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	// blank had no window: anchored at now with an estimated duration.
	if !queued[0].Start.Equal(testNow) {
		t.Errorf("blank start = %v, want %v", queued[0].Start, testNow)
	}
	if want := m.EstimateDuration(500, "diesel"); queued[0].End.Sub(queued[0].Start) != want {
		t.Errorf("blank duration = %v, want %v", queued[0].End.Sub(queued[0].Start), want)
	}
	// early keeps its window, tie overlapped it and is pushed behind.
	if !queued[1].Start.Equal(testNow.Add(time.Hour)) {
		t.Errorf("early start = %v, want %v", queued[1].Start, testNow.Add(time.Hour))
	}
	if !queued[2].Start.Equal(queued[1].End) {
		t.Errorf("tie start = %v, want predecessor end %v", queued[2].Start, queued[1].End)
	}
	// late started clear of its predecessor and keeps its slot.
	if !queued[3].Start.Equal(testNow.Add(4 * time.Hour)) {
		t.Errorf("late start = %v, want %v", queued[3].Start, testNow.Add(4*time.Hour))
	}
	for _, o := range queued {
		if o.Status != model.StatusScheduled {
			t.Errorf("order %s status = %s, want SCHEDULED", o.ID, o.Status)
		}
	}
	if issues := m.Validate(); len(issues) != 0 {
		t.Errorf("validate after bootstrap = %v", issues)
	}
}

func TestBootstrapRejections(t *testing.T) {
	m := newTestManager(t, 5000)
	if err := m.Bootstrap([]model.DispatchOrder{draft("o1", 100), draft("o1", 100)}); !errors.Is(err, ErrDuplicateOrder) {
		t.Errorf("duplicate bootstrap err = %v", err)
	}

	m = newTestManager(t, 5000)
	m.Add(draft("o1", 100))
	if err := m.Bootstrap([]model.DispatchOrder{draft("o2", 100)}); err == nil {
		t.Errorf("bootstrap over a live queue must fail")
	}
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
