package kpi

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStoreAccumulates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	day := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)
	if err := store.Add(Record{SiteID: "depot_a", Date: day, PlacedOrders: 2, Conflicts: 1, VolumePlanned: 900}); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Same day accumulates into the existing row.
	if err := store.Add(Record{SiteID: "depot_a", Date: day.Add(3 * time.Hour), PlacedOrders: 1, VolumePlanned: 300}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Add(Record{SiteID: "depot_b", Date: day, PlacedOrders: 5, VolumePlanned: 2000}); err != nil {
		t.Fatalf("add: %v", err)
	}

	recs, err := store.Query("depot_a", day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.PlacedOrders != 3 || r.Conflicts != 1 || r.VolumePlanned != 1200 {
		t.Errorf("unexpected aggregate: %+v", r)
	}
	if !r.Date.Equal(Day(day)) {
		t.Errorf("expected day-truncated date, got %v", r.Date)
	}
}
