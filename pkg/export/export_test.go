package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/queue"
)

func sampleEntries() []queue.GanttEntry {
	return []queue.GanttEntry{
		{OrderID: "o1", Label: "SRC -> DST", Start: "2026-08-31 08:00", End: "2026-08-31 09:00", Status: "RUNNING", Color: "#28a745"},
		{OrderID: "o2", Label: "SRC -> DST", Start: "2026-08-31 09:00", End: "2026-08-31 10:00", Status: "SCHEDULED", Color: "#007bff"},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleEntries()); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got []queue.GanttEntry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].OrderID != "o1" || got[1].Status != "SCHEDULED" {
		t.Errorf("entries = %+v", got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleEntries()); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	if strings.Join(rows[0], ",") != "order_id,label,start,end,status" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "o1" || rows[1][4] != "RUNNING" {
		t.Errorf("first row = %v", rows[1])
	}
}

func TestWriteOrdersCSV(t *testing.T) {
	start := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	orders := []model.DispatchOrder{
		{
			ID:              "o1",
			CustomerOrderID: "co1",
			OilType:         "diesel",
			Volume:          312.5,
			SourceTankID:    "SRC",
			TargetTankID:    "DST",
			Start:           start,
			End:             start.Add(time.Hour),
			Status:          model.StatusScheduled,
		},
	}
	var buf bytes.Buffer
	if err := WriteOrdersCSV(&buf, orders); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus 1", len(rows))
	}
	row := rows[1]
	if row[0] != "o1" || row[1] != "co1" || row[2] != "diesel" {
		t.Errorf("identity = %v", row[:3])
	}
	if row[3] != "312.5" {
		t.Errorf("volume = %s, want 312.5", row[3])
	}
	if row[6] != "2026-08-31T08:00:00Z" || row[7] != "2026-08-31T09:00:00Z" {
		t.Errorf("window = %s/%s", row[6], row[7])
	}
	if row[8] != model.StatusScheduled.String() {
		t.Errorf("status = %s", row[8])
	}
}

func TestWriteOrdersCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOrdersCSV(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Errorf("lines = %d, want header only", got)
	}
}
