package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/queue"
)

// WriteJSON writes the gantt timeline to w in JSON format.
func WriteJSON(w io.Writer, entries []queue.GanttEntry) error {
	enc := json.NewEncoder(w)
	return enc.Encode(entries)
}

// WriteCSV writes the gantt timeline to w in CSV format.
func WriteCSV(w io.Writer, entries []queue.GanttEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"order_id", "label", "start", "end", "status"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.OrderID, e.Label, e.Start, e.End, e.Status}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOrdersCSV writes dispatch orders to w in CSV format.
func WriteOrdersCSV(w io.Writer, orders []model.DispatchOrder) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "customer_order_id", "oil_type", "volume", "source_tank", "target_tank", "start", "end", "status"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, o := range orders {
		rec := []string{
			o.ID,
			o.CustomerOrderID,
			string(o.OilType),
			strconv.FormatFloat(o.Volume, 'f', -1, 64),
			o.SourceTankID,
			o.TargetTankID,
			o.Start.Format(time.RFC3339),
			o.End.Format(time.RFC3339),
			o.Status.String(),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
