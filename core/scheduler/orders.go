package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oilroute/dispatch/core/model"
)

// OrderSpec describes one customer order in an order book file.
type OrderSpec struct {
	ID             string    `json:"id" yaml:"id"`
	CustomerID     string    `json:"customer_id" yaml:"customer_id"`
	SiteID         string    `json:"site_id" yaml:"site_id"`
	OilType        string    `json:"oil_type" yaml:"oil_type"`
	RequiredVolume float64   `json:"required_volume" yaml:"required_volume"`
	EarliestStart  time.Time `json:"earliest_start" yaml:"earliest_start"`
	Deadline       time.Time `json:"deadline" yaml:"deadline"`
	Priority       int       `json:"priority" yaml:"priority"`
	EntryTankID    string    `json:"entry_tank_id" yaml:"entry_tank_id"`
}

// LoadOrders reads customer orders from a JSON or YAML file.
func LoadOrders(path string) ([]model.CustomerOrder, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var specs []OrderSpec
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &specs)
	case ".json":
		err = json.Unmarshal(b, &specs)
	default:
		return nil, fmt.Errorf("unsupported order book format: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	orders := make([]model.CustomerOrder, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("order with empty id")
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate order id %q", s.ID)
		}
		seen[s.ID] = true
		if s.RequiredVolume <= 0 {
			return nil, fmt.Errorf("order %q: required_volume must be positive", s.ID)
		}
		if !s.Deadline.IsZero() && !s.Deadline.After(s.EarliestStart) {
			return nil, fmt.Errorf("order %q: deadline not after earliest_start", s.ID)
		}
		orders = append(orders, model.CustomerOrder{
			ID:             s.ID,
			CustomerID:     s.CustomerID,
			SiteID:         s.SiteID,
			OilType:        model.OilType(s.OilType),
			RequiredVolume: s.RequiredVolume,
			EarliestStart:  s.EarliestStart,
			Deadline:       s.Deadline,
			Priority:       s.Priority,
			EntryTankID:    s.EntryTankID,
			Status:         model.CustomerPending,
		})
	}
	return orders, nil
}
