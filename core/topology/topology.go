// Package topology loads the tank farm layout from configuration files and
// materializes it into the initial committed resource state.
package topology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oilroute/dispatch/core/model"
	"github.com/oilroute/dispatch/core/state"
)

// TankSpec describes one tank in a topology file.
type TankSpec struct {
	ID           string   `json:"id" yaml:"id"`
	SiteID       string   `json:"site_id" yaml:"site_id"`
	Name         string   `json:"name" yaml:"name"`
	MaxCapacity  float64  `json:"max_capacity" yaml:"max_capacity"`
	SafeCapacity float64  `json:"safe_capacity" yaml:"safe_capacity"`
	MinSafeLevel float64  `json:"min_safe_level" yaml:"min_safe_level"`
	Roles        []string `json:"roles" yaml:"roles"`
	OilType      string   `json:"oil_type" yaml:"oil_type"`
	Inventory    float64  `json:"inventory" yaml:"inventory"`
	Status       string   `json:"status" yaml:"status"`
}

// ShutdownSpec is a planned maintenance window on a pipeline.
type ShutdownSpec struct {
	Start  time.Time `json:"start" yaml:"start"`
	End    time.Time `json:"end" yaml:"end"`
	Reason string    `json:"reason" yaml:"reason"`
}

// PipelineSpec describes one trunk pipeline.
type PipelineSpec struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Capacity  float64        `json:"capacity" yaml:"capacity"`
	Shutdowns []ShutdownSpec `json:"shutdowns" yaml:"shutdowns"`
}

// BranchSpec is one directed edge of the network graph. From and To name
// tanks, sites or pipelines.
type BranchSpec struct {
	ID     string `json:"id" yaml:"id"`
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Direct bool   `json:"direct" yaml:"direct"`
}

// Topology is the full network description.
type Topology struct {
	Tanks     []TankSpec     `json:"tanks" yaml:"tanks"`
	Pipelines []PipelineSpec `json:"pipelines" yaml:"pipelines"`
	Branches  []BranchSpec   `json:"branches" yaml:"branches"`
}

// Load reads a topology from a JSON or YAML file.
func Load(path string) (Topology, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var topo Topology
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &topo)
	case ".json":
		err = json.Unmarshal(b, &topo)
	default:
		return Topology{}, fmt.Errorf("unsupported topology format: %s", ext)
	}
	if err != nil {
		return Topology{}, err
	}
	return topo, nil
}

// Validate checks structural invariants before materialization.
func (t Topology) Validate() error {
	tankIDs := make(map[string]bool, len(t.Tanks))
	for _, ts := range t.Tanks {
		if ts.ID == "" {
			return fmt.Errorf("tank with empty id")
		}
		if tankIDs[ts.ID] {
			return fmt.Errorf("duplicate tank id %q", ts.ID)
		}
		tankIDs[ts.ID] = true
		if ts.SiteID == "" {
			return fmt.Errorf("tank %q: site_id is required", ts.ID)
		}
		if ts.SafeCapacity <= 0 || ts.SafeCapacity > ts.MaxCapacity {
			return fmt.Errorf("tank %q: safe_capacity must be in (0, max_capacity]", ts.ID)
		}
		if ts.MinSafeLevel < 0 || ts.MinSafeLevel >= ts.SafeCapacity {
			return fmt.Errorf("tank %q: min_safe_level must be in [0, safe_capacity)", ts.ID)
		}
		if ts.Inventory < 0 || ts.Inventory > ts.MaxCapacity {
			return fmt.Errorf("tank %q: inventory outside [0, max_capacity]", ts.ID)
		}
		for _, r := range ts.Roles {
			if _, err := parseRole(r); err != nil {
				return fmt.Errorf("tank %q: %w", ts.ID, err)
			}
		}
	}
	pipeIDs := make(map[string]bool, len(t.Pipelines))
	for _, ps := range t.Pipelines {
		if ps.ID == "" {
			return fmt.Errorf("pipeline with empty id")
		}
		if pipeIDs[ps.ID] {
			return fmt.Errorf("duplicate pipeline id %q", ps.ID)
		}
		pipeIDs[ps.ID] = true
		if ps.Capacity <= 0 {
			return fmt.Errorf("pipeline %q: capacity must be positive", ps.ID)
		}
		for _, w := range ps.Shutdowns {
			if !w.End.After(w.Start) {
				return fmt.Errorf("pipeline %q: shutdown end not after start", ps.ID)
			}
		}
	}
	for _, bs := range t.Branches {
		if bs.From == "" || bs.To == "" {
			return fmt.Errorf("branch %q: from and to are required", bs.ID)
		}
	}
	return nil
}

// Materialize validates the topology and builds the committed state.
func (t Topology) Materialize(now time.Time) (*state.ResourceState, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	tanks := make([]model.Tank, 0, len(t.Tanks))
	for _, ts := range t.Tanks {
		roles := make([]model.TankRole, 0, len(ts.Roles))
		for _, r := range ts.Roles {
			role, _ := parseRole(r)
			roles = append(roles, role)
		}
		status, err := parseStatus(ts.Status)
		if err != nil {
			return nil, fmt.Errorf("tank %q: %w", ts.ID, err)
		}
		tanks = append(tanks, model.Tank{
			Config: model.TankConfig{
				ID:           ts.ID,
				SiteID:       ts.SiteID,
				Name:         ts.Name,
				MaxCapacity:  ts.MaxCapacity,
				SafeCapacity: ts.SafeCapacity,
				MinSafeLevel: ts.MinSafeLevel,
				Roles:        roles,
			},
			OilType:   model.OilType(ts.OilType),
			Inventory: ts.Inventory,
			Status:    status,
		})
	}
	pipelines := make([]model.Pipeline, 0, len(t.Pipelines))
	for _, ps := range t.Pipelines {
		windows := make([]model.ShutdownWindow, 0, len(ps.Shutdowns))
		for _, w := range ps.Shutdowns {
			windows = append(windows, model.ShutdownWindow{Start: w.Start, End: w.End, Reason: w.Reason})
		}
		pipelines = append(pipelines, model.Pipeline{
			ID:        ps.ID,
			Name:      ps.Name,
			Capacity:  ps.Capacity,
			Shutdowns: windows,
		})
	}
	branches := make([]model.Branch, 0, len(t.Branches))
	for _, bs := range t.Branches {
		branches = append(branches, model.Branch{
			ID:     bs.ID,
			From:   bs.From,
			To:     bs.To,
			Direct: bs.Direct,
		})
	}
	return state.New(tanks, pipelines, branches, now), nil
}

func parseRole(s string) (model.TankRole, error) {
	switch strings.ToUpper(s) {
	case "SOURCE":
		return model.RoleSource, nil
	case "TARGET":
		return model.RoleTarget, nil
	case "MIDDLE":
		return model.RoleMiddle, nil
	default:
		return "", fmt.Errorf("unknown tank role %q", s)
	}
}

func parseStatus(s string) (model.TankStatus, error) {
	switch strings.ToUpper(s) {
	case "", "AVAILABLE":
		return model.TankAvailable, nil
	case "RESERVED":
		return model.TankReserved, nil
	case "MAINTENANCE":
		return model.TankMaintenance, nil
	default:
		return "", fmt.Errorf("unknown tank status %q", s)
	}
}
