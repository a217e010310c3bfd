package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker     string
	Sites      string
	AckTopic   string
	AckLatency time.Duration
	DropRate   float64
	Speedup    float64
	Verbose    bool

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Sites == "" {
		return fmt.Errorf("at least one site id is required")
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate must be in [0,1]")
	}
	if c.Speedup <= 0 {
		return fmt.Errorf("speedup must be positive")
	}
	return nil
}
