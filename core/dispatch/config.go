package dispatch

// Config defines placement and scheduling settings.
type Config struct {
	// MinBatchSize is the smallest volume worth moving as one dispatch order.
	MinBatchSize float64 `json:"min_batch_size"`
	// MaxBatchSize caps a single dispatch order. Zero means uncapped.
	MaxBatchSize float64 `json:"max_batch_size"`
	// DefaultFlowRate is the local transfer rate in m3/h used when a route
	// has no pipeline segment.
	DefaultFlowRate float64 `json:"default_flow_rate"`
	// WashHours is the time spent cleaning a tank before an incompatible
	// grade can pass through it.
	WashHours float64 `json:"wash_hours"`
	// MaxCycles bounds the rolling scheduling loop.
	MaxCycles int `json:"max_cycles"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MinBatchSize <= 0 {
		c.MinBatchSize = 50
	}
	if c.DefaultFlowRate <= 0 {
		c.DefaultFlowRate = 500
	}
	if c.WashHours <= 0 {
		c.WashHours = 2
	}
	if c.MaxCycles <= 0 {
		c.MaxCycles = 10
	}
}
