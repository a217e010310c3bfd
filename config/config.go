package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/oilroute/dispatch/auth"
	"github.com/oilroute/dispatch/core/dispatch"
	"github.com/oilroute/dispatch/core/metrics"
	"github.com/oilroute/dispatch/core/scheduler"
	"github.com/oilroute/dispatch/infra/mqtt"
)

type Config struct {
	TopologyPath          string           `json:"topology_path"`
	OrdersPath            string           `json:"orders_path"`
	MQTTEnabled           bool             `json:"mqtt_enabled"`
	StatusIntervalSeconds int              `json:"status_interval_seconds"`
	APIAddr               string           `json:"api_addr"`
	APIToken              string           `json:"api_token"`
	KPIPath               string           `json:"kpi_path"`
	MQTT                  mqtt.Config      `json:"mqtt"`
	Dispatch              dispatch.Config  `json:"dispatch"`
	Scheduler             scheduler.Config `json:"scheduler"`
	Metrics               metrics.Config   `json:"metrics"`
	Logging               LoggingConfig    `json:"logging"`
	OrderBook             OrderBookConfig  `json:"order_book"`
}

// OrderBookConfig enables pulling customer orders from an external
// order book API instead of a local file.
type OrderBookConfig struct {
	Enabled     bool      `json:"enabled"`
	Connector   string    `json:"connector"`
	BaseURL     string    `json:"base_url"`
	WindowHours int       `json:"window_hours"`
	Auth        auth.Conf `json:"auth"`
}

func (c *OrderBookConfig) SetDefaults() {
	if c.Connector == "" {
		c.Connector = "orderbook"
	}
	if c.WindowHours <= 0 {
		c.WindowHours = 72
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("OD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "od_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Dispatch.SetDefaults()
	cfg.Scheduler.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.OrderBook.SetDefaults()
	if cfg.TopologyPath == "" {
		return nil, fmt.Errorf("topology_path is required")
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
