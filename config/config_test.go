package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeConfig(t, "config.yaml", `
topology_path: topology.yaml
orders_path: orders.yaml
mqtt_enabled: true
status_interval_seconds: 30
api_addr: ":8085"
api_token: secret
kpi_path: kpi.db
mqtt:
  broker: tcp://localhost:1883
  client_id: dispatcher
dispatch:
  min_batch_size: 75
scheduler:
  max_cycles: 4
logging:
  backend: sqlite
  path: queue.db
order_book:
  enabled: true
  base_url: https://orders.internal/api
  window_hours: 24
  auth:
    client_id: dispatcher
    client_secret: s3cr3t
    auth_url: https://auth.internal/token
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "topology.yaml", cfg.TopologyPath)
	assert.Equal(t, "orders.yaml", cfg.OrdersPath)
	assert.True(t, cfg.MQTTEnabled)
	assert.Equal(t, 30, cfg.StatusIntervalSeconds)
	assert.Equal(t, ":8085", cfg.APIAddr)
	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, "kpi.db", cfg.KPIPath)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, 75.0, cfg.Dispatch.MinBatchSize)
	assert.Equal(t, 4, cfg.Scheduler.MaxCycles)
	assert.Equal(t, "sqlite", cfg.Logging.Backend)
	assert.Equal(t, "queue.db", cfg.Logging.Path)
	assert.True(t, cfg.OrderBook.Enabled)
	assert.Equal(t, 24, cfg.OrderBook.WindowHours)
	assert.Equal(t, "dispatcher", cfg.OrderBook.Auth.ClientID)
}

func TestLoadAppliesDefaults(t *testing.T) {
	p := writeConfig(t, "config.yaml", "topology_path: topology.yaml\n")
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.Dispatch.MinBatchSize)
	assert.Equal(t, 500.0, cfg.Dispatch.DefaultFlowRate)
	assert.Equal(t, 10, cfg.Scheduler.MaxCycles)
	assert.Equal(t, "jsonl", cfg.Logging.Backend)
	assert.Equal(t, "queue.log", cfg.Logging.Path)
	assert.Equal(t, "orderbook", cfg.OrderBook.Connector)
	assert.Equal(t, 72, cfg.OrderBook.WindowHours)
	assert.False(t, cfg.OrderBook.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OD_ORDERS_PATH", "from-env.yaml")
	t.Setenv("OD_LOGGING__BACKEND", "sqlite")

	p := writeConfig(t, "config.yaml", `
topology_path: topology.yaml
orders_path: from-file.yaml
logging:
  backend: jsonl
  path: queue.db
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "from-env.yaml", cfg.OrdersPath)
	assert.Equal(t, "sqlite", cfg.Logging.Backend)
}

func TestLoadJSON(t *testing.T) {
	p := writeConfig(t, "config.json", `{"topology_path": "t.json", "scheduler": {"min_batch_size": 25}}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "t.json", cfg.TopologyPath)
	assert.Equal(t, 25.0, cfg.Scheduler.MinBatchSize)
}

func TestLoadRejectsMissingTopology(t *testing.T) {
	p := writeConfig(t, "config.yaml", "orders_path: orders.yaml\n")
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topology_path")
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	p := writeConfig(t, "config.toml", "topology_path = 't'\n")
	_, err := Load(p)
	assert.Error(t, err)
}

func TestLoadRejectsBadLoggingBackend(t *testing.T) {
	p := writeConfig(t, "config.yaml", `
topology_path: topology.yaml
logging:
  backend: redis
`)
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestLoggingConfigValidate(t *testing.T) {
	c := LoggingConfig{}
	c.SetDefaults()
	assert.NoError(t, c.Validate())

	assert.Error(t, LoggingConfig{Backend: "jsonl"}.Validate())
	assert.Error(t, LoggingConfig{Backend: "csv", Path: "x"}.Validate())
}
