package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
)

func write(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, "config.yaml", `optimizer:
  max_time: 45s
  workers: 2
  strategy: PORTFOLIO_SEARCH
  headway_minutes: 4
  use_lp_bound: true
  alternatives:
    enabled: true
status:
  retention: 30m
http:
  addr: ":9000"
metrics:
  prometheus_port: "9100"
  sinks:
    - type: "nop"
runlog:
  enabled: true
  path: "/tmp/runs.jsonl"
logging:
  level: debug
  format: console
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  ack_timeout: 2s
  qos:
    schedule: 1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"max_time", cfg.Optimizer.MaxTime, 45 * time.Second},
		{"workers", cfg.Optimizer.Workers, 2},
		{"strategy", cfg.Optimizer.Strategy, "PORTFOLIO_SEARCH"},
		{"headway", cfg.Optimizer.HeadwayMinutes, 4},
		{"lp", cfg.Optimizer.UseLPBound, true},
		{"alternatives budget", cfg.Optimizer.Alternatives.Budget, 10 * time.Second},
		{"retention", cfg.Status.Retention, 30 * time.Minute},
		{"sweep", cfg.Status.SweepInterval, time.Minute},
		{"addr", cfg.HTTP.Addr, ":9000"},
		{"prometheus_port", cfg.Metrics.PrometheusPort, "9100"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"runlog", cfg.RunLog.Path, "/tmp/runs.jsonl"},
		{"runlog backups", cfg.RunLog.MaxBackups, 5},
		{"level", cfg.Logging.Level, "debug"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"ack_timeout", cfg.MQTT.AckTimeout, 2 * time.Second},
		{"qos", cfg.MQTT.QoS["schedule"], byte(1)},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}

	ec := cfg.Optimizer.EngineConfig()
	assert.Equal(t, model.StrategyPortfolio, ec.Solver.Strategy)
	assert.Equal(t, 45*time.Second, ec.Solver.MaxTime)
	assert.True(t, ec.Alternatives.Enabled)
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := write(t, "config.json", `{"optimizer": {"workers": 2}, "http": {"addr": ":7000"}}`)
	t.Setenv("K_OPTIMIZER__WORKERS", "6")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Optimizer.Workers)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Optimizer.MaxTime)
	assert.Equal(t, 5, cfg.Optimizer.HeadwayMinutes)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"strategy": "optimizer:\n  strategy: GUESS\n",
		"level":    "logging:\n  level: loud\n",
		"mqtt":     "mqtt:\n  enabled: true\n",
		"workers":  "optimizer:\n  workers: -1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, "config.yaml", data))
			assert.Error(t, err)
		})
	}
	_, err := Load(write(t, "config.toml", ""))
	assert.Error(t, err)
}
