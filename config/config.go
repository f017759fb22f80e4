// Package config loads the service configuration from a YAML or JSON file
// with K_ prefixed environment overrides.
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

	"github.com/kilianp07/railsched/core/metrics"
	"github.com/kilianp07/railsched/infra/mqtt"
	"github.com/kilianp07/railsched/infra/runlog"
)

type Config struct {
	Optimizer OptimizerConfig `json:"optimizer"`
	Status    StatusConfig    `json:"status"`
	HTTP      HTTPConfig      `json:"http"`
	Metrics   metrics.Config  `json:"metrics"`
	RunLog    runlog.Config   `json:"runlog"`
	Logging   LoggingConfig   `json:"logging"`
	MQTT      mqtt.Config     `json:"mqtt"`
}

// Load reads path and applies environment overrides such as
// K_OPTIMIZER__WORKERS=4. An empty path yields the defaults plus the
// environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
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
	}
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Optimizer.SetDefaults()
	c.Status.SetDefaults()
	c.HTTP.SetDefaults()
	c.RunLog.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section and reports the first invalid one.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"optimizer", c.Optimizer.Validate},
		{"status", c.Status.Validate},
		{"http", c.HTTP.Validate},
		{"runlog", c.RunLog.Validate},
		{"logging", c.Logging.Validate},
		{"mqtt", c.validateMQTT},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	return nil
}

func (c Config) validateMQTT() error {
	if !c.MQTT.Enabled {
		return nil
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	return nil
}
