package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	// Level is a zerolog level name.
	Level string `json:"level"`
	// Format is "json" or "console". Empty keeps the APP_ENV detection.
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("unknown level %s", c.Level)
	}
	if c.Format != "" && c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("unknown format %s", c.Format)
	}
	return nil
}
