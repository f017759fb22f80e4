package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/railsched/core/requeststatus"
)

// StatusConfig controls how long finished requests stay pollable.
type StatusConfig struct {
	Retention     time.Duration `json:"retention"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

func (c *StatusConfig) SetDefaults() {
	if c.Retention == 0 {
		c.Retention = requeststatus.DefaultRetention
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
}

func (c StatusConfig) Validate() error {
	if c.Retention < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr            string        `json:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxBodyBytes    int64         `json:"max_body_bytes"`
	// RunsToken protects GET /api/optimize/runs when set.
	RunsToken       string        `json:"runs_token"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	// solves may take up to the solver time limit plus the alternatives budget
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 4 << 20
	}
}

func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must not be negative")
	}
	return nil
}
