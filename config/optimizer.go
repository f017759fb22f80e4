package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
)

// OptimizerConfig holds the solver defaults applied to requests that leave
// them unset.
type OptimizerConfig struct {
	MaxTime         time.Duration `json:"max_time"`
	Workers         int           `json:"workers"`
	Strategy        string        `json:"strategy"`
	Preprocessing   bool          `json:"preprocessing"`
	DetailedLogging bool          `json:"detailed_logging"`
	HeadwayMinutes  int           `json:"headway_minutes"`
	UseLPBound      bool          `json:"use_lp_bound"`
	Alternatives    struct {
		Enabled bool          `json:"enabled"`
		Budget  time.Duration `json:"budget"`
	} `json:"alternatives"`
}

func (c *OptimizerConfig) SetDefaults() {
	if c.MaxTime == 0 {
		c.MaxTime = 30 * time.Second
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Strategy == "" {
		c.Strategy = string(model.StrategyAutomatic)
	}
	if c.HeadwayMinutes == 0 {
		c.HeadwayMinutes = optimizer.DefaultHeadwayMinutes
	}
	if c.Alternatives.Enabled && c.Alternatives.Budget == 0 {
		c.Alternatives.Budget = 10 * time.Second
	}
}

func (c OptimizerConfig) Validate() error {
	if c.MaxTime < 0 {
		return fmt.Errorf("max_time must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	switch model.SearchStrategy(c.Strategy) {
	case model.StrategyAutomatic, model.StrategyFixed, model.StrategyPortfolio:
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if c.HeadwayMinutes < 0 {
		return fmt.Errorf("headway_minutes must not be negative")
	}
	return nil
}

// EngineConfig converts the section to the engine configuration.
func (c OptimizerConfig) EngineConfig() optimizer.Config {
	return optimizer.Config{
		Solver: model.SolverConfig{
			MaxTime:         c.MaxTime,
			Workers:         c.Workers,
			Strategy:        model.SearchStrategy(c.Strategy),
			Preprocessing:   c.Preprocessing,
			DetailedLogging: c.DetailedLogging,
		},
		HeadwayMinutes: c.HeadwayMinutes,
		UseLPBound:     c.UseLPBound,
		Alternatives: optimizer.AlternativesConfig{
			Enabled: c.Alternatives.Enabled,
			Budget:  c.Alternatives.Budget,
		},
	}
}
