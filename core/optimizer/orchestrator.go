package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/solver"
)

// Outcome is the mapped result of a solve.
type Outcome struct {
	Status model.Status
	Result solver.Result
}

// Orchestrator configures and runs the solver.
type Orchestrator struct {
	Log        logger.Logger
	UseLPBound bool
}

// Params converts a request solver configuration into solver parameters.
// The request objective time limit wins over the configured one. Preprocessing
// requested by either adds the LP relaxation bound at the root.
func Params(cfg model.SolverConfig, obj model.Objective) solver.Params {
	p := solver.Params{
		TimeLimit:  cfg.MaxTime,
		Workers:    cfg.Workers,
		UseLPBound: cfg.Preprocessing || obj.Preprocessing,
	}
	if obj.TimeLimit > 0 {
		p.TimeLimit = obj.TimeLimit
	}
	switch cfg.Strategy {
	case model.StrategyFixed:
		p.Strategy = solver.StrategyFixed
	case model.StrategyPortfolio:
		p.Strategy = solver.StrategyPortfolio
	default:
		p.Strategy = solver.StrategyAutomatic
	}
	return p
}

// Solve runs the solver on m. Faults raised by the solver, including panics,
// are returned as *SolverInvocationError.
func (o Orchestrator) Solve(ctx context.Context, m *solver.Model, p solver.Params, detailed bool) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Status: model.StatusError}
			err = &SolverInvocationError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	p.UseLPBound = p.UseLPBound || o.UseLPBound
	if detailed {
		p.Logger = o.Log
	}
	started := time.Now()
	res, serr := solver.Solve(ctx, m, p)
	if serr != nil {
		return Outcome{Status: model.StatusError, Result: res}, &SolverInvocationError{Err: serr}
	}
	out = Outcome{Status: MapStatus(res.Status), Result: res}
	o.Log.Infof("solver finished: status=%s objective=%d nodes=%d elapsed=%s",
		res.Status, res.Objective, res.Nodes, time.Since(started))
	return out, nil
}

// MapStatus translates a native solver status. Every value maps to a
// response status; unrecognized values map to ERROR.
func MapStatus(s solver.Status) model.Status {
	switch s {
	case solver.StatusOptimal:
		return model.StatusOptimal
	case solver.StatusFeasible:
		return model.StatusFeasible
	case solver.StatusInfeasible:
		return model.StatusInfeasible
	case solver.StatusUnknown:
		return model.StatusTimeLimitExceeded
	default:
		return model.StatusError
	}
}
