package solver

import (
	"time"

	"github.com/kilianp07/railsched/core/logger"
)

// Status is the native outcome of a solve.
type Status int

const (
	// StatusUnknown means the limit was reached before any solution was found.
	StatusUnknown Status = iota
	StatusModelInvalid
	StatusFeasible
	StatusInfeasible
	StatusOptimal
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusModelInvalid:
		return "MODEL_INVALID"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	case StatusOptimal:
		return "OPTIMAL"
	}
	return "INVALID_STATUS"
}

// Strategy selects how the search tree is explored.
type Strategy int

const (
	// StrategyAutomatic splits the root across workers.
	StrategyAutomatic Strategy = iota
	// StrategyFixed explores the tree sequentially in a fixed order.
	StrategyFixed
	// StrategyPortfolio splits the root and alternates value heuristics
	// between subtrees.
	StrategyPortfolio
)

// Params bounds a solve.
type Params struct {
	TimeLimit  time.Duration
	Workers    int
	Strategy   Strategy
	UseLPBound bool
	Logger     logger.Logger
}

// Result is the outcome of Solve.
type Result struct {
	Status    Status
	Objective int64
	Bound     int64
	Nodes     int64
	WallTime  time.Duration
	values    []int64
}

// Value returns the solution value of v. It panics when the result holds no
// solution.
func (r Result) Value(v VarID) int64 {
	return r.values[v]
}

// Bool returns the solution value of a 0/1 variable.
func (r Result) Bool(v VarID) bool {
	return r.values[v] == 1
}

// HasSolution reports whether values can be read.
func (r Result) HasSolution() bool {
	return r.values != nil
}
