package optimizer

import (
	"fmt"
	"math"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/solver"
)

var priorityWeights = map[model.Priority]int64{
	model.PriorityEmergency:   10,
	model.PriorityExpress:     8,
	model.PriorityMail:        6,
	model.PriorityPassenger:   4,
	model.PriorityFreight:     2,
	model.PriorityMaintenance: 1,
}

const (
	defaultPriorityWeight = 3
	primaryScale          = 100
	balancedDelayWeight   = 70
	balancedThroughput    = 30
	// energy units are tenths: speed^2/10 becomes speed^2, 5/min becomes 50
	energyDelayPenalty = 50
)

// PriorityWeight returns the weight of a class in delay and throughput terms.
func PriorityWeight(p model.Priority) int64 {
	if w, ok := priorityWeights[p]; ok {
		return w
	}
	return defaultPriorityWeight
}

// Expression is a weighted sum of linear and square terms.
type Expression struct {
	Linear  []solver.Term
	Squares []solver.SquareTerm
}

// Scale multiplies every coefficient by k.
func (e Expression) Scale(k int64) Expression {
	out := Expression{
		Linear:  make([]solver.Term, len(e.Linear)),
		Squares: make([]solver.SquareTerm, len(e.Squares)),
	}
	for i, t := range e.Linear {
		out.Linear[i] = solver.Term{Var: t.Var, Coef: t.Coef * k}
	}
	for i, t := range e.Squares {
		out.Squares[i] = solver.SquareTerm{Var: t.Var, Coef: t.Coef * k}
	}
	return out
}

// Add appends o to e.
func (e Expression) Add(o Expression) Expression {
	return Expression{
		Linear:  append(append([]solver.Term(nil), e.Linear...), o.Linear...),
		Squares: append(append([]solver.SquareTerm(nil), e.Squares...), o.Squares...),
	}
}

// Composer builds objective expressions over a variable set. Maximization
// goals are negated so every expression is minimized.
type Composer struct{}

// Compose returns the expression of one objective kind.
func (Composer) Compose(kind model.ObjectiveKind, vs *Variables) (Expression, error) {
	switch kind {
	case model.ObjectiveMinimizeDelay, "":
		return delayExpr(vs), nil
	case model.ObjectiveMaximizeThroughput:
		return throughputExpr(vs), nil
	case model.ObjectiveMinimizeEnergy:
		return energyExpr(vs), nil
	case model.ObjectiveMaximizeUtil:
		return utilizationExpr(vs), nil
	case model.ObjectiveMinimizeConflicts:
		return conflictExpr(vs), nil
	case model.ObjectiveBalanced:
		return delayExpr(vs).Scale(balancedDelayWeight).Add(throughputExpr(vs).Scale(balancedThroughput)), nil
	}
	return Expression{}, fmt.Errorf("unknown objective %q", kind)
}

// Scalarize combines the primary objective and weighted secondaries into one
// expression. The primary is scaled by 100 and each secondary by its weight
// times 100, rounded. Unknown secondaries are returned as errors and skipped.
func (c Composer) Scalarize(obj model.Objective, vs *Variables) (Expression, []error, error) {
	primary, err := c.Compose(obj.Primary, vs)
	if err != nil {
		return Expression{}, nil, err
	}
	total := primary.Scale(primaryScale)
	var skipped []error
	for _, s := range obj.Secondary {
		w := int64(math.Round(s.Weight * primaryScale))
		if w == 0 {
			continue
		}
		e, err := c.Compose(s.Kind, vs)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		total = total.Add(e.Scale(w))
	}
	return total, skipped, nil
}

func delayExpr(vs *Variables) Expression {
	var e Expression
	for _, tv := range vs.Trains {
		e.Linear = append(e.Linear, solver.Term{Var: vs.PositiveDelay(tv), Coef: PriorityWeight(tv.Train.Priority)})
	}
	return e
}

func throughputExpr(vs *Variables) Expression {
	var e Expression
	for _, tv := range vs.Trains {
		e.Linear = append(e.Linear, solver.Term{Var: vs.OnTime(tv), Coef: -PriorityWeight(tv.Train.Priority)})
	}
	return e
}

func energyExpr(vs *Variables) Expression {
	var e Expression
	for _, tv := range vs.Trains {
		for _, sp := range tv.Speeds {
			e.Squares = append(e.Squares, solver.SquareTerm{Var: sp, Coef: 1})
		}
		e.Linear = append(e.Linear, solver.Term{Var: vs.PositiveDelay(tv), Coef: energyDelayPenalty})
	}
	return e
}

func utilizationExpr(vs *Variables) Expression {
	var e Expression
	for _, tv := range vs.Trains {
		vs.LinkOccupancy(tv)
		for _, row := range tv.Occupancy {
			for _, occ := range row {
				e.Linear = append(e.Linear, solver.Term{Var: occ, Coef: -1})
			}
		}
	}
	return e
}

// conflictExpr counts pairs of trains sharing a section whose journeys
// overlap. An overlap indicator left false forces the journeys apart.
func conflictExpr(vs *Variables) Expression {
	var e Expression
	m := vs.Model
	ts := vs.Trains
	for i := 0; i < len(ts); i++ {
		for j := i + 1; j < len(ts); j++ {
			a, c := ts[i], ts[j]
			if !a.Train.SharesSection(c.Train) {
				continue
			}
			overlap := m.NewBoolVar(pairName("overlap", a, c))
			o := m.NewBoolVar(pairName("overlap.order", a, c))
			if goesFirst(a, c) {
				m.SetHint(o, 1)
			} else {
				m.SetHint(o, 0)
			}
			m.AddPrecedence(a.End, 0, c.Start, solver.No(overlap), solver.Yes(o))
			m.AddPrecedence(c.End, 0, a.Start, solver.No(overlap), solver.No(o))
			e.Linear = append(e.Linear, solver.Term{Var: overlap, Coef: 1})
		}
	}
	return e
}
