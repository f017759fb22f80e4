package solver

import (
	"context"
	"errors"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
)

func solve(t *testing.T, m *Model, p Params) Result {
	t.Helper()
	if p.TimeLimit == 0 {
		p.TimeLimit = 5 * time.Second
	}
	res, err := Solve(context.Background(), m, p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	return res
}

func TestLinearMinimization(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 10, "x")
	y := m.NewIntVar(0, 10, "y")
	m.AddLinearGE([]Term{{x, 1}, {y, 1}}, 7)
	m.Minimize(Term{x, 2}, Term{y, 3})

	res := solve(t, m, Params{Workers: 1})
	if res.Status != StatusOptimal {
		t.Fatalf("expected optimal got %s", res.Status)
	}
	if res.Objective != 14 || res.Value(x) != 7 || res.Value(y) != 0 {
		t.Fatalf("unexpected solution obj=%d x=%d y=%d", res.Objective, res.Value(x), res.Value(y))
	}
}

func TestHalfReifiedDisjunction(t *testing.T) {
	m := NewModel()
	a := m.NewIntVar(0, 20, "a")
	b := m.NewIntVar(0, 20, "b")
	o := m.NewBoolVar("a_first")
	m.AddPrecedence(a, 5, b, Yes(o))
	m.AddPrecedence(b, 5, a, No(o))
	m.AddLinearLE([]Term{{b, 1}}, 3)
	m.Minimize(Term{a, 1}, Term{b, 1})

	res := solve(t, m, Params{Workers: 1})
	if res.Status != StatusOptimal {
		t.Fatalf("expected optimal got %s", res.Status)
	}
	if res.Bool(o) {
		t.Fatalf("b must go first")
	}
	if res.Value(a)-res.Value(b) < 5 {
		t.Fatalf("separation violated a=%d b=%d", res.Value(a), res.Value(b))
	}
	if res.Objective != 5 {
		t.Fatalf("expected objective 5 got %d", res.Objective)
	}
}

func TestEnforcementLiteralIsRefuted(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(5, 10, "x")
	l := m.NewBoolVar("l")
	m.AddLinearLE([]Term{{x, 1}}, 2, Yes(l))
	m.Minimize(Term{l, -1})

	res := solve(t, m, Params{Workers: 1})
	if res.Status != StatusOptimal || res.Bool(l) {
		t.Fatalf("literal should be forced false, status %s", res.Status)
	}
}

func TestSeparationOverloadIsInfeasible(t *testing.T) {
	m := NewModel()
	var vars []VarID
	for i := 0; i < 10; i++ {
		vars = append(vars, m.NewIntVar(0, 20, "s"))
	}
	m.AddSeparation(vars, 5)

	res := solve(t, m, Params{Workers: 1})
	if res.Status != StatusInfeasible {
		t.Fatalf("expected infeasible got %s", res.Status)
	}
}

func TestNotEqual(t *testing.T) {
	m := NewModel()
	var vars []VarID
	for i := 0; i < 3; i++ {
		vars = append(vars, m.NewIntVar(1, 3, "p"))
	}
	for i := range vars {
		for j := i + 1; j < len(vars); j++ {
			m.AddNotEqual(vars[i], vars[j])
		}
	}
	res := solve(t, m, Params{Workers: 1})
	if res.Status != StatusOptimal {
		t.Fatalf("expected optimal got %s", res.Status)
	}
	seen := map[int64]bool{}
	for _, v := range vars {
		seen[res.Value(v)] = true
	}
	if len(seen) != 3 {
		t.Fatalf("values not distinct: %v", seen)
	}
}

func TestPredicateRejectsLeaves(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 5, "x")
	m.AddPredicate("odd", []VarID{x}, func(v []int64) bool { return v[0]%2 == 1 })
	m.Minimize(Term{x, 1})

	res := solve(t, m, Params{Workers: 1})
	if res.Status != StatusOptimal || res.Value(x) != 1 {
		t.Fatalf("expected x=1 got %d (%s)", res.Value(x), res.Status)
	}
}

func TestSquareObjective(t *testing.T) {
	m := NewModel()
	v := m.NewIntVar(20, 100, "speed")
	m.SetHint(v, 80)
	m.MinimizeSquares(SquareTerm{Var: v, Coef: 1})
	res := solve(t, m, Params{Workers: 1})
	if res.Value(v) != 20 || res.Objective != 400 {
		t.Fatalf("expected speed 20 got %d obj %d", res.Value(v), res.Objective)
	}
}

func TestHintUsedForFreeDecisions(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 50, "x")
	y := m.NewIntVar(0, 50, "y")
	m.SetHint(x, 30)
	m.AddLinearLE([]Term{{x, 1}, {y, -1}}, 0)
	res := solve(t, m, Params{Workers: 1})
	if res.Value(x) != 30 || res.Value(y) < 30 {
		t.Fatalf("hint ignored: x=%d y=%d", res.Value(x), res.Value(y))
	}
}

func TestInvalidModel(t *testing.T) {
	m := NewModel()
	m.NewIntVar(5, 1, "bad")
	res, err := Solve(context.Background(), m, Params{})
	if !errors.Is(err, ErrModelInvalid) {
		t.Fatalf("expected ErrModelInvalid got %v", err)
	}
	if res.Status != StatusModelInvalid {
		t.Fatalf("expected model invalid status got %s", res.Status)
	}
}

func TestNonBooleanLiteralInvalid(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 3, "x")
	m.AddLinearLE([]Term{{x, 1}}, 1, Yes(x))
	if !errors.Is(m.Err(), ErrModelInvalid) {
		t.Fatalf("expected invalid model")
	}
}

func buildScheduling(n int) (*Model, []VarID) {
	m := NewModel()
	starts := make([]VarID, n)
	for i := range starts {
		starts[i] = m.NewIntVar(0, 60, "start")
		m.SetHint(starts[i], int64(i))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			o := m.NewBoolVar("order")
			m.SetHint(o, 1)
			m.AddPrecedence(starts[i], 4, starts[j], Yes(o))
			m.AddPrecedence(starts[j], 4, starts[i], No(o))
		}
	}
	m.AddSeparation(starts, 4)
	for i, s := range starts {
		m.Minimize(Term{s, int64(n - i)})
	}
	return m, starts
}

func TestParallelMatchesSequential(t *testing.T) {
	m1, s1 := buildScheduling(5)
	seq := solve(t, m1, Params{Workers: 1, Strategy: StrategyFixed})
	m2, s2 := buildScheduling(5)
	par := solve(t, m2, Params{Workers: 4, Strategy: StrategyPortfolio})
	if seq.Status != StatusOptimal || par.Status != StatusOptimal {
		t.Fatalf("expected optimal got %s/%s", seq.Status, par.Status)
	}
	if seq.Objective != par.Objective {
		t.Fatalf("objective mismatch %d vs %d", seq.Objective, par.Objective)
	}
	for i := range s1 {
		if seq.Value(s1[i]) != par.Value(s2[i]) {
			t.Fatalf("start %d differs: %d vs %d", i, seq.Value(s1[i]), par.Value(s2[i]))
		}
	}
}

func TestCancelledSearchIsUnknown(t *testing.T) {
	m := NewModel()
	var vars []VarID
	for i := 0; i < 9; i++ {
		vars = append(vars, m.NewIntVar(1, 8, "p"))
	}
	for i := range vars {
		for j := i + 1; j < len(vars); j++ {
			m.AddNotEqual(vars[i], vars[j])
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Solve(ctx, m, Params{Workers: 1, TimeLimit: time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusUnknown {
		t.Fatalf("expected unknown got %s", res.Status)
	}
}

func TestLPBoundFromRelaxation(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 10, "x")
	y := m.NewIntVar(0, 10, "y")
	m.AddLinearEQ([]Term{{x, 1}, {y, 1}}, 8)
	m.Minimize(Term{x, 1}, Term{y, 2})
	c := compile(m)
	s := newState(c)
	s.enqueueAll()
	if !s.propagate() {
		t.Fatalf("root propagation failed")
	}
	b, ok := lpBound(c, s)
	if !ok || b != 8 {
		t.Fatalf("expected bound 8 got %d (%v)", b, ok)
	}
}

func TestLPFailureIsIgnored(t *testing.T) {
	orig := lpSolve
	lpSolve = func([]float64, *mat.Dense, []float64, *mat.Dense, []float64) (float64, error) {
		return 0, errors.New("boom")
	}
	defer func() { lpSolve = orig }()

	m := NewModel()
	x := m.NewIntVar(0, 10, "x")
	y := m.NewIntVar(0, 10, "y")
	m.AddLinearEQ([]Term{{x, 1}, {y, 1}}, 8)
	m.Minimize(Term{x, 1}, Term{y, 2})
	res := solve(t, m, Params{Workers: 1, UseLPBound: true})
	if res.Status != StatusOptimal || res.Objective != 8 {
		t.Fatalf("unexpected result %s %d", res.Status, res.Objective)
	}
}

func buildTimetable(n int, timing bool) (*Model, []VarID) {
	m := NewModel()
	starts := make([]VarID, n)
	for i := range starts {
		starts[i] = m.NewIntVar(0, 100, "start")
		m.SetHint(starts[i], int64(4*i))
		if timing {
			m.SetTiming(starts[i])
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			o := m.NewBoolVar("order")
			m.SetHint(o, 1)
			m.AddPrecedence(starts[i], 4, starts[j], Yes(o))
			m.AddPrecedence(starts[j], 4, starts[i], No(o))
		}
	}
	m.AddSeparation(starts, 4)
	for i, s := range starts {
		m.Minimize(Term{s, int64(i + 1)})
	}
	return m, starts
}

func TestWarmStartKeptWhenSearchTimesOut(t *testing.T) {
	m, starts := buildTimetable(8, true)
	res := solve(t, m, Params{Workers: 1, TimeLimit: time.Nanosecond})
	if res.Status != StatusFeasible {
		t.Fatalf("expected feasible got %s", res.Status)
	}
	for i, s := range starts {
		if res.Value(s) != int64(4*i) {
			t.Fatalf("start %d = %d, want hint %d", i, res.Value(s), 4*i)
		}
	}
}

func TestWarmStartSkipsRefutedHints(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 10, "x")
	y := m.NewIntVar(0, 10, "y")
	m.SetHint(x, 2)
	m.SetHint(y, 2)
	m.AddNotEqual(x, y)
	m.Minimize(Term{x, 1}, Term{y, 1})
	res := solve(t, m, Params{Workers: 1, TimeLimit: time.Nanosecond})
	if res.Status != StatusFeasible && res.Status != StatusOptimal {
		t.Fatalf("expected a solution got %s", res.Status)
	}
	if res.Value(x) == res.Value(y) {
		t.Fatalf("x and y must differ, both %d", res.Value(x))
	}
}

func TestSetTimesMatchesDomainBranching(t *testing.T) {
	m1, s1 := buildTimetable(5, false)
	plain := solve(t, m1, Params{Workers: 1, Strategy: StrategyFixed})
	m2, s2 := buildTimetable(5, true)
	timed := solve(t, m2, Params{Workers: 4})
	if plain.Status != StatusOptimal || timed.Status != StatusOptimal {
		t.Fatalf("expected optimal got %s/%s", plain.Status, timed.Status)
	}
	if plain.Objective != timed.Objective {
		t.Fatalf("objective mismatch %d vs %d", plain.Objective, timed.Objective)
	}
	for i := range s1 {
		if plain.Value(s1[i]) != timed.Value(s2[i]) {
			t.Fatalf("start %d differs: %d vs %d", i, plain.Value(s1[i]), timed.Value(s2[i]))
		}
	}
}
