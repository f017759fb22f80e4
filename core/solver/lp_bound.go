package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Size limits of the root relaxation. Larger models skip it.
const (
	maxLPVars = 160
	maxLPRows = 640
	lpTol     = 1e-7
)

// lpSolve points to the simplex routine. It can be overridden in tests.
var lpSolve = func(c []float64, g *mat.Dense, h []float64, a *mat.Dense, b []float64) (float64, error) {
	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	opt, _, err := lp.Simplex(cStd, aStd, bStd, lpTol, nil)
	return opt, err
}

// lpBound computes a lower bound of the objective from the linear relaxation
// of the model at the root. Enforced constraints are relaxed with big-M terms
// sized from the current bounds and square terms are replaced by their tangent
// at the lower bound. It reports false when no bound is available.
func lpBound(c *compiled, s *state) (bound int64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if len(c.m.eqs) == 0 || len(c.decision) > maxLPVars {
		return 0, false
	}

	col := make(map[VarID]int)
	var cols []VarID
	use := func(v VarID) int {
		if i, ok := col[v]; ok {
			return i
		}
		col[v] = len(cols)
		cols = append(cols, v)
		return col[v]
	}

	type row struct {
		coef map[int]float64
		rhs  float64
	}
	var ineq []row
	for _, con := range c.m.cons {
		le, isLinear := con.(*linearLE)
		if !isLinear || (len(le.enforce) == 0 && isEquality(c.m, le)) {
			continue
		}
		upper := int64(0)
		for _, t := range le.terms {
			if t.Coef > 0 {
				upper += t.Coef * s.hi[t.Var]
			} else {
				upper += t.Coef * s.lo[t.Var]
			}
		}
		bigM := upper - le.rhs
		if bigM <= 0 {
			continue
		}
		r := row{coef: map[int]float64{}, rhs: float64(le.rhs)}
		for _, t := range le.terms {
			r.coef[use(t.Var)] += float64(t.Coef)
		}
		for _, l := range le.enforce {
			j := use(l.Var)
			if l.Neg {
				r.coef[j] -= float64(bigM)
			} else {
				r.coef[j] += float64(bigM)
				r.rhs += float64(bigM)
			}
		}
		ineq = append(ineq, r)
	}

	var eq []row
	for _, e := range c.m.eqs {
		r := row{coef: map[int]float64{}, rhs: float64(e.rhs)}
		for _, t := range e.terms {
			r.coef[use(t.Var)] += float64(t.Coef)
		}
		eq = append(eq, r)
	}

	obj := map[int]float64{}
	offset := 0.0
	for _, t := range c.objLin {
		obj[use(t.Var)] += float64(t.Coef)
	}
	for _, t := range c.objSq {
		lo := float64(s.lo[t.Var])
		if lo < 0 {
			lo = 0
		}
		obj[use(t.Var)] += float64(t.Coef) * 2 * lo
		offset -= float64(t.Coef) * lo * lo
	}

	n := len(cols)
	rows := len(ineq) + 2*n
	if n == 0 || len(eq) == 0 || n > maxLPVars || rows > maxLPRows {
		return 0, false
	}

	cv := make([]float64, n)
	for j, v := range obj {
		cv[j] = v
	}
	g := mat.NewDense(rows, n, nil)
	h := make([]float64, rows)
	for i, r := range ineq {
		for j, v := range r.coef {
			g.Set(i, j, v)
		}
		h[i] = r.rhs
	}
	for j, v := range cols {
		i := len(ineq) + 2*j
		g.Set(i, j, 1)
		h[i] = float64(s.hi[v])
		g.Set(i+1, j, -1)
		h[i+1] = -float64(s.lo[v])
	}
	a := mat.NewDense(len(eq), n, nil)
	b := make([]float64, len(eq))
	for i, r := range eq {
		for j, v := range r.coef {
			a.Set(i, j, v)
		}
		b[i] = r.rhs
	}

	opt, err := lpSolve(cv, g, h, a, b)
	if err != nil || math.IsNaN(opt) || math.IsInf(opt, 0) {
		return 0, false
	}
	val := opt + offset
	return int64(math.Ceil(val - 1e-6*math.Max(1, math.Abs(val)))), true
}

// isEquality reports whether le is one half of an unconditional equality,
// which the relaxation encodes as an equality row instead.
func isEquality(m *Model, le *linearLE) bool {
	for _, e := range m.eqs {
		if sameTerms(e.terms, le.terms, 1) && e.rhs == le.rhs {
			return true
		}
		if sameTerms(e.terms, le.terms, -1) && e.rhs == -le.rhs {
			return true
		}
	}
	return false
}

func sameTerms(a, b []Term, sign int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Var != b[i].Var || a[i].Coef*sign != b[i].Coef {
			return false
		}
	}
	return true
}
