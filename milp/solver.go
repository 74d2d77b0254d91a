package milp

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// maxNodes is a hard backstop on branch-and-bound work independent of
// the wall-clock deadline, so a pathological model cannot spin forever
// inside a single Solve call even if the caller passes a generous
// timeLimit.
const maxNodes = 20000

// fracTol is how close to 0 or 1 a binary variable's relaxed value
// must be to be treated as already integral.
const fracTol = 1e-6

// bbNode is one branch-and-bound subproblem: the model's variable
// bounds, tightened relative to the parent by the branching decision
// that produced it.
type bbNode struct {
	lb, ub []float64
}

// branchAndBound explores bbNode subproblems depth-first, solving each
// node's LP relaxation with gonum's simplex and branching on the most
// fractional binary variable when the relaxation isn't already
// integral.
func branchAndBound(m *Model, timeLimit time.Duration) (Solution, error) {
	deadline := time.Now().Add(timeLimit)

	root := bbNode{lb: append([]float64(nil), m.lb...), ub: append([]float64(nil), m.ub...)}
	stack := []bbNode{root}

	best := Solution{Status: StatusInfeasible, Objective: math.Inf(1)}
	nodes := 0

	for len(stack) > 0 {
		if nodes >= maxNodes || time.Now().After(deadline) {
			if best.Status == StatusOptimal {
				best.Nodes = nodes
				return best, nil
			}
			return Solution{Status: StatusTimeLimit, Nodes: nodes}, nil
		}

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		feasible, x, obj, err := solveRelaxation(m, node.lb, node.ub)
		if err != nil {
			return Solution{}, err
		}
		if !feasible {
			continue
		}
		if best.Status == StatusOptimal && obj >= best.Objective-1e-9 {
			continue // bound: relaxation can't beat the incumbent
		}

		branchVar, frac := mostFractionalBinary(m, x)
		if branchVar < 0 {
			// Integral (or no binaries to branch on): candidate incumbent.
			best = Solution{Status: StatusOptimal, X: x, Objective: obj}
			continue
		}
		_ = frac

		downUB := append([]float64(nil), node.ub...)
		downUB[branchVar] = 0
		downLB := node.lb
		if downLB[branchVar] <= 0 {
			stack = append(stack, bbNode{lb: node.lb, ub: downUB})
		}

		upLB := append([]float64(nil), node.lb...)
		upLB[branchVar] = 1
		if node.ub[branchVar] >= 1 {
			stack = append(stack, bbNode{lb: upLB, ub: node.ub})
		}
	}

	best.Nodes = nodes
	return best, nil
}

// mostFractionalBinary returns the binary variable whose relaxed value
// is furthest from an integer, or -1 if all binary variables are
// already integral.
func mostFractionalBinary(m *Model, x []float64) (VarID, float64) {
	branchVar := VarID(-1)
	bestFrac := fracTol
	for i, isBinary := range m.binary {
		if !isBinary {
			continue
		}
		v := x[i]
		frac := v - math.Floor(v)
		dist := math.Min(frac, 1-frac)
		if dist > bestFrac {
			bestFrac = dist
			branchVar = VarID(i)
		}
	}
	return branchVar, bestFrac
}

// solveRelaxation solves the model's LP relaxation with the given
// (possibly branch-tightened) variable bounds, via gonum's simplex.
//
// gonum's lp.Simplex operates on standard form (minimize c^T y subject
// to A y = b, y >= 0); this builds that form by shifting every
// variable down by its lower bound, adding one slack row per variable
// to realize its upper bound, and one slack column per inequality
// constraint. Equality constraint rows get no slack column, gonum's
// own phase-one handles finding a feasible basis when initialBasic is
// nil.
func solveRelaxation(m *Model, lb, ub []float64) (feasible bool, x []float64, objective float64, err error) {
	n := m.NumVars()
	width := make([]float64, n)
	for i := 0; i < n; i++ {
		w := ub[i] - lb[i]
		if w < -1e-9 {
			return false, nil, 0, nil // branching produced an empty interval
		}
		if w < 0 {
			w = 0
		}
		width[i] = w
	}

	numIneq := 0
	for _, c := range m.cons {
		if c.sense != EQ {
			numIneq++
		}
	}

	rows := n + len(m.cons)
	cols := n /* y */ + n /* box slacks */ + numIneq /* constraint slacks */

	A := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	c := make([]float64, cols)

	for i := 0; i < n; i++ {
		c[i] = m.obj[i]
	}

	row := 0
	for i := 0; i < n; i++ {
		A.Set(row, i, 1)
		A.Set(row, n+i, 1)
		b[row] = width[i]
		row++
	}

	slackCol := 2 * n
	constOffset := 0.0
	for i := 0; i < n; i++ {
		constOffset += m.obj[i] * lb[i]
	}

	for _, cons := range m.cons {
		rhs := cons.rhs
		for v, coeff := range cons.coeffs {
			A.Set(row, int(v), coeff)
			rhs -= coeff * lb[v]
		}

		switch cons.sense {
		case EQ:
			// no slack column
		case LE:
			A.Set(row, slackCol, 1)
			slackCol++
		case GE:
			A.Set(row, slackCol, -1)
			slackCol++
		}

		if rhs < 0 {
			// gonum's simplex expects b >= 0; flip the row's sign,
			// which is a no-op on the equality it expresses.
			for j := 0; j < cols; j++ {
				A.Set(row, j, -A.At(row, j))
			}
			rhs = -rhs
		}
		b[row] = rhs
		row++
	}

	optF, optX, serr := lp.Simplex(c, A, b, 1e-10, nil)
	if serr != nil {
		return false, nil, 0, nil
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = optX[i] + lb[i]
	}
	return true, out, optF + constOffset, nil
}
