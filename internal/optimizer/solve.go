package optimizer

import (
	"context"
	"errors"
	"time"

	"gonum.org/v1/gonum/optimize/convex/lp"
)

type solveResult struct {
	x        []float64
	err      error
	timedOut bool
	status   string
}

// simplexTol is the convergence tolerance handed to lp.Simplex. It must be
// strictly positive: a zero tolerance makes the reduced-cost test exact, and
// degenerate pivots can then misreport feasible bounded problems as unbounded.
const simplexTol = 1e-10

// solveWithTimeout runs the simplex solve bounded by a wall-clock budget.
// The simplex is exact, so a completed solve trivially satisfies the
// configured gap tolerance. On timeout the solver goroutine is abandoned and
// the caller proceeds with fallback prices; there is no mid-solve
// cancellation.
func solveWithTimeout(ctx context.Context, prob *problem, timeout time.Duration) solveResult {
	done := make(chan solveResult, 1)

	go func() {
		_, x, err := lp.Simplex(prob.c, prob.a, prob.b, simplexTol, nil)
		done <- solveResult{x: x, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		res.status = statusFor(res)
		return res
	case <-timer.C:
		return solveResult{timedOut: true, status: StatusNotSolved}
	case <-ctx.Done():
		return solveResult{timedOut: true, status: StatusNotSolved}
	}
}

func statusFor(res solveResult) string {
	switch {
	case res.err == nil:
		return StatusOptimal
	case isInfeasible(res.err):
		return "Infeasible"
	case isUnbounded(res.err):
		return "Unbounded"
	default:
		return StatusUndefined
	}
}

func isInfeasible(err error) bool {
	return errors.Is(err, lp.ErrInfeasible)
}

func isUnbounded(err error) bool {
	return errors.Is(err, lp.ErrUnbounded)
}
