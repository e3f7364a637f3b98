package optimizer

import "errors"

var (
	// ErrInfeasible indicates the constraint set admits no solution.
	ErrInfeasible = errors.New("optimizer: problem is infeasible; lower the cost recovery target or widen the price bounds")
	// ErrUnbounded indicates a malformed objective/constraint combination.
	ErrUnbounded = errors.New("optimizer: problem is unbounded")
)

// ConfigurationError rejects invalid parameters before any computation.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "optimizer: invalid configuration: " + e.Reason
}

// DegenerateInputError rejects consumption series that cannot support an
// optimization problem (empty horizon or zero total consumption).
type DegenerateInputError struct {
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return "optimizer: degenerate input: " + e.Reason
}
