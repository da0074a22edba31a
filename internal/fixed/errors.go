package fixed

import "errors"

// ErrComputation is the sentinel every arithmetic failure unwraps to.
var ErrComputation = errors.New("computation error")

// ComputationError reports an arithmetic overflow, underflow or division by
// zero. Reason is a static string naming the failing site.
type ComputationError struct {
	Reason string
}

// Computation returns a *ComputationError with the given reason.
func Computation(reason string) error {
	return &ComputationError{Reason: reason}
}

func (e *ComputationError) Error() string { return "computation error: " + e.Reason }

func (e *ComputationError) Unwrap() error { return ErrComputation }
