package syncer

import (
	"fmt"
)

type ErrSampleRateMismatch struct {
	Reference  int
	Comparison int
}

func (e ErrSampleRateMismatch) Error() string {
	return fmt.Sprintf("the sample rates are different: %d != %d", e.Reference, e.Comparison)
}

// CorrelationComputationError is a failure of a single method. It never
// prevents the other methods from contributing.
type CorrelationComputationError struct {
	Method Method
	Err    error
}

func (e CorrelationComputationError) Error() string {
	return fmt.Sprintf("unable to compute the %s correlation: %v", e.Method, e.Err)
}

func (e CorrelationComputationError) Unwrap() error {
	return e.Err
}
