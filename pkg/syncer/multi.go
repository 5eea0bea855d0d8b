package syncer

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
)

// Multi runs several methods one after another and concatenates their
// candidates.
type Multi []Syncer

var _ Syncer = (Multi)(nil)

func (m Multi) Method() Method {
	return "multi"
}

// CalculateShiftBetween returns the candidates of every method which
// succeeded. The failures are returned as a *multierror.Error of
// CorrelationComputationError-s alongside the candidates of the others.
func (m Multi) CalculateShiftBetween(
	ctx context.Context,
	reference *Input,
	comparison *Input,
) (_ret []ShiftResult, _err error) {
	logger.Tracef(ctx, "CalculateShiftBetween")
	defer func() { logger.Tracef(ctx, "/CalculateShiftBetween: %v %v", _ret, _err) }()

	var (
		result []ShiftResult
		mErr   *multierror.Error
	)
	for _, s := range m {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		candidates, err := calculateSafely(ctx, s, reference, comparison)
		if err != nil {
			logger.Warnf(ctx, "method %s failed: %v", s.Method(), err)
			mErr = multierror.Append(mErr, CorrelationComputationError{Method: s.Method(), Err: err})
			continue
		}
		logger.Debugf(ctx, "method %s: %v", s.Method(), candidates)
		for _, c := range candidates {
			if c.Method == "" {
				c.Method = s.Method()
			}
			result = append(result, c)
		}
	}
	return result, mErr.ErrorOrNil()
}

func calculateSafely(
	ctx context.Context,
	s Syncer,
	reference *Input,
	comparison *Input,
) (_ret []ShiftResult, _err error) {
	defer func() {
		if r := recover(); r != nil {
			_ret, _err = nil, fmt.Errorf("got panic: %v", r)
		}
	}()
	return s.CalculateShiftBetween(ctx, reference, comparison)
}
