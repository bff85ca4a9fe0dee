package feeding

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlan is returned by Plan.Validate.
	ErrInvalidPlan = errors.New("feeding: invalid plan")

	// ErrPlanNotFound is returned when removing an unknown plan ID.
	ErrPlanNotFound = errors.New("feeding: plan not found")
)

// MismatchError reports a feed that dispensed a different number of
// portions than requested.
type MismatchError struct {
	Actual   int
	Expected int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("Food output actual != expected: %d != %d", e.Actual, e.Expected)
}
