package calibration

import (
	"errors"
	"fmt"
)

// ErrCalibrationFailed is returned, wrapped in a *FailedError, by every
// failing Solve.
var ErrCalibrationFailed = errors.New("calibration failed")

// FailedError records the solver step that failed and its cause.
// errors.Is matches both ErrCalibrationFailed and the cause.
type FailedError struct {
	Step string
	Err  error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%v while %s: %v", ErrCalibrationFailed, e.Step, e.Err)
}

func (e *FailedError) Unwrap() []error {
	return []error{ErrCalibrationFailed, e.Err}
}
