package calibration

import "errors"

// Sentinel kinds for calibration errors. ErrCollectionFailed and
// ErrComputeFailed are data-quality errors: the session survives them.
var (
	ErrAlreadyCalibrating = errors.New("calibration session already active")
	ErrInvalidState       = errors.New("invalid calibration state")
	ErrCollectionFailed   = errors.New("calibration point collection failed")
	ErrComputeFailed      = errors.New("calibration compute failed")
	ErrUnknownPoint       = errors.New("calibration point not collected")
)
