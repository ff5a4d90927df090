package native

import (
	"errors"
	"fmt"
)

// Sentinel kinds for boundary errors.
var (
	ErrDeviceNotFound    = errors.New("device not found")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrStreamUnsupported = errors.New("stream not supported by device")
	ErrUnknownToken      = errors.New("unknown callback token")
	ErrInsufficientData  = errors.New("insufficient calibration data")
	ErrComputeFailed     = errors.New("calibration compute failed")
)

// BoundaryError carries an opaque SDK diagnostic through unmodified.
type BoundaryError struct {
	Call       string
	Diagnostic string
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("native boundary %s: %s", e.Call, e.Diagnostic)
}
