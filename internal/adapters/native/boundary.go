// Package native defines the call/callback boundary to the vendor
// tracker SDK. Nothing behind this boundary is reimplemented: the
// interfaces mirror the vendor library's fixed C-style surface, and the
// sim subpackage stands in for it where no hardware is present.
package native

import (
	"context"

	sample "github.com/oculab/gazelink/internal/domain/sample"
)

// Token identifies one registered callback so it can be deregistered.
type Token string

// Callback receives samples on the SDK's own delivery context. For a
// given (device, kind) pair the SDK invokes it from a single logical
// delivery context; the callback must confine itself to enqueuing.
type Callback func(s sample.Sample)

// DeviceInfo describes one available tracker.
type DeviceInfo struct {
	Address         string
	SerialNumber    string
	Model           string
	DeviceName      string
	FirmwareVersion string
}

// Boundary is the entry surface of the vendor library.
type Boundary interface {
	// EnumerateTrackers returns the finite set of reachable devices.
	EnumerateTrackers(ctx context.Context) ([]DeviceInfo, error)

	// Connect opens a device by address. Returns ErrDeviceNotFound for
	// an unknown address and ErrConnectionFailed when the device is
	// reachable but refuses the connection.
	Connect(ctx context.Context, address string) (Device, error)
}

// Device is one opened tracker connection.
type Device interface {
	// Info returns the descriptor for the connected device.
	Info() DeviceInfo

	// HasStream reports whether the device can deliver the given kind.
	HasStream(kind sample.Kind) bool

	// Subscribe registers cb for the stream kind. The SDK starts its own
	// delivery and returns a token for deregistration. Returns
	// ErrStreamUnsupported when the device lacks the stream.
	Subscribe(ctx context.Context, kind sample.Kind, cb Callback) (Token, error)

	// Unsubscribe deregisters the callback. It blocks until the SDK
	// guarantees no further invocations for this token will occur.
	Unsubscribe(ctx context.Context, token Token) error

	// EnterCalibrationMode and LeaveCalibrationMode bracket a
	// calibration session. Both block on the hardware round-trip.
	EnterCalibrationMode(ctx context.Context) error
	LeaveCalibrationMode(ctx context.Context) error

	// CalibrationCollect gathers gaze data while the user fixates the
	// given on-screen point. Returns ErrInsufficientData when the
	// tracker could not gather enough valid samples; the point may be
	// retried.
	CalibrationCollect(ctx context.Context, point sample.Point2) error

	// CalibrationDiscard removes previously collected data for a point.
	CalibrationDiscard(ctx context.Context, point sample.Point2) error

	// CalibrationComputeAndApply fits and applies a calibration from
	// the collected points. Returns ErrComputeFailed when the SDK
	// cannot produce a fit.
	CalibrationComputeAndApply(ctx context.Context) (CalibrationResult, error)

	// Close releases the native handle.
	Close(ctx context.Context) error
}

// CalibrationStatus is the SDK's verdict on a compute-and-apply call.
type CalibrationStatus int

// Calibration outcomes.
const (
	CalibrationSuccess CalibrationStatus = iota
	CalibrationFailure
)

// String returns the wire name of the status.
func (s CalibrationStatus) String() string {
	if s == CalibrationSuccess {
		return "success"
	}
	return "failure"
}

// CalibrationPointResult reports what the SDK collected at one point.
type CalibrationPointResult struct {
	Position    sample.Point2
	SampleCount int
}

// CalibrationResult is the payload returned by compute-and-apply.
type CalibrationResult struct {
	Status CalibrationStatus
	Points []CalibrationPointResult
}
