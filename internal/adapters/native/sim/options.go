package sim

import (
	"time"

	native "github.com/oculab/gazelink/internal/adapters/native"
	sample "github.com/oculab/gazelink/internal/domain/sample"
)

// Option applies a configuration option to the Fleet.
type Option func(*Fleet)

// WithTracker adds a device to the fleet.
func WithTracker(info native.DeviceInfo) Option {
	return func(f *Fleet) {
		f.infos = append(f.infos, info)
	}
}

// WithSampleInterval sets the synthetic delivery period. Zero disables
// the delivery goroutines entirely; samples then arrive only through
// Inject.
func WithSampleInterval(interval time.Duration) Option {
	return func(f *Fleet) {
		if interval >= 0 {
			f.interval = interval
		}
	}
}

// WithManualDelivery disables the delivery goroutines; samples arrive
// only through Inject. Shorthand for WithSampleInterval(0).
func WithManualDelivery() Option {
	return func(f *Fleet) {
		f.interval = 0
	}
}

// WithConnectFailure makes Connect fail with ErrConnectionFailed for
// the given address even though enumeration lists it.
func WithConnectFailure(address string) Option {
	return func(f *Fleet) {
		f.connectFail[address] = true
	}
}

// WithoutStream marks a stream kind unsupported on every fleet device.
func WithoutStream(kind sample.Kind) Option {
	return func(f *Fleet) {
		f.unsupported[kind] = true
	}
}

// WithCollectFailureAt makes calibration collection fail with
// ErrInsufficientData at the given point.
func WithCollectFailureAt(point sample.Point2) Option {
	return func(f *Fleet) {
		f.failCollect[point] = true
	}
}

// WithComputeFailure makes every compute-and-apply fail with
// ErrComputeFailed regardless of collected points.
func WithComputeFailure() Option {
	return func(f *Fleet) {
		f.failCompute = true
	}
}

// WithMinCalibrationPoints sets how many collected points a compute
// needs before the simulated SDK can produce a fit.
func WithMinCalibrationPoints(n int) Option {
	return func(f *Fleet) {
		if n > 0 {
			f.minPoints = n
		}
	}
}
