// Package sim provides a simulated tracker fleet behind the native
// boundary. It generates synthetic telemetry on its own delivery
// goroutines the way the vendor library would, and supports
// deterministic manual injection and calibration failure injection for
// tests.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	native "github.com/oculab/gazelink/internal/adapters/native"
	sample "github.com/oculab/gazelink/internal/domain/sample"
)

// Default simulation constants.
const (
	defaultSampleInterval   = 16 * time.Millisecond // ~60 Hz
	defaultMinCalibPoints   = 2
	collectedSamplesPerGaze = 30
)

// Fleet implements native.Boundary over a configurable set of simulated
// trackers.
type Fleet struct {
	mu          sync.Mutex
	infos       []native.DeviceInfo
	interval    time.Duration
	connectFail map[string]bool
	unsupported map[sample.Kind]bool
	failCollect map[sample.Point2]bool
	failCompute bool
	minPoints   int
}

// New creates a fleet with configuration options. Without WithTracker
// the fleet contains a single default devkit.
func New(opts ...Option) *Fleet {
	f := &Fleet{
		interval:    defaultSampleInterval,
		connectFail: make(map[string]bool),
		unsupported: make(map[sample.Kind]bool),
		failCollect: make(map[sample.Point2]bool),
		minPoints:   defaultMinCalibPoints,
	}

	for _, opt := range opts {
		opt(f)
	}

	if len(f.infos) == 0 {
		f.infos = []native.DeviceInfo{{
			Address:         "sim://devkit-0",
			SerialNumber:    "SIM-0000",
			Model:           "Simulated Spectrum",
			DeviceName:      "devkit",
			FirmwareVersion: "1.0.0-sim",
		}}
	}

	return f
}

// EnumerateTrackers returns the configured fleet.
func (f *Fleet) EnumerateTrackers(_ context.Context) ([]native.DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]native.DeviceInfo, len(f.infos))
	copy(out, f.infos)
	return out, nil
}

// Connect opens a simulated device by address.
func (f *Fleet) Connect(_ context.Context, address string) (native.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connectFail[address] {
		return nil, native.ErrConnectionFailed
	}

	for _, info := range f.infos {
		if info.Address == address {
			return newDevice(f, info), nil
		}
	}
	return nil, native.ErrDeviceNotFound
}

// Device is one simulated tracker connection.
type Device struct {
	fleet *Fleet
	info  native.DeviceInfo

	mu     sync.Mutex
	closed bool
	subs   map[native.Token]*subscription

	calibrating bool
	points      map[sample.Point2]int
}

func newDevice(f *Fleet, info native.DeviceInfo) *Device {
	return &Device{
		fleet:  f,
		info:   info,
		subs:   make(map[native.Token]*subscription),
		points: make(map[sample.Point2]int),
	}
}

// Info returns the descriptor of the simulated device.
func (d *Device) Info() native.DeviceInfo { return d.info }

// HasStream reports stream support; kinds excluded with WithoutStream
// are unsupported.
func (d *Device) HasStream(kind sample.Kind) bool {
	return !d.fleet.unsupported[kind]
}

// subscription is one registered callback plus its delivery goroutine.
type subscription struct {
	kind sample.Kind
	cb   native.Callback

	// mu serializes delivery against deactivation: Unsubscribe flips
	// active under mu, so a callback in flight completes first.
	mu     sync.Mutex
	active bool

	stop chan struct{}
	done chan struct{}
}

func (s *subscription) deliver(v sample.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.cb(v)
	}
}

// deactivate blocks until no callback is running, then marks the
// subscription dead. After it returns the callback is never invoked.
func (s *subscription) deactivate() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// Subscribe registers cb and starts a delivery goroutine for the kind.
func (d *Device) Subscribe(_ context.Context, kind sample.Kind, cb native.Callback) (native.Token, error) {
	if !d.HasStream(kind) {
		return "", native.ErrStreamUnsupported
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", &native.BoundaryError{Call: "subscribe", Diagnostic: "device handle closed"}
	}

	sub := &subscription{
		kind:   kind,
		cb:     cb,
		active: true,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	token := native.Token(uuid.NewString())
	d.subs[token] = sub

	if d.fleet.interval > 0 {
		go d.run(sub)
	} else {
		close(sub.done)
	}

	return token, nil
}

// run is the delivery loop: one goroutine per subscription, matching
// the single-logical-delivery-context guarantee of the real SDK.
func (d *Device) run(sub *subscription) {
	defer close(sub.done)

	ticker := time.NewTicker(d.fleet.interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-sub.stop:
			return
		case <-ticker.C:
			sub.deliver(generate(sub.kind, seq, d.fleet.interval))
			seq++
		}
	}
}

// Unsubscribe deregisters the callback and blocks until the delivery
// goroutine has exited and no callback is in flight.
func (d *Device) Unsubscribe(_ context.Context, token native.Token) error {
	d.mu.Lock()
	sub, ok := d.subs[token]
	if ok {
		delete(d.subs, token)
	}
	d.mu.Unlock()

	if !ok {
		return native.ErrUnknownToken
	}

	close(sub.stop)
	<-sub.done
	sub.deactivate()
	return nil
}

// Inject delivers a sample to every active subscription of the kind on
// the calling goroutine. Tests use it for deterministic delivery.
func (d *Device) Inject(kind sample.Kind, v sample.Sample) {
	d.mu.Lock()
	subs := make([]*subscription, 0, len(d.subs))
	for _, sub := range d.subs {
		if sub.kind == kind {
			subs = append(subs, sub)
		}
	}
	d.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(v)
	}
}

// EnterCalibrationMode puts the device into calibration mode.
func (d *Device) EnterCalibrationMode(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calibrating {
		return &native.BoundaryError{Call: "enterCalibrationMode", Diagnostic: "already in calibration mode"}
	}
	d.calibrating = true
	return nil
}

// LeaveCalibrationMode leaves calibration mode and forgets collected
// points.
func (d *Device) LeaveCalibrationMode(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.calibrating {
		return &native.BoundaryError{Call: "leaveCalibrationMode", Diagnostic: "not in calibration mode"}
	}
	d.calibrating = false
	d.points = make(map[sample.Point2]int)
	return nil
}

// CalibrationCollect records data for a point, honoring injected
// collection failures.
func (d *Device) CalibrationCollect(_ context.Context, point sample.Point2) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.calibrating {
		return &native.BoundaryError{Call: "calibrationCollectData", Diagnostic: "not in calibration mode"}
	}
	if d.fleet.failCollect[point] {
		return native.ErrInsufficientData
	}
	d.points[point] = collectedSamplesPerGaze
	return nil
}

// CalibrationDiscard removes previously collected data for a point.
func (d *Device) CalibrationDiscard(_ context.Context, point sample.Point2) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.calibrating {
		return &native.BoundaryError{Call: "calibrationDiscardData", Diagnostic: "not in calibration mode"}
	}
	delete(d.points, point)
	return nil
}

// CalibrationComputeAndApply fits a calibration from the collected
// points.
func (d *Device) CalibrationComputeAndApply(_ context.Context) (native.CalibrationResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.calibrating {
		return native.CalibrationResult{}, &native.BoundaryError{Call: "calibrationComputeAndApply", Diagnostic: "not in calibration mode"}
	}

	if d.fleet.failCompute || len(d.points) < d.fleet.minPoints {
		return native.CalibrationResult{Status: native.CalibrationFailure}, native.ErrComputeFailed
	}

	result := native.CalibrationResult{Status: native.CalibrationSuccess}
	for p, n := range d.points {
		result.Points = append(result.Points, native.CalibrationPointResult{Position: p, SampleCount: n})
	}
	return result, nil
}

// Close tears down every subscription and releases the handle.
func (d *Device) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	tokens := make([]native.Token, 0, len(d.subs))
	for token := range d.subs {
		tokens = append(tokens, token)
	}
	d.mu.Unlock()

	for _, token := range tokens {
		_ = d.Unsubscribe(ctx, token)
	}
	return nil
}

// generate produces one synthetic sample for the kind. Waveforms are
// deterministic in seq so tests can reason about them.
func generate(kind sample.Kind, seq int, interval time.Duration) sample.Sample {
	nowUS := time.Now().UnixMicro()
	t := float64(seq) * interval.Seconds()
	ts := sample.Timestamps{DeviceTimeUS: nowUS}

	switch kind {
	case sample.Gaze:
		x := 0.5 + 0.4*math.Sin(2*math.Pi*0.2*t)
		y := 0.5 + 0.4*math.Cos(2*math.Pi*0.2*t)
		eye := sample.EyeData{
			GazePointOnDisplay: sample.Point2{X: x, Y: y},
			GazePointValid:     sample.Valid,
			GazeOrigin:         sample.Point3{X: 30, Y: 0, Z: 600},
			GazeOriginValid:    sample.Valid,
			PupilDiameterMM:    3.0 + 0.5*math.Sin(2*math.Pi*0.05*t),
			PupilValid:         sample.Valid,
		}
		return sample.GazeData{Timestamps: ts, Left: eye, Right: eye}

	case sample.EyeOpenness:
		open := 9.0 + 2.0*math.Sin(2*math.Pi*0.1*t)
		return sample.EyeOpennessData{
			Timestamps: ts,
			LeftMM:     open, LeftValid: sample.Valid,
			RightMM: open, RightValid: sample.Valid,
		}

	case sample.ExternalSignal:
		change := sample.SignalValueChanged
		if seq == 0 {
			change = sample.SignalInitialValue
		}
		return sample.ExternalSignalData{Timestamps: ts, Value: uint32(seq % 2), Change: change}

	case sample.TimeSync:
		return sample.TimeSyncData{
			Timestamps:           ts,
			SystemRequestTimeUS:  nowUS - 250,
			DeviceTimeUS2:        nowUS,
			SystemResponseTimeUS: nowUS + 250,
		}

	case sample.UserPosition:
		z := 0.5 + 0.1*math.Sin(2*math.Pi*0.05*t)
		return sample.UserPositionData{
			Timestamps: ts,
			Left:       sample.Point3{X: 0.45, Y: 0.5, Z: z}, LeftValid: sample.Valid,
			Right: sample.Point3{X: 0.55, Y: 0.5, Z: z}, RightValid: sample.Valid,
		}

	case sample.Notification:
		return sample.NotificationData{Timestamps: ts, Code: sample.NotifyGazeOutputFrequencyChanged, OutputFrequencyHz: 60}

	case sample.EyeImage:
		return sample.EyeImageData{
			Timestamps: ts,
			CameraID:   seq % 2,
			Type:       sample.ImageCropped,
			Width:      128, Height: 64, BitsPerPixel: 8,
			Pixels: make([]byte, 128*64),
		}
	}

	// Unreachable for the closed kind set.
	return sample.GazeData{Timestamps: ts}
}
