// Package service is the connection manager: it owns the tracker
// handles and routes stream and calibration operations to the
// components that serve them.
package service

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	native "github.com/oculab/gazelink/internal/adapters/native"
	registry "github.com/oculab/gazelink/internal/adapters/registry"
	calibration "github.com/oculab/gazelink/internal/domain/calibration"
	sample "github.com/oculab/gazelink/internal/domain/sample"
	"github.com/oculab/gazelink/pkg/logger"
	"github.com/oculab/gazelink/pkg/metrics"
)

// handleState is the per-connection bookkeeping. The native device
// never leaves this struct; hosts only ever see the opaque handle id.
type handleState struct {
	device native.Device
	info   native.DeviceInfo
}

// Service implements the host-facing operation set.
type Service struct {
	mu      sync.RWMutex
	handles map[string]*handleState

	boundary native.Boundary
	registry *registry.Registry
	calib    *calibration.Controller

	defaultBufferCapacity int
	log                   logger.Logger
}

// New creates a connection manager over the given boundary.
func New(boundary native.Boundary, opts ...Option) *Service {
	s := &Service{
		handles:  make(map[string]*handleState),
		boundary: boundary,
		log:      logger.Named("service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		regOpts := []registry.Option{}
		if s.defaultBufferCapacity > 0 {
			regOpts = append(regOpts, registry.WithDefaultCapacity(s.defaultBufferCapacity))
		}
		s.registry = registry.New(regOpts...)
	}
	if s.calib == nil {
		s.calib = calibration.New()
	}

	return s
}

// ListTrackers returns a lazy, restartable sequence of available
// device descriptors. Each traversal re-enumerates the fleet.
func (s *Service) ListTrackers(ctx context.Context) iter.Seq2[native.DeviceInfo, error] {
	return func(yield func(native.DeviceInfo, error) bool) {
		start := time.Now()
		infos, err := s.boundary.EnumerateTrackers(ctx)
		metrics.RecordBoundaryCall("enumerateTrackers", time.Since(start))
		if err != nil {
			metrics.RecordBoundaryError("enumerateTrackers")
			yield(native.DeviceInfo{}, fmt.Errorf("enumerate trackers: %w", err))
			return
		}
		for _, info := range infos {
			if !yield(info, nil) {
				return
			}
		}
	}
}

// Connect opens the device at the given address and returns an opaque
// handle id for it.
func (s *Service) Connect(ctx context.Context, address string) (string, error) {
	start := time.Now()
	device, err := s.boundary.Connect(ctx, address)
	metrics.RecordBoundaryCall("connect", time.Since(start))
	if err != nil {
		metrics.RecordBoundaryError("connect")
		metrics.RecordErrorByComponent("service", "connect_failed")
		return "", fmt.Errorf("connect %s: %w", address, err)
	}

	handle := uuid.NewString()
	s.mu.Lock()
	s.handles[handle] = &handleState{device: device, info: device.Info()}
	count := len(s.handles)
	s.mu.Unlock()
	metrics.UpdateActiveConnections(count)

	s.log.Info(ctx, "tracker connected",
		logger.String("handle", handle),
		logger.String("address", address),
		logger.String("serial", device.Info().SerialNumber))
	return handle, nil
}

// Disconnect tears down every subscription, aborts any live calibration
// session and releases the device. A handle already disconnected fails
// with ErrInvalidHandle.
func (s *Service) Disconnect(ctx context.Context, handle string) error {
	s.mu.Lock()
	hs, ok := s.handles[handle]
	if ok {
		delete(s.handles, handle)
	}
	count := len(s.handles)
	s.mu.Unlock()

	if !ok {
		metrics.RecordErrorByComponent("service", "invalid_handle")
		return fmt.Errorf("%w: %s", ErrInvalidHandle, handle)
	}
	metrics.UpdateActiveConnections(count)

	// Teardown order: streams first, then the calibration session, then
	// the native handle itself.
	if err := s.registry.TeardownAll(ctx, handle); err != nil {
		s.log.Warn(ctx, "stream teardown during disconnect", logger.String("handle", handle), logger.Error(err))
	}
	if s.calib.State(handle) != calibration.StateIdle {
		_ = s.calib.Leave(ctx, handle)
	}

	start := time.Now()
	if err := hs.device.Close(ctx); err != nil {
		metrics.RecordBoundaryError("close")
		return fmt.Errorf("release native handle %s: %w", handle, err)
	}
	metrics.RecordBoundaryCall("close", time.Since(start))

	s.log.Info(ctx, "tracker disconnected", logger.String("handle", handle))
	return nil
}

// TrackerInfo returns the descriptor of a connected handle.
func (s *Service) TrackerInfo(_ context.Context, handle string) (native.DeviceInfo, error) {
	hs, err := s.get(handle)
	if err != nil {
		return native.DeviceInfo{}, err
	}
	return hs.info, nil
}

// get resolves a handle or fails with ErrInvalidHandle.
func (s *Service) get(handle string) (*handleState, error) {
	s.mu.RLock()
	hs, ok := s.handles[handle]
	s.mu.RUnlock()
	if !ok {
		metrics.RecordErrorByComponent("service", "invalid_handle")
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, handle)
	}
	return hs, nil
}

// Subscribe starts buffering the stream kind for a handle. capacity <= 0
// selects the registry default.
func (s *Service) Subscribe(ctx context.Context, handle string, kind sample.Kind, capacity int) error {
	hs, err := s.get(handle)
	if err != nil {
		return err
	}
	return s.registry.Subscribe(ctx, handle, hs.device, kind, capacity)
}

// Unsubscribe stops buffering the stream kind for a handle.
func (s *Service) Unsubscribe(ctx context.Context, handle string, kind sample.Kind) error {
	if _, err := s.get(handle); err != nil {
		return err
	}
	return s.registry.Unsubscribe(ctx, handle, kind)
}

// Consume drains every buffered sample of the kind in arrival order.
func (s *Service) Consume(ctx context.Context, handle string, kind sample.Kind) ([]sample.Sample, error) {
	if _, err := s.get(handle); err != nil {
		return nil, err
	}
	return s.registry.ConsumeAll(ctx, handle, kind)
}

// ConsumeN drains up to n of the oldest buffered samples of the kind.
func (s *Service) ConsumeN(ctx context.Context, handle string, kind sample.Kind, n int) ([]sample.Sample, error) {
	if _, err := s.get(handle); err != nil {
		return nil, err
	}
	return s.registry.ConsumeN(ctx, handle, kind, n)
}

// Peek returns up to n of the most recent buffered samples without
// removing them.
func (s *Service) Peek(ctx context.Context, handle string, kind sample.Kind, n int) ([]sample.Sample, error) {
	if _, err := s.get(handle); err != nil {
		return nil, err
	}
	return s.registry.Peek(ctx, handle, kind, n)
}

// Clear empties the buffer of the kind without returning data.
func (s *Service) Clear(ctx context.Context, handle string, kind sample.Kind) error {
	if _, err := s.get(handle); err != nil {
		return err
	}
	return s.registry.Clear(ctx, handle, kind)
}

// Occupancy reports buffered count, capacity and cumulative evictions
// for the kind. Hosts poll it for overflow visibility.
func (s *Service) Occupancy(ctx context.Context, handle string, kind sample.Kind) (length, capacity int, dropped uint64, err error) {
	if _, err := s.get(handle); err != nil {
		return 0, 0, 0, err
	}
	return s.registry.Occupancy(ctx, handle, kind)
}

// Streams returns the stream kinds currently subscribed on a handle.
func (s *Service) Streams(_ context.Context, handle string) ([]sample.Kind, error) {
	if _, err := s.get(handle); err != nil {
		return nil, err
	}
	return s.registry.Kinds(handle), nil
}

// HasStream reports whether the device behind a handle supports the
// stream kind.
func (s *Service) HasStream(_ context.Context, handle string, kind sample.Kind) (bool, error) {
	hs, err := s.get(handle)
	if err != nil {
		return false, err
	}
	return hs.device.HasStream(kind), nil
}

// EnterCalibration opens a calibration session on the handle.
func (s *Service) EnterCalibration(ctx context.Context, handle string) error {
	hs, err := s.get(handle)
	if err != nil {
		return err
	}
	return s.calib.Enter(ctx, handle, hs.device)
}

// CollectCalibrationPoint gathers gaze data at an on-screen point.
func (s *Service) CollectCalibrationPoint(ctx context.Context, handle string, point sample.Point2) error {
	if _, err := s.get(handle); err != nil {
		return err
	}
	return s.calib.CollectAtPoint(ctx, handle, point)
}

// DiscardCalibrationPoint removes a previously collected point.
func (s *Service) DiscardCalibrationPoint(ctx context.Context, handle string, point sample.Point2) error {
	if _, err := s.get(handle); err != nil {
		return err
	}
	return s.calib.DiscardPoint(ctx, handle, point)
}

// ComputeAndApplyCalibration fits and applies a calibration.
func (s *Service) ComputeAndApplyCalibration(ctx context.Context, handle string) (native.CalibrationResult, error) {
	if _, err := s.get(handle); err != nil {
		return native.CalibrationResult{}, err
	}
	return s.calib.ComputeAndApply(ctx, handle)
}

// LeaveCalibration closes the handle's calibration session.
func (s *Service) LeaveCalibration(ctx context.Context, handle string) error {
	if _, err := s.get(handle); err != nil {
		return err
	}
	return s.calib.Leave(ctx, handle)
}

// CalibrationState reports the handle's calibration workflow state.
func (s *Service) CalibrationState(_ context.Context, handle string) (calibration.State, error) {
	if _, err := s.get(handle); err != nil {
		return calibration.StateIdle, err
	}
	return s.calib.State(handle), nil
}

// CalibrationPoints reports the handle's calibration point set.
func (s *Service) CalibrationPoints(_ context.Context, handle string) ([]calibration.PointRecord, error) {
	if _, err := s.get(handle); err != nil {
		return nil, err
	}
	return s.calib.Points(handle), nil
}

// Close disconnects every live handle. Used on daemon shutdown.
func (s *Service) Close(ctx context.Context) error {
	s.mu.RLock()
	handles := make([]string, 0, len(s.handles))
	for h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	var firstErr error
	for _, h := range handles {
		if err := s.Disconnect(ctx, h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
