// Package calibration drives the tracker's multi-point calibration
// protocol as an explicit state machine.
//
// Session state advances only through the operations below; there is no
// other way to mutate it, so illegal transitions are unrepresentable.
// One tracker handle holds at most one session, and all operations on
// one session are serialized.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	native "github.com/oculab/gazelink/internal/adapters/native"
	sample "github.com/oculab/gazelink/internal/domain/sample"
	"github.com/oculab/gazelink/pkg/logger"
	"github.com/oculab/gazelink/pkg/metrics"
)

// State is the position of a session in the calibration workflow.
type State int

// Workflow states. Collecting and Computing are transient: they are
// held only while the SDK round-trip is in flight.
const (
	StateIdle State = iota
	StateEntered
	StateCollecting
	StatePointCollected
	StateComputing
	StateApplied
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateEntered:        "entered",
	StateCollecting:     "collecting",
	StatePointCollected: "pointCollected",
	StateComputing:      "computing",
	StateApplied:        "applied",
	StateFailed:         "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// PointStatus is the completion status of one calibration point.
type PointStatus int

// Point statuses.
const (
	PointPending PointStatus = iota
	PointCollected
	PointDiscarded
)

// PointRecord reports one point of a session.
type PointRecord struct {
	Position sample.Point2
	Status   PointStatus
}

// session is the per-handle calibration state.
type session struct {
	mu     sync.Mutex
	device native.Device
	state  State
	points map[sample.Point2]PointStatus
}

// collectedCount counts points in the collected status. Caller holds mu.
func (s *session) collectedCount() int {
	n := 0
	for _, st := range s.points {
		if st == PointCollected {
			n++
		}
	}
	return n
}

// restingState is the state a session settles into between operations.
// Caller holds mu.
func (s *session) restingState() State {
	if s.collectedCount() > 0 {
		return StatePointCollected
	}
	return StateEntered
}

// Controller owns every live calibration session.
type Controller struct {
	mu       sync.Mutex
	sessions map[string]*session
	log      logger.Logger
}

// New creates a controller with configuration options.
func New(opts ...Option) *Controller {
	c := &Controller{
		sessions: make(map[string]*session),
		log:      logger.Named("calibration"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Enter opens a calibration session on a handle. Fails with
// ErrAlreadyCalibrating while the handle has a live session.
func (c *Controller) Enter(ctx context.Context, handle string, device native.Device) error {
	c.mu.Lock()
	if _, exists := c.sessions[handle]; exists {
		c.mu.Unlock()
		metrics.RecordCalibrationOp("enter", "already_calibrating")
		return fmt.Errorf("%w: handle %s", ErrAlreadyCalibrating, handle)
	}
	sess := &session{
		device: device,
		state:  StateEntered,
		points: make(map[sample.Point2]PointStatus),
	}
	c.sessions[handle] = sess
	count := len(c.sessions)
	c.mu.Unlock()

	start := time.Now()
	err := device.EnterCalibrationMode(ctx)
	metrics.RecordBoundaryCall("enterCalibrationMode", time.Since(start))
	if err != nil {
		c.mu.Lock()
		delete(c.sessions, handle)
		count = len(c.sessions)
		c.mu.Unlock()
		metrics.UpdateCalibrationSessions(count)
		metrics.RecordBoundaryError("enterCalibrationMode")
		metrics.RecordCalibrationOp("enter", "error")
		return fmt.Errorf("enter calibration on %s: %w", handle, err)
	}

	metrics.UpdateCalibrationSessions(count)
	metrics.RecordCalibrationOp("enter", "ok")
	c.log.Info(ctx, "calibration session opened", logger.String("handle", handle))
	return nil
}

// get returns the handle's session, locked. Caller unlocks.
func (c *Controller) get(handle string) (*session, error) {
	c.mu.Lock()
	sess, ok := c.sessions[handle]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no calibration session on handle %s", ErrInvalidState, handle)
	}
	sess.mu.Lock()
	return sess, nil
}

// CollectAtPoint gathers gaze data while the user fixates the given
// on-screen point. On ErrCollectionFailed the session stays usable and
// the same point may be retried. A session whose fit failed may collect
// further points; that is its recovery path besides Leave.
func (c *Controller) CollectAtPoint(ctx context.Context, handle string, point sample.Point2) error {
	sess, err := c.get(handle)
	if err != nil {
		metrics.RecordCalibrationOp("collect", "invalid_state")
		return err
	}
	defer sess.mu.Unlock()

	if sess.state != StateEntered && sess.state != StatePointCollected && sess.state != StateFailed {
		metrics.RecordCalibrationOp("collect", "invalid_state")
		return fmt.Errorf("%w: collect from %s", ErrInvalidState, sess.state)
	}

	sess.state = StateCollecting
	sess.points[point] = PointPending

	start := time.Now()
	err = sess.device.CalibrationCollect(ctx, point)
	metrics.RecordBoundaryCall("calibrationCollectData", time.Since(start))
	if err != nil {
		delete(sess.points, point)
		sess.state = sess.restingState()
		metrics.RecordCalibrationOp("collect", "failed")
		if errors.Is(err, native.ErrInsufficientData) {
			return fmt.Errorf("%w at (%.2f, %.2f): %w", ErrCollectionFailed, point.X, point.Y, err)
		}
		metrics.RecordBoundaryError("calibrationCollectData")
		return fmt.Errorf("collect at (%.2f, %.2f): %w", point.X, point.Y, err)
	}

	sess.points[point] = PointCollected
	sess.state = StatePointCollected
	metrics.RecordCalibrationOp("collect", "ok")
	return nil
}

// DiscardPoint removes a previously collected point. Like collection it
// is valid from a failed fit, letting the caller reshape the point set
// before recomputing.
func (c *Controller) DiscardPoint(ctx context.Context, handle string, point sample.Point2) error {
	sess, err := c.get(handle)
	if err != nil {
		metrics.RecordCalibrationOp("discard", "invalid_state")
		return err
	}
	defer sess.mu.Unlock()

	if sess.state != StateEntered && sess.state != StatePointCollected && sess.state != StateFailed {
		metrics.RecordCalibrationOp("discard", "invalid_state")
		return fmt.Errorf("%w: discard from %s", ErrInvalidState, sess.state)
	}
	if sess.points[point] != PointCollected {
		metrics.RecordCalibrationOp("discard", "unknown_point")
		return fmt.Errorf("%w: (%.2f, %.2f)", ErrUnknownPoint, point.X, point.Y)
	}

	start := time.Now()
	err = sess.device.CalibrationDiscard(ctx, point)
	metrics.RecordBoundaryCall("calibrationDiscardData", time.Since(start))
	if err != nil {
		metrics.RecordBoundaryError("calibrationDiscardData")
		metrics.RecordCalibrationOp("discard", "error")
		return fmt.Errorf("discard at (%.2f, %.2f): %w", point.X, point.Y, err)
	}

	sess.points[point] = PointDiscarded
	sess.state = sess.restingState()
	metrics.RecordCalibrationOp("discard", "ok")
	return nil
}

// ComputeAndApply fits and applies a calibration from the collected
// points. On ErrComputeFailed the session moves to StateFailed but
// remains open: the caller may collect more points or leave.
func (c *Controller) ComputeAndApply(ctx context.Context, handle string) (native.CalibrationResult, error) {
	sess, err := c.get(handle)
	if err != nil {
		metrics.RecordCalibrationOp("compute", "invalid_state")
		return native.CalibrationResult{}, err
	}
	defer sess.mu.Unlock()

	if sess.state != StatePointCollected {
		metrics.RecordCalibrationOp("compute", "invalid_state")
		return native.CalibrationResult{}, fmt.Errorf("%w: compute from %s", ErrInvalidState, sess.state)
	}

	sess.state = StateComputing

	start := time.Now()
	result, err := sess.device.CalibrationComputeAndApply(ctx)
	metrics.RecordBoundaryCall("calibrationComputeAndApply", time.Since(start))
	if err != nil {
		sess.state = StateFailed
		metrics.RecordCalibrationOp("compute", "failed")
		if errors.Is(err, native.ErrComputeFailed) {
			return result, fmt.Errorf("%w: %w", ErrComputeFailed, err)
		}
		metrics.RecordBoundaryError("calibrationComputeAndApply")
		return result, fmt.Errorf("compute and apply on %s: %w", handle, err)
	}

	sess.state = StateApplied
	metrics.RecordCalibrationOp("compute", "ok")
	c.log.Info(ctx, "calibration applied",
		logger.String("handle", handle),
		logger.Int("points", len(result.Points)))
	return result, nil
}

// Leave closes the session from any non-idle state, clears its point
// set and returns the handle to StateIdle. It is the explicit teardown
// and cancellation path.
func (c *Controller) Leave(ctx context.Context, handle string) error {
	c.mu.Lock()
	sess, ok := c.sessions[handle]
	if ok {
		delete(c.sessions, handle)
	}
	count := len(c.sessions)
	c.mu.Unlock()

	if !ok {
		metrics.RecordCalibrationOp("leave", "invalid_state")
		return fmt.Errorf("%w: no calibration session on handle %s", ErrInvalidState, handle)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.points = make(map[sample.Point2]PointStatus)
	sess.state = StateIdle
	metrics.UpdateCalibrationSessions(count)

	start := time.Now()
	err := sess.device.LeaveCalibrationMode(ctx)
	metrics.RecordBoundaryCall("leaveCalibrationMode", time.Since(start))
	if err != nil {
		// The session is gone either way; a refused native leave is
		// logged but does not resurrect it.
		metrics.RecordBoundaryError("leaveCalibrationMode")
		c.log.Warn(ctx, "native leave failed during session teardown",
			logger.String("handle", handle), logger.Error(err))
	}

	metrics.RecordCalibrationOp("leave", "ok")
	c.log.Info(ctx, "calibration session closed", logger.String("handle", handle))
	return nil
}

// State reports the handle's current workflow state. Handles without a
// session are StateIdle.
func (c *Controller) State(handle string) State {
	c.mu.Lock()
	sess, ok := c.sessions[handle]
	c.mu.Unlock()
	if !ok {
		return StateIdle
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}

// Points reports the handle's point set with statuses.
func (c *Controller) Points(handle string) []PointRecord {
	c.mu.Lock()
	sess, ok := c.sessions[handle]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	records := make([]PointRecord, 0, len(sess.points))
	for p, st := range sess.points {
		records = append(records, PointRecord{Position: p, Status: st})
	}
	return records
}

// LeaveAll closes every live session. Used on service shutdown.
func (c *Controller) LeaveAll(ctx context.Context) {
	c.mu.Lock()
	handles := make([]string, 0, len(c.sessions))
	for h := range c.sessions {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	for _, h := range handles {
		_ = c.Leave(ctx, h)
	}
}
