// Package registry tracks the live stream subscriptions of each tracker
// handle and owns their ring buffers.
//
// The table lock covers only entry lookup and insertion; everything
// else is serialized per entry, so consuming one stream never contends
// with another.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	buffer "github.com/oculab/gazelink/internal/adapters/buffer"
	native "github.com/oculab/gazelink/internal/adapters/native"
	sample "github.com/oculab/gazelink/internal/domain/sample"
	"github.com/oculab/gazelink/pkg/logger"
	"github.com/oculab/gazelink/pkg/metrics"
)

// Default registry configuration constants.
const (
	defaultBufferCapacity = 4096
)

// key addresses one subscription: at most one per (handle, kind).
type key struct {
	handle string
	kind   sample.Kind
}

// entry is the per-subscription state. Its mutex serializes operations
// on this subscription only.
type entry struct {
	mu     sync.Mutex
	device native.Device
	token  native.Token
	buf    *buffer.Buffer[sample.Sample]
	active bool
}

// Registry is the per-handle subscription table.
type Registry struct {
	mu    sync.RWMutex
	table map[key]*entry

	defaultCapacity int
	log             logger.Logger
}

// New creates a registry with configuration options.
func New(opts ...Option) *Registry {
	r := &Registry{
		table:           make(map[key]*entry),
		defaultCapacity: defaultBufferCapacity,
		log:             logger.Named("registry"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Subscribe creates the ring buffer for (handle, kind) and registers
// the forwarding callback with the device. capacity <= 0 selects the
// registry default.
func (r *Registry) Subscribe(ctx context.Context, handle string, device native.Device, kind sample.Kind, capacity int) error {
	if capacity <= 0 {
		capacity = r.defaultCapacity
	}

	e := &entry{device: device}
	e.mu.Lock()
	defer e.mu.Unlock()

	k := key{handle: handle, kind: kind}
	r.mu.Lock()
	if _, exists := r.table[k]; exists {
		r.mu.Unlock()
		metrics.RecordErrorByComponent("registry", "already_subscribed")
		return fmt.Errorf("%w: %s/%s", ErrAlreadySubscribed, handle, kind)
	}
	r.table[k] = e
	size := len(r.table)
	r.mu.Unlock()

	buf := buffer.New[sample.Sample](
		buffer.WithCapacity(capacity),
		buffer.WithStreamLabel(kind.String()),
	)

	// The callback runs on the SDK's delivery context. It stamps the
	// host-arrival clock and enqueues; nothing else.
	cb := func(s sample.Sample) {
		buf.Push(stampArrival(s, time.Now().UnixMicro()))
	}

	start := time.Now()
	token, err := device.Subscribe(ctx, kind, cb)
	metrics.RecordBoundaryCall("subscribe", time.Since(start))
	if err != nil {
		r.mu.Lock()
		delete(r.table, k)
		size = len(r.table)
		r.mu.Unlock()
		metrics.UpdateActiveSubscriptions(size)
		metrics.RecordBoundaryError("subscribe")
		return fmt.Errorf("subscribe %s/%s: %w", handle, kind, err)
	}

	e.token = token
	e.buf = buf
	e.active = true
	metrics.UpdateActiveSubscriptions(size)

	r.log.Debug(ctx, "stream subscribed",
		logger.String("handle", handle),
		logger.String("stream", kind.String()),
		logger.Int("capacity", capacity))
	return nil
}

// Unsubscribe deregisters the native callback, blocking until the SDK
// guarantees quiescence, and discards the buffer.
func (r *Registry) Unsubscribe(ctx context.Context, handle string, kind sample.Kind) error {
	k := key{handle: handle, kind: kind}

	r.mu.RLock()
	e, ok := r.table[k]
	r.mu.RUnlock()
	if !ok {
		metrics.RecordErrorByComponent("registry", "not_subscribed")
		return fmt.Errorf("%w: %s/%s", ErrNotSubscribed, handle, kind)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		metrics.RecordErrorByComponent("registry", "not_subscribed")
		return fmt.Errorf("%w: %s/%s", ErrNotSubscribed, handle, kind)
	}

	// Blocks until no further callbacks for this token will fire.
	start := time.Now()
	err := e.device.Unsubscribe(ctx, e.token)
	metrics.RecordBoundaryCall("unsubscribe", time.Since(start))
	if err != nil {
		metrics.RecordBoundaryError("unsubscribe")
		return fmt.Errorf("unsubscribe %s/%s: %w", handle, kind, err)
	}

	e.active = false
	e.buf.Clear()
	e.buf = nil

	r.mu.Lock()
	delete(r.table, k)
	size := len(r.table)
	r.mu.Unlock()
	metrics.UpdateActiveSubscriptions(size)

	r.log.Debug(ctx, "stream unsubscribed",
		logger.String("handle", handle),
		logger.String("stream", kind.String()))
	return nil
}

// lookup returns the live entry for (handle, kind), locked. The caller
// must unlock it.
func (r *Registry) lookup(handle string, kind sample.Kind) (*entry, error) {
	r.mu.RLock()
	e, ok := r.table[key{handle: handle, kind: kind}]
	r.mu.RUnlock()
	if !ok {
		metrics.RecordErrorByComponent("registry", "not_subscribed")
		return nil, fmt.Errorf("%w: %s/%s", ErrNotSubscribed, handle, kind)
	}

	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		metrics.RecordErrorByComponent("registry", "not_subscribed")
		return nil, fmt.Errorf("%w: %s/%s", ErrNotSubscribed, handle, kind)
	}
	return e, nil
}

// ConsumeAll drains every buffered sample for (handle, kind) in arrival
// order.
func (r *Registry) ConsumeAll(_ context.Context, handle string, kind sample.Kind) ([]sample.Sample, error) {
	e, err := r.lookup(handle, kind)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.buf.ConsumeAll(), nil
}

// ConsumeN drains up to n of the oldest buffered samples.
func (r *Registry) ConsumeN(_ context.Context, handle string, kind sample.Kind, n int) ([]sample.Sample, error) {
	e, err := r.lookup(handle, kind)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.buf.ConsumeN(n), nil
}

// Peek returns up to n of the most recent buffered samples without
// removing them.
func (r *Registry) Peek(_ context.Context, handle string, kind sample.Kind, n int) ([]sample.Sample, error) {
	e, err := r.lookup(handle, kind)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.buf.Peek(n), nil
}

// Clear empties the buffer for (handle, kind) without returning data.
func (r *Registry) Clear(_ context.Context, handle string, kind sample.Kind) error {
	e, err := r.lookup(handle, kind)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.buf.Clear()
	return nil
}

// Occupancy reports buffered count, capacity and cumulative evictions
// for (handle, kind). Callers poll it for overflow visibility.
func (r *Registry) Occupancy(_ context.Context, handle string, kind sample.Kind) (length, capacity int, dropped uint64, err error) {
	e, err := r.lookup(handle, kind)
	if err != nil {
		return 0, 0, 0, err
	}
	defer e.mu.Unlock()
	return e.buf.Len(), e.buf.Cap(), e.buf.Dropped(), nil
}

// IsSubscribed reports whether (handle, kind) has a live subscription.
func (r *Registry) IsSubscribed(handle string, kind sample.Kind) bool {
	r.mu.RLock()
	_, ok := r.table[key{handle: handle, kind: kind}]
	r.mu.RUnlock()
	return ok
}

// Kinds returns the stream kinds currently subscribed for a handle.
func (r *Registry) Kinds(handle string) []sample.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var kinds []sample.Kind
	for k := range r.table {
		if k.handle == handle {
			kinds = append(kinds, k.kind)
		}
	}
	return kinds
}

// TeardownAll unsubscribes every stream of a handle. Used on
// disconnect; errors are collected, not short-circuited.
func (r *Registry) TeardownAll(ctx context.Context, handle string) error {
	var firstErr error
	for _, kind := range r.Kinds(handle) {
		if err := r.Unsubscribe(ctx, handle, kind); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// stampArrival sets the host-arrival clock on a delivered sample. The
// kind set is closed, so the switch is exhaustive.
func stampArrival(s sample.Sample, nowUS int64) sample.Sample {
	switch v := s.(type) {
	case sample.GazeData:
		v.SystemTimeUS = nowUS
		return v
	case sample.EyeOpennessData:
		v.SystemTimeUS = nowUS
		return v
	case sample.ExternalSignalData:
		v.SystemTimeUS = nowUS
		return v
	case sample.TimeSyncData:
		v.SystemTimeUS = nowUS
		return v
	case sample.UserPositionData:
		v.SystemTimeUS = nowUS
		return v
	case sample.NotificationData:
		v.SystemTimeUS = nowUS
		return v
	case sample.EyeImageData:
		v.SystemTimeUS = nowUS
		return v
	}
	return s
}
