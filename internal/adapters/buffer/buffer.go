// Package buffer provides the bounded sample buffer between the SDK's
// delivery callbacks and the host consumer.
//
// Each buffer is written by exactly one delivery context and drained by
// exactly one consumer. When the consumer falls behind, the oldest
// sample is evicted to admit the new one; eviction is an observable
// counter, not an error. Buffers for different streams share nothing.
package buffer

import (
	"sync"

	"github.com/oculab/gazelink/pkg/metrics"
)

// Default buffer configuration constants.
const (
	defaultCapacity = 4096
)

// Buffer is a bounded FIFO ring holding elements of one stream.
type Buffer[T any] struct {
	mu      sync.Mutex
	buf     []T
	head    int // index of the oldest element
	count   int
	dropped uint64

	// stream labels metrics; empty disables metric updates (tests).
	stream string
}

// New creates a buffer with configuration options.
func New[T any](opts ...Option) *Buffer[T] {
	cfg := settings{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Buffer[T]{
		buf:    make([]T, cfg.capacity),
		stream: cfg.stream,
	}

	if b.stream != "" {
		metrics.UpdateBufferCapacity(b.stream, cfg.capacity)
		metrics.UpdateBufferOccupancy(b.stream, 0)
	}

	return b
}

// Push admits v, evicting the oldest element when full. It never blocks
// and is the only method called from the delivery context.
func (b *Buffer[T]) Push(v T) {
	b.mu.Lock()
	if b.count == len(b.buf) {
		// Consumer is behind: drop the oldest to keep the most recent.
		var zero T
		b.buf[b.head] = zero
		b.head = (b.head + 1) % len(b.buf)
		b.count--
		b.dropped++
		if b.stream != "" {
			metrics.RecordSampleEvicted(b.stream)
		}
	}
	b.buf[(b.head+b.count)%len(b.buf)] = v
	b.count++
	occupancy := b.count
	b.mu.Unlock()

	if b.stream != "" {
		metrics.RecordSampleBuffered(b.stream)
		metrics.UpdateBufferOccupancy(b.stream, occupancy)
	}
}

// ConsumeAll removes and returns every buffered element in arrival
// order. A drained buffer yields nil; draining twice with no push in
// between yields nil the second time.
func (b *Buffer[T]) ConsumeAll() []T {
	b.mu.Lock()
	out := b.take(b.count)
	b.mu.Unlock()

	b.recordConsumed(len(out))
	return out
}

// ConsumeN removes and returns up to n of the oldest elements in
// arrival order.
func (b *Buffer[T]) ConsumeN(n int) []T {
	if n <= 0 {
		return nil
	}

	b.mu.Lock()
	if n > b.count {
		n = b.count
	}
	out := b.take(n)
	b.mu.Unlock()

	b.recordConsumed(len(out))
	return out
}

// take removes the n oldest elements. Caller holds b.mu.
func (b *Buffer[T]) take(n int) []T {
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		idx := (b.head + i) % len(b.buf)
		out[i] = b.buf[idx]
		b.buf[idx] = zero
	}
	b.head = (b.head + n) % len(b.buf)
	b.count -= n
	return out
}

// Peek returns up to n of the most recent elements in arrival order
// without removing them.
func (b *Buffer[T]) Peek(n int) []T {
	if n <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.count {
		n = b.count
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	start := b.count - n
	for i := 0; i < n; i++ {
		out[i] = b.buf[(b.head+start+i)%len(b.buf)]
	}
	return out
}

// Clear discards all buffered elements without returning them.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	var zero T
	for i := 0; i < b.count; i++ {
		b.buf[(b.head+i)%len(b.buf)] = zero
	}
	b.head = 0
	b.count = 0
	b.mu.Unlock()

	if b.stream != "" {
		metrics.UpdateBufferOccupancy(b.stream, 0)
	}
}

// Len returns the current number of buffered elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the configured capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.buf)
}

// Dropped returns the cumulative number of overflow evictions.
func (b *Buffer[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Buffer[T]) recordConsumed(n int) {
	if b.stream == "" || n == 0 {
		return
	}
	metrics.RecordSamplesConsumed(b.stream, n)
	metrics.UpdateBufferOccupancy(b.stream, b.Len())
}
