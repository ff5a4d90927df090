package buffer

import (
	"sync"
	"testing"
)

func TestBuffer_BasicOperations(t *testing.T) {
	b := New[int](WithCapacity(4))

	if l := b.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := b.Cap(); c != 4 {
		t.Errorf("expected capacity 4, got %d", c)
	}

	b.Push(1)
	b.Push(2)
	b.Push(3)

	if l := b.Len(); l != 3 {
		t.Errorf("expected length 3, got %d", l)
	}

	got := b.ConsumeAll()
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if l := b.Len(); l != 0 {
		t.Errorf("expected length 0 after drain, got %d", l)
	}
}

func TestBuffer_OverflowKeepsMostRecent(t *testing.T) {
	// Capacity 3, push timestamps 1..5: the drain must return [3,4,5].
	b := New[int](WithCapacity(3))
	for _, ts := range []int{1, 2, 3, 4, 5} {
		b.Push(ts)
	}

	got := b.ConsumeAll()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if d := b.Dropped(); d != 2 {
		t.Errorf("expected 2 evictions, got %d", d)
	}
}

func TestBuffer_IdempotentDrain(t *testing.T) {
	b := New[int](WithCapacity(3))
	b.Push(1)

	if got := b.ConsumeAll(); len(got) != 1 {
		t.Fatalf("expected 1 element, got %d", len(got))
	}
	if got := b.ConsumeAll(); got != nil {
		t.Errorf("expected nil on second drain, got %v", got)
	}
}

func TestBuffer_ConsumeN(t *testing.T) {
	b := New[int](WithCapacity(8))
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	got := b.ConsumeN(2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected [1 2], got %v", got)
	}
	if l := b.Len(); l != 3 {
		t.Errorf("expected length 3, got %d", l)
	}

	// Asking for more than is buffered drains what remains.
	got = b.ConsumeN(10)
	if len(got) != 3 || got[0] != 3 {
		t.Errorf("expected [3 4 5], got %v", got)
	}

	if got := b.ConsumeN(0); got != nil {
		t.Errorf("expected nil for n=0, got %v", got)
	}
}

func TestBuffer_PeekMostRecent(t *testing.T) {
	b := New[int](WithCapacity(8))
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	got := b.Peek(2)
	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("expected [4 5], got %v", got)
	}

	// Peek is non-destructive.
	if l := b.Len(); l != 5 {
		t.Errorf("expected length 5 after peek, got %d", l)
	}

	got = b.Peek(10)
	if len(got) != 5 || got[0] != 1 {
		t.Errorf("expected [1 2 3 4 5], got %v", got)
	}
}

func TestBuffer_PeekAfterWrap(t *testing.T) {
	b := New[int](WithCapacity(3))
	for i := 1; i <= 7; i++ {
		b.Push(i)
	}

	got := b.Peek(3)
	if len(got) != 3 || got[0] != 5 || got[1] != 6 || got[2] != 7 {
		t.Errorf("expected [5 6 7], got %v", got)
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := New[int](WithCapacity(4))
	b.Push(1)
	b.Push(2)

	b.Clear()

	if l := b.Len(); l != 0 {
		t.Errorf("expected length 0 after clear, got %d", l)
	}
	if got := b.ConsumeAll(); got != nil {
		t.Errorf("expected nil after clear, got %v", got)
	}

	// Buffer remains usable after clear.
	b.Push(9)
	if got := b.ConsumeAll(); len(got) != 1 || got[0] != 9 {
		t.Errorf("expected [9], got %v", got)
	}
}

// One producer pushing while one consumer drains: every element must be
// seen exactly once, in order, or evicted (counted), never duplicated.
func TestBuffer_ConcurrentProducerConsumer(t *testing.T) {
	const total = 10000
	b := New[int](WithCapacity(128))

	var consumed []int
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			consumed = append(consumed, b.ConsumeAll()...)
			select {
			case <-done:
				consumed = append(consumed, b.ConsumeAll()...)
				return
			default:
			}
		}
	}()

	for i := 0; i < total; i++ {
		b.Push(i)
	}
	close(done)
	wg.Wait()

	if len(consumed) == 0 {
		t.Fatal("consumer saw no elements")
	}

	seen := make(map[int]bool, len(consumed))
	prev := -1
	for _, v := range consumed {
		if seen[v] {
			t.Fatalf("element %d consumed twice", v)
		}
		seen[v] = true
		if v <= prev {
			t.Fatalf("order violated: %d after %d", v, prev)
		}
		prev = v
	}

	if uint64(len(consumed))+b.Dropped() != total {
		t.Errorf("consumed %d + dropped %d != pushed %d", len(consumed), b.Dropped(), total)
	}
}
