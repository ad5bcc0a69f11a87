// Package security holds the overflow buffer that keeps security events when
// the audit publisher's queue is saturated.
package security

import (
	"sync"

	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
)

// RingBuffer is a bounded, thread-safe FIFO. When full, the oldest event is
// overwritten and counted as dropped.
type RingBuffer struct {
	mu      sync.Mutex
	slots   []audit.Event
	start   int
	size    int
	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RingBuffer{slots: make([]audit.Event, capacity)}
}

// Push appends an event and reports whether an older one was evicted.
func (b *RingBuffer) Push(event audit.Event) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.slots)
	if b.size == capacity {
		b.start = (b.start + 1) % capacity
		b.size--
		b.dropped++
		evicted = true
	}
	b.slots[(b.start+b.size)%capacity] = event
	b.size++
	return evicted
}

// PopBatch removes and returns up to n events, oldest first.
func (b *RingBuffer) PopBatch(n int) []audit.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}
	if n == 0 {
		return nil
	}
	out := make([]audit.Event, n)
	for i := range out {
		out[i] = b.slots[b.start]
		b.slots[b.start] = audit.Event{}
		b.start = (b.start + 1) % len(b.slots)
	}
	b.size -= n
	return out
}

// Len returns the number of buffered events.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped returns how many events were evicted since creation.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
