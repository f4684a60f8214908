// internal/trace/ring.go
package trace

import (
	"fmt"
	"sync"

	"github.com/tamzrod/rtos-instrument/internal/event"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// Event is one fixed-size trace record.
type Event struct {
	Timestamp uint64
	Code      event.Code

	// Task is the task the event is attributed to: the subject for task
	// lifecycle codes, otherwise the task running when it was recorded.
	Task rtos.Handle

	// Object is the kernel object reference passed by the hook
	// (queue, mutex, timer, heap pointer, or task).
	Object rtos.Handle

	Arg uint32
}

// Ring is a fixed-capacity circular buffer of events.
//
// Write and read positions are monotonic sequence numbers; the slot index is
// the sequence modulo capacity. When a push would exceed capacity the oldest
// unread event is sacrificed. The buffer never blocks the writer and never
// grows.
//
// All producers and the single consumer share one mutex. The critical
// section is a struct copy and two counter updates, with no I/O and no
// allocation.
type Ring struct {
	mu      sync.Mutex
	buf     []Event
	w       uint64
	r       uint64
	dropped uint64
}

// NewRing allocates a ring with the given capacity.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("trace: ring capacity must be > 0, got %d", capacity)
	}
	return &Ring{buf: make([]Event, capacity)}, nil
}

// Push stores ev, dropping the oldest unread event when full.
func (r *Ring) Push(ev Event) {
	n := uint64(len(r.buf))

	r.mu.Lock()
	r.buf[r.w%n] = ev
	r.w++
	if r.w-r.r > n {
		r.r++
		r.dropped++
	}
	r.mu.Unlock()
}

// Pop copies out the oldest unread event.
func (r *Ring) Pop() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.r == r.w {
		return Event{}, false
	}
	ev := r.buf[r.r%uint64(len(r.buf))]
	r.r++
	return ev, true
}

// Len returns the number of unread events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.w - r.r)
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Dropped returns how many events were overwritten before being read.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Indices returns the current write and read slot indices.
func (r *Ring) Indices() (write, read int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := uint64(len(r.buf))
	return int(r.w % n), int(r.r % n)
}
