// internal/trace/recorder.go
package trace

import (
	"sync/atomic"

	"github.com/tamzrod/rtos-instrument/internal/event"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// Recorder is the kernel hook entry point.
// Record is safe from any task, never blocks on I/O and never fails.
type Recorder struct {
	ring  *Ring
	clock rtos.Clock

	enabled atomic.Bool
	current atomic.Uintptr // task running now, set by switch-in
	self    atomic.Uintptr // renderer task, never traced
}

// NewRecorder creates a disabled recorder writing into ring.
func NewRecorder(ring *Ring, clock rtos.Clock) *Recorder {
	return &Recorder{ring: ring, clock: clock}
}

// Start enables tracing.
func (r *Recorder) Start() { r.enabled.Store(true) }

// Stop disables tracing. Buffered events are still rendered.
func (r *Recorder) Stop() { r.enabled.Store(false) }

// Enabled reports the global trace flag.
func (r *Recorder) Enabled() bool { return r.enabled.Load() }

// SetCurrent sets the running task.
func (r *Recorder) SetCurrent(h rtos.Handle) { r.current.Store(uintptr(h)) }

// Current returns the running task, or rtos.None before the first switch-in.
func (r *Recorder) Current() rtos.Handle { return rtos.Handle(r.current.Load()) }

// SetSelf marks the renderer task so its own activity is not traced.
func (r *Recorder) SetSelf(h rtos.Handle) { r.self.Store(uintptr(h)) }

// Record stores one event.
//
// ref is the object the hook reports: the task for task lifecycle codes,
// otherwise the queue, mutex, timer or heap address. arg is the numeric
// payload (tick, priority, size).
func (r *Recorder) Record(code event.Code, ref rtos.Handle, arg uint32) {
	if code == event.TaskSwitchedIn {
		r.current.Store(uintptr(ref))
	}
	if !code.Valid() || !r.enabled.Load() {
		return
	}

	cur := rtos.Handle(r.current.Load())
	if cur == rtos.None || uintptr(cur) == r.self.Load() {
		return
	}

	ev := Event{
		Code:   code,
		Task:   cur,
		Object: ref,
		Arg:    arg,
	}
	if r.clock != nil {
		ev.Timestamp = r.clock.Ticks()
	}
	if code.IsTaskLifecycle() {
		ev.Task = ref
	}
	r.ring.Push(ev)
}
