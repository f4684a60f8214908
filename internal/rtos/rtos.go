// internal/rtos/rtos.go
package rtos

// The contract between the instrumentation core and the kernel it observes.
// Nothing here schedules; it only answers queries.

// Handle identifies a task, timer or kernel object. Zero means none.
type Handle uintptr

// None is the zero handle.
const None Handle = 0

// NoAffinity is reported as Core for tasks that may run on any core.
const NoAffinity = -1

// TaskState mirrors the scheduler state of a task.
type TaskState uint8

const (
	Running TaskState = iota
	Ready
	Blocked
	Suspended
	Deleted
	Invalid
)

var stateLetters = [...]byte{'A', 'R', 'B', 'S', 'D', 'I'}

// Letter returns the one-letter report code of the state.
func (s TaskState) Letter() byte {
	if int(s) >= len(stateLetters) {
		return '?'
	}
	return stateLetters[s]
}

// Valid reports whether s is a real scheduler state.
func (s TaskState) Valid() bool { return s < Invalid }

// TaskStatus is one row of a system state snapshot.
type TaskStatus struct {
	Handle          Handle
	Name            string
	Number          uint32 // logical task number, 1-based
	State           TaskState
	CurrentPriority uint32
	BasePriority    uint32
	Core            int // NoAffinity when not pinned

	// RunTime is the raw runtime counter as reported by the kernel.
	// Its usable width is a property of the collector, not of this value.
	RunTime uint64

	StackHighWater uint32
	StackBase      uintptr
}

// ---- QUERY INTERFACES ----

// Clock exposes the kernel tick counter.
type Clock interface {
	Ticks() uint64
}

// SystemStater enumerates every live task.
// total is the raw system-wide runtime counter.
type SystemStater interface {
	SystemState() (tasks []TaskStatus, total uint64, err error)
}

// IdleTasker returns the idle task handle of each core.
type IdleTasker interface {
	IdleTasks() []Handle
}

// Namer resolves display names.
type Namer interface {
	TaskName(h Handle) string
	TimerName(h Handle) string
}

// TimerInfo describes a software timer.
type TimerInfo struct {
	Name       string
	Number     uint32
	AutoReload bool
	Active     bool
	Period     uint64
	Expiry     uint64
}

// Timers resolves timer details.
type Timers interface {
	Timer(h Handle) (TimerInfo, bool)
}

// HeapInfo describes the kernel heap.
type HeapInfo struct {
	Free        uint64
	MinEverFree uint64
	Initial     uint64
}

// Heap reports heap usage.
type Heap interface {
	HeapInfo() (HeapInfo, error)
}

// Kernel is the full query surface used by the stats engine.
type Kernel interface {
	Clock
	SystemStater
	IdleTasker
	Namer
}
