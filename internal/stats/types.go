// internal/stats/types.go
package stats

import (
	"errors"
	"time"

	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// ErrSlotsExhausted means more live tasks than reserved slots.
// The slot table is sized statically; there is no recovery path.
var ErrSlotsExhausted = errors.New("stats: slot table exhausted")

// Config is the minimal runtime config of the sampling engine.
type Config struct {
	// Cores is the number of processor cores (>= 1).
	Cores int

	// CounterWidth is the usable width of the raw runtime counters: 32 or 64.
	CounterWidth int

	// MaxTasks is the number of runtime accumulator slots.
	MaxTasks int

	// Every: Tick samples once per Every calls.
	Every uint32

	// Interval drives Run.
	Interval time.Duration

	// LockTimeout bounds every wait for the slot-table lock.
	LockTimeout time.Duration

	// Strict turns slot exhaustion into a panic.
	Strict bool
}

// Totals is the aggregate of the last sample.
type Totals struct {
	System uint64 // system runtime, wrap-corrected
	Active uint64 // sum of non-idle tasks
	Idle   uint64 // sum of idle tasks

	// Cores holds per-core active sums; the last entry is the
	// unpinned ("X") bucket.
	Cores []uint64
}

// Row is one task of the last sample with its accumulated runtime.
type Row struct {
	rtos.TaskStatus

	Runtime uint64 // wrap-corrected accumulator
	Idle    bool
}

// Snapshot is a consistent copy of the last sample.
type Snapshot struct {
	Rows   []Row
	MaxNum uint32 // highest task number ever seen
	Totals Totals
}

// Find returns the row with task number n.
func (s *Snapshot) Find(n uint32) (*Row, bool) {
	for i := range s.Rows {
		if s.Rows[i].Number == n {
			return &s.Rows[i], true
		}
	}
	return nil, false
}

// statSlot is the persistent accumulator of one task identity.
type statSlot struct {
	handle rtos.Handle
	lo     uint32 // last raw low word
	hi     uint32 // wrap count
	acc    uint64 // 64-bit counters store the raw value directly
}

func (s *statSlot) value(width int) uint64 {
	if width == 64 {
		return s.acc
	}
	return uint64(s.hi)<<32 | uint64(s.lo)
}

// merge folds a new raw counter into the slot.
func (s *statSlot) merge(raw uint64, width int) {
	if width == 64 {
		s.acc = raw
		return
	}
	r := uint32(raw)
	if r < s.lo {
		s.hi++
	}
	s.lo = r
}
