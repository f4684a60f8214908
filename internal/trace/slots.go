// internal/trace/slots.go
package trace

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tamzrod/rtos-instrument/internal/console"
	"github.com/tamzrod/rtos-instrument/internal/event"
	"github.com/tamzrod/rtos-instrument/internal/gpio"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// MaxSlots bounds the per-task configuration table.
const MaxSlots = 64

// ErrNoSlot is returned for slot numbers outside the table.
var ErrNoSlot = errors.New("trace: no such slot")

// SlotConfig is the declarative per-task trace configuration.
type SlotConfig struct {
	// Name binds the slot to the task with this RTOS name on first sight.
	// Empty means the slot is bound only by Bind.
	Name string

	EventMask event.Mask

	// GPIOEvents selects which enabled events drive the pin instead of
	// producing text. Ignored when Pin is gpio.Unbound.
	GPIOEvents event.Mask

	Color console.Color
	Pin   uint8
}

type slot struct {
	name       string
	color      console.Color
	pin        uint8
	gpioEvents event.Mask

	mask   atomic.Uint64
	handle atomic.Uintptr

	// renderer-owned
	binding  gpio.Binding
	hasPin   bool
	pinState uint8
}

// Slots is the fixed table of per-task trace settings.
// Masks and handles are atomics; pin state is touched only by the renderer.
type Slots struct {
	slots []slot
}

// NewSlots builds the table from configs.
func NewSlots(cfgs []SlotConfig) (*Slots, error) {
	if len(cfgs) > MaxSlots {
		return nil, fmt.Errorf("trace: %d slots configured, max %d", len(cfgs), MaxSlots)
	}
	s := &Slots{slots: make([]slot, len(cfgs))}
	for i, c := range cfgs {
		sl := &s.slots[i]
		sl.name = c.Name
		sl.color = c.Color
		sl.pin = c.Pin
		sl.gpioEvents = c.GPIOEvents
		sl.mask.Store(uint64(c.EventMask))
	}
	return s, nil
}

// Len returns the number of slots.
func (s *Slots) Len() int { return len(s.slots) }

// Bind attaches a task handle to slot n.
func (s *Slots) Bind(n int, h rtos.Handle) error {
	if n < 0 || n >= len(s.slots) {
		return fmt.Errorf("%w: %d", ErrNoSlot, n)
	}
	s.slots[n].handle.Store(uintptr(h))
	return nil
}

// Unbind detaches h from whatever slot holds it.
func (s *Slots) Unbind(h rtos.Handle) {
	for i := range s.slots {
		s.slots[i].handle.CompareAndSwap(uintptr(h), 0)
	}
}

// Mask returns the event mask of slot n.
func (s *Slots) Mask(n int) (event.Mask, error) {
	if n < 0 || n >= len(s.slots) {
		return 0, fmt.Errorf("%w: %d", ErrNoSlot, n)
	}
	return event.Mask(s.slots[n].mask.Load()), nil
}

// MaskSet ORs m into slot n's event mask.
func (s *Slots) MaskSet(n int, m event.Mask) error {
	if n < 0 || n >= len(s.slots) {
		return fmt.Errorf("%w: %d", ErrNoSlot, n)
	}
	s.slots[n].mask.Or(uint64(m))
	return nil
}

// MaskClear removes m from slot n's event mask.
func (s *Slots) MaskClear(n int, m event.Mask) error {
	if n < 0 || n >= len(s.slots) {
		return fmt.Errorf("%w: %d", ErrNoSlot, n)
	}
	s.slots[n].mask.And(^uint64(m))
	return nil
}

// lookup finds the slot of h by linear scan. A named, unbound slot whose
// name matches the task's RTOS name is claimed on the way.
func (s *Slots) lookup(h rtos.Handle, names rtos.Namer) (int, bool) {
	if h == rtos.None {
		return 0, false
	}
	for i := range s.slots {
		if s.slots[i].handle.Load() == uintptr(h) {
			return i, true
		}
	}
	if names == nil {
		return 0, false
	}
	name := names.TaskName(h)
	if name == "" {
		return 0, false
	}
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.name == name && sl.handle.CompareAndSwap(0, uintptr(h)) {
			return i, true
		}
	}
	return 0, false
}
