// internal/gpio/gpio.go
package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// Unbound is the pin number meaning "no pin".
const Unbound = 255

// ErrUnbound is returned when configuring the Unbound pin.
var ErrUnbound = errors.New("gpio: pin unbound")

// Binding is the result of configuring a pin.
// The core stores it and passes Base/Mask back on every write.
type Binding struct {
	Base uint32
	Mask uint8
	GPIO uint8
}

// Pins is the capability the trace renderer drives.
// Only logical state is decided by the caller; electrical setup is the
// implementation's business.
type Pins interface {
	ConfigurePin(pin uint8) (Binding, error)
	WritePin(base uint32, mask, value uint8) error
}

// None rejects every pin. It is used when no GPIO backend is configured.
type None struct{}

func (None) ConfigurePin(pin uint8) (Binding, error) {
	return Binding{}, fmt.Errorf("gpio: no backend for pin %d", pin)
}

func (None) WritePin(base uint32, mask, value uint8) error {
	return errors.New("gpio: no backend")
}

// Write is one recorded pin write.
type Write struct {
	Base  uint32
	Mask  uint8
	Value uint8
}

// Memory is an in-process pin bank: eight pins per port, one port per
// eight pin numbers. It records every write.
type Memory struct {
	mu     sync.Mutex
	ports  map[uint32]uint8
	writes []Write

	// OnWrite, when set, is called after each write outside the lock.
	OnWrite func(w Write)
}

// NewMemory creates an empty pin bank.
func NewMemory() *Memory {
	return &Memory{ports: make(map[uint32]uint8)}
}

func (m *Memory) ConfigurePin(pin uint8) (Binding, error) {
	if pin == Unbound {
		return Binding{}, ErrUnbound
	}
	return Binding{
		Base: uint32(pin / 8),
		Mask: 1 << (pin % 8),
		GPIO: pin,
	}, nil
}

func (m *Memory) WritePin(base uint32, mask, value uint8) error {
	w := Write{Base: base, Mask: mask, Value: value}

	m.mu.Lock()
	cur := m.ports[base]
	m.ports[base] = (cur &^ mask) | (value & mask)
	m.writes = append(m.writes, w)
	fn := m.OnWrite
	m.mu.Unlock()

	if fn != nil {
		fn(w)
	}
	return nil
}

// Level reports the current level of a configured pin.
func (m *Memory) Level(b Binding) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ports[b.Base]&b.Mask != 0
}

// Writes returns a copy of all recorded writes.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.writes...)
}
