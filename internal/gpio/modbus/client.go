// internal/gpio/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/rtos-instrument/internal/gpio"
)

// Pins drives trace pins as coils on a Modbus TCP device.
// Pin n maps to coil CoilBase+n. Base in a binding is the coil address of
// the pin's group of eight; Mask selects the coil inside the group.
//
// Writes are delta-only while healthy. After any failed write the next
// successful call re-asserts every known coil (full block), because the
// device state is in doubt.
type Pins struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client

	coilBase uint16
	needFull bool
	state    map[uint16]bool // coil address -> last written level
}

// Config is minimal transport config.
type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
	CoilBase uint16
}

// New connects to the device.
func New(cfg Config) (*Pins, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("gpio modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("gpio modbus: connect %s: %w", cfg.Endpoint, err)
	}

	p := newPins(modbus.NewClient(h), cfg.CoilBase)
	p.handler = h
	return p, nil
}

func newPins(client modbus.Client, coilBase uint16) *Pins {
	return &Pins{
		client:   client,
		coilBase: coilBase,
		state:    make(map[uint16]bool),
	}
}

// Close closes the TCP connection.
func (p *Pins) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler == nil {
		return nil
	}
	return p.handler.Close()
}

// ---- gpio.Pins interface ----

func (p *Pins) ConfigurePin(pin uint8) (gpio.Binding, error) {
	if pin == gpio.Unbound {
		return gpio.Binding{}, gpio.ErrUnbound
	}
	return gpio.Binding{
		Base: uint32(p.coilBase) + uint32(pin/8)*8,
		Mask: 1 << (pin % 8),
		GPIO: pin,
	}, nil
}

func (p *Pins) WritePin(base uint32, mask, value uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for bit := 0; bit < 8; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		p.state[uint16(base)+uint16(bit)] = value&(1<<bit) != 0
	}

	if p.needFull {
		return p.reassertLocked()
	}

	var errs []error
	for bit := 0; bit < 8; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		addr := uint16(base) + uint16(bit)
		if err := p.writeCoil(addr, p.state[addr]); err != nil {
			errs = append(errs, fmt.Errorf("coil %d: %w", addr, err))
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt: re-assert on next write.
		p.needFull = true
		return fmt.Errorf("gpio modbus: %w", errors.Join(errs...))
	}
	return nil
}

func (p *Pins) reassertLocked() error {
	for addr, level := range p.state {
		if err := p.writeCoil(addr, level); err != nil {
			return fmt.Errorf("gpio modbus: full re-assert failed at coil %d: %w", addr, err)
		}
	}
	p.needFull = false
	return nil
}

func (p *Pins) writeCoil(addr uint16, level bool) error {
	var v uint16
	if level {
		v = 0xFF00
	}
	_, err := p.client.WriteSingleCoil(addr, v)
	return err
}
