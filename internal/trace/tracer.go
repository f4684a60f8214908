// internal/trace/tracer.go
package trace

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/rtos-instrument/internal/console"
	"github.com/tamzrod/rtos-instrument/internal/event"
	"github.com/tamzrod/rtos-instrument/internal/gpio"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// Config is the runtime config of one trace instance.
type Config struct {
	Capacity          int
	TimestampInterval uint64
	MaxWidth          int
	Poll              time.Duration
	Slots             []SlotConfig
}

// Deps are the collaborators of a trace instance.
type Deps struct {
	Clock rtos.Clock
	Names rtos.Namer
	Out   console.Writer
	Pins  gpio.Pins
	Log   *zap.Logger
}

// Tracer owns one ring, its recorder, the slot table and the renderer.
// Independent instances share nothing.
type Tracer struct {
	ring     *Ring
	recorder *Recorder
	slots    *Slots
	renderer *Renderer
	pins     gpio.Pins
	log      *zap.Logger
}

// New builds a tracer. Call Init before starting the renderer.
func New(cfg Config, d Deps) (*Tracer, error) {
	if d.Out == nil {
		return nil, errors.New("trace: output writer required")
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	ring, err := NewRing(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	slots, err := NewSlots(cfg.Slots)
	if err != nil {
		return nil, err
	}
	r, err := NewRenderer(
		RendererConfig{
			TimestampInterval: cfg.TimestampInterval,
			MaxWidth:          cfg.MaxWidth,
			Poll:              cfg.Poll,
		},
		ring, slots, d.Names, d.Out, d.Pins, d.Log,
	)
	if err != nil {
		return nil, err
	}

	return &Tracer{
		ring:     ring,
		recorder: NewRecorder(ring, d.Clock),
		slots:    slots,
		renderer: r,
		pins:     d.Pins,
		log:      d.Log,
	}, nil
}

// Init configures every bound pin and drives it low.
// Fails fast: a pin that cannot be configured is a static misconfiguration.
func (t *Tracer) Init() error {
	for i := range t.slots.slots {
		sl := &t.slots.slots[i]
		if sl.pin == gpio.Unbound {
			continue
		}
		if t.pins == nil {
			return fmt.Errorf("trace: slot %d uses pin %d but no gpio backend", i, sl.pin)
		}
		b, err := t.pins.ConfigurePin(sl.pin)
		if err != nil {
			return fmt.Errorf("trace: slot %d pin %d: %w", i, sl.pin, err)
		}
		if err := t.pins.WritePin(b.Base, b.Mask, 0); err != nil {
			return fmt.Errorf("trace: slot %d pin %d initial write: %w", i, sl.pin, err)
		}
		sl.binding = b
		sl.hasPin = true
		sl.pinState = 0
		t.log.Debug("trace pin bound",
			zap.Int("slot", i),
			zap.Uint8("pin", sl.pin),
			zap.Uint8("gpio", b.GPIO),
		)
	}
	return nil
}

// Recorder returns the hook entry point.
func (t *Tracer) Recorder() *Recorder { return t.recorder }

// Renderer returns the consumer.
func (t *Tracer) Renderer() *Renderer { return t.renderer }

// Ring returns the buffer.
func (t *Tracer) Ring() *Ring { return t.ring }

// Start enables tracing.
func (t *Tracer) Start() { t.recorder.Start() }

// Stop disables tracing.
func (t *Tracer) Stop() { t.recorder.Stop() }

// Bind attaches a task handle to slot n.
func (t *Tracer) Bind(n int, h rtos.Handle) error { return t.slots.Bind(n, h) }

// MaskSet adds events to slot n.
func (t *Tracer) MaskSet(n int, m event.Mask) error { return t.slots.MaskSet(n, m) }

// MaskClear removes events from slot n.
func (t *Tracer) MaskClear(n int, m event.Mask) error { return t.slots.MaskClear(n, m) }
