// internal/trace/builder.go
package trace

import (
	"fmt"
	"strings"
	"time"

	cfg "github.com/tamzrod/rtos-instrument/internal/config"
	"github.com/tamzrod/rtos-instrument/internal/console"
	"github.com/tamzrod/rtos-instrument/internal/event"
	"github.com/tamzrod/rtos-instrument/internal/gpio"
	gmodbus "github.com/tamzrod/rtos-instrument/internal/gpio/modbus"
)

// FullMask is the per-task mask of the full preset: every event except
// the tick increment, which would drown everything else.
var FullMask = event.Everything &^ event.TaskIncrementTick.Bit()

// palette colors slots that do not name one.
var palette = []console.Color{
	console.Green,
	console.Yellow,
	console.Cyan,
	console.Magenta,
	console.Bright | console.Blue,
	console.Bright | console.Green,
	console.Bright | console.Yellow,
	console.Bright | console.Red,
	console.White,
}

// Build constructs a Tracer from config and wires the GPIO backend.
// Assumes config has already passed Validate and Normalize.
// d.Pins, when set, takes precedence over the configured backend.
func Build(c *cfg.Config, d Deps) (*Tracer, func() error, error) {
	slots, err := BuildSlots(c.Trace)
	if err != nil {
		return nil, nil, err
	}

	closer := func() error { return nil }
	if d.Pins == nil {
		pins, cl, err := BuildPins(c.GPIO)
		if err != nil {
			return nil, nil, err
		}
		d.Pins = pins
		closer = cl
	}

	t, err := New(Config{
		Capacity:          c.Trace.Capacity,
		TimestampInterval: c.Trace.TimestampInterval,
		MaxWidth:          c.Trace.MaxWidth,
		Poll:              time.Duration(c.Trace.PollMs) * time.Millisecond,
		Slots:             slots,
	}, d)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return t, closer, nil
}

// BuildPins creates the configured pin backend. The closer releases the
// transport, if any.
func BuildPins(g cfg.GPIOConfig) (gpio.Pins, func() error, error) {
	noop := func() error { return nil }

	switch g.Backend {
	case "", "none":
		return gpio.None{}, noop, nil
	case "memory":
		return gpio.NewMemory(), noop, nil
	case "modbus":
		p, err := gmodbus.New(gmodbus.Config{
			Endpoint: g.Modbus.Endpoint,
			UnitID:   g.Modbus.UnitID,
			Timeout:  time.Duration(g.Modbus.TimeoutMs) * time.Millisecond,
			CoilBase: g.Modbus.CoilBase,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
	return nil, nil, fmt.Errorf("trace: unknown gpio backend %q", g.Backend)
}

// BuildSlots resolves presets, masks, colors and pins into slot configs.
func BuildSlots(tc cfg.TraceConfig) ([]SlotConfig, error) {
	out := make([]SlotConfig, 0, len(tc.Slots))

	for i, s := range tc.Slots {
		sc := SlotConfig{
			Name:      s.Name,
			EventMask: presetMask(tc.Presets, s),
			Color:     palette[i%len(palette)],
			Pin:       gpio.Unbound,
		}

		if len(s.Mask) > 0 {
			m, err := event.ParseMask(s.Mask)
			if err != nil {
				return nil, fmt.Errorf("trace: slot %d: %w", i, err)
			}
			sc.EventMask = m
		}

		if s.Color != "" {
			c, err := console.ParseColor(s.Color)
			if err != nil {
				return nil, fmt.Errorf("trace: slot %d: %w", i, err)
			}
			sc.Color = c
		}

		if s.Pin != nil {
			sc.Pin = *s.Pin
			sc.GPIOEvents = event.Everything
			if len(s.GPIOEvents) > 0 {
				m, err := event.ParseMask(s.GPIOEvents)
				if err != nil {
					return nil, fmt.Errorf("trace: slot %d: %w", i, err)
				}
				sc.GPIOEvents = m
			}
		}

		out = append(out, sc)
	}
	return out, nil
}

func presetMask(p cfg.PresetConfig, s cfg.SlotConfig) event.Mask {
	switch {
	case p.Memory:
		return event.HeapAll
	case p.Mixed && !s.Detail:
		return event.HeapAll
	case isSystemTask(s.Name):
		return event.HeapAll
	}
	return FullMask
}

// isSystemTask matches the kernel's own tasks, which only ever report
// heap activity under the full preset.
func isSystemTask(name string) bool {
	return strings.HasPrefix(name, "IDLE") || name == "Tmr Svc"
}
