// internal/config/validate.go
package config

import (
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/tamzrod/rtos-instrument/internal/console"
	"github.com/tamzrod/rtos-instrument/internal/event"
)

// MaxSlots bounds the trace slot table.
const MaxSlots = 64

// UnboundPin is reserved as the "no pin" sentinel and may not be configured.
const UnboundPin = 255

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Zero values mean "use the default" and are filled by Normalize.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	// ------------------------------------------------------------
	// TRACE
	// ------------------------------------------------------------

	t := cfg.Trace

	n := 0
	for _, on := range []bool{t.Presets.Full, t.Presets.Memory, t.Presets.Mixed} {
		if on {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf(
			"trace.presets: exactly one of full, memory, mixed must be enabled (got %d)",
			n,
		)
	}

	switch t.TimestampInterval {
	case 0, 10, 100, 1000:
	default:
		return fmt.Errorf(
			"trace.timestamp_interval: %d invalid (10, 100 or 1000)",
			t.TimestampInterval,
		)
	}

	if t.Capacity < 0 {
		return fmt.Errorf("trace.capacity: %d must not be negative", t.Capacity)
	}
	if t.MaxWidth < 0 {
		return fmt.Errorf("trace.max_width: %d must not be negative", t.MaxWidth)
	}
	if t.PollMs < 0 {
		return fmt.Errorf("trace.poll_ms: %d must not be negative", t.PollMs)
	}

	if len(t.Slots) > MaxSlots {
		return fmt.Errorf("trace.slots: %d configured, max %d", len(t.Slots), MaxSlots)
	}

	names := make(map[string]int)
	pins := make(map[uint8]int)
	anyPin := false

	for i, s := range t.Slots {
		if s.Name != "" {
			if prev, exists := names[s.Name]; exists {
				return fmt.Errorf(
					"trace.slots[%d]: name %q already used by slot %d",
					i,
					s.Name,
					prev,
				)
			}
			names[s.Name] = i
		}

		if s.Color != "" {
			if _, err := console.ParseColor(s.Color); err != nil {
				return fmt.Errorf("trace.slots[%d]: %w", i, err)
			}
		}

		if len(s.Mask) > 0 {
			if _, err := event.ParseMask(s.Mask); err != nil {
				return fmt.Errorf("trace.slots[%d].mask: %w", i, err)
			}
		}

		if s.Pin == nil {
			if len(s.GPIOEvents) > 0 {
				return fmt.Errorf("trace.slots[%d]: gpio_events set without a pin", i)
			}
			continue
		}

		anyPin = true
		pin := *s.Pin
		if pin == UnboundPin {
			return fmt.Errorf("trace.slots[%d]: pin %d is reserved", i, pin)
		}
		if prev, exists := pins[pin]; exists {
			return fmt.Errorf(
				"trace.slots[%d]: pin %d already used by slot %d",
				i,
				pin,
				prev,
			)
		}
		pins[pin] = i

		if len(s.GPIOEvents) > 0 {
			if _, err := event.ParseMask(s.GPIOEvents); err != nil {
				return fmt.Errorf("trace.slots[%d].gpio_events: %w", i, err)
			}
		}
	}

	// ------------------------------------------------------------
	// GPIO
	// ------------------------------------------------------------

	switch cfg.GPIO.Backend {
	case "", "none":
		if anyPin {
			return errors.New("gpio.backend: trace slots bind pins but no backend is configured")
		}
	case "memory":
	case "modbus":
		if cfg.GPIO.Modbus.Endpoint == "" {
			return errors.New("gpio.modbus.endpoint: required for modbus backend")
		}
		if cfg.GPIO.Modbus.TimeoutMs < 0 {
			return fmt.Errorf("gpio.modbus.timeout_ms: %d must not be negative", cfg.GPIO.Modbus.TimeoutMs)
		}
	default:
		return fmt.Errorf("gpio.backend: unknown backend %q", cfg.GPIO.Backend)
	}

	// ------------------------------------------------------------
	// STATS
	// ------------------------------------------------------------

	s := cfg.Stats

	if s.Cores < 1 {
		return fmt.Errorf("stats.cores: %d must be >= 1", s.Cores)
	}
	if s.Cores > 100 {
		return fmt.Errorf("stats.cores: %d exceeds 100", s.Cores)
	}

	switch s.CounterWidth {
	case 0, 32, 64:
	default:
		return fmt.Errorf("stats.counter_width: %d invalid (32 or 64)", s.CounterWidth)
	}

	for name, v := range map[string]int{
		"stats.name_width":      s.NameWidth,
		"stats.interval_ms":     s.IntervalMs,
		"stats.lock_timeout_ms": s.LockTimeoutMs,
		"stats.max_tasks":       s.MaxTasks,
		"stats.report_ms":       s.ReportMs,
	} {
		if v < 0 {
			return fmt.Errorf("%s: %d must not be negative", name, v)
		}
	}
	if s.NameWidth == 1 {
		return errors.New("stats.name_width: must be >= 2")
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if cfg.Log.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}

	return nil
}
