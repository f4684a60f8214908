// internal/trace/builder_test.go
package trace

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	cfg "github.com/tamzrod/rtos-instrument/internal/config"
	"github.com/tamzrod/rtos-instrument/internal/console"
	"github.com/tamzrod/rtos-instrument/internal/event"
	"github.com/tamzrod/rtos-instrument/internal/gpio"
)

func pinPtr(p uint8) *uint8 { return &p }

func TestBuildSlots_Presets(t *testing.T) {
	slots := []cfg.SlotConfig{
		{Name: "main", Detail: true},
		{Name: "net"},
		{Name: "IDLE0"},
		{Name: "Tmr Svc", Detail: true},
	}

	cases := []struct {
		name    string
		presets cfg.PresetConfig
		want    []event.Mask
	}{
		{"full", cfg.PresetConfig{Full: true}, []event.Mask{FullMask, FullMask, event.HeapAll, event.HeapAll}},
		{"memory", cfg.PresetConfig{Memory: true}, []event.Mask{event.HeapAll, event.HeapAll, event.HeapAll, event.HeapAll}},
		{"mixed", cfg.PresetConfig{Mixed: true}, []event.Mask{FullMask, event.HeapAll, event.HeapAll, event.HeapAll}},
	}

	for _, tc := range cases {
		got, err := BuildSlots(cfg.TraceConfig{Presets: tc.presets, Slots: slots})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		var masks []event.Mask
		for _, s := range got {
			masks = append(masks, s.EventMask)
		}
		if diff := cmp.Diff(tc.want, masks); diff != "" {
			t.Fatalf("%s masks (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestBuildSlots_FullExcludesTickIncrement(t *testing.T) {
	if FullMask.Has(event.TaskIncrementTick) {
		t.Fatalf("full preset must not include tick increments")
	}
	if !FullMask.Has(event.Malloc) || !FullMask.Has(event.TaskSwitchedIn) {
		t.Fatalf("full preset missing events")
	}
}

func TestBuildSlots_ExplicitMaskColorAndPin(t *testing.T) {
	got, err := BuildSlots(cfg.TraceConfig{
		Presets: cfg.PresetConfig{Full: true},
		Slots: []cfg.SlotConfig{
			{Name: "a", Mask: []string{"queue", "-QuPk"}, Color: "bright_red", Pin: pinPtr(5), GPIOEvents: []string{"task_switch"}},
			{Name: "b", Pin: pinPtr(6)},
			{Name: "c"},
		},
	})
	if err != nil {
		t.Fatalf("BuildSlots: %v", err)
	}

	want := []SlotConfig{
		{Name: "a", EventMask: event.QueueAll &^ event.QueuePeek.Bit(), GPIOEvents: event.TaskSwitch, Color: console.Bright | console.Red, Pin: 5},
		{Name: "b", EventMask: FullMask, GPIOEvents: event.Everything, Color: palette[1], Pin: 6},
		{Name: "c", EventMask: FullMask, Color: palette[2], Pin: gpio.Unbound},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("slots (-want +got):\n%s", diff)
	}
}

func TestBuild_MemoryBackendInitialisesPins(t *testing.T) {
	c := &cfg.Config{
		Trace: cfg.TraceConfig{
			Capacity:          16,
			TimestampInterval: 1000,
			Presets:           cfg.PresetConfig{Full: true},
			Slots:             []cfg.SlotConfig{{Name: "alpha", Pin: pinPtr(5)}},
		},
		GPIO: cfg.GPIOConfig{Backend: "memory"},
	}
	pins := gpio.NewMemory()
	tr, closer, err := Build(c, Deps{Names: testNames, Out: console.New(&bytes.Buffer{}, false), Pins: pins})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer closer()

	if err := tr.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(pins.Writes()) != 1 {
		t.Fatalf("expected one initial write, got %d", len(pins.Writes()))
	}
}

func TestBuildPins_Backends(t *testing.T) {
	p, closer, err := BuildPins(cfg.GPIOConfig{Backend: "none"})
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if _, ok := p.(gpio.None); !ok {
		t.Fatalf("expected gpio.None, got %T", p)
	}
	_ = closer()

	p, _, err = BuildPins(cfg.GPIOConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := p.(*gpio.Memory); !ok {
		t.Fatalf("expected *gpio.Memory, got %T", p)
	}

	if _, _, err := BuildPins(cfg.GPIOConfig{Backend: "spi"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
