// internal/trace/renderer.go
package trace

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/rtos-instrument/internal/console"
	"github.com/tamzrod/rtos-instrument/internal/event"
	"github.com/tamzrod/rtos-instrument/internal/gpio"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// Column widths. Every event occupies the same width whichever parameter
// branch is taken.
const (
	stampWidth = 6  // "0.nnn "
	nameWidth  = 6  // 5 chars + space
	codeWidth  = 5  // 4 chars + space
	paramWidth = 16 // see renderParam

	// EventWidth is the rendered width of one event.
	EventWidth = stampWidth + nameWidth + codeWidth + paramWidth
)

// Renderer is the single consumer of the ring.
type Renderer struct {
	ring  *Ring
	slots *Slots
	names rtos.Namer
	out   console.Writer
	pins  gpio.Pins
	log   *zap.Logger

	interval uint64 // ticks per timestamp bucket: 10, 100 or 1000
	scale    uint64 // multiplies the bucket remainder into thousandths
	maxWidth int
	poll     time.Duration

	// line state
	started bool
	bucket  uint64
	width   int
}

// RendererConfig holds renderer settings.
type RendererConfig struct {
	TimestampInterval uint64
	MaxWidth          int
	Poll              time.Duration
}

// NewRenderer creates a renderer. pins may be nil when no slot has a pin.
func NewRenderer(cfg RendererConfig, ring *Ring, slots *Slots, names rtos.Namer, out console.Writer, pins gpio.Pins, log *zap.Logger) (*Renderer, error) {
	var scale uint64
	switch cfg.TimestampInterval {
	case 10:
		scale = 100
	case 100:
		scale = 10
	case 1000:
		scale = 1
	default:
		return nil, fmt.Errorf("trace: timestamp interval %d invalid (10, 100 or 1000)", cfg.TimestampInterval)
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = EventWidth * 4
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 5 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{
		ring:     ring,
		slots:    slots,
		names:    names,
		out:      out,
		pins:     pins,
		log:      log,
		interval: cfg.TimestampInterval,
		scale:    scale,
		maxWidth: cfg.MaxWidth,
		poll:     cfg.Poll,
	}, nil
}

// Run drains the ring, sleeps the poll interval when caught up, and repeats
// until ctx is done.
func (r *Renderer) Run(ctx context.Context) {
	t := time.NewTicker(r.poll)
	defer t.Stop()

	for {
		r.Drain()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Drain processes events until the ring is empty and returns the count.
func (r *Renderer) Drain() int {
	n := 0
	for {
		ev, ok := r.ring.Pop()
		if !ok {
			return n
		}
		r.Process(ev)
		n++
	}
}

// Process filters and outputs one event.
func (r *Renderer) Process(ev Event) {
	if !ev.Code.Valid() {
		return
	}
	bit := ev.Code.Bit()
	cat := ev.Code.Category()

	name := r.displayName(ev, cat)

	idx, ok := r.slots.lookup(ev.Task, r.names)
	if !ok {
		r.log.Debug("trace event for unknown task",
			zap.Uintptr("task", uintptr(ev.Task)),
			zap.Stringer("code", ev.Code),
		)
		return
	}
	sl := &r.slots.slots[idx]

	if ev.Code == event.TaskDelete {
		defer r.slots.Unbind(ev.Task)
	}

	// Filter: this task with this event enabled?
	if event.Mask(sl.mask.Load())&bit == 0 {
		return
	}

	// Redirect to GPIO?
	if sl.hasPin && sl.gpioEvents&bit != 0 {
		r.drivePin(sl, ev.Code)
		return
	}

	r.out.Lock()
	defer r.out.Unlock()

	r.renderStamp(ev)
	r.out.Printf("%s%-5.5s ", r.out.Color(sl.color, console.Black), name)
	r.out.Printf("%s%-4s ", r.out.Color(console.Bright|console.White, band(cat)), ev.Code.Mnemonic())
	r.out.Printf("%s", r.out.Color(console.White, console.Black))
	r.renderParam(ev, cat)
	r.out.Printf("%s", r.out.Reset())
	r.width += EventWidth
}

func (r *Renderer) displayName(ev Event, cat event.Category) string {
	if r.names == nil {
		return fmt.Sprintf("%x", uintptr(ev.Task))
	}
	switch cat {
	case event.CategoryTask:
		return r.names.TaskName(ev.Task)
	case event.CategoryTimer:
		return r.names.TimerName(ev.Object)
	default:
		return r.names.TaskName(ev.Task)
	}
}

func (r *Renderer) renderStamp(ev Event) {
	bucket := ev.Timestamp / r.interval
	switch {
	case !r.started || bucket != r.bucket:
		r.started = true
		r.bucket = bucket
		r.out.Printf("\n TS=%d\n", bucket)
		r.width = 0
	case ev.Code == event.TaskSwitchedIn || r.width > r.maxWidth:
		r.out.Printf("\n")
		r.width = 0
	}
	r.out.Printf("0.%03d ", (ev.Timestamp%r.interval)*r.scale)
}

func (r *Renderer) renderParam(ev Event, cat event.Category) {
	switch {
	case cat == event.CategoryTask && ev.Code.HasNumericParam():
		r.out.Printf("%14d  ", ev.Arg)
	case cat == event.CategoryTask:
		r.out.Printf("%16s", "")
	case cat == event.CategoryHeap:
		r.out.Printf("x%08x/%04d  ", uint32(ev.Object), ev.Arg)
	default:
		r.out.Printf("x%08x       ", uint32(ev.Object))
	}
}

func (r *Renderer) drivePin(sl *slot, code event.Code) {
	switch code {
	case event.TaskSwitchedIn:
		sl.pinState = sl.binding.Mask
	case event.TaskSwitchedOut:
		sl.pinState = 0
	default:
		sl.pinState ^= sl.binding.Mask
	}
	if err := r.pins.WritePin(sl.binding.Base, sl.binding.Mask, sl.pinState); err != nil {
		r.log.Warn("trace pin write failed",
			zap.Uint8("pin", sl.pin),
			zap.Error(err),
		)
	}
}

// band returns the background color of a category.
func band(c event.Category) console.Color {
	switch c {
	case event.CategoryTask:
		return console.Red
	case event.CategoryQueue:
		return console.Green
	case event.CategoryMutex:
		return console.Yellow
	case event.CategorySemaphore:
		return console.Blue
	case event.CategoryTimer:
		return console.Magenta
	case event.CategoryHeap:
		return console.Cyan
	}
	return console.White
}
