// internal/stats/collector.go
package stats

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// Source is what the collector needs from the kernel.
type Source interface {
	rtos.SystemStater
	rtos.IdleTasker
}

// Collector samples per-task runtime counters into wrap-safe accumulators.
//
// The slot table, the stored snapshot and the totals are guarded by a
// one-permit semaphore acquired with a bounded wait. A wait that times out
// proceeds without the lock and logs a warning.
type Collector struct {
	cfg Config
	src Source
	log *zap.Logger

	lock    *semaphore.Weighted
	counter atomic.Uint32

	// guarded by lock
	slots  []statSlot
	idle   []rtos.Handle
	rows   []Row
	maxNum uint32
	sysLo  uint32
	sysHi  uint32
	sysAcc uint64
	seen   bool
	totals Totals
}

// NewCollector creates a collector with immutable config.
func NewCollector(cfg Config, src Source, log *zap.Logger) (*Collector, error) {
	if src == nil {
		return nil, errors.New("stats: source required")
	}
	if cfg.Cores < 1 {
		return nil, errors.New("stats: cores must be >= 1")
	}
	if cfg.CounterWidth != 32 && cfg.CounterWidth != 64 {
		return nil, fmt.Errorf("stats: counter width %d invalid (32 or 64)", cfg.CounterWidth)
	}
	if cfg.MaxTasks <= 0 {
		return nil, errors.New("stats: max tasks must be > 0")
	}
	if cfg.Every == 0 {
		cfg.Every = 1000
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 100 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{
		cfg:    cfg,
		src:    src,
		log:    log,
		lock:   semaphore.NewWeighted(1),
		slots:  make([]statSlot, cfg.MaxTasks),
		totals: Totals{Cores: make([]uint64, cfg.Cores+1)},
	}, nil
}

// acquire takes the slot-table lock with a bounded wait.
// It returns a release func; on timeout the func is a no-op.
func (c *Collector) acquire(ctx context.Context, op string) func() {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LockTimeout)
	defer cancel()

	if err := c.lock.Acquire(ctx, 1); err != nil {
		c.log.Warn("stats lock wait timed out, proceeding unsynchronized",
			zap.String("op", op),
			zap.Duration("timeout", c.cfg.LockTimeout),
		)
		return func() {}
	}
	return func() { c.lock.Release(1) }
}

// Tick is the periodic hook. It samples once every Every calls.
func (c *Collector) Tick() {
	if c.counter.Add(1)%c.cfg.Every != 0 {
		return
	}
	if err := c.Sample(context.Background()); err != nil {
		c.log.Error("stats sample failed", zap.Error(err))
	}
}

// Sample performs exactly one sampling pass.
// Tasks that find no free slot are skipped; the pass still completes and
// the returned error wraps ErrSlotsExhausted.
func (c *Collector) Sample(ctx context.Context) error {
	release := c.acquire(ctx, "sample")
	defer release()

	tasks, total, err := c.src.SystemState()
	if err != nil {
		return fmt.Errorf("stats: system state: %w", err)
	}

	if len(c.idle) == 0 {
		c.idle = append(c.idle[:0], c.src.IdleTasks()...)
	}

	c.mergeSystem(total)

	active := uint64(0)
	idle := uint64(0)
	cores := make([]uint64, c.cfg.Cores+1)
	rows := make([]Row, 0, len(tasks))
	skipped := 0

	for _, ts := range tasks {
		if ts.Number > c.maxNum {
			c.maxNum = ts.Number
		}

		sl := c.slotFor(ts.Handle, ts.RunTime)
		if sl == nil {
			if c.cfg.Strict {
				panic(fmt.Errorf("%w: task %q (%d slots)", ErrSlotsExhausted, ts.Name, len(c.slots)))
			}
			skipped++
			continue
		}

		rt := sl.value(c.cfg.CounterWidth)
		row := Row{TaskStatus: ts, Runtime: rt, Idle: c.isIdle(ts.Handle)}
		rows = append(rows, row)

		if row.Idle {
			idle += rt
			continue
		}
		active += rt
		core := ts.Core
		if core < 0 || core >= c.cfg.Cores {
			core = c.cfg.Cores
		}
		cores[core] += rt
	}

	c.rows = rows
	c.totals = Totals{
		System: c.systemValue(),
		Active: active,
		Idle:   idle,
		Cores:  cores,
	}

	if skipped > 0 {
		return fmt.Errorf("%w: %d task(s) not tracked", ErrSlotsExhausted, skipped)
	}
	return nil
}

// slotFor finds the slot of h and merges raw into it, or claims the first
// free slot. Returns nil when the table is full.
func (c *Collector) slotFor(h rtos.Handle, raw uint64) *statSlot {
	free := -1
	for i := range c.slots {
		sl := &c.slots[i]
		if sl.handle == h {
			sl.merge(raw, c.cfg.CounterWidth)
			return sl
		}
		if sl.handle == rtos.None && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return nil
	}
	sl := &c.slots[free]
	*sl = statSlot{handle: h, lo: uint32(raw), acc: raw}
	return sl
}

func (c *Collector) mergeSystem(total uint64) {
	if c.cfg.CounterWidth == 64 {
		c.sysAcc = total
		return
	}
	t := uint32(total)
	if c.seen && t < c.sysLo {
		c.sysHi++
	}
	c.sysLo = t
	c.seen = true
}

func (c *Collector) systemValue() uint64 {
	if c.cfg.CounterWidth == 64 {
		return c.sysAcc
	}
	return uint64(c.sysHi)<<32 | uint64(c.sysLo)
}

func (c *Collector) isIdle(h rtos.Handle) bool {
	for _, ih := range c.idle {
		if ih == h {
			return true
		}
	}
	return false
}

// Release forgets a deleted task: its slot becomes free and its row is
// dropped from the stored snapshot.
func (c *Collector) Release(h rtos.Handle) {
	if h == rtos.None {
		return
	}
	release := c.acquire(context.Background(), "release")
	defer release()

	for i := range c.slots {
		if c.slots[i].handle == h {
			c.slots[i] = statSlot{}
		}
	}
	rows := c.rows[:0]
	for _, r := range c.rows {
		if r.Handle != h {
			rows = append(rows, r)
		}
	}
	c.rows = rows
}

// Runtime returns the accumulated runtime of h, 0 when untracked.
func (c *Collector) Runtime(h rtos.Handle) uint64 {
	release := c.acquire(context.Background(), "runtime")
	defer release()

	for i := range c.slots {
		if c.slots[i].handle == h {
			return c.slots[i].value(c.cfg.CounterWidth)
		}
	}
	return 0
}

// Totals returns a copy of the last sample's aggregate.
func (c *Collector) Totals() Totals {
	release := c.acquire(context.Background(), "totals")
	defer release()

	t := c.totals
	t.Cores = append([]uint64(nil), c.totals.Cores...)
	return t
}

// Snapshot returns a copy of the last sample.
func (c *Collector) Snapshot(ctx context.Context) Snapshot {
	release := c.acquire(ctx, "snapshot")
	defer release()

	s := Snapshot{
		Rows:   append([]Row(nil), c.rows...),
		MaxNum: c.maxNum,
		Totals: c.totals,
	}
	s.Totals.Cores = append([]uint64(nil), c.totals.Cores...)
	return s
}

// Cores returns the configured core count.
func (c *Collector) Cores() int { return c.cfg.Cores }
