// internal/stats/collector_test.go
package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

type fakeSource struct {
	samples [][]rtos.TaskStatus
	totals  []uint64
	idle    []rtos.Handle
	err     error

	calls     int
	idleCalls int
}

func (f *fakeSource) SystemState() ([]rtos.TaskStatus, uint64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	call := f.calls
	f.calls++

	// samples and totals each repeat their last entry once exhausted
	i := min(call, len(f.samples)-1)
	var total uint64
	if len(f.totals) > 0 {
		total = f.totals[min(call, len(f.totals)-1)]
	}
	return f.samples[i], total, nil
}

func (f *fakeSource) IdleTasks() []rtos.Handle {
	f.idleCalls++
	return f.idle
}

func task(h rtos.Handle, num uint32, name string, rt uint64) rtos.TaskStatus {
	return rtos.TaskStatus{
		Handle:          h,
		Name:            name,
		Number:          num,
		State:           rtos.Ready,
		CurrentPriority: 3,
		BasePriority:    3,
		Core:            0,
		RunTime:         rt,
	}
}

func newTestCollector(t *testing.T, cfg Config, src Source) *Collector {
	t.Helper()
	if cfg.Cores == 0 {
		cfg.Cores = 1
	}
	if cfg.CounterWidth == 0 {
		cfg.CounterWidth = 32
	}
	if cfg.MaxTasks == 0 {
		cfg.MaxTasks = 8
	}
	c, err := NewCollector(cfg, src, nil)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return c
}

func sampleN(t *testing.T, c *Collector, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Sample(context.Background()); err != nil {
			t.Fatalf("Sample %d: %v", i, err)
		}
	}
}

func TestNewCollector_RejectsBadConfig(t *testing.T) {
	src := &fakeSource{}
	cases := []Config{
		{Cores: 0, CounterWidth: 32, MaxTasks: 4},
		{Cores: 1, CounterWidth: 16, MaxTasks: 4},
		{Cores: 1, CounterWidth: 32, MaxTasks: 0},
	}
	for i, cfg := range cases {
		if _, err := NewCollector(cfg, src, nil); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if _, err := NewCollector(Config{Cores: 1, CounterWidth: 32, MaxTasks: 1}, nil, nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
}

// Task A samples 100, 200, 50; task B samples 10, 10, 10.
func TestSample_WrapAroundTwoTasks(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{
			{task(1, 1, "A", 100), task(2, 2, "B", 10)},
			{task(1, 1, "A", 200), task(2, 2, "B", 10)},
			{task(1, 1, "A", 50), task(2, 2, "B", 10)},
		},
		totals: []uint64{1000, 2000, 3000},
	}
	c := newTestCollector(t, Config{}, src)

	sampleN(t, c, 2)
	before := c.Runtime(1)
	sampleN(t, c, 1)

	if got, want := c.Runtime(1), uint64(1)<<32+50; got != want {
		t.Fatalf("A: got %d want %d", got, want)
	}
	if c.Runtime(1) <= before {
		t.Fatalf("A accumulator did not grow: %d -> %d", before, c.Runtime(1))
	}
	if got := c.Runtime(2); got != 10 {
		t.Fatalf("B: got %d want 10", got)
	}
}

func TestSample_WrapIncrementsHighWordRepeatedly(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{
			{task(1, 1, "A", 0xFFFF_FF00)},
			{task(1, 1, "A", 0x10)},
			{task(1, 1, "A", 0xFFFF_0000)},
			{task(1, 1, "A", 0x20)},
		},
	}
	c := newTestCollector(t, Config{}, src)

	var prev uint64
	for i := 0; i < 4; i++ {
		sampleN(t, c, 1)
		cur := c.Runtime(1)
		if i > 0 && cur <= prev {
			t.Fatalf("sample %d: accumulator %d not above %d", i, cur, prev)
		}
		prev = cur
	}
	if want := uint64(2)<<32 | 0x20; prev != want {
		t.Fatalf("got %#x want %#x", prev, want)
	}
}

func TestSample_WideCounterStoredAsIs(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{
			{task(1, 1, "A", 5 << 32)},
			{task(1, 1, "A", 7 << 32)},
		},
		totals: []uint64{10 << 32, 20 << 32},
	}
	c := newTestCollector(t, Config{CounterWidth: 64}, src)
	sampleN(t, c, 2)

	if got := c.Runtime(1); got != 7<<32 {
		t.Fatalf("got %#x", got)
	}
	if got := c.Totals().System; got != 20<<32 {
		t.Fatalf("system total %#x", got)
	}
}

func TestSample_SystemTotalWraps(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{{task(1, 1, "A", 1)}},
		totals:  []uint64{0xFFFF_FFF0, 0x100},
	}
	c := newTestCollector(t, Config{}, src)
	sampleN(t, c, 2)

	if got, want := c.Totals().System, uint64(1)<<32|0x100; got != want {
		t.Fatalf("got %#x want %#x", got, want)
	}
}

func TestSample_IdleExcludedAndCoresSplit(t *testing.T) {
	idle0 := task(9, 1, "IDLE0", 700)
	idle1 := task(10, 2, "IDLE1", 600)
	idle1.Core = 1
	a := task(1, 3, "A", 400)
	b := task(2, 4, "B", 200)
	b.Core = rtos.NoAffinity

	src := &fakeSource{
		samples: [][]rtos.TaskStatus{{idle0, idle1, a, b}},
		totals:  []uint64{1000},
		idle:    []rtos.Handle{9, 10},
	}
	c := newTestCollector(t, Config{Cores: 2}, src)
	sampleN(t, c, 1)

	tot := c.Totals()
	if tot.Active != 600 {
		t.Fatalf("active %d", tot.Active)
	}
	if tot.Idle != 1300 {
		t.Fatalf("idle %d", tot.Idle)
	}
	if len(tot.Cores) != 3 || tot.Cores[0] != 400 || tot.Cores[1] != 0 || tot.Cores[2] != 200 {
		t.Fatalf("cores %v", tot.Cores)
	}
}

func TestSample_IdleHandlesCachedOnce(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{{task(9, 1, "IDLE", 5)}},
		idle:    []rtos.Handle{9},
	}
	c := newTestCollector(t, Config{}, src)
	sampleN(t, c, 3)

	if src.idleCalls != 1 {
		t.Fatalf("expected idle lookup once, got %d", src.idleCalls)
	}
}

func TestSample_SlotStableAndReusedAfterRelease(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{
			{task(1, 1, "A", 10), task(2, 2, "B", 20)},
			{task(2, 2, "B", 30), task(1, 1, "A", 15)},
			{task(3, 3, "C", 5), task(2, 2, "B", 40)},
		},
	}
	c := newTestCollector(t, Config{MaxTasks: 2}, src)

	sampleN(t, c, 1)
	if c.slots[0].handle != 1 || c.slots[1].handle != 2 {
		t.Fatalf("unexpected binding %v", c.slots)
	}

	sampleN(t, c, 1)
	if c.slots[0].handle != 1 || c.slots[1].handle != 2 {
		t.Fatalf("binding moved after reorder %v", c.slots)
	}

	c.Release(1)
	if c.Runtime(1) != 0 {
		t.Fatalf("released task still has runtime")
	}
	snap := c.Snapshot(context.Background())
	if _, ok := snap.Find(1); ok {
		t.Fatalf("released task still in snapshot")
	}

	sampleN(t, c, 1)
	if c.slots[0].handle != 3 {
		t.Fatalf("freed slot not reused: %v", c.slots)
	}
	if c.Runtime(3) != 5 || c.Runtime(2) != 40 {
		t.Fatalf("runtime C=%d B=%d", c.Runtime(3), c.Runtime(2))
	}
}

func TestSample_ExhaustionSkipsTask(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{{task(1, 1, "A", 10), task(2, 2, "B", 20)}},
	}
	c := newTestCollector(t, Config{MaxTasks: 1}, src)

	err := c.Sample(context.Background())
	if !errors.Is(err, ErrSlotsExhausted) {
		t.Fatalf("expected ErrSlotsExhausted, got %v", err)
	}
	if c.Runtime(1) != 10 {
		t.Fatalf("first task not tracked")
	}
	snap := c.Snapshot(context.Background())
	if len(snap.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(snap.Rows))
	}
}

func TestSample_ExhaustionPanicsWhenStrict(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{{task(1, 1, "A", 10), task(2, 2, "B", 20)}},
	}
	c := newTestCollector(t, Config{MaxTasks: 1, Strict: true}, src)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrSlotsExhausted) {
			t.Fatalf("unexpected panic value %v", r)
		}
		// lock must be free again
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := c.lock.Acquire(ctx, 1); err != nil {
			t.Fatalf("lock left held after panic")
		}
		c.lock.Release(1)
	}()
	_ = c.Sample(context.Background())
}

func TestSample_LockTimeoutDegrades(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{{task(1, 1, "A", 42)}},
		totals:  []uint64{100},
	}
	c, err := NewCollector(Config{
		Cores:        1,
		CounterWidth: 32,
		MaxTasks:     4,
		LockTimeout:  10 * time.Millisecond,
	}, src, zap.New(core))
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	if err := c.lock.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	serr := c.Sample(context.Background())
	c.lock.Release(1)

	if serr != nil {
		t.Fatalf("Sample: %v", serr)
	}
	if src.calls != 1 {
		t.Fatalf("sample did not proceed")
	}
	if c.Runtime(1) != 42 {
		t.Fatalf("runtime not recorded")
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one timeout warning, got %d", logs.Len())
	}
}

func TestSample_SourceErrorReturned(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	c := newTestCollector(t, Config{}, src)

	if err := c.Sample(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTick_SamplesEveryN(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{{task(1, 1, "A", 1)}},
	}
	c := newTestCollector(t, Config{Every: 3}, src)

	c.Tick()
	c.Tick()
	if src.calls != 0 {
		t.Fatalf("sampled early")
	}
	c.Tick()
	if src.calls != 1 {
		t.Fatalf("expected one sample, got %d", src.calls)
	}
	for i := 0; i < 6; i++ {
		c.Tick()
	}
	if src.calls != 3 {
		t.Fatalf("expected three samples, got %d", src.calls)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &fakeSource{
		samples: [][]rtos.TaskStatus{{task(1, 1, "A", 1)}},
	}
	c := newTestCollector(t, Config{Interval: time.Millisecond}, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for c.Runtime(1) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if c.Runtime(1) != 1 {
		t.Fatalf("runner never sampled")
	}
}
