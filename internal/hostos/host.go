// internal/hostos/host.go
package hostos

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/rtos-instrument/internal/event"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// Host presents the processes of the machine it runs on as kernel tasks.
//
// Process id is the task handle. Each core gets a pseudo idle task built
// from the CPU idle time. Runtime counters are CPU milliseconds; the system
// total is the CPU milliseconds of every host CPU divided over the
// configured cores.
type Host struct {
	cfg   Config
	probe probe
	log   *zap.Logger
	start time.Time
	now   func() time.Time

	mu      sync.Mutex
	filter  map[string]struct{}
	numbers map[rtos.Handle]uint32
	next    uint32
	names   map[rtos.Handle]string
	tasks   []rtos.TaskStatus
	total   uint64

	// per-process change tracking
	cpu    map[rtos.Handle]float64
	prio   map[rtos.Handle]uint32
	active map[rtos.Handle]bool

	// deleted last poll; names are dropped on the next one
	retired []rtos.Handle

	minFree uint64
	timers  []*timer
}

// Config is the minimal runtime config of the adapter.
type Config struct {
	// Processes restricts the watched process names. Empty watches all.
	Processes []string

	// Cores is the number of idle pseudo tasks; host CPUs are folded onto it.
	Cores int

	// Poll drives Run.
	Poll time.Duration
}

// Change is one kernel event derived from the difference between polls.
type Change struct {
	Code event.Code
	Task rtos.Handle
	Arg  uint32
}

// Handle ranges reserved for pseudo objects. Real pids stay far below.
const (
	IdleBase  rtos.Handle = 0x7FFF_0000
	TimerBase rtos.Handle = 0x7FFE_0000
)

// New creates an adapter over the live host.
func New(cfg Config, log *zap.Logger) (*Host, error) {
	return newHost(cfg, gopsutilProbe{}, log)
}

func newHost(cfg Config, p probe, log *zap.Logger) (*Host, error) {
	if cfg.Cores < 1 {
		return nil, errors.New("hostos: cores must be >= 1")
	}
	if log == nil {
		log = zap.NewNop()
	}

	h := &Host{
		cfg:     cfg,
		probe:   p,
		log:     log,
		start:   time.Now(),
		now:     time.Now,
		numbers: make(map[rtos.Handle]uint32),
		names:   make(map[rtos.Handle]string),
		cpu:     make(map[rtos.Handle]float64),
		prio:    make(map[rtos.Handle]uint32),
		active:  make(map[rtos.Handle]bool),
	}
	if len(cfg.Processes) > 0 {
		h.filter = make(map[string]struct{}, len(cfg.Processes))
		for _, n := range cfg.Processes {
			h.filter[n] = struct{}{}
		}
	}

	// idle tasks take the first task numbers
	for i := 0; i < cfg.Cores; i++ {
		ih := IdleBase + rtos.Handle(i)
		h.number(ih)
		h.names[ih] = idleName(i, cfg.Cores)
	}
	return h, nil
}

func idleName(core, cores int) string {
	if cores == 1 {
		return "IDLE"
	}
	return fmt.Sprintf("IDLE%d", core)
}

func (h *Host) number(th rtos.Handle) uint32 {
	n, ok := h.numbers[th]
	if !ok {
		h.next++
		n = h.next
		h.numbers[th] = n
	}
	return n
}

func (h *Host) match(name string) bool {
	if h.filter == nil {
		return true
	}
	_, ok := h.filter[name]
	return ok
}

// ---- POLLING ----

// Poll refreshes the snapshot and returns the kernel events implied by
// the difference to the previous poll.
func (h *Host) Poll() ([]Change, error) {
	cpus, err := h.probe.cpus()
	if err != nil {
		return nil, fmt.Errorf("hostos: cpu times: %w", err)
	}
	procs, err := h.probe.processes(h.match)
	if err != nil {
		return nil, fmt.Errorf("hostos: processes: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, th := range h.retired {
		delete(h.names, th)
	}
	h.retired = h.retired[:0]

	tasks := make([]rtos.TaskStatus, 0, len(procs)+h.cfg.Cores)

	// ---- idle pseudo tasks ----
	// host CPUs fold onto the configured cores; the total spreads all CPU
	// time over those cores
	idle := make([]float64, h.cfg.Cores)
	var all float64
	for i, c := range cpus {
		idle[i%h.cfg.Cores] += c.Idle
		all += c.Total
	}
	h.total = uint64(all / float64(h.cfg.Cores) * 1000)

	for i := 0; i < h.cfg.Cores; i++ {
		ih := IdleBase + rtos.Handle(i)
		tasks = append(tasks, rtos.TaskStatus{
			Handle:  ih,
			Name:    h.names[ih],
			Number:  h.numbers[ih],
			State:   rtos.Ready,
			Core:    i,
			RunTime: uint64(idle[i] * 1000),
		})
	}

	// ---- processes ----
	var changes []Change
	seen := make(map[rtos.Handle]struct{}, len(procs))

	for _, p := range procs {
		th := rtos.Handle(p.PID)
		seen[th] = struct{}{}

		name := truncate(p.Name)
		prio := priority(p.Nice)
		_, known := h.cpu[th]

		if !known {
			h.names[th] = name
			changes = append(changes, Change{Code: event.TaskCreate, Task: th})
		} else if prio != h.prio[th] {
			changes = append(changes, Change{Code: event.TaskPrioritySet, Task: th, Arg: prio})
		}

		ran := known && p.CPU > h.cpu[th]
		switch {
		case ran && !h.active[th]:
			h.active[th] = true
			changes = append(changes, Change{Code: event.TaskSwitchedIn, Task: th})
		case !ran && known && h.active[th]:
			h.active[th] = false
			changes = append(changes, Change{Code: event.TaskSwitchedOut, Task: th})
		}

		h.cpu[th] = p.CPU
		h.prio[th] = prio

		state := mapState(p.Status)
		if h.active[th] && state != rtos.Deleted {
			state = rtos.Running
		}
		tasks = append(tasks, rtos.TaskStatus{
			Handle:          th,
			Name:            name,
			Number:          h.number(th),
			State:           state,
			CurrentPriority: prio,
			BasePriority:    prio,
			Core:            rtos.NoAffinity,
			RunTime:         uint64(p.CPU * 1000),
			StackHighWater:  uint32(p.Stack / 1024),
		})
	}

	// ---- deletions ----
	var gone []rtos.Handle
	for th := range h.cpu {
		if _, ok := seen[th]; !ok {
			gone = append(gone, th)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })
	for _, th := range gone {
		changes = append(changes, Change{Code: event.TaskDelete, Task: th})
		delete(h.cpu, th)
		delete(h.prio, th)
		delete(h.active, th)
		delete(h.numbers, th)
		// name outlives the poll so the delete event still renders
		h.retired = append(h.retired, th)
	}

	h.tasks = tasks
	return changes, nil
}

// Run polls every Poll and hands the changes to fn until ctx is done.
func (h *Host) Run(ctx context.Context, fn func([]Change)) {
	if h.cfg.Poll <= 0 {
		h.log.Warn("host poll interval not set, host adapter not started")
		return
	}
	ticker := time.NewTicker(h.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changes, err := h.Poll()
			if err != nil {
				h.log.Warn("host poll failed", zap.Error(err))
				continue
			}
			if fn != nil && len(changes) > 0 {
				fn(changes)
			}
		}
	}
}

// ---- KERNEL QUERIES ----

// Ticks returns milliseconds since the adapter started.
func (h *Host) Ticks() uint64 {
	return uint64(h.now().Sub(h.start).Milliseconds())
}

// SystemState returns the last polled snapshot.
func (h *Host) SystemState() ([]rtos.TaskStatus, uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tasks == nil {
		return nil, 0, errors.New("hostos: not polled yet")
	}
	return append([]rtos.TaskStatus(nil), h.tasks...), h.total, nil
}

// IdleTasks returns the idle pseudo task of each core.
func (h *Host) IdleTasks() []rtos.Handle {
	out := make([]rtos.Handle, h.cfg.Cores)
	for i := range out {
		out[i] = IdleBase + rtos.Handle(i)
	}
	return out
}

// TaskName returns the name of a task, including recently deleted ones.
func (h *Host) TaskName(th rtos.Handle) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.names[th]
}

// HeapInfo reports host memory: available as free, total as initial.
func (h *Host) HeapInfo() (rtos.HeapInfo, error) {
	total, avail, err := h.probe.memory()
	if err != nil {
		return rtos.HeapInfo{}, fmt.Errorf("hostos: memory: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.minFree == 0 || avail < h.minFree {
		h.minFree = avail
	}
	return rtos.HeapInfo{Free: avail, MinEverFree: h.minFree, Initial: total}, nil
}

// ---- MAPPING ----

func truncate(name string) string {
	const maxName = 15
	if len(name) > maxName {
		return name[:maxName]
	}
	return name
}

// priority maps nice -20..19 onto 19..0, higher meaning more urgent.
func priority(nice int32) uint32 {
	if nice < -20 {
		nice = -20
	}
	if nice > 19 {
		nice = 19
	}
	return uint32(19-nice) / 2
}

func mapState(status []string) rtos.TaskState {
	if len(status) == 0 {
		return rtos.Ready
	}
	switch strings.ToLower(status[0]) {
	case "running":
		return rtos.Running
	case "sleep", "idle", "wait", "lock":
		return rtos.Blocked
	case "stop":
		return rtos.Suspended
	case "zombie":
		return rtos.Deleted
	}
	return rtos.Invalid
}
