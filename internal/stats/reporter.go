// internal/stats/reporter.go
package stats

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tamzrod/rtos-instrument/internal/console"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// Columns selects the optional report columns.
type Columns uint16

const (
	ColTaskNumber Columns = 1 << iota
	ColPriority
	ColState
	ColCore
	ColStack
	ColDebug
	ColBlankLine
	ColColor
)

// DefaultColumns is the column set used when none is configured.
const DefaultColumns = ColTaskNumber | ColPriority | ColState | ColCore | ColStack

// IncludeAll selects every task number.
const IncludeAll = ^uint64(0)

// Options controls one report.
type Options struct {
	Columns Columns

	// Include selects task numbers: bit n-1 selects task n.
	// Task numbers above 64 are always included.
	Include uint64
}

// ReporterConfig holds the static report layout.
type ReporterConfig struct {
	MaxPriorities uint32
	NameWidth     int
}

// Reporter renders on-demand statistics reports.
type Reporter struct {
	cfg    ReporterConfig
	col    *Collector
	clock  rtos.Clock
	timers rtos.Timers
	heap   rtos.Heap
	p      *message.Printer
}

// NewReporter creates a reporter over col. clock, timers and heap may be nil
// when the matching report is not used.
func NewReporter(cfg ReporterConfig, col *Collector, clock rtos.Clock, timers rtos.Timers, heap rtos.Heap) *Reporter {
	if cfg.MaxPriorities == 0 {
		cfg.MaxPriorities = 25
	}
	if cfg.NameWidth < 2 {
		cfg.NameWidth = 16
	}
	return &Reporter{
		cfg:    cfg,
		col:    col,
		clock:  clock,
		timers: timers,
		heap:   heap,
		p:      message.NewPrinter(language.English),
	}
}

// ---- TASK REPORT ----

// Report writes the task table and the utilization footer.
// Rows with a transiently invalid state, priority or core are omitted.
// It returns the number of bytes written; 0 when no system time has
// accumulated yet.
func (r *Reporter) Report(ctx context.Context, w console.Writer, opt Options) int {
	snap := r.col.Snapshot(ctx)
	cores := r.col.Cores()

	div := uint64(100 / cores)
	if div == 0 {
		div = 1
	}
	adjust := snap.Totals.System / div
	if adjust == 0 {
		return 0
	}

	w.Lock()
	defer w.Unlock()

	n := r.header(w, opt.Columns, cores)

	nameFmt := fmt.Sprintf("%%-%d.%ds ", r.cfg.NameWidth-1, r.cfg.NameWidth-1)
	for num := uint32(1); num <= snap.MaxNum; num++ {
		row, ok := snap.Find(num)
		if !ok || !r.valid(row, cores) || !included(opt.Include, num) {
			continue
		}

		if opt.Columns&ColTaskNumber != 0 {
			n += w.Printf("%2d ", row.Number)
		}
		if opt.Columns&ColPriority != 0 {
			n += w.Printf("%2d/%2d ", row.CurrentPriority, row.BasePriority)
		}
		n += w.Printf(nameFmt, row.Name)
		if opt.Columns&ColState != 0 {
			n += w.Printf("%c ", row.State.Letter())
		}
		if opt.Columns&ColCore != 0 && cores > 1 {
			n += w.Printf("%c ", coreLetter(row.Core, cores))
		}
		if opt.Columns&ColStack != 0 {
			n += w.Printf("%4d ", row.StackHighWater)
		}

		units, fract := percent(row.Runtime, adjust)
		n += w.Printf("%2d.%02d %5s", units, fract, r.p.Sprintf("%d", row.Runtime))

		if opt.Columns&ColDebug != 0 {
			n += w.Printf(" %#x %#x", row.StackBase, uintptr(row.Handle))
		}
		n += w.Printf("\n")
	}

	n += r.footer(w, snap, adjust, cores, opt.Columns)
	return n
}

func (r *Reporter) header(w console.Writer, cols Columns, cores int) int {
	n := 0
	if cols&ColColor != 0 {
		n += w.Printf("%s", w.Color(console.Cyan, console.Black))
	}
	if cols&ColTaskNumber != 0 {
		n += w.Printf("T# ")
	}
	if cols&ColPriority != 0 {
		n += w.Printf("Pc/Pb ")
	}
	n += w.Printf("%s ", nameHeader(r.cfg.NameWidth-1))
	if cols&ColState != 0 {
		n += w.Printf("S ")
	}
	if cols&ColCore != 0 && cores > 1 {
		n += w.Printf("X ")
	}
	if cols&ColStack != 0 {
		n += w.Printf("LowS ")
	}
	n += w.Printf(" Util Ticks")
	if cols&ColDebug != 0 {
		n += w.Printf(" Stack Base -Task TCB-")
	}
	if cols&ColColor != 0 {
		n += w.Printf("%s", w.Reset())
	}
	n += w.Printf("\n")
	return n
}

func (r *Reporter) footer(w console.Writer, snap Snapshot, adjust uint64, cores int, cols Columns) int {
	t := snap.Totals

	units, fract := percent(t.Active, adjust)
	n := w.Printf("T=%d U=%d.%02d", len(snap.Rows), units, fract)

	if cores > 1 {
		for i, v := range t.Cores {
			units, fract := percent(v, adjust)
			n += w.Printf("  %c=%d.%02d", coreLetter(i, cores), units, fract)
		}
	}

	// RTOS overhead is what neither active nor idle tasks account for.
	u := t.Active * 100 / adjust
	i := t.Idle * 100 / adjust
	o := uint64(0)
	if u+i < 10000 {
		o = 10000 - u - i
	}
	n += w.Printf("  I=%d.%02d O=%d.%02d", i/100, i%100, o/100, o%100)

	if cols&ColBlankLine != 0 {
		n += w.Printf("\n\n")
	} else {
		n += w.Printf("\n")
	}
	return n
}

func (r *Reporter) valid(row *Row, cores int) bool {
	if !row.State.Valid() {
		return false
	}
	if row.CurrentPriority >= r.cfg.MaxPriorities || row.BasePriority >= r.cfg.MaxPriorities {
		return false
	}
	if row.Core >= cores || (row.Core < 0 && row.Core != rtos.NoAffinity) {
		return false
	}
	return true
}

// ---- TIMER / MEMORY REPORTS ----

// ReportTimer writes one line describing timer h.
func (r *Reporter) ReportTimer(w console.Writer, h rtos.Handle) int {
	if r.timers == nil {
		return 0
	}
	ti, ok := r.timers.Timer(h)
	if !ok {
		return 0
	}
	auto := byte('N')
	if ti.AutoReload {
		auto = 'Y'
	}

	w.Lock()
	defer w.Unlock()

	n := w.Printf("\t%s: #=%d Auto=%c", ti.Name, ti.Number, auto)
	if !ti.Active {
		return n + w.Printf(" Run=N\n")
	}
	var now uint64
	if r.clock != nil {
		now = r.clock.Ticks()
	}
	rem := int64(ti.Expiry - now)
	return n + w.Printf(" Run=Y tPer=%d tExp=%d tRem=%d\n", ti.Period, ti.Expiry, rem)
}

// ReportMemory writes the heap watermark line.
func (r *Reporter) ReportMemory(w console.Writer, cols Columns) (int, error) {
	if r.heap == nil {
		return 0, nil
	}
	hi, err := r.heap.HeapInfo()
	if err != nil {
		return 0, fmt.Errorf("stats: heap info: %w", err)
	}

	w.Lock()
	defer w.Unlock()

	n := 0
	if cols&ColColor != 0 {
		n += w.Printf("%sHeap%s", w.Color(console.Cyan, console.Black), w.Reset())
	} else {
		n += w.Printf("Heap")
	}
	n += w.Printf("    Min=%s  Free=%s  Orig=%s\n",
		r.p.Sprintf("%d", hi.MinEverFree),
		r.p.Sprintf("%d", hi.Free),
		r.p.Sprintf("%d", hi.Initial),
	)
	if cols&ColBlankLine != 0 {
		n += w.Printf("\n")
	}
	return n, nil
}

// ---- HELPERS ----

// percent splits v/adjust into units and hundredths.
func percent(v, adjust uint64) (uint64, uint64) {
	return v / adjust, (v * 100 / adjust) % 100
}

func included(mask uint64, num uint32) bool {
	if num == 0 || num > 64 {
		return true
	}
	return mask&(1<<(num-1)) != 0
}

func coreLetter(core, cores int) byte {
	if core < 0 || core >= cores || core > 9 {
		return 'X'
	}
	return byte('0' + core)
}

func nameHeader(width int) string {
	const title = "Task Name"
	if width <= len(title) {
		return fmt.Sprintf("%-*.*s", width, width, title)
	}
	pad := width - len(title)
	left := pad / 2
	right := pad - left
	return strings.Repeat("-", left) + title + strings.Repeat("-", right)
}
