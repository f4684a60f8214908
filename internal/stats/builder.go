// internal/stats/builder.go
package stats

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	cfg "github.com/tamzrod/rtos-instrument/internal/config"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

var columnNames = map[string]Columns{
	"task_number": ColTaskNumber,
	"priority":    ColPriority,
	"state":       ColState,
	"core":        ColCore,
	"stack":       ColStack,
	"debug":       ColDebug,
	"blank_line":  ColBlankLine,
	"color":       ColColor,
}

// ParseColumns converts config column names into flags.
// An empty list selects DefaultColumns.
func ParseColumns(names []string) (Columns, error) {
	if len(names) == 0 {
		return DefaultColumns, nil
	}
	var c Columns
	for _, n := range names {
		f, ok := columnNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("stats: unknown column %q", n)
		}
		c |= f
	}
	return c, nil
}

// Build constructs a Collector from config.
// Assumes config has already passed Validate and Normalize.
func Build(s cfg.StatsConfig, src Source, log *zap.Logger) (*Collector, error) {
	return NewCollector(Config{
		Cores:        s.Cores,
		CounterWidth: s.CounterWidth,
		MaxTasks:     s.MaxTasks,
		Every:        s.Every,
		Interval:     time.Duration(s.IntervalMs) * time.Millisecond,
		LockTimeout:  time.Duration(s.LockTimeoutMs) * time.Millisecond,
		Strict:       s.Strict,
	}, src, log)
}

// BuildReporter constructs the Reporter and the report options from config.
// color is the output-level color switch; it gates the ColColor column.
func BuildReporter(s cfg.StatsConfig, col *Collector, clock rtos.Clock, timers rtos.Timers, heap rtos.Heap, color bool) (*Reporter, Options, error) {
	cols, err := ParseColumns(s.Columns)
	if err != nil {
		return nil, Options{}, err
	}
	if color {
		cols |= ColColor
	} else {
		cols &^= ColColor
	}

	include := IncludeAll
	if s.Include != nil {
		include = *s.Include
	}

	r := NewReporter(ReporterConfig{
		MaxPriorities: s.MaxPriorities,
		NameWidth:     s.NameWidth,
	}, col, clock, timers, heap)

	return r, Options{Columns: cols, Include: include}, nil
}
