// internal/stats/builder_test.go
package stats

import (
	"testing"

	cfg "github.com/tamzrod/rtos-instrument/internal/config"
	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

func TestParseColumns(t *testing.T) {
	c, err := ParseColumns(nil)
	if err != nil || c != DefaultColumns {
		t.Fatalf("default columns: %v %v", c, err)
	}

	c, err = ParseColumns([]string{"task_number", " State ", "debug"})
	if err != nil {
		t.Fatalf("ParseColumns: %v", err)
	}
	if c != ColTaskNumber|ColState|ColDebug {
		t.Fatalf("got %b", c)
	}

	if _, err := ParseColumns([]string{"cpu"}); err == nil {
		t.Fatalf("expected error for unknown column")
	}
}

func TestBuild_FromConfig(t *testing.T) {
	s := cfg.StatsConfig{Cores: 2, CounterWidth: 64, MaxTasks: 4, Every: 10, IntervalMs: 250, LockTimeoutMs: 20}
	src := &fakeSource{samples: [][]rtos.TaskStatus{nil}}

	c, err := Build(s, src, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.Cores() != 2 || len(c.slots) != 4 || c.cfg.Interval.Milliseconds() != 250 {
		t.Fatalf("unexpected collector config %+v", c.cfg)
	}

	include := uint64(0b11)
	s.Include = &include
	s.Columns = []string{"state", "color"}

	_, opt, err := BuildReporter(s, c, nil, nil, nil, false)
	if err != nil {
		t.Fatalf("BuildReporter: %v", err)
	}
	if opt.Columns != ColState || opt.Include != 0b11 {
		t.Fatalf("unexpected options %+v", opt)
	}

	_, opt, _ = BuildReporter(cfg.StatsConfig{}, c, nil, nil, nil, true)
	if opt.Columns != DefaultColumns|ColColor || opt.Include != IncludeAll {
		t.Fatalf("unexpected default options %+v", opt)
	}
}
