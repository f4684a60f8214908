// internal/hostos/probe.go
package hostos

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// procSample is one host process as seen by a single poll.
type procSample struct {
	PID    int32
	Name   string
	Status []string
	Nice   int32
	CPU    float64 // user + system seconds
	Stack  uint64  // bytes
}

// cpuSample is the cumulative time of one logical CPU, in seconds.
type cpuSample struct {
	Total float64
	Idle  float64
}

// probe isolates the host queries so the adapter logic is testable.
type probe interface {
	processes(match func(name string) bool) ([]procSample, error)
	cpus() ([]cpuSample, error)
	memory() (total, available uint64, err error)
}

// gopsutilProbe reads the live host.
type gopsutilProbe struct{}

func (gopsutilProbe) processes(match func(string) bool) ([]procSample, error) {
	ps, err := process.Processes()
	if err != nil {
		return nil, err
	}

	out := make([]procSample, 0, len(ps))
	for _, p := range ps {
		name, err := p.Name()
		if err != nil || !match(name) {
			continue // gone or not permitted
		}

		s := procSample{PID: p.Pid, Name: name}
		if st, err := p.Status(); err == nil {
			s.Status = st
		}
		if n, err := p.Nice(); err == nil {
			s.Nice = n
		}
		if t, err := p.Times(); err == nil && t != nil {
			s.CPU = t.User + t.System
		}
		if m, err := p.MemoryInfo(); err == nil && m != nil {
			s.Stack = m.Stack
		}
		if s.Stack == 0 {
			// Linux leaves Stack unset; take it from the [stack] mapping
			if maps, err := p.MemoryMaps(false); err == nil {
				s.Stack = stackBytes(maps)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// stackBytes returns the size of the main thread stack mapping.
// Mapping sizes are reported in kB.
func stackBytes(maps *[]process.MemoryMapsStat) uint64 {
	if maps == nil {
		return 0
	}
	for _, m := range *maps {
		if m.Path == "[stack]" {
			return m.Size * 1024
		}
	}
	return 0
}

func (gopsutilProbe) cpus() ([]cpuSample, error) {
	ts, err := cpu.Times(true)
	if err != nil {
		return nil, err
	}
	out := make([]cpuSample, 0, len(ts))
	for _, t := range ts {
		total := t.User + t.System + t.Idle + t.Nice + t.Iowait +
			t.Irq + t.Softirq + t.Steal
		out = append(out, cpuSample{Total: total, Idle: t.Idle})
	}
	return out, nil
}

func (gopsutilProbe) memory() (uint64, uint64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return v.Total, v.Available, nil
}
