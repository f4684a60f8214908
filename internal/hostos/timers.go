// internal/hostos/timers.go
package hostos

import (
	"time"

	"github.com/tamzrod/rtos-instrument/internal/rtos"
)

// timer is a software timer owned by the daemon, exposed through the
// kernel timer queries.
type timer struct {
	name       string
	period     uint64 // ticks
	autoReload bool
	active     bool
	expiry     uint64
}

// AddTimer registers a running timer and returns its handle.
func (h *Host) AddTimer(name string, period time.Duration, autoReload bool) rtos.Handle {
	p := uint64(period.Milliseconds())
	now := h.Ticks()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.timers = append(h.timers, &timer{
		name:       truncate(name),
		period:     p,
		autoReload: autoReload,
		active:     true,
		expiry:     now + p,
	})
	return TimerBase + rtos.Handle(len(h.timers)-1)
}

// TimerFired records an expiry. Auto-reload timers rearm, others stop.
func (h *Host) TimerFired(th rtos.Handle) {
	now := h.Ticks()

	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.timerLocked(th)
	if t == nil {
		return
	}
	if t.autoReload {
		t.expiry = now + t.period
		return
	}
	t.active = false
}

// StopTimer deactivates a timer.
func (h *Host) StopTimer(th rtos.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t := h.timerLocked(th); t != nil {
		t.active = false
	}
}

// Timer describes a registered timer.
func (h *Host) Timer(th rtos.Handle) (rtos.TimerInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.timerLocked(th)
	if t == nil {
		return rtos.TimerInfo{}, false
	}
	return rtos.TimerInfo{
		Name:       t.name,
		Number:     uint32(th-TimerBase) + 1,
		AutoReload: t.autoReload,
		Active:     t.active,
		Period:     t.period,
		Expiry:     t.expiry,
	}, true
}

// TimerName returns the name of a registered timer.
func (h *Host) TimerName(th rtos.Handle) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t := h.timerLocked(th); t != nil {
		return t.name
	}
	return ""
}

func (h *Host) timerLocked(th rtos.Handle) *timer {
	if th < TimerBase || th >= TimerBase+rtos.Handle(len(h.timers)) {
		return nil
	}
	return h.timers[th-TimerBase]
}
