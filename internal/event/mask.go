// internal/event/mask.go
package event

import (
	"fmt"
	"strings"
)

// Mask is a set of event codes, one bit per code.
type Mask uint64

// Has reports whether code c is in the mask.
func (m Mask) Has(c Code) bool { return m&c.Bit() != 0 }

// Category groups related event codes for coarse filtering.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryTask
	CategoryQueue
	CategoryMutex
	CategorySemaphore
	CategoryTimer
	CategoryHeap

	numCategories
)

// ---- GROUP MASKS ----

// None enables nothing.
const None Mask = 0

// TaskAll covers every task event.
var TaskAll = rangeMask(TaskCreate, firstQueue)

// QueueAll covers every queue event.
var QueueAll = rangeMask(firstQueue, firstMutex)

// MutexAll covers every mutex event.
var MutexAll = rangeMask(firstMutex, firstSemaphore)

// SemaphoreAll covers every counting-semaphore event.
var SemaphoreAll = rangeMask(firstSemaphore, firstTimer)

// TimerAll covers every timer event.
var TimerAll = rangeMask(firstTimer, firstHeap)

// HeapAll covers malloc and free.
var HeapAll = rangeMask(firstHeap, NumCodes)

// AllFailures covers creation failures of mutexes and semaphores.
var AllFailures = MutexCreateFailed.Bit() | SemaphoreCreateFailed.Bit()

// All covers every kernel object category. Heap is not part of it.
var All = TaskAll | QueueAll | MutexAll | SemaphoreAll | TimerAll

// Everything covers all codes including heap.
var Everything = All | HeapAll

// TaskSwitch covers the two scheduler switch events.
var TaskSwitch = TaskSwitchedIn.Bit() | TaskSwitchedOut.Bit()

func rangeMask(from, to Code) Mask {
	var m Mask
	for c := from; c < to; c++ {
		m |= c.Bit()
	}
	return m
}

// Mask returns the group mask of the category.
func (c Category) Mask() Mask {
	switch c {
	case CategoryTask:
		return TaskAll
	case CategoryQueue:
		return QueueAll
	case CategoryMutex:
		return MutexAll
	case CategorySemaphore:
		return SemaphoreAll
	case CategoryTimer:
		return TimerAll
	case CategoryHeap:
		return HeapAll
	}
	return None
}

var categoryNames = [numCategories]string{
	"none", "task", "queue", "mutex", "semaphore", "timer", "heap",
}

func (c Category) String() string {
	if c >= numCategories {
		return "invalid"
	}
	return categoryNames[c]
}

// ParseMask converts config names into a mask.
// Accepted: category names, "all", "everything", "failures", "task_switch",
// and individual mnemonics (e.g. "TaSI"). A leading "-" removes the
// matching bits from the result.
func ParseMask(names []string) (Mask, error) {
	var set, clear Mask
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		neg := strings.HasPrefix(name, "-")
		name = strings.TrimPrefix(name, "-")

		m, err := parseOne(name)
		if err != nil {
			return 0, err
		}
		if neg {
			clear |= m
		} else {
			set |= m
		}
	}
	return set &^ clear, nil
}

func parseOne(name string) (Mask, error) {
	switch strings.ToLower(name) {
	case "none":
		return None, nil
	case "all":
		return All, nil
	case "everything":
		return Everything, nil
	case "failures":
		return AllFailures, nil
	case "task_switch":
		return TaskSwitch, nil
	}
	for c := CategoryTask; c < numCategories; c++ {
		if strings.EqualFold(name, categoryNames[c]) {
			return c.Mask(), nil
		}
	}
	if code, ok := CodeByMnemonic(name); ok {
		return code.Bit(), nil
	}
	return 0, fmt.Errorf("event: unknown mask name %q", name)
}
