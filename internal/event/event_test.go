// internal/event/event_test.go
package event

import (
	"strings"
	"testing"
)

func TestCodes_MnemonicsFourWideAndUnique(t *testing.T) {
	seen := make(map[string]Code)
	for c := Code(0); c < NumCodes; c++ {
		m := c.Mnemonic()
		if len(m) != 4 {
			t.Fatalf("code %d: mnemonic %q not 4 wide", c, m)
		}
		if prev, ok := seen[m]; ok {
			t.Fatalf("mnemonic %q shared by %d and %d", m, prev, c)
		}
		seen[m] = c
	}
	if NumCodes.Mnemonic() != "????" {
		t.Fatalf("invalid code mnemonic %q", NumCodes.Mnemonic())
	}
}

func TestCodes_FitInMask(t *testing.T) {
	if NumCodes > 64 {
		t.Fatalf("%d codes do not fit a 64-bit mask", NumCodes)
	}
}

func TestCategories_PartitionEveryCode(t *testing.T) {
	var union Mask
	groups := []Mask{TaskAll, QueueAll, MutexAll, SemaphoreAll, TimerAll, HeapAll}
	for i, g := range groups {
		if union&g != 0 {
			t.Fatalf("group %d overlaps earlier groups", i)
		}
		union |= g
	}
	if union != Everything {
		t.Fatalf("groups do not cover every code: %x vs %x", uint64(union), uint64(Everything))
	}
	if All&HeapAll != 0 {
		t.Fatalf("All must exclude heap")
	}
}

func TestCode_Category(t *testing.T) {
	cases := map[Code]Category{
		TaskCreate:            CategoryTask,
		TaskDelete:            CategoryTask,
		QueueCreate:           CategoryQueue,
		QueueBlockOnReceive:   CategoryQueue,
		MutexTakeRecursive:    CategoryMutex,
		SemaphoreCreateFailed: CategorySemaphore,
		TimerExpired:          CategoryTimer,
		Malloc:                CategoryHeap,
		Free:                  CategoryHeap,
	}
	for c, want := range cases {
		if got := c.Category(); got != want {
			t.Fatalf("%s: got %s want %s", c, got, want)
		}
	}
}

func TestCode_TaskLifecycleAndParams(t *testing.T) {
	if !TaskDelete.IsTaskLifecycle() || QueueCreate.IsTaskLifecycle() {
		t.Fatalf("lifecycle boundary wrong")
	}
	for _, c := range []Code{TaskIncrementTick, TaskDelayUntil, TaskPrioritySet} {
		if !c.HasNumericParam() {
			t.Fatalf("%s should carry a numeric param", c)
		}
	}
	if TaskDelay.HasNumericParam() {
		t.Fatalf("TaDy has no numeric param")
	}
}

func TestCodeByMnemonic(t *testing.T) {
	if c, ok := CodeByMnemonic("TaC"); !ok || c != TaskCreate {
		t.Fatalf("TaC -> %v %v", c, ok)
	}
	if c, ok := CodeByMnemonic("Free"); !ok || c != Free {
		t.Fatalf("Free -> %v %v", c, ok)
	}
	if _, ok := CodeByMnemonic("Nope"); ok {
		t.Fatalf("unexpected match")
	}
}

func TestParseMask(t *testing.T) {
	cases := []struct {
		in   []string
		want Mask
	}{
		{nil, None},
		{[]string{"none"}, None},
		{[]string{"task"}, TaskAll},
		{[]string{"Queue", "mutex"}, QueueAll | MutexAll},
		{[]string{"all"}, All},
		{[]string{"everything", "-heap"}, All},
		{[]string{"task", "-TaIT"}, TaskAll &^ TaskIncrementTick.Bit()},
		{[]string{"task_switch", "Aloc"}, TaskSwitch | Malloc.Bit()},
		{[]string{"failures"}, AllFailures},
	}
	for _, tc := range cases {
		got, err := ParseMask(tc.in)
		if err != nil {
			t.Fatalf("%v: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%v: got %x want %x", tc.in, uint64(got), uint64(tc.want))
		}
	}

	_, err := ParseMask([]string{"task", "bogus"})
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected error naming bogus, got %v", err)
	}
}
