// internal/event/codes.go
package event

// Kernel event codes.
// Numbering is sequential and grouped by category. The order defines the
// mask bit of every code and MUST NOT be changed.
type Code uint8

// ---- TASKS ----

const (
	TaskCreate Code = iota
	TaskIncrementTick
	TaskSwitchedIn
	TaskSwitchedOut
	TaskDelay
	TaskDelayUntil
	TaskPrioritySet
	TaskResume
	TaskResumeFromISR
	TaskMovedToReady
	TaskSuspend
	TaskDelete

	// ---- QUEUES ----

	QueueCreate
	QueueSend
	QueueSendFailed
	QueueReceive
	QueueReceiveFailed
	QueueSendFromISR
	QueueSendFromISRFailed
	QueueReceiveFromISR
	QueueReceiveFromISRFailed
	QueuePeek
	QueuePeekFailed
	QueuePeekFromISR
	QueuePeekFromISRFailed
	QueueDelete
	QueueBlockOnSend
	QueueBlockOnReceive

	// ---- MUTEXES ----

	MutexCreate
	MutexCreateFailed
	MutexGiveRecursive
	MutexGiveRecursiveFailed
	MutexTakeRecursive
	MutexTakeRecursiveFailed

	// ---- COUNTING SEMAPHORES ----

	SemaphoreCreate
	SemaphoreCreateFailed

	// ---- TIMERS ----

	TimerCreate
	TimerCommandReceived
	TimerCommandSend
	TimerExpired

	// ---- HEAP ----

	Malloc
	Free

	// NumCodes is the end marker. Insert new codes before it.
	NumCodes
)

// First code of each category, used for range checks and color bands.
const (
	firstQueue     = QueueCreate
	firstMutex     = MutexCreate
	firstSemaphore = SemaphoreCreate
	firstTimer     = TimerCreate
	firstHeap      = Malloc
)

var mnemonics = [NumCodes]string{
	"TaC ", "TaIT", "TaSI", "TaSO", "TaDy", "TaDU", "TaPS", "TaR ",
	"TRfI", "TMRy", "TaS ", "TaD ",
	"QuC ", "QuTx", "QuTF", "QuRx", "QuRF", "QTfI", "QTIF", "QRfI",
	"QRIF", "QuPk", "QuPF", "QPfI", "QPIF", "QuD ", "QBoS", "QBoR",
	"MuC ", "MuCF", "MuRG", "MRGF", "MuRT", "MRTF",
	"CSC ", "CSCF",
	"TiC ", "TiCR", "TiCS", "TiEx",
	"Aloc", "Free",
}

// Valid reports whether c is a known code.
func (c Code) Valid() bool { return c < NumCodes }

// Bit returns the mask bit of the code.
func (c Code) Bit() Mask { return Mask(1) << c }

// Mnemonic returns the fixed 4-character display name.
func (c Code) Mnemonic() string {
	if !c.Valid() {
		return "????"
	}
	return mnemonics[c]
}

func (c Code) String() string { return c.Mnemonic() }

// IsTaskLifecycle reports whether the event is about a task (the task
// reference is the subject) rather than caused by the running task.
func (c Code) IsTaskLifecycle() bool { return c <= TaskDelete }

// HasNumericParam reports whether the task event carries a numeric payload.
func (c Code) HasNumericParam() bool {
	switch c {
	case TaskIncrementTick, TaskDelayUntil, TaskPrioritySet:
		return true
	}
	return false
}

// Category derives the category from the code's mask bit.
func (c Code) Category() Category {
	bit := c.Bit()
	for cat := CategoryTask; cat < numCategories; cat++ {
		if cat.Mask()&bit != 0 {
			return cat
		}
	}
	return CategoryNone
}

// CodeByMnemonic looks up a code by its trimmed mnemonic (case-sensitive).
func CodeByMnemonic(s string) (Code, bool) {
	for i, m := range mnemonics {
		if trimRight(m) == s {
			return Code(i), true
		}
	}
	return 0, false
}

func trimRight(s string) string {
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}
