// Package core implements the kernel itself: task representation, the
// ready/delayed/pending list machinery, the scheduling rule, the
// synchronization primitives, the interrupt-nesting discipline, and the
// context-switch contract described in spec.md.
package core

// Priority identifies a task's scheduling priority. Smaller numbers run
// first; 1 is the highest priority and PriorityLowest is reserved for the
// idle task. Priorities are unique among tasks (spec.md §3).
type Priority uint8

// PriorityLowest is the idle task's priority; no real task may use it.
const PriorityLowest Priority = 100

// IdleTaskID is the task identifier reserved for the idle task.
const IdleTaskID TaskID = 0

// TaskID uniquely and monotonically identifies a task.
type TaskID int

// TaskFunc is a task's entry point. It receives the kernel and its own TCB
// so it can call back into blocking primitives (DelayTask, SemPend, QPend)
// on itself.
type TaskFunc func(k *Kernel, self *TCB)

// TaskState mirrors spec.md §4.9's per-task state machine. It is
// maintained for diagnostics; the kernel's real source of truth is list
// membership.
type TaskState int

const (
	StateNew TaskState = iota
	StateReady
	StateRunning
	StateDelayed
	StatePendingSem
	StatePendingQueue
)

func (s TaskState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateDelayed:
		return "DELAYED"
	case StatePendingSem:
		return "PENDING_SEM"
	case StatePendingQueue:
		return "PENDING_Q"
	default:
		return "UNKNOWN"
	}
}

// TCB is the kernel's record for a task (spec.md §3). A TCB is a member of
// at most one of {ready list, delayed list, a single pending list} at any
// instant; the field that list's insert/remove functions use is `next`/
// `prev`, so the membership invariant is enforced entirely by callers
// never inserting a TCB into two lists at once.
type TCB struct {
	// Diagnostics only: this port does not manufacture a raw stack, but
	// keeps the bookkeeping fields for parity with spec.md's data model;
	// StackFootprint exposes stackSize.
	stackBase int // highest valid "address" (here: byte length) for diagnostics
	stackSize int

	id         TaskID
	priority   Priority
	delayCount int
	state      TaskState

	next, prev *TCB

	// wake is this port's hosted replacement for the machine dispatcher's
	// register save/restore (spec.md §4.3): a task parked here is not the
	// current task; a send unparks it. Real tasks always have a non-nil
	// channel; the dummy placeholder task (see lifecycle.go) does not,
	// since it is never parked.
	wake chan struct{}

	entry TaskFunc
}

func (t *TCB) ID() TaskID          { return t.id }
func (t *TCB) Priority() Priority  { return t.priority }
func (t *TCB) State() TaskState    { return t.state }
func (t *TCB) DelayCount() int     { return t.delayCount }
func (t *TCB) StackFootprint() int { return t.stackSize }
