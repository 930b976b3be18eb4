package core

import "sync"

// Config bounds the kernel's static pools (spec.md §3, "allocated from
// static pools during initialization and never destroyed"). Zero values are
// replaced with the defaults below by NewKernel.
type Config struct {
	MaxTasks      int
	MaxSemaphores int
	MaxQueues     int
}

// Defaults mirror original_source/yak-rtos/user.h's MAXTASKS/MAXSEMA/MAXQUEUE.
const (
	DefaultMaxTasks      = 64
	DefaultMaxSemaphores = 64
	DefaultMaxQueues     = 64
)

// Kernel holds every piece of state spec.md §3 calls "kernel globals" plus
// the static pools and list heads. The zero value is not usable; build one
// with NewKernel.
//
// mu is this port's hosted replacement for "disable interrupts" (spec.md
// §9's own suggestion): every exported kernel operation acquires it once on
// entry and releases it on every exit path, exactly mirroring the original's
// enter()/exit() discipline around each kernel entry point.
type Kernel struct {
	mu   sync.Mutex
	diag Diagnostics

	tcbs   *tcbPool
	sems   *semPool
	queues *queuePool

	readyHead, readyTail     *TCB
	delayedHead, delayedTail *TCB

	current *TCB
	idle    *TCB
	dummy   *TCB

	ticks       uint64
	ctxSwitches uint64
	idleCount   uint64
	nestLevel   int
	started     bool
	nextID      TaskID
}

// NewKernel allocates the static pools; it does not create any task. Call
// Initialize next (spec.md §4.9).
func NewKernel(cfg Config, diag Diagnostics) *Kernel {
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = DefaultMaxTasks
	}
	if cfg.MaxSemaphores <= 0 {
		cfg.MaxSemaphores = DefaultMaxSemaphores
	}
	if cfg.MaxQueues <= 0 {
		cfg.MaxQueues = DefaultMaxQueues
	}
	if diag == nil {
		diag = nopDiagnostics{}
	}
	return &Kernel{
		diag:   diag,
		tcbs:   newTCBPool(cfg.MaxTasks),
		sems:   newSemPool(cfg.MaxSemaphores),
		queues: newQueuePool(cfg.MaxQueues),
	}
}

// EnterMutex acquires the kernel's scheduler-level lock (spec.md §4.1's
// enter(), hosted per §9's design note). Every exported Kernel method,
// including the counter accessors below, takes this same non-reentrant lock
// itself, so none of them may be called between EnterMutex and ExitMutex.
func (k *Kernel) EnterMutex() {
	k.mu.Lock()
}

// ExitMutex releases the lock acquired by EnterMutex.
func (k *Kernel) ExitMutex() {
	k.mu.Unlock()
}

// Ticks returns the current tick counter (spec.md §6, "observable externals").
func (k *Kernel) Ticks() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ticks
}

// ContextSwitches returns the diagnostic context-switch counter.
func (k *Kernel) ContextSwitches() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ctxSwitches
}

// IdleCount returns the idle task's loop-iteration counter, used by
// internal/hostmonitor to estimate CPU utilization (spec.md §4.9).
func (k *Kernel) IdleCount() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.idleCount
}

// Current returns the currently running task's TCB.
func (k *Kernel) Current() *TCB {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}
