package core

// Initialize implements spec.md §4.9's initialize(): must be called
// exactly once before Run(). Creates the idle task (lowest priority,
// diagnostic-only stack size) and a real placeholder TCB for the "dummy"
// outgoing context (spec.md §9's first open issue, resolved per
// SPEC_FULL.md §4.9: an actual TCB with id -1, the idle priority and state
// RUNNING, not an uninitialized one, with a nil wake channel it will never
// be parked on, so the first call to
// scheduleLocked always has a well-defined outgoing context to compare
// against).
func (k *Kernel) Initialize(idleStackSize int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.idle != nil {
		k.diag.Errorf("Initialize: already initialized")
		return errAlreadyInitialized
	}

	k.dummy = &TCB{id: -1, priority: PriorityLowest, state: StateRunning}
	k.current = k.dummy

	idle, err := k.tcbs.allocate()
	if err != nil {
		k.diag.Errorf("Initialize: %v", err)
		return err
	}
	idle.id = IdleTaskID
	idle.priority = PriorityLowest
	idle.stackSize = idleStackSize
	idle.wake = make(chan struct{})
	idle.entry = idleTaskLoop
	k.idle = idle
	k.nextID = IdleTaskID + 1

	go func() {
		<-idle.wake
		idle.entry(k, idle)
	}()

	k.readyInsert(idle)
	return nil
}

// idleTaskLoop implements spec.md §4.9's idle_task(): an infinite loop
// incrementing the idle counter, with a known amount of work per
// iteration (used by internal/hostmonitor to estimate CPU utilization).
// Unlike every other task, idle never calls a blocking primitive, so it
// must cooperate directly with the kernel to remain preemptible
// (SPEC_FULL.md §4.3's "check-in").
func idleTaskLoop(k *Kernel, self *TCB) {
	for {
		k.checkInIdle(self)
	}
}

// checkInIdle is idle's per-iteration handshake with the scheduler: bump
// the idle counter, then park if idle is no longer the current task. This
// is the hosted equivalent of the original's YKNoOp() executed once per
// loop iteration, and the only place in this port where a task cooperates
// to make preemption observable — every other task already yields every
// iteration through a kernel blocking call.
func (k *Kernel) checkInIdle(self *TCB) {
	k.mu.Lock()
	k.idleCount++
	for self != k.current {
		k.mu.Unlock()
		<-self.wake
		k.mu.Lock()
	}
	k.mu.Unlock()
}

// NewTask implements spec.md §4.9/§6's new_task(entry, stack_top,
// priority): reentrant, callable at any time. self is the calling task's
// own TCB when invoked from task context (triggering immediate
// preemption if the new task outranks it, spec.md §3's "the scheduler is
// invoked and preemption may occur immediately"), or nil when invoked
// before Run() or from non-task code.
func (k *Kernel) NewTask(entry TaskFunc, priority Priority, self *TCB) (*TCB, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if entry == nil {
		k.diag.Errorf("NewTask: nil entry function")
		return nil, errNilEntry
	}
	if priority >= PriorityLowest {
		k.diag.Errorf("NewTask: priority %d must be below the idle priority %d", priority, PriorityLowest)
	}
	for t := k.readyHead; t != nil; t = t.next {
		if t.priority == priority {
			k.diag.Errorf("NewTask: duplicate priority %d (existing task %d)", priority, t.id)
		}
	}

	t, err := k.tcbs.allocate()
	if err != nil {
		k.diag.Errorf("NewTask: %v", err)
		return nil, err
	}
	t.id = k.nextID
	k.nextID++
	t.priority = priority
	t.entry = entry
	t.wake = make(chan struct{})
	t.state = StateNew

	go func() {
		<-t.wake
		entry(k, t)
	}()

	k.readyInsert(t)
	if k.started {
		k.scheduleLocked(self, self != nil)
	}
	return t, nil
}

// DelayTask implements spec.md §4.7's delay(n): task context only, n > 0.
func (k *Kernel) DelayTask(n int, self *TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if self == nil {
		k.diag.Errorf("DelayTask: nil calling task")
		return
	}
	if self.id == IdleTaskID {
		k.diag.Errorf("DelayTask: idle task must never delay")
		return
	}
	if n <= 0 {
		k.diag.Errorf("DelayTask: n=%d must be > 0", n)
		return
	}

	k.readyRemove(self)
	self.delayCount = n
	k.delayedInsert(self)
	k.scheduleLocked(self, true)
}

// Run implements spec.md §4.9's run(): sets the started flag and performs
// the kernel's first dispatch. Once it has dispatched it never returns —
// select{} makes that literal, so the "Run() returning is fatal" path of
// spec.md §7 is unreachable by construction in this port rather than
// detected at runtime. Called before Initialize (reported via Fatalf) or a
// second time (reported via Errorf), it returns without dispatching.
func (k *Kernel) Run() {
	k.mu.Lock()
	if k.idle == nil {
		k.diag.Fatalf("Run: Initialize was never called")
		k.mu.Unlock()
		return
	}
	if k.started {
		k.diag.Errorf("Run: already started")
		k.mu.Unlock()
		return
	}
	k.started = true
	k.scheduleLocked(nil, false)
	k.mu.Unlock()

	select {}
}
