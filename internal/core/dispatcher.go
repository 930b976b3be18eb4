package core

// scheduleLocked implements spec.md §4.3's schedule()/dispatcher pair as a
// goroutine handoff (SPEC_FULL.md §4.3), replacing the register save/
// restore the original delegates to an assembly primitive.
//
// Precondition: k.mu held.
//
// First, exactly as spec.md states, it checks whether the ready-list head
// differs from k.current; if not, nothing happens. If it does, the
// context-switch counter increments, k.current becomes the new head, and
// a signal is sent on the incoming task's wake channel from a separate
// goroutine, so the caller never waits for it to be received. The incoming
// goroutine may not be parked yet (an ISR took the processor from it
// outside a kernel call, or it was made current again before it parked);
// it receives the signal when it next parks. Every parked wait re-checks
// k.current after waking, so a signal received late is harmless.
//
// Second, if selfPark is true the calling goroutine *is* a task (caller)
// that just asked to give up the processor — via DelayTask, SemPend,
// QPend, or a task-context NewTask/SemPost/QPost. It parks on its own wake
// channel until it is current again, which may take more than one
// iteration: caller may already have lost "current" status earlier (e.g.
// an ISR preempted it without caller itself calling anything), in which
// case the branch above is a no-op here but caller must still park.
//
// selfPark is false — and caller is ignored — when called from ExitISR or
// the kernel's first dispatch in Run(), since neither caller there is a
// task goroutine with anything to park.
func (k *Kernel) scheduleLocked(caller *TCB, selfPark bool) {
	if k.readyHead != k.current {
		incoming := k.readyHead
		k.ctxSwitches++
		k.current = incoming
		incoming.state = StateRunning
		go func(wake chan struct{}) { wake <- struct{}{} }(incoming.wake)
	}

	if !selfPark {
		return
	}
	for caller != k.current {
		k.mu.Unlock()
		<-caller.wake
		k.mu.Lock()
	}
}
