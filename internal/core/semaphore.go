package core

// Semaphore is a counting semaphore with a priority-ordered pending list
// (spec.md §3/§4.5). A negative value means -value tasks are blocked
// waiting; posts without a matching pend accumulate a positive count.
type Semaphore struct {
	value   int
	pending pendList
}

// Value returns the semaphore's current signed value.
func (s *Semaphore) Value() int { return s.value }

// PendingCount returns the number of tasks currently blocked on s.
func (s *Semaphore) PendingCount() int {
	n := 0
	for t := s.pending.head; t != nil; t = t.next {
		n++
	}
	return n
}

// SemCreate allocates a semaphore with the given initial value (spec.md
// §4.5's create). initial must be ≥ 0; this is a precondition, not enforced
// defensively by clamping, matching spec.md §7's precondition-violation
// policy.
func (k *Kernel) SemCreate(initial int) (*Semaphore, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if initial < 0 {
		k.diag.Errorf("SemCreate: initial value %d must be >= 0", initial)
	}
	s, err := k.sems.allocate()
	if err != nil {
		k.diag.Errorf("SemCreate: %v", err)
		return nil, err
	}
	s.value = initial
	s.pending = pendList{}
	return s, nil
}

// SemPend implements spec.md §4.5's pend(s): task context only. self is the
// calling task's own TCB.
func (k *Kernel) SemPend(s *Semaphore, self *TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if self == nil {
		k.diag.Errorf("SemPend: nil calling task")
		return
	}
	if self.id == IdleTaskID {
		k.diag.Errorf("SemPend: idle task must never pend")
		return
	}

	old := s.value
	s.value--
	if old <= 0 {
		self.state = StatePendingSem
		k.readyRemove(self)
		s.pending.insert(self, k.diag)
		k.scheduleLocked(self, true)
	}
}

// SemPost implements spec.md §4.5's post(s). self is the calling task's own
// TCB when called from task context; pass nil when called from an ISR
// (k.nestLevel will be non-zero there, so self is never dereferenced).
func (k *Kernel) SemPost(s *Semaphore, self *TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()

	old := s.value
	s.value++
	if old < 0 {
		waiter := s.pending.pop()
		if waiter == nil {
			k.diag.Errorf("SemPost: negative value %d but pending list empty", old)
			return
		}
		k.readyInsert(waiter)
		if k.nestLevel == 0 {
			k.scheduleLocked(self, true)
		}
	}
}
