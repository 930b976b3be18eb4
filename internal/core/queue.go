package core

// Queue is a fixed-capacity circular buffer of opaque messages with a
// priority-ordered pending list (spec.md §3/§4.6). Messages are typed
// `any`, Go's idiomatic stand-in for the original's opaque message pointer.
type Queue struct {
	buffer    []any
	capacity  int
	occupancy int
	head      int // next slot to read
	tail      int // next slot to write
	pending   pendList
}

// Occupancy returns the number of messages currently queued.
func (q *Queue) Occupancy() int { return q.occupancy }

// Capacity returns the queue's fixed capacity.
func (q *Queue) Capacity() int { return q.capacity }

// QCreate implements spec.md §4.6's create(buffer, capacity). buffer is the
// caller-provided backing store (spec.md §5: "queue message buffers are
// caller-owned"); its length is the queue's capacity.
func (k *Kernel) QCreate(buffer []any) (*Queue, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(buffer) == 0 {
		k.diag.Errorf("QCreate: buffer must have non-zero capacity")
	}
	q, err := k.queues.allocate()
	if err != nil {
		k.diag.Errorf("QCreate: %v", err)
		return nil, err
	}
	q.buffer = buffer
	q.capacity = len(buffer)
	q.occupancy, q.head, q.tail = 0, 0, 0
	q.pending = pendList{}
	return q, nil
}

// QPost implements spec.md §4.6's post(q, msg): any context. self is the
// calling task's own TCB in task context, or nil from an ISR (k.nestLevel
// will be non-zero there, so self is never dereferenced in that case).
// Returns true on success, false if the queue was full (spec.md §7: "not
// an error, a reportable business outcome").
func (k *Kernel) QPost(q *Queue, msg any, self *TCB) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if q.occupancy == q.capacity {
		return false
	}
	q.buffer[q.tail] = msg
	q.tail = (q.tail + 1) % q.capacity
	q.occupancy++

	if !q.pending.empty() {
		waiter := q.pending.pop()
		k.readyInsert(waiter)
		if k.nestLevel == 0 {
			k.scheduleLocked(self, true)
		}
	}
	return true
}

// QPend implements spec.md §4.6's pend(q): task context only. self is the
// calling task's own TCB. The returned message is re-read from the buffer
// after waking, not handed off directly by the poster (spec.md's explicit
// note on this observable contract).
func (k *Kernel) QPend(q *Queue, self *TCB) any {
	k.mu.Lock()
	defer k.mu.Unlock()

	if self == nil {
		k.diag.Errorf("QPend: nil calling task")
		return nil
	}
	if self.id == IdleTaskID {
		k.diag.Errorf("QPend: idle task must never pend")
		return nil
	}

	if q.occupancy == 0 {
		self.state = StatePendingQueue
		k.readyRemove(self)
		q.pending.insert(self, k.diag)
		k.scheduleLocked(self, true)
		if q.occupancy == 0 {
			k.diag.Errorf("QPend: woke with occupancy still 0")
		}
	}

	msg := q.buffer[q.head]
	q.head = (q.head + 1) % q.capacity
	q.occupancy--
	return msg
}
