package core

import (
	"testing"
	"time"
)

// waitUntil polls cond (which must take k.mu itself, or not need it) until
// it returns true or the deadline passes, failing the test otherwise. This
// stands in for the "single-step simulator" spec.md §8 describes: since
// task goroutines make progress concurrently with the test driver in this
// hosted port, tests synchronize on observable kernel state rather than on
// wall-clock timing.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func newRunningKernel(t *testing.T) *Kernel {
	t.Helper()
	k := NewKernel(Config{}, nil)
	if err := k.Initialize(256); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return k
}

// TestSemaphoreHandoff is spec.md §8 scenario 2: a task blocks on a
// zero-valued semaphore; an ISR posts it; on ISR exit the task is readied
// and, being the only non-idle ready task, runs. The semaphore's value
// ends at 0.
func TestSemaphoreHandoff(t *testing.T) {
	k := newRunningKernel(t)
	s, err := k.SemCreate(0)
	if err != nil {
		t.Fatal(err)
	}

	woke := make(chan struct{})
	_, err = k.NewTask(func(k *Kernel, self *TCB) {
		k.SemPend(s, self)
		close(woke)
		select {} // park so the goroutine does not exit
	}, 50, nil)
	if err != nil {
		t.Fatal(err)
	}

	go k.Run()

	waitUntil(t, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		return s.PendingCount() == 1
	})

	k.EnterISR()
	k.SemPost(s, nil)
	k.ExitISR()

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("task L was never readied after SemPost")
	}

	if got := s.Value(); got != 0 {
		t.Fatalf("s.Value() = %d, want 0", got)
	}
}

// TestCountingSemaphore is spec.md §8 scenario 3: three ISR posts with no
// pender accumulate to 3; three subsequent task pends each return
// immediately and drain it back to 0.
func TestCountingSemaphore(t *testing.T) {
	k := newRunningKernel(t)
	s, err := k.SemCreate(0)
	if err != nil {
		t.Fatal(err)
	}

	k.EnterISR()
	k.SemPost(s, nil)
	k.SemPost(s, nil)
	k.SemPost(s, nil)
	k.ExitISR()

	if got := s.Value(); got != 3 {
		t.Fatalf("after 3 posts, s.Value() = %d, want 3", got)
	}

	pendsDone := make(chan struct{})
	_, err = k.NewTask(func(k *Kernel, self *TCB) {
		k.SemPend(s, self)
		k.SemPend(s, self)
		k.SemPend(s, self)
		close(pendsDone)
		select {}
	}, 50, nil)
	if err != nil {
		t.Fatal(err)
	}

	go k.Run()

	select {
	case <-pendsDone:
	case <-time.After(2 * time.Second):
		t.Fatal("three pends against a positive semaphore should never block")
	}

	if got := s.Value(); got != 0 {
		t.Fatalf("s.Value() = %d, want 0", got)
	}
}

// TestQueueOrder is spec.md §8 scenario 4: three ISR posts with no pender,
// then a task pends three times and receives them in FIFO order.
func TestQueueOrder(t *testing.T) {
	k := newRunningKernel(t)
	q, err := k.QCreate(make([]any, 4))
	if err != nil {
		t.Fatal(err)
	}

	k.EnterISR()
	if ok := k.QPost(q, "m1", nil); !ok {
		t.Fatal("QPost(m1) failed")
	}
	if ok := k.QPost(q, "m2", nil); !ok {
		t.Fatal("QPost(m2) failed")
	}
	if ok := k.QPost(q, "m3", nil); !ok {
		t.Fatal("QPost(m3) failed")
	}
	k.ExitISR()

	results := make(chan []any, 1)
	_, err = k.NewTask(func(k *Kernel, self *TCB) {
		var got []any
		got = append(got, k.QPend(q, self))
		got = append(got, k.QPend(q, self))
		got = append(got, k.QPend(q, self))
		results <- got
		select {}
	}, 50, nil)
	if err != nil {
		t.Fatal(err)
	}

	go k.Run()

	select {
	case got := <-results:
		want := []any{"m1", "m2", "m3"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("message %d: got %v, want %v", i, got[i], want[i])
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queue pends never completed")
	}

	if got := q.Occupancy(); got != 0 {
		t.Fatalf("q.Occupancy() = %d, want 0", got)
	}
}

// TestQueueFull is spec.md §8 scenario 5: a capacity-2 queue rejects a
// third post without blocking, leaving occupancy unchanged.
func TestQueueFull(t *testing.T) {
	k := newRunningKernel(t)
	q, err := k.QCreate(make([]any, 2))
	if err != nil {
		t.Fatal(err)
	}

	if !k.QPost(q, 1, nil) {
		t.Fatal("first post should succeed")
	}
	if !k.QPost(q, 2, nil) {
		t.Fatal("second post should succeed")
	}
	if k.QPost(q, 3, nil) {
		t.Fatal("third post on a full queue should fail")
	}
	if got := q.Occupancy(); got != 2 {
		t.Fatalf("q.Occupancy() = %d, want 2", got)
	}
}

// TestDelayTaskOrdering is spec.md §8 scenario 6, driven end-to-end with a
// software clock: three tasks, created highest-priority first, delay
// 10/7/15 ticks respectively; they become ready again on ticks 7, 10, 15
// in that order. Each woken task records its wake tick and then blocks on a
// never-posted semaphore, so it leaves the ready list and the lower-priority
// tasks can still be dispatched when their own delays expire.
func TestDelayTaskOrdering(t *testing.T) {
	k := newRunningKernel(t)
	park, err := k.SemCreate(0)
	if err != nil {
		t.Fatal(err)
	}

	type wake struct {
		id   TaskID
		tick uint64
	}
	wakes := make(chan wake, 3)

	mk := func(prio Priority, n int) {
		var id TaskID
		_, err := k.NewTask(func(k *Kernel, self *TCB) {
			id = self.ID()
			k.DelayTask(n, self)
			wakes <- wake{id: id, tick: k.Ticks()}
			k.SemPend(park, self)
		}, prio, nil)
		if err != nil {
			t.Fatal(err)
		}
	}
	mk(5, 10)
	mk(6, 7)
	mk(7, 15)

	go k.Run()

	// Let every task reach its delay before ticking begins.
	waitUntil(t, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		n := 0
		for c := k.delayedHead; c != nil; c = c.next {
			n++
		}
		return n == 3
	})

	tick := func() {
		k.EnterISR()
		k.Tick()
		k.ExitISR()
	}

	var got []wake
	for i := 0; i < 15; i++ {
		tick()
		// A task woken by this tick records k.Ticks() before the next tick.
		waitUntil(t, func() bool { return k.Current() == k.idle })
		select {
		case w := <-wakes:
			got = append(got, w)
		default:
		}
	}
	for len(got) < 3 {
		select {
		case w := <-wakes:
			got = append(got, w)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 3 delayed tasks woke", len(got))
		}
	}

	wantTicks := []uint64{7, 10, 15}
	for i, w := range got {
		if w.tick != wantTicks[i] {
			t.Errorf("wake %d happened at tick %d, want %d", i, w.tick, wantTicks[i])
		}
	}
}

// TestDelayTaskRejectsNonPositive covers spec.md §4.7's precondition.
func TestDelayTaskRejectsNonPositive(t *testing.T) {
	k := newRunningKernel(t)
	called := make(chan struct{})
	_, err := k.NewTask(func(k *Kernel, self *TCB) {
		k.DelayTask(0, self)
		close(called)
		k.DelayTask(1, self)
		select {}
	}, 20, nil)
	if err != nil {
		t.Fatal(err)
	}
	go k.Run()

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("DelayTask(0, ...) must report and return, not block")
	}
}

// TestExitISRPreemptsImmediately exercises invariant 7 from spec.md §8:
// after ExitISR brings nesting to zero, the running task has the smallest
// priority number among ready tasks.
func TestExitISRPreemptsImmediately(t *testing.T) {
	k := newRunningKernel(t)
	s, err := k.SemCreate(0)
	if err != nil {
		t.Fatal(err)
	}

	ran := make(chan TaskID, 1)
	tcb, err := k.NewTask(func(k *Kernel, self *TCB) {
		k.SemPend(s, self)
		ran <- self.ID()
		select {}
	}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	go k.Run()
	waitUntil(t, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		return s.PendingCount() == 1
	})

	k.EnterISR()
	k.SemPost(s, nil)
	k.ExitISR()

	select {
	case id := <-ran:
		if id != tcb.ID() {
			t.Fatalf("wrong task ran: got %d, want %d", id, tcb.ID())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("high-priority task never ran after ExitISR")
	}

	if cur := k.Current(); cur == nil || cur.id != tcb.ID() {
		t.Fatalf("after ExitISR, current task should be the newly-readied highest-priority task")
	}
}
