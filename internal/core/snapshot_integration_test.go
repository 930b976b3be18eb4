package core_test

import (
	"testing"
	"time"

	"github.com/philipce/yak-kernel/internal/core"
	"github.com/philipce/yak-kernel/internal/snapshot"
)

// waitPending spins until s reports exactly one waiter, bounding the wait
// so a broken handoff fails the test instead of hanging it.
func waitPending(t *testing.T, s *core.Semaphore) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.PendingCount() == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("task never reached pending state")
}

// TestSnapshotDiffAcrossSemPost exercises the single-step-simulator
// pattern spec.md §8 describes: snapshot, perform one kernel primitive,
// snapshot again, diff. The primitive (an ISR SemPost that readies a
// blocked task and, on ExitISR, dispatches it) moves the kernel from
// "idle running" to "the woken task running", a change both durable and
// unambiguous, unlike diffing around a primitive with no visible effect.
func TestSnapshotDiffAcrossSemPost(t *testing.T) {
	k := core.NewKernel(core.Config{}, nil)
	if err := k.Initialize(256); err != nil {
		t.Fatal(err)
	}
	s, err := k.SemCreate(0)
	if err != nil {
		t.Fatal(err)
	}
	tcb, err := k.NewTask(func(k *core.Kernel, self *core.TCB) {
		k.SemPend(s, self)
		select {}
	}, 50, nil)
	if err != nil {
		t.Fatal(err)
	}

	go k.Run()
	waitPending(t, s)

	before := snapshot.Take(k)
	k.EnterISR()
	k.SemPost(s, nil)
	k.ExitISR()
	after := snapshot.Take(k)

	if snapshot.Equal(before, after) {
		t.Fatal("expected SemPost + ExitISR to change observable kernel state")
	}
	if after.CurrentID != tcb.ID() {
		t.Fatalf("after.CurrentID = %d, want %d", after.CurrentID, tcb.ID())
	}
	if diff := snapshot.Diff(before, after); diff == "" {
		t.Fatal("expected a non-empty diff")
	}
}
