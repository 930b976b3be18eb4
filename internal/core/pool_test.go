package core

import "testing"

func TestTCBPoolAllocateExhaustion(t *testing.T) {
	p := newTCBPool(2)
	if _, err := p.allocate(); err != nil {
		t.Fatalf("unexpected error on first allocate: %v", err)
	}
	if _, err := p.allocate(); err != nil {
		t.Fatalf("unexpected error on second allocate: %v", err)
	}
	if _, err := p.allocate(); err == nil {
		t.Fatalf("expected pool exhaustion error")
	}
}

func TestSemPoolAllocateReturnsStableAddresses(t *testing.T) {
	p := newSemPool(3)
	s1, err := p.allocate()
	if err != nil {
		t.Fatal(err)
	}
	s1.value = 7
	s2, err := p.allocate()
	if err != nil {
		t.Fatal(err)
	}
	if s1 == s2 {
		t.Fatalf("expected distinct semaphores")
	}
	if s1.value != 7 {
		t.Fatalf("allocating a second semaphore must not disturb the first")
	}
}

func TestQueuePoolAllocateExhaustion(t *testing.T) {
	p := newQueuePool(1)
	if _, err := p.allocate(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.allocate(); err == nil {
		t.Fatalf("expected pool exhaustion error")
	}
}
