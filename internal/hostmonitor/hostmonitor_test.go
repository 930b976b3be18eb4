package hostmonitor

import "testing"

type fakeSource struct{ count uint64 }

func (f *fakeSource) IdleCount() uint64 { return f.count }

func TestSampleFirstCallReportsZeroFractions(t *testing.T) {
	src := &fakeSource{}
	m, err := NewMonitor(nil, src, nil)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	s, err := m.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if s.KernelIdleFrac != 0 || s.KernelBusyFrac != 0 {
		t.Fatalf("first sample should report zero fractions, got idle=%v busy=%v", s.KernelIdleFrac, s.KernelBusyFrac)
	}
	if s.HostCPUCount <= 0 {
		t.Fatalf("HostCPUCount = %d, want > 0", s.HostCPUCount)
	}
}

func TestSampleSecondCallUsesIdleDelta(t *testing.T) {
	src := &fakeSource{}
	m, err := NewMonitor(&Config{SampleInterval: DefaultSampleInterval, IdleIterationsPerSec: 1000}, src, nil)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	if _, err := m.Sample(); err != nil {
		t.Fatalf("Sample (first): %v", err)
	}

	src.count += 500
	m.lastAt = m.lastAt.Add(-1e9) // pretend 1s elapsed without sleeping in the test
	s, err := m.Sample()
	if err != nil {
		t.Fatalf("Sample (second): %v", err)
	}
	if s.KernelIdleFrac <= 0 {
		t.Fatalf("KernelIdleFrac = %v, want > 0 after idle-counter advanced", s.KernelIdleFrac)
	}
}
