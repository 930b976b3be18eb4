// Package hostmonitor estimates kernel-level CPU utilization from the
// host's point of view: the fraction of wall-clock time NOT spent inside
// the kernel's idle task. It is the concrete home for the "external
// monitor to estimate CPU utilization" spec.md's design notes mention but
// never specify a transport or algorithm for (SPEC_FULL.md §6).
package hostmonitor

import (
	"fmt"
	"time"

	"github.com/mackerelio/go-osstat/cpu"
	"github.com/tklauser/numcpus"

	"github.com/philipce/yak-kernel/internal/kernlog"
)

// Config tunes the sampling interval and the assumed per-idle-iteration
// instruction cost used to translate idle-counter deltas into a duration
// (spec.md §4.9: "idle_task ... a known instruction count per iteration,
// used by an external monitor to estimate CPU utilization").
type Config struct {
	SampleInterval       time.Duration `yaml:"sample_interval"`
	IdleIterationsPerSec uint64        `yaml:"idle_iterations_per_sec"`
}

const (
	DefaultSampleInterval       = 1 * time.Second
	DefaultIdleIterationsPerSec = 1_000_000
)

func DefaultConfig() *Config {
	return &Config{
		SampleInterval:       DefaultSampleInterval,
		IdleIterationsPerSec: DefaultIdleIterationsPerSec,
	}
}

// IdleCounterSource is the subset of *core.Kernel the monitor samples; kept
// as an interface so tests and cmd/yakmonitor (which only has HTTP access
// to a remote kernel) can both satisfy it.
type IdleCounterSource interface {
	IdleCount() uint64
}

// Sample is one utilization estimate.
type Sample struct {
	Time            time.Time
	HostCPUCount    int
	HostCPUUserFrac float64
	HostCPUSysFrac  float64
	KernelIdleFrac  float64
	KernelBusyFrac  float64
}

// Monitor periodically samples host CPU accounting (go-osstat/go-sysconf
// indirectly, numcpus) alongside a kernel's idle counter to estimate how
// busy the simulated kernel is, the way an external monitor would on the
// original bare-metal target.
type Monitor struct {
	cfg    *Config
	src    IdleCounterSource
	diag   kernlog.Diagnostics
	ncpu   int
	lastAt time.Time
	lastHC *cpu.Stats
	lastIC uint64
}

func NewMonitor(cfg *Config, src IdleCounterSource, diag kernlog.Diagnostics) (*Monitor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	n, err := numcpus.GetOnline()
	if err != nil {
		return nil, fmt.Errorf("hostmonitor: numcpus.GetOnline(): %v", err)
	}
	if diag == nil {
		diag = kernlog.NewComponent("hostmonitor")
	}
	return &Monitor{cfg: cfg, src: src, diag: diag, ncpu: n}, nil
}

// Sample takes one measurement. The first call after construction returns
// zero-valued fractions since there is no prior sample to diff against.
func (m *Monitor) Sample() (Sample, error) {
	now := time.Now()
	hc, err := cpu.Get()
	if err != nil {
		return Sample{}, fmt.Errorf("hostmonitor: cpu.Get(): %v", err)
	}
	ic := m.src.IdleCount()

	s := Sample{Time: now, HostCPUCount: m.ncpu}
	if m.lastHC != nil && now.After(m.lastAt) {
		total := float64(hc.Total - m.lastHC.Total)
		if total > 0 {
			s.HostCPUUserFrac = float64(hc.User-m.lastHC.User) / total
			s.HostCPUSysFrac = float64(hc.System-m.lastHC.System) / total
		}
		elapsed := now.Sub(m.lastAt).Seconds()
		idleIters := ic - m.lastIC
		idleSeconds := float64(idleIters) / float64(m.cfg.IdleIterationsPerSec)
		if elapsed > 0 {
			s.KernelIdleFrac = idleSeconds / elapsed
			if s.KernelIdleFrac > 1 {
				s.KernelIdleFrac = 1
			}
			s.KernelBusyFrac = 1 - s.KernelIdleFrac
		}
	}

	m.lastAt, m.lastHC, m.lastIC = now, hc, ic
	return s, nil
}

// Run samples every cfg.SampleInterval and invokes fn with each sample
// until ctx-less cancellation via the returned stop function is called.
func (m *Monitor) Run(fn func(Sample)) (stop func()) {
	ticker := time.NewTicker(m.cfg.SampleInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s, err := m.Sample()
				if err != nil {
					m.diag.Warnf("hostmonitor: sample failed: %v", err)
					continue
				}
				fn(s)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
