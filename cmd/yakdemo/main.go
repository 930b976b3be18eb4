// Command yakdemo is a sample application linked against the kernel, the
// hosted equivalent of spec.md §1's "sample application tasks, tick/
// keyboard/reset interrupt handlers, and the message-producer demo" — all
// explicitly out of the kernel's own scope, included here only because a
// complete repository needs a runnable entry point (SPEC_FULL.md §1).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bgp59/logrusx"

	"github.com/philipce/yak-kernel/internal/config"
	"github.com/philipce/yak-kernel/internal/core"
	"github.com/philipce/yak-kernel/internal/diagserver"
	"github.com/philipce/yak-kernel/internal/hostmonitor"
	"github.com/philipce/yak-kernel/internal/kernlog"
)

const (
	ConfigFlagName    = "config"
	DefaultConfigFile = "yakdemo-config.yaml"
)

var (
	configFileArg = flag.String(ConfigFlagName, DefaultConfigFile, "config file to load")
	tickPeriodArg = flag.Duration("tick-period", 10*time.Millisecond, "simulated timer-interrupt period")
)

// demoConfig is cmd/yakdemo's own YAML section, loaded alongside
// internal/config.Config's "yak_config" section.
type demoConfig struct {
	DelayTicksA int `yaml:"delay_ticks_a"`
	DelayTicksB int `yaml:"delay_ticks_b"`
	PostPeriod  int `yaml:"sem_post_every_n_ticks"`
}

const demoConfigSectionName = "demo_config"

func defaultDemoConfig() *demoConfig {
	return &demoConfig{DelayTicksA: 3, DelayTicksB: 5, PostPeriod: 20}
}

var log = kernlog.NewComponent("yakdemo")

// init registers logrusx's own flags (log level/format/output overrides) on
// the standard flag.CommandLine, mirroring the teacher's runner.go.
func init() {
	logrusx.EnableLoggerArgs()
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	dCfg := defaultDemoConfig()
	cfg, err := loadConfig(*configFileArg, dCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}
	logrusx.ApplySetLoggerArgs(cfg.LoggerConfig)
	if err := kernlog.Set(cfg.LoggerConfig); err != nil {
		fmt.Fprintf(os.Stderr, "error setting logger: %v\n", err)
		return 1
	}

	k := core.NewKernel(cfg.KernelConfig.CoreConfig(), kernlog.NewComponent("core"))
	if err := k.Initialize(cfg.KernelConfig.IdleStackSize); err != nil {
		log.Fatalf("Initialize: %v", err)
		return 1
	}

	sem, err := k.SemCreate(0)
	if err != nil {
		log.Fatalf("SemCreate: %v", err)
		return 1
	}
	queueBuf := make([]any, 4)
	queue, err := k.QCreate(queueBuf)
	if err != nil {
		log.Fatalf("QCreate: %v", err)
		return 1
	}
	// tickQueue is the hosted stand-in for original_source/yak-rtos's
	// MsgQPtr: owned by the tick handler alone, distinct from the demo
	// producer/consumer pair's queue above so the two don't mix message
	// shapes on one buffer.
	tickQueueBuf := make([]any, 4)
	tickQueue, err := k.QCreate(tickQueueBuf)
	if err != nil {
		log.Fatalf("QCreate(tick): %v", err)
		return 1
	}

	// Task A: the highest-priority periodic task, delays and logs.
	if _, err := k.NewTask(taskDelayLoop("A", dCfg.DelayTicksA), 5, nil); err != nil {
		log.Fatalf("NewTask(A): %v", err)
		return 1
	}
	// Task B: a lower-priority periodic task, preempted by A.
	if _, err := k.NewTask(taskDelayLoop("B", dCfg.DelayTicksB), 10, nil); err != nil {
		log.Fatalf("NewTask(B): %v", err)
		return 1
	}
	// Task L: blocks on the semaphore the ticker posts periodically,
	// the hosted equivalent of spec.md §8 scenario 2.
	if _, err := k.NewTask(taskSemWaiter(sem), 50, nil); err != nil {
		log.Fatalf("NewTask(L): %v", err)
		return 1
	}
	// Producer/consumer pair exercising the message queue.
	if _, err := k.NewTask(taskQueueProducer(queue), 40, nil); err != nil {
		log.Fatalf("NewTask(producer): %v", err)
		return 1
	}
	if _, err := k.NewTask(taskQueueConsumer(queue), 45, nil); err != nil {
		log.Fatalf("NewTask(consumer): %v", err)
		return 1
	}
	// Drains tickQueue so the tick handler's QPost calls never find it
	// permanently full.
	if _, err := k.NewTask(taskTickQueueConsumer(tickQueue), 60, nil); err != nil {
		log.Fatalf("NewTask(tick consumer): %v", err)
		return 1
	}

	monitor, err := hostmonitor.NewMonitor(cfg.HostMonitorConfig, k, kernlog.NewComponent("hostmonitor"))
	if err != nil {
		log.Warnf("hostmonitor disabled: %v", err)
	}
	var stopMonitor func()
	if monitor != nil {
		stopMonitor = monitor.Run(func(s hostmonitor.Sample) {
			log.Warnf("utilization: kernel_busy=%.2f%% host_user=%.2f%% host_sys=%.2f%%",
				s.KernelBusyFrac*100, s.HostCPUUserFrac*100, s.HostCPUSysFrac*100)
		})
		defer stopMonitor()
	}

	diagSrv := diagserver.NewServer(cfg.DiagServerConfig, k, kernlog.NewComponent("diagserver"))
	go func() {
		if err := diagSrv.ListenAndServe(); err != nil {
			log.Warnf("diagserver stopped: %v", err)
		}
	}()

	stopTick := startTicker(k, *tickPeriodArg, tickQueue, dCfg.PostPeriod, sem)
	defer stopTick()

	go k.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Warnf("%s received, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := diagSrv.Shutdown(ctx); err != nil {
		log.Errorf("diagserver shutdown: %v", err)
	}
	return 0
}

func loadConfig(path string, dCfg *demoConfig) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path, nil, demoConfigSectionName, dCfg)
}

// taskDelayLoop is the hosted stand-in for a periodic sample task: log,
// delay, repeat. Every iteration yields via DelayTask, so it never needs
// idle's special check-in treatment (SPEC_FULL.md §4.3).
func taskDelayLoop(name string, n int) core.TaskFunc {
	return func(k *core.Kernel, self *core.TCB) {
		for {
			log.Warnf("task %s running at tick %d", name, k.Ticks())
			k.DelayTask(n, self)
		}
	}
}

// taskSemWaiter is the hosted stand-in for spec.md §8 scenario 2's task L.
func taskSemWaiter(s *core.Semaphore) core.TaskFunc {
	return func(k *core.Kernel, self *core.TCB) {
		for {
			k.SemPend(s, self)
			log.Warnf("task L woke from semaphore at tick %d", k.Ticks())
		}
	}
}

func taskQueueProducer(q *core.Queue) core.TaskFunc {
	return func(k *core.Kernel, self *core.TCB) {
		n := 0
		for {
			n++
			if !k.QPost(q, n, self) {
				log.Errorf("producer: queue full, dropping message %d", n)
			}
			k.DelayTask(2, self)
		}
	}
}

func taskQueueConsumer(q *core.Queue) core.TaskFunc {
	return func(k *core.Kernel, self *core.TCB) {
		for {
			msg := k.QPend(q, self)
			log.Warnf("consumer received %v at tick %d", msg, k.Ticks())
		}
	}
}

// taskTickQueueConsumer drains the tick handler's own queue, logging
// each tickMessage the way original_source/yak-rtos's demo application
// would have consumed MsgQPtr's messages.
func taskTickQueueConsumer(q *core.Queue) core.TaskFunc {
	return func(k *core.Kernel, self *core.TCB) {
		for {
			msg := k.QPend(q, self)
			if m, ok := msg.(tickMessage); ok {
				log.Warnf("tick message received: tick=%d data=%d", m.tick, m.data)
			}
		}
	}
}

// tickMessage is the hosted stand-in for original_source/yak-rtos's
// MsgArray entry: a sequence number plus a pseudo-random payload byte,
// built fresh every tick by the tick handler and posted to tickQueue.
type tickMessage struct {
	tick uint64
	data int
}

// startTicker simulates the timer ISR (spec.md §4.4): calling Tick() once
// per period, then step 4 (an application concern internal/core.Tick does
// not implement) — building a tickMessage and posting it to q, logging a
// queue-overflow error if QPost reports the queue full, exactly as
// original_source/yak-rtos/handlers.c's YKTickHandler does — and, every
// postPeriod ticks, posting sem the way an application's tick handler
// might.
func startTicker(k *core.Kernel, period time.Duration, q *core.Queue, postPeriod int, sem *core.Semaphore) (stop func()) {
	ticker := time.NewTicker(period)
	done := make(chan struct{})
	go func() {
		var n int
		var pseudoRand int
		for {
			select {
			case <-ticker.C:
				k.EnterISR()
				k.Tick()
				pseudoRand = (pseudoRand + 89) % 100
				if !k.QPost(q, tickMessage{tick: k.Ticks(), data: pseudoRand}, nil) {
					log.Errorf("tick handler: queue overflow")
				}
				n++
				if postPeriod > 0 && n%postPeriod == 0 {
					k.SemPost(sem, nil)
				}
				k.ExitISR()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
