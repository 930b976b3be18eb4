// Command yakmonitor is an external monitor process: it polls a running
// yakdemo's diagserver HTTP endpoint and estimates kernel-level CPU
// utilization from the idle counter, the concrete realization of
// spec.md's design notes about "an external monitor to estimate CPU
// utilization" (SPEC_FULL.md §6).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/philipce/yak-kernel/internal/hostmonitor"
)

var (
	targetArg   = flag.String("target", "http://127.0.0.1:7777/diag", "diagserver /diag URL to poll")
	intervalArg = flag.Duration("interval", 1*time.Second, "sample interval")
)

// remoteKernel implements hostmonitor.IdleCounterSource by scraping a
// diagserver /diag response over HTTP instead of reading a *core.Kernel
// in-process, since yakmonitor runs as a separate OS process.
type remoteKernel struct {
	url    string
	client *http.Client
}

func (r *remoteKernel) IdleCount() uint64 {
	count, err := r.fetch()
	if err != nil {
		fmt.Fprintf(os.Stderr, "yakmonitor: %v\n", err)
		return 0
	}
	return count
}

func (r *remoteKernel) fetch() (uint64, error) {
	resp, err := r.client.Get(r.url)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %v", r.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET %s: status %s", r.url, resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "idle" {
			n, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing idle counter: %v", err)
			}
			return n, nil
		}
	}
	return 0, fmt.Errorf("no idle counter in response from %s", r.url)
}

func main() {
	flag.Parse()

	src := &remoteKernel{url: *targetArg, client: &http.Client{Timeout: 5 * time.Second}}
	cfg := hostmonitor.DefaultConfig()
	cfg.SampleInterval = *intervalArg

	mon, err := hostmonitor.NewMonitor(cfg, src, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yakmonitor: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("polling %s every %s\n", *targetArg, units.HumanDuration(*intervalArg))
	stop := mon.Run(func(s hostmonitor.Sample) {
		fmt.Printf("[%s] host_cpus=%d host_user=%.1f%% host_sys=%.1f%% kernel_idle=%.1f%%\n",
			s.Time.Format(time.RFC3339), s.HostCPUCount,
			s.HostCPUUserFrac*100, s.HostCPUSysFrac*100, s.KernelIdleFrac*100)
	})
	defer stop()

	select {}
}
