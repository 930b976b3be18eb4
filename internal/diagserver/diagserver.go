// Package diagserver exposes the kernel's observable externals (spec.md
// §6: tick counter, context-switch counter, idle counter) over HTTP, so
// that a separate process — cmd/yakmonitor — can read them the way an
// external monitor would read memory-mapped counters on bare metal.
package diagserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/docker/go-units"

	"github.com/philipce/yak-kernel/internal/kernlog"
)

// Config configures the HTTP listener.
type Config struct {
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

const (
	DefaultListenAddress = "127.0.0.1:7777"
	DefaultReadTimeout   = 5 * time.Second
	DefaultWriteTimeout  = 5 * time.Second
)

func DefaultConfig() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		ReadTimeout:   DefaultReadTimeout,
		WriteTimeout:  DefaultWriteTimeout,
	}
}

// KernelCounters is the subset of *core.Kernel this package reads. Kept as
// an interface to avoid a dependency on internal/core's concrete type and
// to let tests supply a fake.
type KernelCounters interface {
	Ticks() uint64
	ContextSwitches() uint64
	IdleCount() uint64
}

// Server serves GET /diag with the kernel's observable counters as a
// small, human- and machine-readable text payload.
type Server struct {
	cfg  *Config
	k    KernelCounters
	diag kernlog.Diagnostics
	http *http.Server
}

func NewServer(cfg *Config, k KernelCounters, diag kernlog.Diagnostics) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if diag == nil {
		diag = kernlog.NewComponent("diagserver")
	}
	s := &Server{cfg: cfg, k: k, diag: diag}
	mux := http.NewServeMux()
	mux.HandleFunc("/diag", s.handleDiag)
	s.http = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	ticks := s.k.Ticks()
	ctxsw := s.k.ContextSwitches()
	idle := s.k.IdleCount()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ticks %d\nctxsw %d\nidle %d\nidle_human %s\n",
		ticks, ctxsw, idle, units.HumanSize(float64(idle)))
}

// ListenAndServe starts serving and blocks until the server stops or fails.
func (s *Server) ListenAndServe() error {
	s.diag.Warnf("diagserver: listening on %s", s.cfg.ListenAddress)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
