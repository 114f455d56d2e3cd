// Package memdiag logs heap usage during long ingests.
//
// Set RANGEAGG_MEM_DEBUG=1 to log memory stats periodically and on phase
// changes. Set RANGEAGG_MEM_PPROF to serve net/http/pprof: "1" listens on
// :6060, any other value is used as the listen address.
package memdiag

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	// Registers pprof handlers on DefaultServeMux for the pprof HTTP server.
	_ "net/http/pprof"

	"github.com/eunmann/rangeagg/pkg/humanfmt"
	"github.com/eunmann/rangeagg/pkg/logging"
	"github.com/eunmann/rangeagg/pkg/membudget"
)

const (
	EnvDebug = "RANGEAGG_MEM_DEBUG"
	EnvPprof = "RANGEAGG_MEM_PPROF"

	defaultPprofAddr = ":6060"
)

// Config holds configuration for memory diagnostics.
type Config struct {
	Enabled bool
	// PprofAddr, if set, is where the pprof server listens.
	PprofAddr   string
	LogInterval time.Duration
}

// DefaultConfig reads the configuration from the environment.
func DefaultConfig() Config {
	cfg := Config{
		Enabled:     os.Getenv(EnvDebug) == "1",
		LogInterval: 5 * time.Second,
	}
	switch addr := os.Getenv(EnvPprof); addr {
	case "":
	case "1":
		cfg.PprofAddr = defaultPprofAddr
	default:
		cfg.PprofAddr = addr
	}
	return cfg
}

// Stats is a subset of runtime.MemStats.
type Stats struct {
	HeapAlloc    uint64
	HeapInuse    uint64
	HeapReleased uint64
	Sys          uint64
	NumGC        uint32
	GCCPUPct     float64
}

// Read reads current memory statistics.
func Read() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		HeapAlloc:    m.HeapAlloc,
		HeapInuse:    m.HeapInuse,
		HeapReleased: m.HeapReleased,
		Sys:          m.Sys,
		NumGC:        m.NumGC,
		GCCPUPct:     m.GCCPUFraction * 100,
	}
}

// Tracker logs memory usage while started. A Tracker built from a
// disabled Config does nothing.
type Tracker struct {
	config  Config
	budget  *membudget.Budget
	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	server  *http.Server

	mu       sync.Mutex
	phase    string
	peakHeap uint64
}

// NewTracker creates a tracker. budget may be nil; when set, its usage is
// logged next to the heap figures.
func NewTracker(config Config, budget *membudget.Budget) *Tracker {
	if config.LogInterval <= 0 {
		config.LogInterval = 5 * time.Second
	}
	return &Tracker{
		config: config,
		budget: budget,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		phase:  "init",
	}
}

// Start begins periodic logging. It is a no-op when disabled or already
// started.
func (t *Tracker) Start() {
	if !t.config.Enabled || !t.started.CompareAndSwap(false, true) {
		return
	}

	log := logging.L()
	log.Info().Dur("interval", t.config.LogInterval).Msg("memory diagnostics enabled")

	if t.config.PprofAddr != "" {
		t.server = &http.Server{Addr: t.config.PprofAddr, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Str("addr", t.config.PprofAddr).Msg("starting pprof server")
			if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("pprof server failed")
			}
		}()
	}

	go t.logLoop()
}

// Stop ends periodic logging with a final reading.
func (t *Tracker) Stop() {
	if !t.started.CompareAndSwap(true, false) {
		return
	}
	close(t.stopCh)
	<-t.doneCh
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		t.server.Shutdown(ctx)
		cancel()
	}
}

// SetPhase names the current phase and logs a reading.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	t.phase = phase
	t.mu.Unlock()
	t.LogNow("phase_change")
}

// LogNow logs current memory stats at debug level.
func (t *Tracker) LogNow(reason string) {
	if !t.config.Enabled {
		return
	}

	stats := Read()
	t.mu.Lock()
	t.peakHeap = max(t.peakHeap, stats.HeapAlloc)
	phase, peak := t.phase, t.peakHeap
	t.mu.Unlock()

	log := logging.L()
	e := log.Debug().
		Str("reason", reason).
		Str("phase", phase).
		Str("heap_alloc", humanfmt.Bytes(int64(stats.HeapAlloc))).
		Str("heap_inuse", humanfmt.Bytes(int64(stats.HeapInuse))).
		Str("heap_released", humanfmt.Bytes(int64(stats.HeapReleased))).
		Str("sys_total", humanfmt.Bytes(int64(stats.Sys))).
		Str("peak_heap", humanfmt.Bytes(int64(peak))).
		Uint32("num_gc", stats.NumGC).
		Float64("gc_cpu_pct", stats.GCCPUPct)
	if t.budget != nil {
		bs := t.budget.Stats()
		e = e.Str("budget_inuse", humanfmt.Bytes(int64(bs.InUseBytes))).
			Str("budget_total", humanfmt.Bytes(int64(bs.TotalBytes))).
			Float64("budget_pct", bs.UsagePercent)
	}
	e.Msg("memory stats")
}

// PeakHeap returns the largest heap allocation seen by LogNow.
func (t *Tracker) PeakHeap() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peakHeap
}

func (t *Tracker) logLoop() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.config.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			t.LogNow("shutdown")
			return
		case <-ticker.C:
			t.LogNow("periodic")
		}
	}
}
