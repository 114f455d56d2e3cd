package memdiag

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/rangeagg/pkg/logging"
	"github.com/eunmann/rangeagg/pkg/membudget"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := *logging.L()
	prevLevel := zerolog.GlobalLevel()
	logging.SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		logging.SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv(EnvDebug, "")
	t.Setenv(EnvPprof, "")
	if cfg := DefaultConfig(); cfg.Enabled || cfg.PprofAddr != "" {
		t.Errorf("DefaultConfig() = %+v, want disabled", cfg)
	}

	t.Setenv(EnvDebug, "1")
	t.Setenv(EnvPprof, "1")
	cfg := DefaultConfig()
	if !cfg.Enabled || cfg.PprofAddr != ":6060" {
		t.Errorf("DefaultConfig() = %+v, want enabled with :6060", cfg)
	}

	t.Setenv(EnvPprof, "127.0.0.1:7070")
	if cfg := DefaultConfig(); cfg.PprofAddr != "127.0.0.1:7070" {
		t.Errorf("PprofAddr = %q, want explicit address", cfg.PprofAddr)
	}
}

func TestRead(t *testing.T) {
	s := Read()
	if s.HeapAlloc == 0 || s.Sys == 0 {
		t.Errorf("Read() = %+v, want non-zero heap and sys", s)
	}
}

func TestDisabledTrackerIsSilent(t *testing.T) {
	buf := captureLogs(t)

	tr := NewTracker(Config{}, nil)
	tr.Start()
	tr.SetPhase("ingest")
	tr.Stop()

	if buf.Len() != 0 {
		t.Errorf("disabled tracker logged: %s", buf.String())
	}
	if tr.PeakHeap() != 0 {
		t.Errorf("PeakHeap() = %d, want 0", tr.PeakHeap())
	}
}

func TestTrackerLogsPhasesAndBudget(t *testing.T) {
	buf := captureLogs(t)

	budget := membudget.New(membudget.Config{TotalBytes: 1 << 20})
	budget.TryReserve(1 << 19)

	tr := NewTracker(Config{Enabled: true, LogInterval: time.Hour}, budget)
	tr.Start()
	tr.Start()
	tr.SetPhase("ingest")
	tr.Stop()
	tr.Stop()

	out := buf.String()
	for _, want := range []string{`"phase":"ingest"`, `"reason":"phase_change"`, `"reason":"shutdown"`, `"budget_pct":50`} {
		if !strings.Contains(out, want) {
			t.Errorf("logs missing %s:\n%s", want, out)
		}
	}
	if tr.PeakHeap() == 0 {
		t.Error("PeakHeap() = 0 after readings")
	}
}
