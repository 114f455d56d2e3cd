package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/rangeagg/pkg/humanfmt"
)

// ProgressTracker counts finished items (input files, downloaded objects)
// and estimates the time left. It is safe for concurrent use.
type ProgressTracker struct {
	total     int64
	completed atomic.Int64
	skipped   atomic.Int64
	startTime time.Time
	phase     string

	mu     sync.Mutex
	recent []time.Duration
}

// recentWindow is how many item durations feed the ETA average.
const recentWindow = 10

// NewProgressTracker creates a tracker for total items.
func NewProgressTracker(phase string, total int64) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
		phase:     phase,
		recent:    make([]time.Duration, 0, recentWindow),
	}
}

// RecordCompletion records that an item completed in d.
func (pt *ProgressTracker) RecordCompletion(d time.Duration) {
	pt.completed.Add(1)

	pt.mu.Lock()
	if len(pt.recent) == recentWindow {
		copy(pt.recent, pt.recent[1:])
		pt.recent = pt.recent[:recentWindow-1]
	}
	pt.recent = append(pt.recent, d)
	pt.mu.Unlock()
}

// RecordSkip records that an item was skipped.
func (pt *ProgressTracker) RecordSkip() {
	pt.skipped.Add(1)
}

// Progress returns completed, skipped and total counts.
func (pt *ProgressTracker) Progress() (completed, skipped, total int64) {
	return pt.completed.Load(), pt.skipped.Load(), pt.total
}

// Pct returns progress in percent. An empty tracker is complete.
func (pt *ProgressTracker) Pct() float64 {
	if pt.total == 0 {
		return 100.0
	}
	done := pt.completed.Load() + pt.skipped.Load()
	return float64(done) * 100.0 / float64(pt.total)
}

// ETA estimates the time remaining from the recent item durations.
func (pt *ProgressTracker) ETA() time.Duration {
	completed := pt.completed.Load()
	remaining := pt.Remaining()
	if completed == 0 || remaining <= 0 {
		return 0
	}

	pt.mu.Lock()
	var sum time.Duration
	for _, d := range pt.recent {
		sum += d
	}
	avg := sum / time.Duration(len(pt.recent))
	pt.mu.Unlock()

	return avg * time.Duration(remaining)
}

// Elapsed returns time since tracking started.
func (pt *ProgressTracker) Elapsed() time.Duration {
	return time.Since(pt.startTime)
}

// Remaining returns how many items are left.
func (pt *ProgressTracker) Remaining() int64 {
	return pt.total - pt.completed.Load() - pt.skipped.Load()
}

// Phase returns the phase name.
func (pt *ProgressTracker) Phase() string {
	return pt.phase
}

type field struct {
	key string
	val any
}

// CompletionEvent builds a completion log line with consistent fields:
// event, phase, duration_ms, and in pretty mode human-readable companions
// suffixed with _h.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  []field
}

// NewCompletionEvent creates a completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{log: log, event: event, phase: phase, elapsed: elapsed}
}

func (ce *CompletionEvent) add(key string, val any) *CompletionEvent {
	ce.fields = append(ce.fields, field{key, val})
	return ce
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	return ce.add(key, val)
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	return ce.add(key, val)
}

// Int64 adds an int64 field.
func (ce *CompletionEvent) Int64(key string, val int64) *CompletionEvent {
	return ce.add(key, val)
}

// Bytes adds a byte count.
func (ce *CompletionEvent) Bytes(key string, n int64) *CompletionEvent {
	ce.add(key, n)
	if IsPrettyMode() {
		ce.add(key+"_h", humanfmt.Bytes(n))
	}
	return ce
}

// Count adds an item count.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.add(key, n)
	if IsPrettyMode() {
		ce.add(key+"_h", humanfmt.Count(n))
	}
	return ce
}

// Rate adds values_per_sec for n values over the event's elapsed time.
func (ce *CompletionEvent) Rate(n int64) *CompletionEvent {
	if ce.elapsed <= 0 {
		return ce
	}
	ce.add("values_per_sec", float64(n)/ce.elapsed.Seconds())
	if IsPrettyMode() {
		ce.add("rate_h", humanfmt.Rate(n, ce.elapsed))
	}
	return ce
}

// Progress adds completed, skipped, total, progress_pct and eta from pt.
func (ce *CompletionEvent) Progress(pt *ProgressTracker) *CompletionEvent {
	completed, skipped, total := pt.Progress()
	ce.add("completed", completed).add("skipped", skipped).add("total", total)
	ce.add("progress_pct", pt.Pct())
	if eta := pt.ETA(); eta > 0 {
		ce.add("eta_ms", eta.Milliseconds())
		if IsPrettyMode() {
			ce.add("eta_h", humanfmt.Duration(eta))
		}
	}
	return ce
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())
	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}
	for _, f := range ce.fields {
		e = e.Interface(f.key, f.val)
	}
	e.Msg(msg)
}

// Log emits the event at info level.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	ce.emit(ce.log.Debug(), msg)
}

// PhaseComplete starts a phase_completed event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// SourceIngested starts a source_ingested event for one input file or
// object.
func SourceIngested(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "source_ingested", phase, elapsed)
}

// ObjectDownloaded starts an object_downloaded event.
func ObjectDownloaded(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "object_downloaded", phase, elapsed)
}

// SnapshotWritten starts a snapshot_written event.
func SnapshotWritten(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "snapshot_written", phase, elapsed)
}
