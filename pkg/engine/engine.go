// Package engine wires the sequence buffer, prefix index and standing
// windows together behind a single append path.
//
// Data flows one way: Append stores the value, extends the prefix index
// and pushes the new index into every standing window. Queries run over an
// immutable Snapshot and never write back.
//
// Thread Safety: an Engine has a single writer. Append, Track*, Reset and
// Snapshot must be called from that writer (or under the caller's own
// lock). A Snapshot, once taken, may be handed to any number of reader
// goroutines: the arrays it references only grow and entries below its
// length never change.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/eunmann/rangeagg/internal/logctx"
	"github.com/eunmann/rangeagg/pkg/membudget"
	"github.com/eunmann/rangeagg/pkg/prefix"
	"github.com/eunmann/rangeagg/pkg/query"
	"github.com/eunmann/rangeagg/pkg/sequence"
	"github.com/eunmann/rangeagg/pkg/window"
)

var (
	// ErrCapacity indicates an append beyond Options.MaxLength.
	ErrCapacity = errors.New("sequence capacity reached")
	// ErrDuplicateWindow indicates a standing window name already in use.
	ErrDuplicateWindow = errors.New("standing window already registered")
	// ErrUnknownWindow indicates a standing window name not registered.
	ErrUnknownWindow = errors.New("standing window not registered")
	// ErrMemoryBudget indicates an append the memory budget cannot cover.
	ErrMemoryBudget = errors.New("memory budget exhausted")
)

// BytesPerValue is the memory an appended value costs: its sequence slot
// and its prefix entry.
const BytesPerValue = 16

// reserveChunk is how many values' worth of memory is reserved from the
// budget at a time.
const reserveChunk = 1 << 16

// ctxCheckInterval is how many values AppendAll and Ingest process between
// context checks.
const ctxCheckInterval = 1024

// Options configures an Engine.
type Options struct {
	// MaxLength bounds the sequence length. 0 means unbounded.
	MaxLength int
	// Capacity preallocates room for this many values.
	Capacity int
	// Budget, if set, is charged BytesPerValue per value, reserved in
	// chunks. Reset returns the reservation.
	Budget *membudget.Budget
}

// ValueReader is the input collaborator contract: in-order values, io.EOF
// when exhausted.
type ValueReader interface {
	Next() (int64, error)
}

// Engine is the append side of the range-aggregation engine.
type Engine struct {
	opts     Options
	seq      *sequence.Buffer
	sums     *prefix.Index
	standing []*standingWindow
	byName   map[string]*standingWindow
	reserved int
}

// New creates an empty engine.
func New(opts Options) *Engine {
	if opts.Capacity < 0 {
		opts.Capacity = 0
	}
	if opts.MaxLength > 0 && opts.Capacity > opts.MaxLength {
		opts.Capacity = opts.MaxLength
	}
	return &Engine{
		opts:   opts,
		seq:    sequence.NewBuffer(opts.Capacity),
		sums:   prefix.NewIndex(opts.Capacity),
		byName: make(map[string]*standingWindow),
	}
}

// Len returns the number of values appended since the last Reset.
func (e *Engine) Len() int {
	return e.seq.Len()
}

// Get returns the value at index i.
func (e *Engine) Get(i int) (int64, error) {
	return e.seq.Get(i)
}

// Generation returns the number of Resets performed.
func (e *Engine) Generation() uint64 {
	return e.seq.Generation()
}

// Append adds v and returns its index. A rejected value (capacity or
// prefix overflow) leaves the engine unchanged and returns index -1.
// Errors from standing windows are returned after the value has been
// stored; they affect only the windows that raised them.
func (e *Engine) Append(v int64) (int, error) {
	if e.opts.MaxLength > 0 && e.seq.Len() >= e.opts.MaxLength {
		return -1, fmt.Errorf("append at length %d: %w", e.seq.Len(), ErrCapacity)
	}
	if e.opts.Budget != nil && e.seq.Len() == e.reserved {
		if !e.opts.Budget.TryReserve(reserveChunk * BytesPerValue) {
			return -1, fmt.Errorf("append at length %d: %w", e.seq.Len(), ErrMemoryBudget)
		}
		e.reserved += reserveChunk
	}
	if err := e.sums.Extend(v); err != nil {
		return -1, fmt.Errorf("append at length %d: %w", e.seq.Len(), err)
	}
	i := e.seq.Append(v)

	var errs []error
	for _, sw := range e.standing {
		if err := sw.push(i, v); err != nil {
			errs = append(errs, fmt.Errorf("standing window %q: %w", sw.name, err))
		}
	}
	return i, errors.Join(errs...)
}

// AppendAll appends values in order, stopping at the first rejected value
// or when ctx is done.
func (e *Engine) AppendAll(ctx context.Context, values []int64) error {
	for n, v := range values {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := e.Append(v); err != nil {
			return err
		}
	}
	return nil
}

// Ingest drains r into the engine and returns how many values were
// appended.
func (e *Engine) Ingest(ctx context.Context, r ValueReader) (int, error) {
	log := logctx.FromContext(ctx)
	appended := 0
	for {
		if appended%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return appended, err
			}
		}
		v, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return appended, fmt.Errorf("read value %d: %w", appended, err)
		}
		if _, err := e.Append(v); err != nil {
			return appended, err
		}
		appended++
	}
	log.Debug().Int("values", appended).Int("length", e.Len()).Msg("ingest drained reader")
	return appended, nil
}

// Reset discards all values and returns every standing window to its
// initial state. Snapshots taken earlier keep their contents.
func (e *Engine) Reset() {
	if e.opts.Budget != nil {
		e.opts.Budget.Release(uint64(e.reserved) * BytesPerValue)
		e.reserved = 0
	}
	e.seq.Reset()
	e.sums.Reset()
	for _, sw := range e.standing {
		sw.reset()
	}
}

// Snapshot returns a point-in-time read-only view.
func (e *Engine) Snapshot() *Snapshot {
	return &Snapshot{seq: e.seq.View(), sums: e.sums.View()}
}

// Query returns a Querier over a fresh snapshot.
func (e *Engine) Query() *query.Querier {
	return query.New(e.Snapshot())
}

// Snapshot is an immutable view of the sequence and its prefix sums. It
// implements query.Source.
type Snapshot struct {
	seq  sequence.View
	sums prefix.View
}

// Len implements query.Source.
func (s *Snapshot) Len() int { return s.seq.Len() }

// Value implements query.Source.
func (s *Snapshot) Value(i int) int64 { return s.seq.At(i) }

// Prefix implements query.Source.
func (s *Snapshot) Prefix(i int) int64 { return s.sums.At(i) }

// At implements window.Source.
func (s *Snapshot) At(i int) int64 { return s.seq.At(i) }

// Generation returns the engine generation the snapshot was taken in.
func (s *Snapshot) Generation() uint64 { return s.seq.Generation() }

var (
	_ query.Source  = (*Snapshot)(nil)
	_ window.Source = (*Snapshot)(nil)
)
