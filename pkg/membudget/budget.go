// Package membudget tracks a soft memory budget for in-memory sequences.
//
// Consumers reserve bytes before growing and release them when the memory
// is dropped. Nothing is enforced by the runtime: the budget only refuses
// reservations that would exceed it.
package membudget

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/eunmann/rangeagg/pkg/sysmem"
)

// ErrInvalidSize indicates a size string ParseSize cannot read.
var ErrInvalidSize = errors.New("invalid size")

// DefaultBudgetBytes is used when system RAM cannot be detected.
const DefaultBudgetBytes uint64 = 8 << 30

// BudgetSource records how the budget total was chosen.
type BudgetSource string

const (
	BudgetSourceAuto50Pct BudgetSource = "auto-50pct"
	BudgetSourceDefault   BudgetSource = "default"
	BudgetSourceCLI       BudgetSource = "cli"
	BudgetSourceEnv       BudgetSource = "env"
)

// Config configures a Budget.
type Config struct {
	TotalBytes uint64
	Source     BudgetSource
}

// Budget is safe for concurrent use.
type Budget struct {
	total  uint64
	inUse  atomic.Uint64
	source BudgetSource
}

// New creates a budget of cfg.TotalBytes.
func New(cfg Config) *Budget {
	return &Budget{total: cfg.TotalBytes, source: cfg.Source}
}

// NewFromSystemRAM creates a budget of half the detected RAM, or
// DefaultBudgetBytes when detection fails.
func NewFromSystemRAM() *Budget {
	if mem := sysmem.Total(); mem.Reliable {
		return New(Config{TotalBytes: mem.TotalBytes / 2, Source: BudgetSourceAuto50Pct})
	}
	return New(Config{TotalBytes: DefaultBudgetBytes, Source: BudgetSourceDefault})
}

// Total returns the budget size in bytes.
func (b *Budget) Total() uint64 { return b.total }

// InUse returns the reserved bytes.
func (b *Budget) InUse() uint64 { return b.inUse.Load() }

// Source returns how the budget was chosen.
func (b *Budget) Source() BudgetSource { return b.source }

// Available returns Total - InUse.
func (b *Budget) Available() uint64 {
	inUse := b.inUse.Load()
	if inUse >= b.total {
		return 0
	}
	return b.total - inUse
}

// TryReserve reserves n bytes, or reports false without reserving if that
// would exceed the budget.
func (b *Budget) TryReserve(n uint64) bool {
	for {
		cur := b.inUse.Load()
		next := cur + n
		if next < cur || next > b.total {
			return false
		}
		if b.inUse.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Release returns n reserved bytes. Releasing more than is reserved
// clamps at zero.
func (b *Budget) Release(n uint64) {
	for {
		cur := b.inUse.Load()
		next := uint64(0)
		if n < cur {
			next = cur - n
		}
		if b.inUse.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Stats is a point-in-time budget reading.
type Stats struct {
	TotalBytes     uint64
	InUseBytes     uint64
	AvailableBytes uint64
	Source         BudgetSource
	UsagePercent   float64
}

// Stats returns a point-in-time reading.
func (b *Budget) Stats() Stats {
	inUse := b.inUse.Load()
	s := Stats{TotalBytes: b.total, InUseBytes: inUse, Source: b.source}
	if inUse < b.total {
		s.AvailableBytes = b.total - inUse
	}
	if b.total > 0 {
		s.UsagePercent = float64(inUse) / float64(b.total) * 100
	}
	return s
}

var sizeSuffixes = map[string]float64{
	"":    1,
	"B":   1,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
	"K":   1 << 10,
	"KiB": 1 << 10,
	"M":   1 << 20,
	"MiB": 1 << 20,
	"G":   1 << 30,
	"GiB": 1 << 30,
	"T":   1 << 40,
	"TiB": 1 << 40,
}

// ParseSize parses sizes such as "512MiB", "4GB" or "1024".
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	split := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if split < 0 {
		split = len(s)
	}
	num, suffix := s[:split], strings.TrimSpace(s[split:])

	mult, ok := sizeSuffixes[suffix]
	if !ok {
		return 0, fmt.Errorf("%q: unknown suffix %q: %w", s, suffix, ErrInvalidSize)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidSize)
	}
	return uint64(v * mult), nil
}
