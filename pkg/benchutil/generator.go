// Package benchutil provides synthetic sequence generation for benchmarks
// and property tests.
package benchutil

import (
	"math/rand/v2"
	"os"
	"testing"
)

// Shape is a value distribution.
type Shape string

const (
	Uniform       Shape = "uniform"
	NonNegative   Shape = "non_negative"
	SmallAlphabet Shape = "small_alphabet"
	Lowercase     Shape = "lowercase"
	Binary        Shape = "binary"
)

// GeneratorConfig configures synthetic data generation.
type GeneratorConfig struct {
	Length int
	Shape  Shape
	// Spread bounds Uniform and NonNegative values. Default: 1000.
	Spread int64
	// Symbols is the alphabet size for SmallAlphabet. Default: 8.
	Symbols int
	Seed    uint64
}

// DefaultConfig returns a uniform configuration of length n.
func DefaultConfig(n int) GeneratorConfig {
	return GeneratorConfig{Length: n, Shape: Uniform, Spread: 1000, Symbols: 8, Seed: BenchmarkSeed}
}

// Generate returns cfg.Length values. Equal configs yield equal sequences.
func Generate(cfg GeneratorConfig) []int64 {
	if cfg.Spread <= 0 {
		cfg.Spread = 1000
	}
	if cfg.Symbols <= 0 {
		cfg.Symbols = 8
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	values := make([]int64, cfg.Length)
	for i := range values {
		switch cfg.Shape {
		case NonNegative:
			values[i] = rng.Int64N(cfg.Spread + 1)
		case SmallAlphabet:
			values[i] = int64(rng.IntN(cfg.Symbols))
		case Lowercase:
			values[i] = 'a' + int64(rng.IntN(26))
		case Binary:
			values[i] = int64(rng.IntN(2))
		default:
			values[i] = rng.Int64N(2*cfg.Spread+1) - cfg.Spread
		}
	}
	return values
}

// Sequence is shorthand for Generate with the given shape and length.
func Sequence(shape Shape, n int) []int64 {
	cfg := DefaultConfig(n)
	cfg.Shape = shape
	return Generate(cfg)
}

// SkipIfNoLongBench skips b unless EnvLongBench is set.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv(EnvLongBench) == "" {
		b.Skip("set " + EnvLongBench + "=1 to run scaling benchmark")
	}
}
