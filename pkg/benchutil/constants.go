package benchutil

// Shared constants for benchmarks across packages.

// BenchmarkSeed is the default seed for reproducible benchmark data generation.
const BenchmarkSeed = 42

// EnvLongBench enables the scaling benchmarks.
const EnvLongBench = "RANGEAGG_LONG_BENCH"

// BenchmarkSizes are sequence lengths for quick runs.
var BenchmarkSizes = []int{1000, 10000, 100000}

// ScalingSizes are larger lengths, run only with EnvLongBench set.
var ScalingSizes = []int{100000, 500000, 1000000, 5000000}

// Shapes are the standard value distributions for benchmarking:
//   - uniform: signed values in [-Spread, Spread]
//   - non_negative: values in [0, Spread], for sum-bounded windows
//   - small_alphabet: few distinct values, for distinct-count windows
//   - lowercase: ASCII 'a'..'z', for frequency windows
//   - binary: 0 and 1 only, for balanced windows
var Shapes = []Shape{Uniform, NonNegative, SmallAlphabet, Lowercase, Binary}
