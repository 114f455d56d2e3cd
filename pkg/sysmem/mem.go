// Package sysmem detects physical memory so that default budgets scale with
// the host.
package sysmem

// FallbackBytes is reported when the platform query fails or is
// unsupported.
const FallbackBytes uint64 = 4 << 30

// Result is a physical memory reading.
type Result struct {
	TotalBytes uint64
	// Reliable is false when TotalBytes is FallbackBytes rather than a
	// platform reading.
	Reliable bool
}

// Total returns the host's physical memory.
func Total() Result {
	if n, ok := physicalMemory(); ok && n > 0 {
		return Result{TotalBytes: n, Reliable: true}
	}
	return Result{TotalBytes: FallbackBytes}
}
