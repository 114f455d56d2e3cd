//go:build darwin || freebsd || openbsd || netbsd || dragonfly

package sysmem

import "golang.org/x/sys/unix"

// sysctlKeys are tried in order: macOS, then the BSDs.
var sysctlKeys = []string{"hw.memsize", "hw.physmem", "hw.realmem"}

func physicalMemory() (uint64, bool) {
	for _, key := range sysctlKeys {
		if n, err := unix.SysctlUint64(key); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
