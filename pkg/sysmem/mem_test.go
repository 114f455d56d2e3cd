package sysmem

import (
	"runtime"
	"testing"
)

func TestTotal(t *testing.T) {
	r := Total()
	if r.TotalBytes == 0 {
		t.Fatal("Total() returned 0 bytes")
	}

	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "openbsd", "netbsd", "dragonfly":
		if !r.Reliable {
			t.Logf("memory detection not reliable on %s", runtime.GOOS)
		}
	default:
		if r.Reliable || r.TotalBytes != FallbackBytes {
			t.Errorf("Total() = %+v on %s, want fallback", r, runtime.GOOS)
		}
	}
	t.Logf("detected memory: %d bytes, reliable=%v", r.TotalBytes, r.Reliable)
}

func TestTotalStable(t *testing.T) {
	if a, b := Total(), Total(); a != b {
		t.Errorf("Total() changed between calls: %+v then %+v", a, b)
	}
}
