// Package humanfmt formats byte sizes, durations, counts and value rates
// for CLI output and pretty-mode log fields.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

type unit struct {
	size   float64
	suffix string
}

// Largest first.
var (
	byteUnits  = []unit{{1 << 40, " TiB"}, {1 << 30, " GiB"}, {1 << 20, " MiB"}, {1 << 10, " KiB"}}
	countUnits = []unit{{1e9, "B"}, {1e6, "M"}, {1e3, "K"}}
)

// scaled formats n in the largest unit not exceeding it, or returns ok=false
// when n is below every unit.
func scaled(n int64, units []unit) (string, bool) {
	for _, u := range units {
		if float64(n) >= u.size {
			return strconv.FormatFloat(float64(n)/u.size, 'f', 2, 64) + u.suffix, true
		}
	}
	return "", false
}

// Bytes formats a byte count using IEC binary units, e.g. "1.23 GiB".
func Bytes(b int64) string {
	if s, ok := scaled(b, byteUnits); ok {
		return s
	}
	return strconv.FormatInt(b, 10) + " B"
}

// Count formats n with decimal suffixes: "1.23M", "456.00K", "789".
func Count(n int64) string {
	if s, ok := scaled(n, countUnits); ok {
		return s
	}
	return strconv.FormatInt(n, 10)
}

// Rate formats n items over d as items per second, e.g. "1.50M/s".
func Rate(n int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	return Count(int64(float64(n)/d.Seconds())) + "/s"
}

// Duration formats d compactly: "1.23s", "45.6ms", "789.0µs", "1m30s",
// "2h15m". Above a minute the smaller part is dropped when zero.
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return compound(d/time.Hour, "h", (d%time.Hour)/time.Minute, "m")
	case d >= time.Minute:
		return compound(d/time.Minute, "m", (d%time.Minute)/time.Second, "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func compound(major time.Duration, majorUnit string, minor time.Duration, minorUnit string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorUnit)
	}
	return fmt.Sprintf("%d%s%d%s", major, majorUnit, minor, minorUnit)
}
