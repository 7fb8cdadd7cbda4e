// Package report formats byte counts, elapsed times and transfer rates
// for display. It implements no benchmark logic; it only consumes the
// numbers the transfer loop produces.
package report

import (
	"fmt"
	"io"
	"math"
	"time"
)

var (
	siLarge  = []string{"", "k", "M", "G", "T", "P", "E"}
	siSmall  = []string{"m", "u", "n", "p"}
	binLarge = []string{"", "Ki", "Mi", "Gi", "Ti", "Pi", "Ei"}
)

// SuffixSI scales v into the range [1, 1000) and returns the scaled
// value with its SI suffix. Values below 1 scale down through m, u, n, p.
func SuffixSI(v float64) (float64, string) {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v, ""
	}
	a := math.Abs(v)
	if a >= 1 {
		i := 0
		for a >= 1000 && i < len(siLarge)-1 {
			a /= 1000
			v /= 1000
			i++
		}
		return v, siLarge[i]
	}
	i := 0
	for {
		a *= 1000
		v *= 1000
		if a >= 1 || i == len(siSmall)-1 {
			return v, siSmall[i]
		}
		i++
	}
}

// SuffixBinary scales v into the range [1, 1024) and returns the scaled
// value with its IEC suffix. Values below 1 are returned unscaled.
func SuffixBinary(v float64) (float64, string) {
	a := math.Abs(v)
	i := 0
	for a >= 1024 && i < len(binLarge)-1 {
		a /= 1024
		v /= 1024
		i++
	}
	return v, binLarge[i]
}

// TransferRate writes a one-line summary of bytes moved over elapsed
// wall-clock time, with SI-scaled byte count and throughput.
func TransferRate(w io.Writer, elapsed time.Duration, bytes uint64) {
	secs := elapsed.Seconds()
	b, bSuffix := SuffixSI(float64(bytes))
	tp, tSuffix := SuffixSI(float64(bytes) / secs)

	ev, eSuffix := secs, " "
	if secs < 1 {
		ev, eSuffix = SuffixSI(secs)
	}

	fmt.Fprintf(w, "%6.2f%sB in %-6.1f%ss   %6.2f%sB/s\n",
		b, bSuffix, ev, eSuffix, tp, tSuffix)
}

// Latency writes a one-line summary of an average per-operation latency.
func Latency(w io.Writer, d time.Duration) {
	v, suffix := SuffixSI(d.Seconds())
	fmt.Fprintf(w, "%6.2f%ss average one-way latency\n", v, suffix)
}
