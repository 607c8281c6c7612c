// Package bytesize renders byte counts for humans.
package bytesize

import (
	"math"
	"strconv"
)

var units = []string{"B", "KB", "MB", "GB", "TB"}

// Format converts n into a two-decimal string using binary (1024) steps,
// e.g. 1536 -> "1.50 KB". Values beyond the terabyte range stay in TB.
// Negative inputs are treated as zero.
func Format(n int64) string {
	if n <= 0 {
		return "0 B"
	}

	exp := 0
	for v := n; v >= 1024 && exp < len(units)-1; v /= 1024 {
		exp++
	}

	value := float64(n) / math.Pow(1024, float64(exp))
	return strconv.FormatFloat(value, 'f', 2, 64) + " " + units[exp]
}
