package textutil

import (
	"fmt"
	"math"
)

// FormatTimecode renders seconds as HH:MM:SS.mmm. The value is rounded to the
// nearest millisecond before splitting so 59.9996 becomes 00:01:00.000.
// Negative and non-finite inputs render as zero.
func FormatTimecode(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	hours := totalMillis / 3_600_000
	totalMillis %= 3_600_000
	minutes := totalMillis / 60_000
	totalMillis %= 60_000
	secs := totalMillis / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
