package exporter

import (
	"fmt"
	"math"
	"time"
)

// formatFloat formats a float64 value for CSV output with four decimal
// places. NaN values come out as empty cells rather than "NaN".
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return fmt.Sprintf("%.4f", f)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

// formatTime formats a timestamp for CSV output
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
