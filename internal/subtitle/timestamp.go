// Package subtitle turns subtitle tracks into timestamped transcripts and
// resolves natural-language questions about them with a secondary model.
package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// TicksPerSecond is the number of 100ns ticks in one second.
const TicksPerSecond = 10_000_000

// TicksToSeconds converts server ticks to seconds.
func TicksToSeconds(ticks int64) float64 {
	return float64(ticks) / TicksPerSecond
}

// SecondsToTicks converts seconds to server ticks.
func SecondsToTicks(seconds float64) int64 {
	return int64(math.Round(seconds * TicksPerSecond))
}

// FormatTimestamp renders seconds as HH:MM:SS, or MM:SS when under an hour.
// Fractions are truncated.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

var (
	exactTimestamp = regexp.MustCompile(`^(?:(\d{1,2}):)?(\d{1,2}):(\d{2})(?:[.,](\d+))?$`)
	longTimestamp  = regexp.MustCompile(`\b\d{1,2}:\d{2}:\d{2}(?:[.,]\d+)?\b`)
	shortTimestamp = regexp.MustCompile(`\b\d{1,2}:\d{2}(?:[.,]\d+)?\b`)
)

// ParseTimestamp parses H:MM:SS, HH:MM:SS or MM:SS with an optional
// fractional second part.
func ParseTimestamp(s string) (float64, error) {
	m := exactTimestamp.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	var hours, minutes, secs int
	if m[1] != "" {
		hours, _ = strconv.Atoi(m[1])
	}
	minutes, _ = strconv.Atoi(m[2])
	secs, _ = strconv.Atoi(m[3])
	if secs >= 60 || (m[1] != "" && minutes >= 60) {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	total := float64(hours*3600 + minutes*60 + secs)
	if m[4] != "" {
		frac, _ := strconv.ParseFloat("0."+m[4], 64)
		total += frac
	}
	return total, nil
}

// ExtractTimestamp finds the first timestamp in free text. Hour-qualified
// forms win over MM:SS so "01:02:03" is never read as "01:02".
func ExtractTimestamp(text string) (float64, bool) {
	for _, re := range []*regexp.Regexp{longTimestamp, shortTimestamp} {
		for _, match := range re.FindAllString(text, -1) {
			if secs, err := ParseTimestamp(match); err == nil {
				return secs, true
			}
		}
	}
	return 0, false
}
