package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/joss/navigator/internal/media"
)

// Entry is one parsed subtitle line.
type Entry struct {
	TimestampSeconds   float64 `json:"timestampSeconds"`
	FormattedTimestamp string  `json:"formattedTimestamp"`
	Text               string  `json:"text"`
}

var (
	markupTags   = regexp.MustCompile(`<[^>]*>|\{\\[^}]*\}`)
	spaceRunes   = regexp.MustCompile(`\s+`)
	lineBreakers = strings.NewReplacer(`\N`, " ", `\n`, " ", "\r", " ", "\n", " ")
)

// CleanText strips styling markup and collapses whitespace.
func CleanText(s string) string {
	s = lineBreakers.Replace(s)
	s = markupTags.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRunes.ReplaceAllString(s, " "))
}

// FromEvents converts track events into entries. Source order is kept;
// cues that are empty after cleaning are dropped.
func FromEvents(events []media.SubtitleEvent) []Entry {
	entries := make([]Entry, 0, len(events))
	for _, ev := range events {
		text := CleanText(ev.Text)
		if text == "" {
			continue
		}
		secs := TicksToSeconds(ev.StartPositionTicks)
		entries = append(entries, Entry{
			TimestampSeconds:   secs,
			FormattedTimestamp: FormatTimestamp(secs),
			Text:               text,
		})
	}
	return entries
}

// Nearest returns the entry closest to target by absolute difference, the
// earliest one on ties. ok is false for an empty slice.
func Nearest(entries []Entry, target float64) (idx int, ok bool) {
	if len(entries) == 0 {
		return 0, false
	}
	best := 0
	bestDiff := math.Abs(entries[0].TimestampSeconds - target)
	for i := 1; i < len(entries); i++ {
		if d := math.Abs(entries[i].TimestampSeconds - target); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best, true
}

// Window returns the entries with center-radius <= timestamp <= center+radius.
func Window(entries []Entry, center, radius float64) []Entry {
	lo, hi := center-radius, center+radius
	var out []Entry
	for _, e := range entries {
		if e.TimestampSeconds >= lo && e.TimestampSeconds <= hi {
			out = append(out, e)
		}
	}
	return out
}

// FormatTranscript renders entries as a numbered, timestamped list.
func FormatTranscript(entries []Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, e.FormattedTimestamp, e.Text)
	}
	return sb.String()
}

// FormatWindow renders a context window and marks the entry at marked.
func FormatWindow(entries []Entry, marked int) string {
	var sb strings.Builder
	for i, e := range entries {
		prefix := "  "
		if i == marked {
			prefix = ">>"
		}
		fmt.Fprintf(&sb, "%s [%s] %s\n", prefix, e.FormattedTimestamp, e.Text)
	}
	return sb.String()
}
