package render

import (
	"time"

	"github.com/joss/navigator/internal/audit"
	navstrings "github.com/joss/navigator/internal/strings"
)

// Audit renders the tool call trail.
type Audit struct {
	*Writer
}

// NewAudit creates an Audit renderer.
func NewAudit(w *Writer) *Audit {
	return &Audit{Writer: w}
}

// Entries renders recorded tool calls, newest first.
func (a *Audit) Entries(entries []audit.Entry) {
	if len(entries) == 0 {
		a.Empty("No tool calls recorded")
		return
	}

	a.Header("TOOL CALLS (%d)", len(entries))

	for _, e := range entries {
		a.Println("%s [%s] %-24s %8s  %s",
			StatusIcon(string(e.Status)),
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Tool,
			FormatDuration(time.Duration(e.DurationMs)*time.Millisecond),
			navstrings.Truncate(e.RequestID, 12),
		)
		if e.Status == audit.StatusError && e.ErrorMessage != "" {
			a.Nested("%s", navstrings.Truncate(e.ErrorMessage, 70))
		}
	}
}

// Stats renders the aggregate view.
func (a *Audit) Stats(stats *audit.Stats) {
	a.Header("TOOL CALL STATISTICS")

	a.Item("Total calls:    %d", stats.Total)
	a.Item("Success:        %d", stats.Success)
	a.Item("Errors:         %d", stats.Errors)
	if stats.Total > 0 {
		a.Item("Avg duration:   %.0fms", stats.AvgDurationMs)
		a.Item("Max duration:   %dms", stats.MaxDurationMs)
	}

	if len(stats.ByTool) > 0 {
		a.Section("BY TOOL")
		for _, ts := range stats.ByTool {
			a.Item("%-24s %d total, %d errors, avg %.0fms", ts.Tool+":", ts.Total, ts.Errors, ts.AvgDurationMs)
		}
	}
}
