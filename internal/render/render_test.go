package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/navigator/internal/agent"
	"github.com/joss/navigator/internal/audit"
	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/media"
	"github.com/joss/navigator/internal/tool"
)

func TestCardsSearch(t *testing.T) {
	var buf bytes.Buffer
	cards := NewCards(NewWriter(&buf), 80)

	cards.Render(tool.NewSearch("inception", []media.Item{
		{ID: "m1", Name: "Inception", Type: media.TypeMovie, ProductionYear: 2010, CommunityRating: 8.8},
		{ID: "e1", Name: "Pilot", Type: media.TypeEpisode, SeriesName: "Lost", SeasonNumber: 1, EpisodeNumber: 1},
	}))

	out := buf.String()
	assert.Contains(t, out, `Results for "inception" (2 items)`)
	assert.Contains(t, out, "Inception (2010)")
	assert.Contains(t, out, "★ 8.8")
	assert.Contains(t, out, "Lost S01E01 Pilot")
}

func TestCardsListIsCapped(t *testing.T) {
	var items []media.Item
	for i := 0; i < 13; i++ {
		items = append(items, media.Item{ID: "x", Name: "Movie", Type: media.TypeMovie})
	}
	var buf bytes.Buffer
	NewCards(NewWriter(&buf), 80).Render(tool.NewSearch("movie", items))

	assert.Contains(t, buf.String(), "and 3 more")
}

func TestCardsFailureAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	cards := NewCards(NewWriter(&buf), 80)

	cards.Render(tool.Fail("No series with id x."))
	cards.Render(tool.NewSearch("zzz", nil))

	out := buf.String()
	assert.Contains(t, out, "No series with id x.")
	assert.Contains(t, out, "Nothing in the library matches.")
}

func TestCardsWrapProse(t *testing.T) {
	var buf bytes.Buffer
	NewCards(NewWriter(&buf), 30).Render(tool.NewAnalysis("", "The dream within a dream collapses when the kick arrives in every layer."))

	for _, line := range bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n")) {
		assert.LessOrEqual(t, len(line), 30, "line %q", line)
	}
}

func TestStreamPrint(t *testing.T) {
	events := make(chan domain.StreamEvent, 8)
	events <- domain.StreamEvent{Type: domain.StreamEventToolCall, Part: domain.ToolCallPart{
		ToolID: "c1", Name: "searchMedia", Args: map[string]any{"query": "dune"},
	}}
	events <- domain.StreamEvent{Type: domain.StreamEventToolResult, Output: tool.NewSearch("dune", []media.Item{{ID: "m", Name: "Dune", Type: media.TypeMovie}})}
	events <- domain.StreamEvent{Type: domain.StreamEventText, Content: "Found "}
	events <- domain.StreamEvent{Type: domain.StreamEventText, Content: "Dune."}
	events <- domain.StreamEvent{Type: domain.StreamEventDone, FinishReason: domain.FinishStop, Usage: &domain.Usage{InputTokens: 1200, OutputTokens: 40}}
	close(events)

	var buf bytes.Buffer
	s := NewStream(&buf, 80, true)
	done, err := s.Print(events)
	require.NoError(t, err)
	require.NotNil(t, done)
	s.Summary(done)

	out := buf.String()
	assert.Contains(t, out, `searchMedia(query="dune")`)
	assert.Contains(t, out, "Found Dune.\n")
	assert.Contains(t, out, "finish=stop tokens=1.2k/40")
}

func TestStreamHidesToolCalls(t *testing.T) {
	events := make(chan domain.StreamEvent, 2)
	events <- domain.StreamEvent{Type: domain.StreamEventToolCall, Part: domain.ToolCallPart{Name: "themeToggle"}}
	events <- domain.StreamEvent{Type: domain.StreamEventText, Content: "Done"}
	close(events)

	var buf bytes.Buffer
	_, err := NewStream(&buf, 80, false).Print(events)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "themeToggle")
}

func TestStreamError(t *testing.T) {
	events := make(chan domain.StreamEvent, 1)
	events <- domain.StreamEvent{Type: domain.StreamEventError, Error: agent.ErrGeneration}
	close(events)

	var buf bytes.Buffer
	done, err := NewStream(&buf, 80, true).Print(events)
	assert.Nil(t, done)
	assert.ErrorIs(t, err, agent.ErrGeneration)
	assert.Contains(t, buf.String(), agent.GenerationFailedMessage)
}

func TestAuditEntries(t *testing.T) {
	var buf bytes.Buffer
	a := NewAudit(NewWriter(&buf))

	a.Entries(nil)
	assert.Contains(t, buf.String(), "No tool calls recorded")

	buf.Reset()
	a.Entries([]audit.Entry{
		{RequestID: "req-1", Tool: "searchMedia", Status: audit.StatusSuccess, StartedAt: time.Now(), DurationMs: 12},
		{RequestID: "req-1", Tool: "getSeasons", Status: audit.StatusError, ErrorMessage: "No series with id x.", StartedAt: time.Now(), DurationMs: 1500},
	})
	out := buf.String()
	assert.Contains(t, out, "TOOL CALLS (2)")
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "12ms")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "└─ No series with id x.")
}

func TestAuditStats(t *testing.T) {
	var buf bytes.Buffer
	NewAudit(NewWriter(&buf)).Stats(&audit.Stats{
		Total: 3, Success: 2, Errors: 1, AvgDurationMs: 14, MaxDurationMs: 30,
		ByTool: []audit.ToolStats{{Tool: "searchMedia", Total: 2, Errors: 1, AvgDurationMs: 20}},
	})

	out := buf.String()
	assert.Contains(t, out, "Total calls:    3")
	assert.Contains(t, out, "BY TOOL:")
	assert.Contains(t, out, "searchMedia:")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
}
