package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaTypeValid(t *testing.T) {
	assert.True(t, MediaMovie.Valid())
	assert.True(t, MediaSeries.Valid())
	assert.True(t, MediaEpisode.Valid())
	assert.False(t, MediaType("Season").Valid())
	assert.False(t, MediaType("movie").Valid())
}

func TestSessionContextPlaying(t *testing.T) {
	assert.False(t, SessionContext{}.Playing())
	assert.False(t, SessionContext{CurrentMedia: &MediaContext{}}.Playing())
	assert.True(t, SessionContext{CurrentMedia: &MediaContext{ID: "abc"}}.Playing())
}

func TestMessageHelpers(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Parts: []Part{
			TextPart{Text: "Looking "},
			ToolCallPart{ToolID: "1", Name: "searchMedia"},
			TextPart{Text: "it up"},
			ToolCallPart{ToolID: "2", Name: "playMedia"},
		},
	}

	assert.Equal(t, "Looking it up", msg.Text())
	calls := msg.ToolCalls()
	if assert.Len(t, calls, 2) {
		assert.Equal(t, "searchMedia", calls[0].Name)
		assert.Equal(t, "playMedia", calls[1].Name)
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5}
	u.Add(Usage{InputTokens: 3, OutputTokens: 2, Estimated: true})

	assert.Equal(t, 13, u.InputTokens)
	assert.Equal(t, 7, u.OutputTokens)
	assert.Equal(t, 20, u.Total())
	assert.True(t, u.Estimated)
	assert.Equal(t, "999", FormatTokens(999))
	assert.Equal(t, "1.5k", FormatTokens(1500))
}
