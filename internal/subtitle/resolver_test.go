package subtitle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	answer  string
	err     error
	systems []string
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	f.systems = append(f.systems, system)
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

func sampleEntries() []Entry {
	texts := []struct {
		at   float64
		text string
	}{
		{60, "Where are we going?"},
		{95, "To the lighthouse."},
		{120, "The ship is sinking!"},
		{140, "Get to the boats."},
		{200, "We made it."},
	}
	out := make([]Entry, len(texts))
	for i, tt := range texts {
		out[i] = Entry{TimestampSeconds: tt.at, FormattedTimestamp: FormatTimestamp(tt.at), Text: tt.text}
	}
	return out
}

func TestResolveTimestamp(t *testing.T) {
	tests := []struct {
		name       string
		answer     string
		want       int
		wantWithin bool
	}{
		{"exact line", "00:02:00", 2, true},
		{"within tolerance", "The moment is 00:02:23", 3, true},
		{"snaps to closest", "00:03:00", 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{answer: tt.answer}
			r := NewResolver(fc, Options{})

			m, err := r.ResolveTimestamp(context.Background(), sampleEntries(), "the ship sinks")
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Index)
			assert.Equal(t, tt.wantWithin, m.WithinTolerance)
			assert.Equal(t, sampleEntries()[tt.want].Text, m.Text)
			require.Len(t, fc.prompts, 1)
			assert.Contains(t, fc.prompts[0], "the ship sinks")
			assert.Contains(t, fc.prompts[0], "3. [02:00] The ship is sinking!")
		})
	}
}

func TestResolveTimestampPrefersClosestWithinTolerance(t *testing.T) {
	entries := []Entry{
		{TimestampSeconds: 100, FormattedTimestamp: "01:40", Text: "line A"},
		{TimestampSeconds: 102, FormattedTimestamp: "01:42", Text: "line B"},
		{TimestampSeconds: 104, FormattedTimestamp: "01:44", Text: "line C"},
	}
	r := NewResolver(&fakeCompleter{answer: "00:01:44"}, Options{Tolerance: 5})

	m, err := r.ResolveTimestamp(context.Background(), entries, "line c")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Index)
	assert.Equal(t, "line C", m.Text)
	assert.True(t, m.WithinTolerance)
}

func TestResolveTimestampUnparseable(t *testing.T) {
	r := NewResolver(&fakeCompleter{answer: "I am not sure."}, Options{})

	_, err := r.ResolveTimestamp(context.Background(), sampleEntries(), "something")
	assert.ErrorIs(t, err, ErrNoTimestamp)
}

func TestResolveTimestampErrors(t *testing.T) {
	r := NewResolver(&fakeCompleter{err: errors.New("rate limited")}, Options{})

	_, err := r.ResolveTimestamp(context.Background(), nil, "x")
	assert.ErrorIs(t, err, ErrNoEntries)

	_, err = r.ResolveTimestamp(context.Background(), sampleEntries(), "x")
	assert.ErrorContains(t, err, "rate limited")
}

func TestExplainScene(t *testing.T) {
	fc := &fakeCompleter{answer: "  The crew abandons the sinking ship.  "}
	r := NewResolver(fc, Options{ContextWindow: 30})

	scene, err := r.ExplainScene(context.Background(), sampleEntries(), 120, 0)
	require.NoError(t, err)

	assert.Equal(t, "The crew abandons the sinking ship.", scene.Explanation)
	assert.Equal(t, 30.0, scene.Window)
	assert.Equal(t, "The ship is sinking!", scene.Current.Text)
	require.Len(t, scene.Context, 3)
	assert.Equal(t, 95.0, scene.Context[0].TimestampSeconds)
	assert.Equal(t, 140.0, scene.Context[2].TimestampSeconds)

	prompt := fc.prompts[0]
	assert.Contains(t, prompt, ">> [02:00] The ship is sinking!")
	assert.NotContains(t, prompt, "Where are we going?")
	assert.NotContains(t, prompt, "We made it.")
}

func TestExplainSceneEmptyWindow(t *testing.T) {
	fc := &fakeCompleter{answer: "unused"}
	r := NewResolver(fc, Options{})

	_, err := r.ExplainScene(context.Background(), sampleEntries(), 1000, 10)
	assert.ErrorIs(t, err, ErrEmptyWindow)
	assert.Empty(t, fc.prompts)
}

func TestAnswer(t *testing.T) {
	fc := &fakeCompleter{answer: "They head to the lighthouse.\n"}
	r := NewResolver(fc, Options{})

	got, err := r.Answer(context.Background(), sampleEntries(), "Where are they going?")
	require.NoError(t, err)
	assert.Equal(t, "They head to the lighthouse.", got)
	assert.Contains(t, fc.prompts[0], "5. [03:20] We made it.")
	assert.Contains(t, fc.prompts[0], "Question: Where are they going?")
}
