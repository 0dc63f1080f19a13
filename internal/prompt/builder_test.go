package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/navigator/internal/domain"
)

func TestBuildNothingPlaying(t *testing.T) {
	b := NewBuilder(DefaultAliases())

	got := b.Build(domain.SessionContext{})

	assert.Contains(t, got, "- Nothing is playing.")
	assert.NotContains(t, got, "Now playing")
	assert.Contains(t, got, "first call searchMedia, then call playMedia")
	assert.Contains(t, got, "- Sci-fi => Science Fiction")
	assert.Contains(t, got, "- LOTR => The Lord of the Rings")
}

func TestBuildPlaying(t *testing.T) {
	b := NewBuilder(DefaultAliases())
	ts := 3725.4
	session := domain.SessionContext{
		CurrentMedia:     &domain.MediaContext{ID: "e9", Name: "Pilot", Type: domain.MediaEpisode, MediaSourceID: "src"},
		CurrentTimestamp: &ts,
	}

	got := b.Build(session)

	assert.Contains(t, got, `- Now playing: "Pilot" (Episode), id e9.`)
	assert.Contains(t, got, "- Playback position: 01:02:05 (3725 seconds).")
	assert.NotContains(t, got, "Nothing is playing")
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder(DefaultAliases())
	ts := 10.0
	session := domain.SessionContext{
		CurrentMedia:     &domain.MediaContext{ID: "m1", Name: "Alien", Type: domain.MediaMovie},
		CurrentTimestamp: &ts,
	}

	assert.Equal(t, b.Build(session), b.Build(session))
}

func TestBuildUsesGivenTables(t *testing.T) {
	b := &Builder{Aliases: Aliases{Genres: []Alias{{"Spooky", "Horror"}}}}

	got := b.Build(domain.SessionContext{})

	assert.Contains(t, got, "- Spooky => Horror")
	assert.NotContains(t, got, "Sci-fi")
	assert.NotContains(t, got, "Examples:")
	assert.NotContains(t, got, "Abbreviations:")
}

func TestLoadAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
genres:
  - phrase: sci-fi
    means: Sci-Fi & Fantasy
  - phrase: Noir
    means: Film-Noir
abbreviations:
  - phrase: TDK
    means: The Dark Knight
  - phrase: ""
    means: ignored
`), 0o644))

	got, err := LoadAliases(path)
	require.NoError(t, err)

	defaults := DefaultAliases()
	assert.Len(t, got.Genres, len(defaults.Genres)+1)
	assert.Equal(t, Alias{"sci-fi", "Sci-Fi & Fantasy"}, got.Genres[0])
	assert.Equal(t, Alias{"Noir", "Film-Noir"}, got.Genres[len(got.Genres)-1])
	assert.Len(t, got.Abbreviations, len(defaults.Abbreviations)+1)
	assert.Equal(t, defaults.VagueTitles, got.VagueTitles)
}

func TestLoadAliasesErrors(t *testing.T) {
	got, err := LoadAliases("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAliases(), got)

	_, err = LoadAliases(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("genres: [unclosed"), 0o644))
	_, err = LoadAliases(path)
	assert.ErrorContains(t, err, "parse aliases")
}
