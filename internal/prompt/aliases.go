package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Alias maps how users phrase something to what the library calls it.
type Alias struct {
	Phrase string `yaml:"phrase"`
	Means  string `yaml:"means"`
}

// Aliases are the soft lookup tables given to the model. They guide the
// model's choice of arguments; tools never apply them.
type Aliases struct {
	Abbreviations []Alias `yaml:"abbreviations"`
	VagueTitles   []Alias `yaml:"vague_titles"`
	Genres        []Alias `yaml:"genres"`
}

// DefaultAliases returns the built-in tables.
func DefaultAliases() Aliases {
	return Aliases{
		Abbreviations: []Alias{
			{"LOTR", "The Lord of the Rings"},
			{"HP", "Harry Potter"},
			{"GoT", "Game of Thrones"},
			{"SW", "Star Wars"},
			{"MCU", "Marvel Cinematic Universe"},
			{"T2", "Terminator 2: Judgment Day"},
			{"ESB", "Star Wars: The Empire Strikes Back"},
			{"BTTF", "Back to the Future"},
			{"TNG", "Star Trek: The Next Generation"},
			{"B99", "Brooklyn Nine-Nine"},
			{"IASIP", "It's Always Sunny in Philadelphia"},
			{"HIMYM", "How I Met Your Mother"},
		},
		VagueTitles: []Alias{
			{"the movie with the spinning top", "Inception"},
			{"the one where they live in a simulation", "The Matrix"},
			{"the blue aliens movie", "Avatar"},
			{"the dinosaur park movie", "Jurassic Park"},
			{"the boxing movie with Stallone", "Rocky"},
			{"the chemistry teacher show", "Breaking Bad"},
			{"the show about the paper company", "The Office"},
			{"the ship that sinks", "Titanic"},
		},
		Genres: []Alias{
			{"Sci-fi", "Science Fiction"},
			{"SciFi", "Science Fiction"},
			{"Rom-com", "Romance"},
			{"Romcom", "Romance"},
			{"Scary", "Horror"},
			{"Funny", "Comedy"},
			{"Cartoons", "Animation"},
			{"Docs", "Documentary"},
			{"Thrillers", "Thriller"},
			{"Kids", "Family"},
		},
	}
}

// LoadAliases returns the defaults merged with the YAML file at path.
// Entries whose phrase matches a default replace it; others are appended.
// An empty path returns the defaults.
func LoadAliases(path string) (Aliases, error) {
	aliases := DefaultAliases()
	if path == "" {
		return aliases, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return aliases, fmt.Errorf("read aliases: %w", err)
	}

	var extra Aliases
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return aliases, fmt.Errorf("parse aliases %s: %w", path, err)
	}

	aliases.Abbreviations = merge(aliases.Abbreviations, extra.Abbreviations)
	aliases.VagueTitles = merge(aliases.VagueTitles, extra.VagueTitles)
	aliases.Genres = merge(aliases.Genres, extra.Genres)
	return aliases, nil
}

func merge(base, extra []Alias) []Alias {
	out := append([]Alias(nil), base...)
	for _, e := range extra {
		if strings.TrimSpace(e.Phrase) == "" || strings.TrimSpace(e.Means) == "" {
			continue
		}
		replaced := false
		for i := range out {
			if strings.EqualFold(out[i].Phrase, e.Phrase) {
				out[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return out
}
