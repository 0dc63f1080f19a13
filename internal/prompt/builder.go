// Package prompt builds the system prompt for a chat request.
package prompt

import (
	"fmt"
	"strings"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/subtitle"
)

// Example pairs a user phrasing with the tool sequence that serves it.
type Example struct {
	Request string
	Tools   string
}

// DefaultExamples is the phrasing catalog shown to the model.
var DefaultExamples = []Example{
	{"Find Inception", "searchMedia{query:\"Inception\"}"},
	{"Play The Matrix", "searchMedia{query:\"The Matrix\"}, then playMedia with the id, name and type of the match"},
	{"Open the page for Breaking Bad", "searchMedia, then navigateToMedia{mediaType:\"Series\"}"},
	{"Show me some comedies", "getMoviesByGenre{genreName:\"Comedy\"}"},
	{"What TV dramas do I have?", "getShowsByGenre{genreName:\"Drama\"}"},
	{"What genres are there?", "listGenres"},
	{"What was I watching?", "getContinueWatching"},
	{"Best Tom Hanks movies", "getPersonFilmography{personName:\"Tom Hanks\"}"},
	{"Who is in Dune?", "searchMedia, then getMediaDetails"},
	{"Something like Alien", "searchMedia, then getSimilarItems"},
	{"Episodes of season 2 of Dark", "searchMedia, getSeasons, then getEpisodes{seasonId}"},
	{"Skip to where they say \"I'll be back\"", "skipToSubtitleContent{userDescription:\"where they say I'll be back\"}"},
	{"What is happening right now?", "explainScene{currentTimestamp:<current position>}"},
	{"Why did she leave the house?", "analyzeMedia{userQuestion:\"Why did she leave the house?\"}"},
	{"Switch to dark mode", "themeToggle{action:\"dark\"}"},
}

// Builder renders the system prompt. It holds only static data; Build is
// a pure function of the session.
type Builder struct {
	Aliases  Aliases
	Examples []Example
}

func NewBuilder(aliases Aliases) *Builder {
	return &Builder{Aliases: aliases, Examples: DefaultExamples}
}

const intro = `You are Navigator, the assistant built into a Jellyfin media library.
You help the user find, open and play movies and shows from their own library, and answer questions about what they are watching.
Use the tools for every library lookup. Never invent item ids, titles or timestamps; only use values returned by tools.
Keep replies short. After a tool runs, the client shows its result as a card, so summarize instead of repeating every field.`

const rules = `Rules:
- To play or open something, first call searchMedia, then call playMedia or navigateToMedia with the id, name and type from the result. Never call playMedia without a search in the same conversation.
- If a search returns several matches, ask which one the user means unless one is an exact title match.
- Genre tools need the library's genre name. Translate informal genre words with the genre table below before calling them.
- Expand abbreviations and vague descriptions with the tables below before searching. If a search for the expansion finds nothing, try the user's original words.
- skipToSubtitleContent, explainScene and analyzeMedia only work while something is playing.
- If a tool fails, tell the user briefly what went wrong. Do not repeat the same failing call.`

// Build renders the prompt for one request.
func (b *Builder) Build(session domain.SessionContext) string {
	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString("\n\n")

	sb.WriteString("Current state:\n")
	writeState(&sb, session)
	sb.WriteString("\n")

	sb.WriteString(rules)
	sb.WriteString("\n\n")

	if len(b.Examples) > 0 {
		sb.WriteString("Examples:\n")
		for _, ex := range b.Examples {
			fmt.Fprintf(&sb, "- %q -> %s\n", ex.Request, ex.Tools)
		}
		sb.WriteString("\n")
	}

	writeTable(&sb, "Abbreviations", b.Aliases.Abbreviations)
	writeTable(&sb, "Vague descriptions (suggestions, confirm with a search)", b.Aliases.VagueTitles)
	writeTable(&sb, "Genre names", b.Aliases.Genres)

	return strings.TrimRight(sb.String(), "\n")
}

func writeState(sb *strings.Builder, session domain.SessionContext) {
	if !session.Playing() {
		sb.WriteString("- Nothing is playing.\n")
		return
	}

	m := session.CurrentMedia
	fmt.Fprintf(sb, "- Now playing: %q (%s), id %s.\n", m.Name, m.Type, m.ID)
	if session.CurrentTimestamp != nil {
		fmt.Fprintf(sb, "- Playback position: %s (%.0f seconds).\n",
			subtitle.FormatTimestamp(*session.CurrentTimestamp), *session.CurrentTimestamp)
	}
	sb.WriteString("- \"this\", \"it\" and \"right now\" refer to the playing item.\n")
}

func writeTable(sb *strings.Builder, title string, aliases []Alias) {
	if len(aliases) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n", title)
	for _, a := range aliases {
		fmt.Fprintf(sb, "- %s => %s\n", a.Phrase, a.Means)
	}
	sb.WriteString("\n")
}
