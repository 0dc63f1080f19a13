package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/joss/navigator/internal/media"
	navstrings "github.com/joss/navigator/internal/strings"
	"github.com/joss/navigator/internal/subtitle"
	"github.com/joss/navigator/internal/tool"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	quoteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Italic(true)
)

// maxListed caps the rows a list card prints.
const maxListed = 10

// Cards prints tool results the way the web client's cards show them.
type Cards struct {
	*Writer
	width int
}

var _ tool.ResultVisitor = (*Cards)(nil)

func NewCards(w *Writer, width int) *Cards {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Cards{Writer: w, width: width}
}

// Render prints one result.
func (c *Cards) Render(r tool.Result) {
	r.Accept(c)
}

func (c *Cards) title(format string, args ...any) {
	c.Println("%s", titleStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Cards) prose(text string) {
	for _, line := range strings.Split(navstrings.WordWrap(text, c.width-4), "\n") {
		c.Item("%s", line)
	}
}

func runtimeMinutes(ticks int64) int {
	return int(subtitle.TicksToSeconds(ticks) / 60)
}

func itemLine(it media.Item) string {
	var sb strings.Builder
	switch it.Type {
	case media.TypeEpisode:
		if it.SeriesName != "" {
			fmt.Fprintf(&sb, "%s ", it.SeriesName)
		}
		fmt.Fprintf(&sb, "S%02dE%02d %s", it.SeasonNumber, it.EpisodeNumber, it.Name)
	default:
		sb.WriteString(it.Name)
		if it.ProductionYear > 0 {
			fmt.Fprintf(&sb, " (%d)", it.ProductionYear)
		}
	}

	var meta []string
	if it.Type != "" && it.Type != media.TypeEpisode {
		meta = append(meta, string(it.Type))
	}
	if it.CommunityRating > 0 {
		meta = append(meta, fmt.Sprintf("★ %.1f", it.CommunityRating))
	}
	if it.Role != "" {
		meta = append(meta, "as "+it.Role)
	}
	if it.PlayedPercentage > 0 {
		meta = append(meta, fmt.Sprintf("%.0f%% watched", it.PlayedPercentage))
	}
	if len(meta) > 0 {
		sb.WriteString(mutedStyle.Render(" · " + strings.Join(meta, " · ")))
	}
	return sb.String()
}

func (c *Cards) items(items []media.Item, empty string) {
	if len(items) == 0 {
		c.Item("%s", mutedStyle.Render(empty))
		return
	}
	for i, it := range items {
		if i == maxListed {
			c.Item("%s", mutedStyle.Render(fmt.Sprintf("… and %d more", len(items)-maxListed)))
			return
		}
		c.Item("• %s", itemLine(it))
	}
}

func (c *Cards) VisitSearch(r *tool.SearchResult) {
	c.title("Results for %q (%s)", r.Query, navstrings.Plural(len(r.Results), "item", "items"))
	c.items(r.Results, "Nothing in the library matches.")
}

func (c *Cards) VisitDetails(r *tool.DetailsResult) {
	d := r.Details
	if d == nil {
		return
	}
	c.title("%s", itemLine(d.Item))
	if len(d.Genres) > 0 {
		c.Item("%s", mutedStyle.Render(strings.Join(d.Genres, ", ")))
	}
	if mins := runtimeMinutes(d.RunTimeTicks); mins > 0 {
		c.Item("%s", mutedStyle.Render(fmt.Sprintf("%d min", mins)))
	}
	if len(d.Taglines) > 0 {
		c.Item("%s", quoteStyle.Render(d.Taglines[0]))
	}
	if d.Overview != "" {
		c.prose(d.Overview)
	}
	if len(d.People) > 0 {
		names := make([]string, 0, 5)
		for _, p := range d.People {
			if len(names) == 5 {
				break
			}
			names = append(names, p.Name)
		}
		c.Item("Cast: %s", strings.Join(names, ", "))
	}
}

func (c *Cards) VisitMovies(r *tool.MoviesResult) {
	c.title("%s movies", r.Genre)
	c.items(r.Movies, "No movies in this genre.")
}

func (c *Cards) VisitShows(r *tool.ShowsResult) {
	c.title("%s shows", r.Genre)
	c.items(r.Shows, "No shows in this genre.")
}

func (c *Cards) VisitGenres(r *tool.GenresResult) {
	c.title("Genres (%d)", len(r.Genres))
	names := make([]string, 0, len(r.Genres))
	for _, g := range r.Genres {
		names = append(names, g.Name)
	}
	c.prose(strings.Join(names, ", "))
}

func (c *Cards) VisitContinueWatching(r *tool.ContinueWatchingResult) {
	c.title("Continue watching")
	c.items(r.Results, "Nothing in progress.")
}

func (c *Cards) VisitPeople(r *tool.PeopleResult) {
	c.title("People matching %q", r.Query)
	if len(r.People) == 0 {
		c.Item("%s", mutedStyle.Render("No one found."))
		return
	}
	for _, p := range r.People {
		c.Item("• %s %s", p.Name, mutedStyle.Render(p.Type))
	}
}

func (c *Cards) VisitPerson(r *tool.PersonResult) {
	c.title("%s", r.Person.Name)
	c.items(r.Filmography, "Nothing in the library.")
}

func (c *Cards) VisitSimilar(r *tool.SimilarResult) {
	c.title("Similar titles")
	c.items(r.SimilarItems, "No similar titles found.")
}

func (c *Cards) VisitSeasons(r *tool.SeasonsResult) {
	c.title("Seasons (%d)", len(r.Seasons))
	for _, s := range r.Seasons {
		c.Item("• %s", s.Name)
	}
}

func (c *Cards) VisitEpisodes(r *tool.EpisodesResult) {
	c.title("Episodes (%d)", len(r.Episodes))
	c.items(r.Episodes, "No episodes.")
}

func (c *Cards) VisitNavigate(r *tool.NavigateDirective) {
	c.Println("%s %s", color.CyanString("→ open"), r.URL)
}

func (c *Cards) VisitPlay(r *tool.PlayDirective) {
	c.Println("%s %s %s", color.GreenString("▶ play"), r.MediaName, mutedStyle.Render(r.MediaType))
}

func (c *Cards) VisitTheme(r *tool.ThemeDirective) {
	c.Println("%s %s", color.MagentaString("◐ theme"), r.Mode)
}

func (c *Cards) VisitSubtitleMatch(r *tool.SubtitleMatchResult) {
	c.Println("%s %s", color.CyanString("⏩ seek to"), r.FormattedTimestamp)
	c.Item("%s", quoteStyle.Render(r.SubtitleText))
}

func (c *Cards) VisitSceneExplanation(r *tool.SceneExplanationResult) {
	c.title("Scene at %s", r.FormattedTimestamp)
	c.prose(r.Explanation)
}

func (c *Cards) VisitAnalysis(r *tool.AnalysisResult) {
	if r.Question != "" {
		c.title("%s", r.Question)
	}
	c.prose(r.Answer)
}

func (c *Cards) VisitFailure(r *tool.Failure) {
	c.Println("%s %s", color.RedString("✗"), r.Error)
}
