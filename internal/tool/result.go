package tool

import (
	"encoding/json"

	"github.com/joss/navigator/internal/media"
	"github.com/joss/navigator/internal/subtitle"
)

// Result is the closed set of tool outcomes. Every variant serializes with a
// "success" field; failures carry only "error".
type Result interface {
	Succeeded() bool
	Accept(v ResultVisitor)
	sealed()
}

// ResultVisitor dispatches on the concrete result. Adding a variant adds a
// method here, so every renderer must handle it.
type ResultVisitor interface {
	VisitSearch(*SearchResult)
	VisitDetails(*DetailsResult)
	VisitMovies(*MoviesResult)
	VisitShows(*ShowsResult)
	VisitGenres(*GenresResult)
	VisitContinueWatching(*ContinueWatchingResult)
	VisitPeople(*PeopleResult)
	VisitPerson(*PersonResult)
	VisitSimilar(*SimilarResult)
	VisitSeasons(*SeasonsResult)
	VisitEpisodes(*EpisodesResult)
	VisitNavigate(*NavigateDirective)
	VisitPlay(*PlayDirective)
	VisitTheme(*ThemeDirective)
	VisitSubtitleMatch(*SubtitleMatchResult)
	VisitSceneExplanation(*SceneExplanationResult)
	VisitAnalysis(*AnalysisResult)
	VisitFailure(*Failure)
}

type status struct {
	Success bool `json:"success"`
}

func (s status) Succeeded() bool { return s.Success }
func (status) sealed()           {}

var success = status{Success: true}

type SearchResult struct {
	status
	Query   string       `json:"query"`
	Results []media.Item `json:"results"`
}

type DetailsResult struct {
	status
	Details *media.ItemDetails `json:"details"`
}

type MoviesResult struct {
	status
	Genre  string       `json:"genre"`
	Movies []media.Item `json:"movies"`
}

type ShowsResult struct {
	status
	Genre string       `json:"genre"`
	Shows []media.Item `json:"shows"`
}

type GenresResult struct {
	status
	ItemType media.ItemType `json:"itemType,omitempty"`
	Genres   []media.Genre  `json:"genres"`
}

type ContinueWatchingResult struct {
	status
	Results []media.Item `json:"results"`
}

type PeopleResult struct {
	status
	Query  string         `json:"query"`
	People []media.Person `json:"people"`
}

// PersonResult is a person with their ranked filmography.
type PersonResult struct {
	status
	Person      media.Person `json:"person"`
	Filmography []media.Item `json:"filmography"`
}

type SimilarResult struct {
	status
	ItemID       string       `json:"itemId"`
	SimilarItems []media.Item `json:"similarItems"`
}

type SeasonsResult struct {
	status
	SeriesID string       `json:"seriesId"`
	Seasons  []media.Item `json:"seasons"`
}

type EpisodesResult struct {
	status
	SeriesID string       `json:"seriesId"`
	SeasonID string       `json:"seasonId,omitempty"`
	Episodes []media.Item `json:"episodes"`
}

// NavigateDirective asks the client to open a details page. The server
// never assumes it was applied.
type NavigateDirective struct {
	status
	Action string `json:"action"`
	URL    string `json:"url"`
}

// PlayDirective asks the client to start playback.
type PlayDirective struct {
	status
	Action    string `json:"action"`
	MediaID   string `json:"mediaId"`
	MediaName string `json:"mediaName"`
	MediaType string `json:"mediaType"`
}

type ThemeDirective struct {
	status
	Action string `json:"action"`
	Mode   string `json:"mode"`
}

// SubtitleMatchResult asks the client to seek to the matched line.
type SubtitleMatchResult struct {
	status
	Action             string  `json:"action"`
	MediaID            string  `json:"mediaId"`
	Timestamp          float64 `json:"timestamp"`
	FormattedTimestamp string  `json:"formattedTimestamp"`
	SubtitleText       string  `json:"subtitleText"`
	RequestedTimestamp string  `json:"requestedTimestamp"`
}

type SceneExplanationResult struct {
	status
	Explanation        string           `json:"explanation"`
	Timestamp          float64          `json:"timestamp"`
	FormattedTimestamp string           `json:"formattedTimestamp"`
	Subtitles          []subtitle.Entry `json:"subtitles"`
}

type AnalysisResult struct {
	status
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Failure is the only variant with success=false.
type Failure struct {
	status
	Error string `json:"error"`
}

// NewSearch builds a successful search result.
func NewSearch(query string, items []media.Item) *SearchResult {
	return &SearchResult{status: success, Query: query, Results: orEmpty(items)}
}

// NewAnalysis builds a successful transcript answer.
func NewAnalysis(question, answer string) *AnalysisResult {
	return &AnalysisResult{status: success, Question: question, Answer: answer}
}

// Fail builds a failure with a human readable reason.
func Fail(reason string) *Failure {
	return &Failure{Error: reason}
}

func (r *SearchResult) Accept(v ResultVisitor)           { v.VisitSearch(r) }
func (r *DetailsResult) Accept(v ResultVisitor)          { v.VisitDetails(r) }
func (r *MoviesResult) Accept(v ResultVisitor)           { v.VisitMovies(r) }
func (r *ShowsResult) Accept(v ResultVisitor)            { v.VisitShows(r) }
func (r *GenresResult) Accept(v ResultVisitor)           { v.VisitGenres(r) }
func (r *ContinueWatchingResult) Accept(v ResultVisitor) { v.VisitContinueWatching(r) }
func (r *PeopleResult) Accept(v ResultVisitor)           { v.VisitPeople(r) }
func (r *PersonResult) Accept(v ResultVisitor)           { v.VisitPerson(r) }
func (r *SimilarResult) Accept(v ResultVisitor)          { v.VisitSimilar(r) }
func (r *SeasonsResult) Accept(v ResultVisitor)          { v.VisitSeasons(r) }
func (r *EpisodesResult) Accept(v ResultVisitor)         { v.VisitEpisodes(r) }
func (r *NavigateDirective) Accept(v ResultVisitor)      { v.VisitNavigate(r) }
func (r *PlayDirective) Accept(v ResultVisitor)          { v.VisitPlay(r) }
func (r *ThemeDirective) Accept(v ResultVisitor)         { v.VisitTheme(r) }
func (r *SubtitleMatchResult) Accept(v ResultVisitor)    { v.VisitSubtitleMatch(r) }
func (r *SceneExplanationResult) Accept(v ResultVisitor) { v.VisitSceneExplanation(r) }
func (r *AnalysisResult) Accept(v ResultVisitor)         { v.VisitAnalysis(r) }
func (r *Failure) Accept(v ResultVisitor)                { v.VisitFailure(r) }

// Encode renders a result as the JSON fed back to the model.
func Encode(r Result) string {
	raw, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"result could not be encoded"}`
	}
	return string(raw)
}

// Card names the client card used to render a result.
type Card string

const (
	CardMediaList  Card = "media-list"
	CardDetails    Card = "media-details"
	CardGenres     Card = "genres"
	CardPeople     Card = "people"
	CardPerson     Card = "person"
	CardSeasons    Card = "seasons"
	CardEpisodes   Card = "episodes"
	CardNavigation Card = "navigation"
	CardPlayback   Card = "playback"
	CardTheme      Card = "theme"
	CardSeek       Card = "subtitle-seek"
	CardScene      Card = "scene"
	CardAnalysis   Card = "analysis"
	CardError      Card = "error"
)

type cardVisitor struct{ card Card }

// CardFor reports which card renders r.
func CardFor(r Result) Card {
	var cv cardVisitor
	r.Accept(&cv)
	return cv.card
}

func (c *cardVisitor) VisitSearch(*SearchResult)                     { c.card = CardMediaList }
func (c *cardVisitor) VisitDetails(*DetailsResult)                   { c.card = CardDetails }
func (c *cardVisitor) VisitMovies(*MoviesResult)                     { c.card = CardMediaList }
func (c *cardVisitor) VisitShows(*ShowsResult)                       { c.card = CardMediaList }
func (c *cardVisitor) VisitGenres(*GenresResult)                     { c.card = CardGenres }
func (c *cardVisitor) VisitContinueWatching(*ContinueWatchingResult) { c.card = CardMediaList }
func (c *cardVisitor) VisitPeople(*PeopleResult)                     { c.card = CardPeople }
func (c *cardVisitor) VisitPerson(*PersonResult)                     { c.card = CardPerson }
func (c *cardVisitor) VisitSimilar(*SimilarResult)                   { c.card = CardMediaList }
func (c *cardVisitor) VisitSeasons(*SeasonsResult)                   { c.card = CardSeasons }
func (c *cardVisitor) VisitEpisodes(*EpisodesResult)                 { c.card = CardEpisodes }
func (c *cardVisitor) VisitNavigate(*NavigateDirective)              { c.card = CardNavigation }
func (c *cardVisitor) VisitPlay(*PlayDirective)                      { c.card = CardPlayback }
func (c *cardVisitor) VisitTheme(*ThemeDirective)                    { c.card = CardTheme }
func (c *cardVisitor) VisitSubtitleMatch(*SubtitleMatchResult)       { c.card = CardSeek }
func (c *cardVisitor) VisitSceneExplanation(*SceneExplanationResult) { c.card = CardScene }
func (c *cardVisitor) VisitAnalysis(*AnalysisResult)                 { c.card = CardAnalysis }
func (c *cardVisitor) VisitFailure(*Failure)                         { c.card = CardError }

var _ ResultVisitor = (*cardVisitor)(nil)
