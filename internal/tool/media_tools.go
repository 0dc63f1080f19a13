package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/media"
)

type searchInput struct {
	Query     string `json:"query"`
	MediaType string `json:"mediaType"`
	Limit     *int   `json:"limit"`
}

func (c *catalog) searchMedia() Executor {
	info := domain.Tool{
		Name:        "searchMedia",
		Description: "Search the library for movies, series and episodes by title or keywords. Use this first to find an item id before navigating to or playing it.",
		Parameters: object(map[string]any{
			"query":     str("Title or keywords to search for"),
			"mediaType": enum("Restrict results to one type", "Movie", "Series", "Episode"),
			"limit":     limitProp(),
		}, "query"),
	}
	return typed(info, func(ctx context.Context, in searchInput) Result {
		query := strings.TrimSpace(in.Query)
		if query == "" {
			return Fail("Search query must not be empty.")
		}

		types := []media.ItemType{media.TypeMovie, media.TypeSeries, media.TypeEpisode}
		if in.MediaType != "" {
			types = []media.ItemType{media.ItemType(in.MediaType)}
		}

		limit := c.pageSize(in.Limit)
		items, err := c.lib.Search(ctx, query, types, limit)
		if err != nil {
			return c.upstream(info.Name, err, fmt.Sprintf("Search for %q failed. The media server could not be reached.", query))
		}
		return NewSearch(query, truncate(items, limit))
	})
}

type mediaIDInput struct {
	MediaID string `json:"mediaId"`
}

func (c *catalog) getMediaDetails() Executor {
	info := domain.Tool{
		Name:        "getMediaDetails",
		Description: "Get full details (overview, rating, cast, studios) for one item by id.",
		Parameters: object(map[string]any{
			"mediaId": str("Item id returned by a previous search"),
		}, "mediaId"),
	}
	return typed(info, func(ctx context.Context, in mediaIDInput) Result {
		details, err := c.lib.Item(ctx, in.MediaID)
		if errors.Is(err, media.ErrNotFound) {
			return Fail(fmt.Sprintf("No item with id %q exists in the library.", in.MediaID))
		}
		if err != nil {
			return c.upstream(info.Name, err, "Could not load item details from the media server.")
		}
		return &DetailsResult{status: success, Details: details}
	})
}

type genreInput struct {
	GenreName string `json:"genreName"`
	Limit     *int   `json:"limit"`
}

func (c *catalog) getMoviesByGenre() Executor {
	info := domain.Tool{
		Name:        "getMoviesByGenre",
		Description: "List movies in a genre, best rated first. Use the library's genre name (for example \"Science Fiction\", not \"Sci-fi\").",
		Parameters: object(map[string]any{
			"genreName": str("Genre name as it appears in the library"),
			"limit":     limitProp(),
		}, "genreName"),
	}
	return typed(info, func(ctx context.Context, in genreInput) Result {
		genre, items, fail := c.itemsByGenre(ctx, info.Name, in, media.TypeMovie)
		if fail != nil {
			return fail
		}
		return &MoviesResult{status: success, Genre: genre, Movies: items}
	})
}

func (c *catalog) getShowsByGenre() Executor {
	info := domain.Tool{
		Name:        "getShowsByGenre",
		Description: "List TV series in a genre, best rated first. Use the library's genre name.",
		Parameters: object(map[string]any{
			"genreName": str("Genre name as it appears in the library"),
			"limit":     limitProp(),
		}, "genreName"),
	}
	return typed(info, func(ctx context.Context, in genreInput) Result {
		genre, items, fail := c.itemsByGenre(ctx, info.Name, in, media.TypeSeries)
		if fail != nil {
			return fail
		}
		return &ShowsResult{status: success, Genre: genre, Shows: items}
	})
}

// itemsByGenre resolves the genre name to its id, then lists items. A
// missing genre and an empty genre are reported differently.
func (c *catalog) itemsByGenre(ctx context.Context, tool string, in genreInput, itemType media.ItemType) (string, []media.Item, *Failure) {
	name := strings.TrimSpace(in.GenreName)
	if name == "" {
		return "", nil, Fail("Genre name must not be empty.")
	}

	genres, err := c.lib.Genres(ctx, itemType)
	if err != nil {
		return "", nil, c.upstream(tool, err, "Could not load the genre list from the media server.")
	}

	genre, found := findGenre(genres, name)
	if !found {
		return "", nil, Fail(genreNotFound(name, genres))
	}

	limit := c.pageSize(in.Limit)
	items, err := c.lib.ItemsByGenre(ctx, genre.ID, itemType, limit)
	if err != nil {
		return "", nil, c.upstream(tool, err, fmt.Sprintf("Could not load items for genre %q.", genre.Name))
	}
	return genre.Name, truncate(items, limit), nil
}

func findGenre(genres []media.Genre, name string) (media.Genre, bool) {
	for _, g := range genres {
		if strings.EqualFold(strings.TrimSpace(g.Name), name) {
			return g, true
		}
	}
	return media.Genre{}, false
}

type genreNames []media.Genre

func (g genreNames) String(i int) string { return g[i].Name }
func (g genreNames) Len() int            { return len(g) }

// genreNotFound suggests close names but never picks one on the model's
// behalf.
func genreNotFound(name string, genres []media.Genre) string {
	msg := fmt.Sprintf("Genre %q was not found.", name)

	matches := fuzzy.FindFrom(name, genreNames(genres))
	if len(matches) > 0 {
		suggestions := make([]string, 0, 3)
		for _, m := range matches {
			suggestions = append(suggestions, genres[m.Index].Name)
			if len(suggestions) == 3 {
				break
			}
		}
		return fmt.Sprintf("%s Did you mean: %s?", msg, strings.Join(suggestions, ", "))
	}

	if len(genres) == 0 {
		return msg + " The library has no genres."
	}
	names := make([]string, len(genres))
	for i, g := range genres {
		names[i] = g.Name
	}
	sort.Strings(names)
	return fmt.Sprintf("%s Available genres: %s.", msg, strings.Join(names, ", "))
}

type listGenresInput struct {
	MediaType string `json:"mediaType"`
}

func (c *catalog) listGenres() Executor {
	info := domain.Tool{
		Name:        "listGenres",
		Description: "List the genres available in the library.",
		Parameters: object(map[string]any{
			"mediaType": enum("Only genres used by this type", "Movie", "Series"),
		}),
	}
	return typed(info, func(ctx context.Context, in listGenresInput) Result {
		itemType := media.ItemType(in.MediaType)
		genres, err := c.lib.Genres(ctx, itemType)
		if err != nil {
			return c.upstream(info.Name, err, "Could not load the genre list from the media server.")
		}
		return &GenresResult{status: success, ItemType: itemType, Genres: orEmpty(genres)}
	})
}

type limitInput struct {
	Limit *int `json:"limit"`
}

func (c *catalog) getContinueWatching() Executor {
	info := domain.Tool{
		Name:        "getContinueWatching",
		Description: "List partially watched items the user can resume.",
		Parameters: object(map[string]any{
			"limit": limitProp(),
		}),
	}
	return typed(info, func(ctx context.Context, in limitInput) Result {
		limit := c.pageSize(in.Limit)
		items, err := c.lib.ContinueWatching(ctx, limit)
		if err != nil {
			return c.upstream(info.Name, err, "Could not load the continue watching list.")
		}
		return &ContinueWatchingResult{status: success, Results: truncate(items, limit)}
	})
}

type peopleInput struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

func (c *catalog) searchPeople() Executor {
	info := domain.Tool{
		Name:        "searchPeople",
		Description: "Search for actors, directors and other people by name.",
		Parameters: object(map[string]any{
			"query": str("Person name or part of it"),
			"limit": limitProp(),
		}, "query"),
	}
	return typed(info, func(ctx context.Context, in peopleInput) Result {
		query := strings.TrimSpace(in.Query)
		if query == "" {
			return Fail("Person name must not be empty.")
		}
		limit := c.pageSize(in.Limit)
		people, err := c.lib.SearchPeople(ctx, query, limit)
		if err != nil {
			return c.upstream(info.Name, err, fmt.Sprintf("Search for people named %q failed.", query))
		}
		return &PeopleResult{status: success, Query: query, People: truncate(people, limit)}
	})
}

type filmographyInput struct {
	PersonName string `json:"personName"`
	Limit      *int   `json:"limit"`
}

func (c *catalog) getPersonFilmography() Executor {
	info := domain.Tool{
		Name:        "getPersonFilmography",
		Description: "Find a person and list the movies and series in the library they appear in, best rated first. Use for questions like \"best Tom Hanks movies\".",
		Parameters: object(map[string]any{
			"personName": str("Full name of the actor or director"),
			"limit":      limitProp(),
		}, "personName"),
	}
	return typed(info, func(ctx context.Context, in filmographyInput) Result {
		name := strings.TrimSpace(in.PersonName)
		if name == "" {
			return Fail("Person name must not be empty.")
		}

		people, err := c.lib.SearchPeople(ctx, name, 5)
		if err != nil {
			return c.upstream(info.Name, err, fmt.Sprintf("Search for %q failed.", name))
		}
		if len(people) == 0 {
			return Fail(fmt.Sprintf("No person named %q was found in the library.", name))
		}
		person := people[0]
		for _, p := range people {
			if strings.EqualFold(p.Name, name) {
				person = p
				break
			}
		}

		items, err := c.lib.PersonItems(ctx, person.ID)
		if err != nil {
			return c.upstream(info.Name, err, fmt.Sprintf("Could not load the filmography of %s.", person.Name))
		}
		RankFilmography(items)
		return &PersonResult{status: success, Person: person, Filmography: truncate(items, c.pageSize(in.Limit))}
	})
}

// RankFilmography orders items by community rating, then by year, both
// descending.
func RankFilmography(items []media.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CommunityRating != items[j].CommunityRating {
			return items[i].CommunityRating > items[j].CommunityRating
		}
		return items[i].ProductionYear > items[j].ProductionYear
	})
}

type similarInput struct {
	MediaID string `json:"mediaId"`
	Limit   *int   `json:"limit"`
}

func (c *catalog) getSimilarItems() Executor {
	info := domain.Tool{
		Name:        "getSimilarItems",
		Description: "Recommend items similar to a given movie or series.",
		Parameters: object(map[string]any{
			"mediaId": str("Id of the item to find similar titles for"),
			"limit":   limitProp(),
		}, "mediaId"),
	}
	return typed(info, func(ctx context.Context, in similarInput) Result {
		limit := c.pageSize(in.Limit)
		items, err := c.lib.Similar(ctx, in.MediaID, limit)
		if errors.Is(err, media.ErrNotFound) {
			return Fail(fmt.Sprintf("No item with id %q exists in the library.", in.MediaID))
		}
		if err != nil {
			return c.upstream(info.Name, err, "Could not load similar items.")
		}
		return &SimilarResult{status: success, ItemID: in.MediaID, SimilarItems: truncate(items, limit)}
	})
}

type seasonsInput struct {
	SeriesID string `json:"seriesId"`
}

func (c *catalog) getSeasons() Executor {
	info := domain.Tool{
		Name:        "getSeasons",
		Description: "List the seasons of a series.",
		Parameters: object(map[string]any{
			"seriesId": str("Series id"),
		}, "seriesId"),
	}
	return typed(info, func(ctx context.Context, in seasonsInput) Result {
		seasons, err := c.lib.Seasons(ctx, in.SeriesID)
		if errors.Is(err, media.ErrNotFound) {
			return Fail(fmt.Sprintf("No series with id %q exists in the library.", in.SeriesID))
		}
		if err != nil {
			return c.upstream(info.Name, err, "Could not load the seasons of this series.")
		}
		return &SeasonsResult{status: success, SeriesID: in.SeriesID, Seasons: orEmpty(seasons)}
	})
}

type episodesInput struct {
	SeriesID string `json:"seriesId"`
	SeasonID string `json:"seasonId"`
}

func (c *catalog) getEpisodes() Executor {
	info := domain.Tool{
		Name:        "getEpisodes",
		Description: "List the episodes of a series, optionally for one season.",
		Parameters: object(map[string]any{
			"seriesId": str("Series id"),
			"seasonId": str("Season id from getSeasons"),
		}, "seriesId"),
	}
	return typed(info, func(ctx context.Context, in episodesInput) Result {
		episodes, err := c.lib.Episodes(ctx, in.SeriesID, in.SeasonID)
		if errors.Is(err, media.ErrNotFound) {
			return Fail(fmt.Sprintf("No series with id %q exists in the library.", in.SeriesID))
		}
		if err != nil {
			return c.upstream(info.Name, err, "Could not load the episodes of this series.")
		}
		return &EpisodesResult{
			status:   success,
			SeriesID: in.SeriesID,
			SeasonID: in.SeasonID,
			Episodes: orEmpty(episodes),
		}
	})
}
