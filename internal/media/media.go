// Package media defines the Media Data Provider contract used by the
// Navigator tools and a Jellyfin implementation of it.
package media

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the server has no item for an id.
var ErrNotFound = errors.New("item not found")

// ItemType is a Jellyfin BaseItemKind.
type ItemType string

const (
	TypeMovie   ItemType = "Movie"
	TypeSeries  ItemType = "Series"
	TypeSeason  ItemType = "Season"
	TypeEpisode ItemType = "Episode"
	TypePerson  ItemType = "Person"
)

// Item is the library item shape handed to tools and, through their
// results, to the client.
type Item struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Type             ItemType `json:"type"`
	ProductionYear   int      `json:"productionYear,omitempty"`
	CommunityRating  float64  `json:"communityRating,omitempty"`
	OfficialRating   string   `json:"officialRating,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	RunTimeTicks     int64    `json:"runTimeTicks,omitempty"`
	Genres           []string `json:"genres,omitempty"`
	SeriesID         string   `json:"seriesId,omitempty"`
	SeriesName       string   `json:"seriesName,omitempty"`
	SeasonID         string   `json:"seasonId,omitempty"`
	SeasonNumber     int      `json:"seasonNumber,omitempty"`
	EpisodeNumber    int      `json:"episodeNumber,omitempty"`
	PlayedPercentage float64  `json:"playedPercentage,omitempty"`
	Role             string   `json:"role,omitempty"`
}

// Person is a cast or crew member.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	Type string `json:"type,omitempty"`
}

// Genre maps a display name to the server's genre id.
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SubtitleStream describes one subtitle track of a media source.
type SubtitleStream struct {
	Index        int    `json:"index"`
	Language     string `json:"language,omitempty"`
	DisplayTitle string `json:"displayTitle,omitempty"`
	IsDefault    bool   `json:"isDefault,omitempty"`
	IsExternal   bool   `json:"isExternal,omitempty"`
}

// MediaSource is one playable version of an item.
type MediaSource struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Subtitles []SubtitleStream `json:"subtitles,omitempty"`
}

// ItemDetails is an item with the extra fields of a detail page.
type ItemDetails struct {
	Item
	Taglines     []string      `json:"taglines,omitempty"`
	Studios      []string      `json:"studios,omitempty"`
	People       []Person      `json:"people,omitempty"`
	MediaSources []MediaSource `json:"mediaSources,omitempty"`
}

// DefaultSubtitle returns the default subtitle stream of the given source,
// or its first one. ok is false when the source has no subtitles.
func (d *ItemDetails) DefaultSubtitle(mediaSourceID string) (SubtitleStream, bool) {
	for _, src := range d.MediaSources {
		if mediaSourceID != "" && src.ID != mediaSourceID {
			continue
		}
		for _, s := range src.Subtitles {
			if s.IsDefault {
				return s, true
			}
		}
		if len(src.Subtitles) > 0 {
			return src.Subtitles[0], true
		}
	}
	return SubtitleStream{}, false
}

// SubtitleEvent is one cue of a subtitle track as delivered by the server.
type SubtitleEvent struct {
	StartPositionTicks int64  `json:"StartPositionTicks"`
	EndPositionTicks   int64  `json:"EndPositionTicks"`
	Text               string `json:"Text"`
}

// Library is the Media Data Provider used by the tools. Implementations are
// bound to one authenticated user.
type Library interface {
	Search(ctx context.Context, query string, types []ItemType, limit int) ([]Item, error)
	Item(ctx context.Context, id string) (*ItemDetails, error)
	Genres(ctx context.Context, itemType ItemType) ([]Genre, error)
	ItemsByGenre(ctx context.Context, genreID string, itemType ItemType, limit int) ([]Item, error)
	ContinueWatching(ctx context.Context, limit int) ([]Item, error)
	SearchPeople(ctx context.Context, query string, limit int) ([]Person, error)
	PersonItems(ctx context.Context, personID string) ([]Item, error)
	Similar(ctx context.Context, id string, limit int) ([]Item, error)
	Seasons(ctx context.Context, seriesID string) ([]Item, error)
	Episodes(ctx context.Context, seriesID, seasonID string) ([]Item, error)
	SubtitleTrack(ctx context.Context, itemID, mediaSourceID string, index int) ([]SubtitleEvent, error)
}
