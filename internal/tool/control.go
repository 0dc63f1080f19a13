package tool

import (
	"context"
	"net/url"

	"github.com/joss/navigator/internal/domain"
)

// DetailsURL is the client route of an item's detail page.
func DetailsURL(mediaType domain.MediaType, id string) string {
	var prefix string
	switch mediaType {
	case domain.MediaSeries:
		prefix = "/series/"
	case domain.MediaEpisode:
		prefix = "/episode/"
	default:
		prefix = "/movie/"
	}
	return prefix + url.PathEscape(id)
}

var mediaTypes = []string{string(domain.MediaMovie), string(domain.MediaSeries), string(domain.MediaEpisode)}

type navigateInput struct {
	MediaID   string `json:"mediaId"`
	MediaType string `json:"mediaType"`
}

func (c *catalog) navigateToMedia() Executor {
	info := domain.Tool{
		Name:        "navigateToMedia",
		Description: "Open the details page of a movie, series or episode. Requires an id from searchMedia.",
		Parameters: object(map[string]any{
			"mediaId":   str("Item id"),
			"mediaType": enum("Item type", mediaTypes...),
		}, "mediaId", "mediaType"),
	}
	return typed(info, func(_ context.Context, in navigateInput) Result {
		return &NavigateDirective{
			status: success,
			Action: "navigate",
			URL:    DetailsURL(domain.MediaType(in.MediaType), in.MediaID),
		}
	})
}

type playInput struct {
	MediaID   string `json:"mediaId"`
	MediaName string `json:"mediaName"`
	MediaType string `json:"mediaType"`
}

func (c *catalog) playMedia() Executor {
	info := domain.Tool{
		Name:        "playMedia",
		Description: "Start playback of an item. Always search first and pass the id and name from the search result.",
		Parameters: object(map[string]any{
			"mediaId":   str("Item id from searchMedia"),
			"mediaName": str("Item name, shown to the user"),
			"mediaType": enum("Item type", mediaTypes...),
		}, "mediaId", "mediaName", "mediaType"),
	}
	return typed(info, func(_ context.Context, in playInput) Result {
		return &PlayDirective{
			status:    success,
			Action:    "play",
			MediaID:   in.MediaID,
			MediaName: in.MediaName,
			MediaType: in.MediaType,
		}
	})
}

type themeInput struct {
	Action string `json:"action"`
}

func (c *catalog) themeToggle() Executor {
	info := domain.Tool{
		Name:        "themeToggle",
		Description: "Switch the client color theme.",
		Parameters: object(map[string]any{
			"action": enum("toggle flips light and dark, the others set a mode", "toggle", "light", "dark", "system"),
		}, "action"),
	}
	return typed(info, func(_ context.Context, in themeInput) Result {
		return &ThemeDirective{status: success, Action: "theme", Mode: in.Action}
	})
}
