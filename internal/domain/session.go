package domain

import "fmt"

// MediaType is the kind of item the client can navigate to or play.
type MediaType string

const (
	MediaMovie   MediaType = "Movie"
	MediaSeries  MediaType = "Series"
	MediaEpisode MediaType = "Episode"
)

// Valid reports whether t is one of the navigable media types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaMovie, MediaSeries, MediaEpisode:
		return true
	}
	return false
}

// MediaContext identifies the item currently playing in the client.
type MediaContext struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Type          MediaType `json:"type"`
	MediaSourceID string    `json:"mediaSourceId,omitempty"`
}

// SessionContext is the playback state supplied with one chat request.
// It is rebuilt from the request body every time and never stored.
type SessionContext struct {
	CurrentMedia     *MediaContext `json:"currentMedia,omitempty"`
	CurrentTimestamp *float64      `json:"currentTimestamp,omitempty"`
}

// Playing reports whether the client has media loaded.
func (s SessionContext) Playing() bool {
	return s.CurrentMedia != nil && s.CurrentMedia.ID != ""
}

// ProviderSelection picks the model backend for one request. Empty fields
// fall back to server side configuration.
type ProviderSelection struct {
	Provider string `json:"aiProvider,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"-"`
}

func (p ProviderSelection) String() string {
	return fmt.Sprintf("%s/%s", p.Provider, p.Model)
}
