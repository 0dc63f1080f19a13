package testutil

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/joss/navigator/internal/media"
)

// FakeLibrary is an in-memory media.Library. Set Err to make every call
// fail; Calls counts invocations per method name.
type FakeLibrary struct {
	Items      []media.Item
	Details    map[string]*media.ItemDetails
	GenreList  map[media.ItemType][]media.Genre
	ByGenre    map[string][]media.Item
	Resume     []media.Item
	People     []media.Person
	Credits    map[string][]media.Item
	SimilarTo  map[string][]media.Item
	SeasonsOf  map[string][]media.Item
	EpisodesOf map[string][]media.Item
	Tracks     map[string][]media.SubtitleEvent
	Err        error

	mu    sync.Mutex
	calls map[string]int
}

func NewFakeLibrary() *FakeLibrary {
	return &FakeLibrary{
		Details:    map[string]*media.ItemDetails{},
		GenreList:  map[media.ItemType][]media.Genre{},
		ByGenre:    map[string][]media.Item{},
		Credits:    map[string][]media.Item{},
		SimilarTo:  map[string][]media.Item{},
		SeasonsOf:  map[string][]media.Item{},
		EpisodesOf: map[string][]media.Item{},
		Tracks:     map[string][]media.SubtitleEvent{},
	}
}

// TrackKey is the Tracks map key for one subtitle stream.
func TrackKey(itemID, mediaSourceID string, index int) string {
	return itemID + "/" + mediaSourceID + "/" + strconv.Itoa(index)
}

func (f *FakeLibrary) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
	return f.Err
}

// Calls returns how often method was invoked.
func (f *FakeLibrary) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (f *FakeLibrary) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func limitItems(items []media.Item, limit int) []media.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func (f *FakeLibrary) Search(_ context.Context, query string, types []media.ItemType, limit int) ([]media.Item, error) {
	if err := f.record("Search"); err != nil {
		return nil, err
	}
	var out []media.Item
	for _, it := range f.Items {
		if !strings.Contains(strings.ToLower(it.Name), strings.ToLower(query)) {
			continue
		}
		for _, t := range types {
			if it.Type == t {
				out = append(out, it)
				break
			}
		}
	}
	return limitItems(out, limit), nil
}

func (f *FakeLibrary) Item(_ context.Context, id string) (*media.ItemDetails, error) {
	if err := f.record("Item"); err != nil {
		return nil, err
	}
	d, ok := f.Details[id]
	if !ok {
		return nil, media.ErrNotFound
	}
	return d, nil
}

func (f *FakeLibrary) Genres(_ context.Context, itemType media.ItemType) ([]media.Genre, error) {
	if err := f.record("Genres"); err != nil {
		return nil, err
	}
	if itemType == "" {
		var all []media.Genre
		for _, g := range f.GenreList {
			all = append(all, g...)
		}
		return all, nil
	}
	return f.GenreList[itemType], nil
}

func (f *FakeLibrary) ItemsByGenre(_ context.Context, genreID string, itemType media.ItemType, limit int) ([]media.Item, error) {
	if err := f.record("ItemsByGenre"); err != nil {
		return nil, err
	}
	var out []media.Item
	for _, it := range f.ByGenre[genreID] {
		if it.Type == itemType {
			out = append(out, it)
		}
	}
	return limitItems(out, limit), nil
}

func (f *FakeLibrary) ContinueWatching(_ context.Context, limit int) ([]media.Item, error) {
	if err := f.record("ContinueWatching"); err != nil {
		return nil, err
	}
	return limitItems(f.Resume, limit), nil
}

func (f *FakeLibrary) SearchPeople(_ context.Context, query string, limit int) ([]media.Person, error) {
	if err := f.record("SearchPeople"); err != nil {
		return nil, err
	}
	var out []media.Person
	for _, p := range f.People {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeLibrary) PersonItems(_ context.Context, personID string) ([]media.Item, error) {
	if err := f.record("PersonItems"); err != nil {
		return nil, err
	}
	return append([]media.Item(nil), f.Credits[personID]...), nil
}

func (f *FakeLibrary) Similar(_ context.Context, id string, limit int) ([]media.Item, error) {
	if err := f.record("Similar"); err != nil {
		return nil, err
	}
	items, ok := f.SimilarTo[id]
	if !ok {
		return nil, media.ErrNotFound
	}
	return limitItems(items, limit), nil
}

func (f *FakeLibrary) Seasons(_ context.Context, seriesID string) ([]media.Item, error) {
	if err := f.record("Seasons"); err != nil {
		return nil, err
	}
	seasons, ok := f.SeasonsOf[seriesID]
	if !ok {
		return nil, media.ErrNotFound
	}
	return seasons, nil
}

func (f *FakeLibrary) Episodes(_ context.Context, seriesID, seasonID string) ([]media.Item, error) {
	if err := f.record("Episodes"); err != nil {
		return nil, err
	}
	episodes, ok := f.EpisodesOf[seriesID]
	if !ok {
		return nil, media.ErrNotFound
	}
	if seasonID == "" {
		return episodes, nil
	}
	var out []media.Item
	for _, e := range episodes {
		if e.SeasonID == seasonID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *FakeLibrary) SubtitleTrack(_ context.Context, itemID, mediaSourceID string, index int) ([]media.SubtitleEvent, error) {
	if err := f.record("SubtitleTrack"); err != nil {
		return nil, err
	}
	events, ok := f.Tracks[TrackKey(itemID, mediaSourceID, index)]
	if !ok {
		return nil, media.ErrNotFound
	}
	return events, nil
}

var _ media.Library = (*FakeLibrary)(nil)
