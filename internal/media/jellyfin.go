package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/joss/navigator/internal/logging"
)

// ClientConfig configures the shared Jellyfin client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	CacheSize  int
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// Auth is the per-request Jellyfin session forwarded by the web client.
type Auth struct {
	Token  string
	UserID string
}

// Client talks to one Jellyfin server. It is shared across requests; the
// per-user view is obtained with ForUser.
type Client struct {
	baseURL   string
	http      *retryablehttp.Client
	genres    *expirable.LRU[string, []Genre]
	subtitles *expirable.LRU[string, []SubtitleEvent]
	log       *logging.Logger
}

// NewClient creates a Jellyfin client with retrying transport and caches.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	log := logging.New("jellyfin")

	rc := retryablehttp.NewClient()
	if cfg.HTTPClient != nil {
		rc.HTTPClient = cfg.HTTPClient
	}
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.RetryMax = cfg.Retries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{log}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      rc,
		genres:    expirable.NewLRU[string, []Genre](cfg.CacheSize, nil, cfg.CacheTTL),
		subtitles: expirable.NewLRU[string, []SubtitleEvent](cfg.CacheSize, nil, cfg.CacheTTL),
		log:       log,
	}
}

// ForUser binds the client to an authenticated user.
func (c *Client) ForUser(auth Auth) *UserLibrary {
	return &UserLibrary{client: c, auth: auth}
}

// ServerInfo is the public identity of a Jellyfin server.
type ServerInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

// Ping reads the unauthenticated public system info. It is used by the
// readiness check and does not need a user session.
func (c *Client) Ping(ctx context.Context) (*ServerInfo, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/System/Info/Public", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jellyfin ping: %w", err)
	}
	var info ServerInfo
	if err := readJSON(resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// leveledLogger routes retryablehttp logs through the component logger.
type leveledLogger struct {
	log *logging.Logger
}

func kv(keysAndValues []any) map[string]any {
	if len(keysAndValues) == 0 {
		return nil
	}
	extra := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		extra[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return extra
}

func (l leveledLogger) Error(msg string, keysAndValues ...any) {
	l.log.Error(msg, kv(keysAndValues), nil)
}
func (l leveledLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kv(keysAndValues))
}
func (l leveledLogger) Debug(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kv(keysAndValues))
}
func (l leveledLogger) Warn(msg string, keysAndValues ...any) {
	l.log.Warn(msg, kv(keysAndValues), nil)
}

// UserLibrary implements Library for one user.
type UserLibrary struct {
	client *Client
	auth   Auth
}

var _ Library = (*UserLibrary)(nil)

// get performs an authenticated GET and decodes the JSON body into dst.
func (u *UserLibrary) get(ctx context.Context, path string, query url.Values, dst any) error {
	endpoint := u.client.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", u.auth.Token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := u.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("jellyfin request %s: %w", path, err)
	}
	u.client.log.TimedEvent("request", start, map[string]any{"path": path, "status": resp.StatusCode})
	return readJSON(resp, dst)
}

// readJSON reads and parses JSON response
func readJSON(resp *http.Response, dst any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d from %s: %s", resp.StatusCode, resp.Request.URL.Path, snippet(body))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode json from %s: %w; body: %q", resp.Request.URL.Path, err, snippet(body))
	}
	return nil
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > 240 {
		s = s[:240] + "…"
	}
	return s
}

const itemFields = "Overview,Genres,ProductionYear,CommunityRating,OfficialRating"

func joinTypes(types []ItemType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ",")
}

func (u *UserLibrary) queryItems(ctx context.Context, q url.Values) ([]Item, error) {
	q.Set("Recursive", "true")
	q.Set("Fields", itemFields)
	var resp jfItemsResponse
	if err := u.get(ctx, "/Users/"+u.auth.UserID+"/Items", q, &resp); err != nil {
		return nil, err
	}
	return resp.items(), nil
}

// Search finds items whose name matches query.
func (u *UserLibrary) Search(ctx context.Context, query string, types []ItemType, limit int) ([]Item, error) {
	if len(types) == 0 {
		types = []ItemType{TypeMovie, TypeSeries, TypeEpisode}
	}
	q := url.Values{}
	q.Set("searchTerm", query)
	q.Set("IncludeItemTypes", joinTypes(types))
	q.Set("Limit", strconv.Itoa(limit))
	return u.queryItems(ctx, q)
}

// Item fetches one item with people and media sources.
func (u *UserLibrary) Item(ctx context.Context, id string) (*ItemDetails, error) {
	var it jfItem
	if err := u.get(ctx, "/Users/"+u.auth.UserID+"/Items/"+url.PathEscape(id), nil, &it); err != nil {
		return nil, err
	}
	return it.details(), nil
}

// Genres lists the genres present for an item type. Results are cached per
// user because genre lists rarely change.
func (u *UserLibrary) Genres(ctx context.Context, itemType ItemType) ([]Genre, error) {
	key := u.auth.UserID + "|" + string(itemType)
	if g, ok := u.client.genres.Get(key); ok {
		return g, nil
	}

	q := url.Values{}
	q.Set("UserId", u.auth.UserID)
	q.Set("IncludeItemTypes", string(itemType))
	q.Set("Recursive", "true")
	var resp jfItemsResponse
	if err := u.get(ctx, "/Genres", q, &resp); err != nil {
		return nil, err
	}

	genres := make([]Genre, 0, len(resp.Items))
	for _, it := range resp.Items {
		genres = append(genres, Genre{ID: it.ID, Name: it.Name})
	}
	u.client.genres.Add(key, genres)
	return genres, nil
}

// ItemsByGenre lists items of a type tagged with the genre id.
func (u *UserLibrary) ItemsByGenre(ctx context.Context, genreID string, itemType ItemType, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("GenreIds", genreID)
	q.Set("IncludeItemTypes", string(itemType))
	q.Set("SortBy", "CommunityRating,SortName")
	q.Set("SortOrder", "Descending")
	q.Set("Limit", strconv.Itoa(limit))
	return u.queryItems(ctx, q)
}

// ContinueWatching lists partially watched items.
func (u *UserLibrary) ContinueWatching(ctx context.Context, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("Limit", strconv.Itoa(limit))
	q.Set("MediaTypes", "Video")
	q.Set("Fields", itemFields)
	var resp jfItemsResponse
	if err := u.get(ctx, "/Users/"+u.auth.UserID+"/Items/Resume", q, &resp); err != nil {
		return nil, err
	}
	return resp.items(), nil
}

// SearchPeople finds people by name.
func (u *UserLibrary) SearchPeople(ctx context.Context, query string, limit int) ([]Person, error) {
	q := url.Values{}
	q.Set("searchTerm", query)
	q.Set("Limit", strconv.Itoa(limit))
	q.Set("userId", u.auth.UserID)
	var resp jfItemsResponse
	if err := u.get(ctx, "/Persons", q, &resp); err != nil {
		return nil, err
	}
	people := make([]Person, 0, len(resp.Items))
	for _, it := range resp.Items {
		people = append(people, Person{ID: it.ID, Name: it.Name, Type: it.Type})
	}
	return people, nil
}

// PersonItems lists the movies and shows a person appears in.
func (u *UserLibrary) PersonItems(ctx context.Context, personID string) ([]Item, error) {
	q := url.Values{}
	q.Set("PersonIds", personID)
	q.Set("IncludeItemTypes", joinTypes([]ItemType{TypeMovie, TypeSeries}))
	return u.queryItems(ctx, q)
}

// Similar lists items the server considers similar to id.
func (u *UserLibrary) Similar(ctx context.Context, id string, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("userId", u.auth.UserID)
	q.Set("Limit", strconv.Itoa(limit))
	q.Set("Fields", itemFields)
	var resp jfItemsResponse
	if err := u.get(ctx, "/Items/"+url.PathEscape(id)+"/Similar", q, &resp); err != nil {
		return nil, err
	}
	return resp.items(), nil
}

// Seasons lists the seasons of a series.
func (u *UserLibrary) Seasons(ctx context.Context, seriesID string) ([]Item, error) {
	q := url.Values{}
	q.Set("userId", u.auth.UserID)
	var resp jfItemsResponse
	if err := u.get(ctx, "/Shows/"+url.PathEscape(seriesID)+"/Seasons", q, &resp); err != nil {
		return nil, err
	}
	return resp.items(), nil
}

// Episodes lists episodes of a series, optionally restricted to a season.
func (u *UserLibrary) Episodes(ctx context.Context, seriesID, seasonID string) ([]Item, error) {
	q := url.Values{}
	q.Set("userId", u.auth.UserID)
	q.Set("Fields", "Overview")
	if seasonID != "" {
		q.Set("seasonId", seasonID)
	}
	var resp jfItemsResponse
	if err := u.get(ctx, "/Shows/"+url.PathEscape(seriesID)+"/Episodes", q, &resp); err != nil {
		return nil, err
	}
	return resp.items(), nil
}

// SubtitleTrack fetches a subtitle stream converted to JSON track events.
func (u *UserLibrary) SubtitleTrack(ctx context.Context, itemID, mediaSourceID string, index int) ([]SubtitleEvent, error) {
	key := strings.Join([]string{u.auth.UserID, itemID, mediaSourceID, strconv.Itoa(index)}, "|")
	if events, ok := u.client.subtitles.Get(key); ok {
		return events, nil
	}

	path := fmt.Sprintf("/Videos/%s/%s/Subtitles/%d/Stream.js",
		url.PathEscape(itemID), url.PathEscape(mediaSourceID), index)
	var resp struct {
		TrackEvents []SubtitleEvent `json:"TrackEvents"`
	}
	if err := u.get(ctx, path, nil, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("subtitle stream %d: %w", index, err)
		}
		return nil, err
	}
	u.client.subtitles.Add(key, resp.TrackEvents)
	return resp.TrackEvents, nil
}
