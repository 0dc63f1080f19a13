package tool

import (
	"context"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/logging"
	"github.com/joss/navigator/internal/media"
	"github.com/joss/navigator/internal/subtitle"
)

const (
	DefaultLimit = 20
	maxLimit     = 100
)

// CatalogDeps are the collaborators shared by the catalog tools.
type CatalogDeps struct {
	Library  media.Library
	Resolver *subtitle.Resolver
	// Limit is the default page size of collection tools.
	Limit int
}

type catalog struct {
	lib      media.Library
	resolver *subtitle.Resolver
	limit    int
	session  domain.SessionContext
	log      *logging.Logger
}

// NewCatalog builds the tool set for one chat request. Tools that act on
// the playing item close over session.
func NewCatalog(deps CatalogDeps, session domain.SessionContext) *Registry {
	c := &catalog{
		lib:      deps.Library,
		resolver: deps.Resolver,
		limit:    deps.Limit,
		session:  session,
		log:      logging.New("tool"),
	}
	if c.limit <= 0 {
		c.limit = DefaultLimit
	}

	r := NewRegistry()
	for _, t := range []Executor{
		c.searchMedia(),
		c.getMediaDetails(),
		c.navigateToMedia(),
		c.playMedia(),
		c.getMoviesByGenre(),
		c.getShowsByGenre(),
		c.listGenres(),
		c.getContinueWatching(),
		c.searchPeople(),
		c.getPersonFilmography(),
		c.getSimilarItems(),
		c.getSeasons(),
		c.getEpisodes(),
		c.themeToggle(),
		c.skipToSubtitleContent(),
		c.explainScene(),
		c.analyzeMedia(),
	} {
		r.Register(t)
	}
	return r
}

type funcTool struct {
	info domain.Tool
	run  func(ctx context.Context, args map[string]any) Result
}

func (f *funcTool) Info() domain.Tool { return f.info }

func (f *funcTool) Execute(ctx context.Context, args map[string]any) Result {
	return f.run(ctx, args)
}

// typed wraps run so it receives decoded input instead of raw arguments.
func typed[T any](info domain.Tool, run func(ctx context.Context, in T) Result) Executor {
	return &funcTool{info: info, run: func(ctx context.Context, args map[string]any) Result {
		var in T
		if err := decodeArgs(args, &in); err != nil {
			return Fail(InvalidCallMessage(info, err))
		}
		return run(ctx, in)
	}}
}

func object(props map[string]any, required ...string) domain.JSONSchema {
	if required == nil {
		required = []string{}
	}
	return domain.JSONSchema{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func enum(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func number(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func limitProp() map[string]any {
	return integer("Maximum number of results (default 20)")
}

func (c *catalog) pageSize(requested *int) int {
	if requested == nil || *requested <= 0 {
		return c.limit
	}
	if *requested > maxLimit {
		return maxLimit
	}
	return *requested
}

// upstream logs a media server failure and returns the reason shown to
// the model.
func (c *catalog) upstream(tool string, err error, reason string) *Failure {
	c.log.Warn("upstream_failed", map[string]any{"tool": tool}, err)
	return Fail(reason)
}

func truncate[T any](s []T, n int) []T {
	s = orEmpty(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
