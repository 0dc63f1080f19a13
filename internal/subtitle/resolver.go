package subtitle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joss/navigator/internal/logging"
	"github.com/joss/navigator/internal/tokens"
)

const (
	DefaultTolerance     = 5.0
	DefaultContextWindow = 30.0
)

var (
	ErrNoEntries   = errors.New("subtitle track has no entries")
	ErrNoTimestamp = errors.New("could not determine timestamp")
	ErrEmptyWindow = errors.New("no subtitles in context window")
)

// Completer runs a single tool-free prompt against a language model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Options tunes the resolver.
type Options struct {
	// Tolerance is how far, in seconds, a model timestamp may be from an
	// entry and still snap to the first such entry.
	Tolerance float64
	// ContextWindow is the default half width of a scene window in seconds.
	ContextWindow float64
}

// Resolver answers questions about a transcript with a secondary model call.
type Resolver struct {
	completer Completer
	tolerance float64
	window    float64
	log       *logging.Logger
}

func NewResolver(c Completer, opts Options) *Resolver {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultContextWindow
	}
	return &Resolver{
		completer: c,
		tolerance: opts.Tolerance,
		window:    opts.ContextWindow,
		log:       logging.New("subtitle"),
	}
}

// DefaultWindow returns the configured scene half width.
func (r *Resolver) DefaultWindow() float64 { return r.window }

// Match is the entry a description resolved to.
type Match struct {
	Entry
	Index            int     `json:"index"`
	RequestedSeconds float64 `json:"requestedSeconds"`
	// WithinTolerance is false when no line starts within the tolerance
	// of the requested time and the closest one was taken instead.
	WithinTolerance bool `json:"withinTolerance"`
}

const timestampSystem = `You locate moments in a film or episode from its subtitles.
Reply with exactly one timestamp in HH:MM:SS format (H:MM:SS.s is also accepted) and nothing else.
Pick the subtitle line that best matches the user's description.`

// ResolveTimestamp asks the model which transcript line matches description
// and snaps its answer to an actual entry.
func (r *Resolver) ResolveTimestamp(ctx context.Context, entries []Entry, description string) (*Match, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	transcript := FormatTranscript(entries)
	prompt := fmt.Sprintf("Subtitles:\n%s\nDescription: %s\n\nTimestamp:", transcript, description)

	start := time.Now()
	answer, err := r.completer.Complete(ctx, timestampSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("resolve timestamp: %w", err)
	}
	r.log.TimedEvent("resolve_timestamp", start, map[string]any{
		"entries":           len(entries),
		"transcript_tokens": tokens.Count(transcript),
	})

	secs, ok := ExtractTimestamp(answer)
	if !ok {
		r.log.Warn("timestamp_unparsed", map[string]any{"answer": answer}, nil)
		return nil, ErrNoTimestamp
	}

	idx, _ := Nearest(entries, secs)
	within := math.Abs(entries[idx].TimestampSeconds-secs) <= r.tolerance
	if !within {
		r.log.Debug("timestamp_outside_tolerance", map[string]any{
			"requested": secs,
			"snapped":   entries[idx].TimestampSeconds,
		})
	}
	return &Match{Entry: entries[idx], Index: idx, RequestedSeconds: secs, WithinTolerance: within}, nil
}

// Scene is a short explanation of what happens around a moment.
type Scene struct {
	Explanation string  `json:"explanation"`
	Current     Entry   `json:"current"`
	Context     []Entry `json:"context"`
	Window      float64 `json:"window"`
}

const sceneSystem = `You explain what is happening in a scene using only the subtitle lines provided.
Answer in one or two sentences. Do not use knowledge of the plot beyond these lines.
The line marked with >> is what is on screen right now.`

// ExplainScene explains the moment at using only entries within window
// seconds either side. A non-positive window uses the default.
func (r *Resolver) ExplainScene(ctx context.Context, entries []Entry, at, window float64) (*Scene, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	if window <= 0 {
		window = r.window
	}

	ctxEntries := Window(entries, at, window)
	if len(ctxEntries) == 0 {
		return nil, ErrEmptyWindow
	}
	marked, _ := Nearest(ctxEntries, at)

	prompt := fmt.Sprintf("Current position: %s\n\nSubtitles from %s to %s:\n%s\nWhat is happening right now?",
		FormatTimestamp(at), FormatTimestamp(at-window), FormatTimestamp(at+window),
		FormatWindow(ctxEntries, marked))

	answer, err := r.completer.Complete(ctx, sceneSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("explain scene: %w", err)
	}

	return &Scene{
		Explanation: strings.TrimSpace(answer),
		Current:     ctxEntries[marked],
		Context:     ctxEntries,
		Window:      window,
	}, nil
}

const answerSystem = `You answer questions about a film or episode using its full subtitle transcript.
Base the answer on the transcript. If it does not contain the answer, say so.`

// Answer responds to a free-form question over the whole transcript.
func (r *Resolver) Answer(ctx context.Context, entries []Entry, question string) (string, error) {
	if len(entries) == 0 {
		return "", ErrNoEntries
	}

	transcript := FormatTranscript(entries)
	r.log.Debug("analyze_transcript", map[string]any{
		"entries":           len(entries),
		"transcript_tokens": tokens.Count(transcript),
	})

	prompt := fmt.Sprintf("Transcript:\n%s\nQuestion: %s", transcript, question)
	answer, err := r.completer.Complete(ctx, answerSystem, prompt)
	if err != nil {
		return "", fmt.Errorf("analyze transcript: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
