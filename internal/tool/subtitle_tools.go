package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/media"
	"github.com/joss/navigator/internal/subtitle"
)

// NoMediaPlaying is the failure returned by playback tools outside playback.
const NoMediaPlaying = "No media is currently playing. Start playing a movie or episode and ask again."

func subtitleIndexProp() map[string]any {
	return integer("Subtitle stream index. Omit to use the default track")
}

// transcript loads the cleaned subtitle entries of the playing item.
func (c *catalog) transcript(ctx context.Context, tool string, index *int) (*domain.MediaContext, []subtitle.Entry, *Failure) {
	if !c.session.Playing() {
		return nil, nil, Fail(NoMediaPlaying)
	}
	cur := c.session.CurrentMedia
	if cur.MediaSourceID == "" {
		return nil, nil, Fail(fmt.Sprintf("%q has no media source id, so its subtitles cannot be loaded.", cur.Name))
	}
	if c.resolver == nil {
		return nil, nil, Fail("Subtitle analysis is not available on this server.")
	}

	var streamIndex int
	if index != nil {
		streamIndex = *index
	} else {
		details, err := c.lib.Item(ctx, cur.ID)
		if err != nil {
			return nil, nil, c.upstream(tool, err, fmt.Sprintf("Could not look up the subtitle tracks of %q.", cur.Name))
		}
		stream, ok := details.DefaultSubtitle(cur.MediaSourceID)
		if !ok {
			return nil, nil, Fail(fmt.Sprintf("%q has no subtitle tracks.", cur.Name))
		}
		streamIndex = stream.Index
	}

	events, err := c.lib.SubtitleTrack(ctx, cur.ID, cur.MediaSourceID, streamIndex)
	if errors.Is(err, media.ErrNotFound) {
		return nil, nil, Fail(fmt.Sprintf("Subtitle track %d of %q does not exist.", streamIndex, cur.Name))
	}
	if err != nil {
		return nil, nil, c.upstream(tool, err, fmt.Sprintf("Could not load the subtitles of %q.", cur.Name))
	}

	entries := subtitle.FromEvents(events)
	if len(entries) == 0 {
		return nil, nil, Fail(fmt.Sprintf("The subtitle track of %q is empty.", cur.Name))
	}
	return cur, entries, nil
}

type skipInput struct {
	UserDescription string `json:"userDescription"`
	SubtitleIndex   *int   `json:"subtitleIndex"`
}

func (c *catalog) skipToSubtitleContent() Executor {
	info := domain.Tool{
		Name:        "skipToSubtitleContent",
		Description: "Jump to the moment in the playing media where something is said or happens, found through its subtitles. Only works while media is playing.",
		Parameters: object(map[string]any{
			"userDescription": str("What the user wants to jump to, in their words"),
			"subtitleIndex":   subtitleIndexProp(),
		}, "userDescription"),
	}
	return typed(info, func(ctx context.Context, in skipInput) Result {
		cur, entries, fail := c.transcript(ctx, info.Name, in.SubtitleIndex)
		if fail != nil {
			return fail
		}

		match, err := c.resolver.ResolveTimestamp(ctx, entries, in.UserDescription)
		if errors.Is(err, subtitle.ErrNoTimestamp) {
			return Fail("Could not determine timestamp for that description. Describe the line or scene more specifically.")
		}
		if err != nil {
			return c.upstream(info.Name, err, "The subtitle search failed. Please try again.")
		}

		return &SubtitleMatchResult{
			status:             success,
			Action:             "seek",
			MediaID:            cur.ID,
			Timestamp:          match.TimestampSeconds,
			FormattedTimestamp: match.FormattedTimestamp,
			SubtitleText:       match.Text,
			RequestedTimestamp: subtitle.FormatTimestamp(match.RequestedSeconds),
		}
	})
}

type explainInput struct {
	CurrentTimestamp float64  `json:"currentTimestamp"`
	ContextWindow    *float64 `json:"contextWindow"`
	SubtitleIndex    *int     `json:"subtitleIndex"`
}

func (c *catalog) explainScene() Executor {
	info := domain.Tool{
		Name:        "explainScene",
		Description: "Explain what is happening at the current moment of the playing media using nearby subtitles.",
		Parameters: object(map[string]any{
			"currentTimestamp": number("Playback position in seconds"),
			"contextWindow":    number("Seconds of subtitles to use before and after the position (default 30)"),
			"subtitleIndex":    subtitleIndexProp(),
		}, "currentTimestamp"),
	}
	return typed(info, func(ctx context.Context, in explainInput) Result {
		if in.CurrentTimestamp < 0 {
			return Fail("currentTimestamp must not be negative.")
		}
		_, entries, fail := c.transcript(ctx, info.Name, in.SubtitleIndex)
		if fail != nil {
			return fail
		}

		window := c.resolver.DefaultWindow()
		if in.ContextWindow != nil && *in.ContextWindow > 0 {
			window = *in.ContextWindow
		}

		scene, err := c.resolver.ExplainScene(ctx, entries, in.CurrentTimestamp, window)
		if errors.Is(err, subtitle.ErrEmptyWindow) {
			return Fail(fmt.Sprintf("No subtitles were found between %s and %s.",
				subtitle.FormatTimestamp(in.CurrentTimestamp-window),
				subtitle.FormatTimestamp(in.CurrentTimestamp+window)))
		}
		if err != nil {
			return c.upstream(info.Name, err, "The scene could not be explained. Please try again.")
		}

		return &SceneExplanationResult{
			status:             success,
			Explanation:        scene.Explanation,
			Timestamp:          in.CurrentTimestamp,
			FormattedTimestamp: subtitle.FormatTimestamp(in.CurrentTimestamp),
			Subtitles:          scene.Context,
		}
	})
}

type analyzeInput struct {
	UserQuestion  string `json:"userQuestion"`
	SubtitleIndex *int   `json:"subtitleIndex"`
}

func (c *catalog) analyzeMedia() Executor {
	info := domain.Tool{
		Name:        "analyzeMedia",
		Description: "Answer a question about the playing media (plot, characters, what was said) from its full subtitle transcript.",
		Parameters: object(map[string]any{
			"userQuestion":  str("The user's question"),
			"subtitleIndex": subtitleIndexProp(),
		}, "userQuestion"),
	}
	return typed(info, func(ctx context.Context, in analyzeInput) Result {
		_, entries, fail := c.transcript(ctx, info.Name, in.SubtitleIndex)
		if fail != nil {
			return fail
		}

		answer, err := c.resolver.Answer(ctx, entries, in.UserQuestion)
		if err != nil {
			return c.upstream(info.Name, err, "The question could not be answered. Please try again.")
		}
		return NewAnalysis(in.UserQuestion, answer)
	})
}
