package render

import (
	"io"

	"github.com/fatih/color"

	"github.com/joss/navigator/internal/agent"
	"github.com/joss/navigator/internal/domain"
	navstrings "github.com/joss/navigator/internal/strings"
	"github.com/joss/navigator/internal/tool"
)

// Stream prints a chat run as it happens: text as it arrives, a line per
// tool call and a card per result.
type Stream struct {
	out       *Writer
	cards     *Cards
	showTools bool
	midLine   bool
}

// NewStream creates a stream printer. When showTools is false only the
// answer text and the result cards are printed.
func NewStream(w io.Writer, width int, showTools bool) *Stream {
	out := NewWriter(w)
	return &Stream{out: out, cards: NewCards(out, width), showTools: showTools}
}

func (s *Stream) endLine() {
	if s.midLine {
		s.out.Line()
		s.midLine = false
	}
}

// Print consumes events until the channel closes and returns the final
// event. A run that reported an error returns agent.ErrGeneration.
func (s *Stream) Print(events <-chan domain.StreamEvent) (*domain.StreamEvent, error) {
	var done *domain.StreamEvent
	failed := false

	for ev := range events {
		switch ev.Type {
		case domain.StreamEventText:
			s.out.Print("%s", ev.Content)
			s.midLine = ev.Content != "" && ev.Content[len(ev.Content)-1] != '\n'

		case domain.StreamEventToolCall:
			if !s.showTools {
				continue
			}
			if tc, ok := ev.Part.(domain.ToolCallPart); ok {
				s.endLine()
				s.out.Println("%s %s(%s)", color.YellowString("⚙"), tc.Name, navstrings.FormatArgs(tc.Args, 80))
			}

		case domain.StreamEventToolResult:
			if r, ok := ev.Output.(tool.Result); ok {
				s.endLine()
				s.cards.Render(r)
				s.out.Line()
			}

		case domain.StreamEventError:
			s.endLine()
			s.out.Println("%s %s", color.RedString("✗"), agent.GenerationFailedMessage)
			failed = true

		case domain.StreamEventDone:
			ev := ev
			done = &ev
		}
	}
	s.endLine()

	if failed {
		return done, agent.ErrGeneration
	}
	return done, nil
}

// Summary prints the finish reason and token usage of a completed run.
func (s *Stream) Summary(done *domain.StreamEvent) {
	if done == nil {
		return
	}
	var in, outTokens int
	estimated := false
	if done.Usage != nil {
		in, outTokens, estimated = done.Usage.InputTokens, done.Usage.OutputTokens, done.Usage.Estimated
	}
	note := ""
	if estimated {
		note = " (estimated)"
	}
	line := "finish=" + string(done.FinishReason) + " tokens=" +
		domain.FormatTokens(in) + "/" + domain.FormatTokens(outTokens) + note
	if done.FinishReason == domain.FinishStepBudget {
		line += " step limit reached"
	}
	s.out.Println("%s", mutedStyle.Render(line))
}
