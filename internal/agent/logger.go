package agent

import (
	"strings"

	"github.com/joss/navigator/internal/logging"
	navstrings "github.com/joss/navigator/internal/strings"
)

// runLogger writes the structured events of one chat run.
type runLogger struct {
	log *logging.Logger
}

func newRunLogger(base *logging.Logger, requestID, model string) runLogger {
	if base == nil {
		base = logging.New("agent")
	}
	l := base.With("model", model)
	if requestID != "" {
		l = l.With("request_id", requestID)
	}
	return runLogger{log: l}
}

// LLMCall logs one model generation.
func (l runLogger) LLMCall(step int, durationMs int64, inputTokens, outputTokens int, estimated bool, err error) {
	extra := map[string]any{
		"step":          step,
		"duration_ms":   durationMs,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
	}
	if estimated {
		extra["estimated"] = true
	}
	if err != nil {
		l.log.Error("llm_call", extra, err)
		return
	}
	l.log.Info("llm_call", extra)
}

// ToolCall logs a tool execution. reason is the failure text, if any.
func (l runLogger) ToolCall(step int, name string, args map[string]any, durationMs int64, reason string) {
	extra := map[string]any{
		"step":        step,
		"tool":        name,
		"args":        sanitizeArgs(args),
		"duration_ms": durationMs,
	}
	if reason != "" {
		extra["failure"] = navstrings.Truncate(reason, 300)
		l.log.Warn("tool_call", extra, nil)
		return
	}
	l.log.Info("tool_call", extra)
}

func (l runLogger) RunEnd(steps int, reason string, inputTokens, outputTokens int) {
	l.log.Info("run_end", map[string]any{
		"steps":         steps,
		"finish_reason": reason,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
	})
}

func (l runLogger) Error(event string, err error, extra map[string]any) {
	l.log.Error(event, extra, err)
}

// sanitizeArgs shortens free text and drops anything that looks like a
// credential before arguments reach the log.
func sanitizeArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	safe := make(map[string]any, len(args))
	for k, v := range args {
		lower := strings.ToLower(k)
		switch {
		case strings.Contains(lower, "key"), strings.Contains(lower, "token"),
			strings.Contains(lower, "password"), strings.Contains(lower, "secret"):
			safe[k] = "[REDACTED]"
		case lower == "userdescription", lower == "userquestion":
			if s, ok := v.(string); ok {
				safe[k] = navstrings.Truncate(s, 80)
			} else {
				safe[k] = v
			}
		default:
			safe[k] = v
		}
	}
	return safe
}
