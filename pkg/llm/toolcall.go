package llm

import (
	"bytes"
	"encoding/json"

	"github.com/joss/navigator/internal/domain"
)

// ToolCall builds a tool call part from the streamed argument text. Empty
// arguments decode to an empty object. Arguments that are not a JSON
// object leave Args empty and record the decode error in ArgsError, so the
// call can be rejected on its own without failing the stream.
func ToolCall(id, name string, raw []byte) domain.ToolCallPart {
	part := domain.ToolCallPart{ToolID: id, Name: name, Args: map[string]any{}}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return part
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		part.ArgsError = "arguments are not valid JSON: " + err.Error()
		return part
	}
	if args != nil {
		part.Args = args
	}
	return part
}
