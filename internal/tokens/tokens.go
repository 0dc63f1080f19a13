// Package tokens provides token counting using tiktoken-go.
// Used for usage estimates when a provider reports none.
package tokens

import (
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/joss/navigator/internal/domain"
)

// Counter provides token counting for messages and text.
// Uses cl100k_base encoding.
type Counter struct {
	enc  *tiktoken.Tiktoken
	once sync.Once
	err  error
}

var defaultCounter = &Counter{}

// Count returns the number of tokens in the given text.
func Count(text string) int {
	return defaultCounter.Count(text)
}

// CountMessages returns total tokens for a slice of messages.
func CountMessages(msgs []domain.Message) int {
	return defaultCounter.CountMessages(msgs)
}

// CountMessage returns tokens for a single message.
func CountMessage(msg domain.Message) int {
	return defaultCounter.CountMessage(msg)
}

// Count returns the number of tokens in the given text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.init()
	if c.err != nil || c.enc == nil {
		// Fallback: rough estimate (4 chars per token)
		n := len(text) / 4
		if n == 0 {
			n = 1
		}
		return n
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountMessages returns total tokens for a slice of messages.
func (c *Counter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, msg := range msgs {
		total += c.CountMessage(msg)
	}
	return total
}

// CountMessage returns tokens for a single message.
func (c *Counter) CountMessage(msg domain.Message) int {
	// role and framing
	tokens := 4

	for _, part := range msg.Parts {
		tokens += c.countPart(part)
	}

	return tokens
}

func (c *Counter) countPart(part domain.Part) int {
	switch p := part.(type) {
	case domain.TextPart:
		return c.Count(p.Text)
	case domain.ToolCallPart:
		tokens := c.Count(p.Name) + 10
		if len(p.Args) > 0 {
			if raw, err := json.Marshal(p.Args); err == nil {
				tokens += c.Count(string(raw))
			}
		}
		tokens += c.Count(p.Result)
		tokens += c.Count(p.Error)
		return tokens
	default:
		return 0
	}
}

func (c *Counter) init() {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding("cl100k_base")
	})
}

// EstimateUsage approximates usage for one model call: the system prompt and
// history as input, the generated text as output.
func EstimateUsage(system string, history []domain.Message, output string) domain.Usage {
	return domain.Usage{
		InputTokens:  Count(system) + CountMessages(history),
		OutputTokens: Count(output),
		Estimated:    true,
	}
}
