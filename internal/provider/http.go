package provider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/joss/navigator/internal/domain"
)

// HTTPClient interface for HTTP requests (enables testing)
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)

// APIError is a non-200 answer from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

const maxErrorBody = 512

func readAPIError(provider string, resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// scanSSE calls fn with the payload of every "data:" line until fn returns
// false or the body ends.
func scanSSE(body io.Reader, fn func(data string) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if !fn(data) {
			return nil
		}
	}
	return scanner.Err()
}

// emitter sends stream events until the consumer's context ends.
type emitter struct {
	ctx    context.Context
	events chan<- domain.StreamEvent
}

func (e emitter) send(ev domain.StreamEvent) bool {
	select {
	case e.events <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e emitter) text(s string) bool {
	if s == "" {
		return true
	}
	return e.send(domain.StreamEvent{Type: domain.StreamEventText, Content: s})
}

func (e emitter) toolCall(part domain.ToolCallPart) bool {
	if part.Args == nil {
		part.Args = map[string]any{}
	}
	return e.send(domain.StreamEvent{Type: domain.StreamEventToolCall, Part: part})
}

func (e emitter) usage(in, out int) bool {
	return e.send(domain.StreamEvent{
		Type:  domain.StreamEventUsage,
		Usage: &domain.Usage{InputTokens: in, OutputTokens: out},
	})
}

func (e emitter) done(reason domain.FinishReason) bool {
	return e.send(domain.StreamEvent{Type: domain.StreamEventDone, Done: true, FinishReason: reason})
}

func (e emitter) fail(err error) bool {
	return e.send(domain.StreamEvent{Type: domain.StreamEventError, Error: err})
}

// finish closes out a stream that ended without an explicit stop event.
func (e emitter) finish(scanErr error, reason domain.FinishReason) {
	if scanErr != nil && e.ctx.Err() == nil {
		e.fail(fmt.Errorf("read stream: %w", scanErr))
		return
	}
	if reason == "" {
		reason = domain.FinishStop
	}
	e.done(reason)
}
