// Package audit keeps an optional trail of tool invocations. Only the tool
// name, outcome and timing are stored; conversation content never is.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the outcome of a tool call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is one audited tool invocation.
type Entry struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	Tool      string `json:"tool"`

	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Start begins tracking a call of the named tool.
func Start(requestID, tool string) *Entry {
	return &Entry{
		ID:        uuid.New().String(),
		RequestID: requestID,
		Tool:      tool,
		StartedAt: time.Now(),
	}
}

// Complete marks the entry finished. reason is the failure text the model
// saw, empty on success.
func (e *Entry) Complete(reason string) {
	e.DurationMs = time.Since(e.StartedAt).Milliseconds()
	if reason == "" {
		e.Status = StatusSuccess
		return
	}
	e.Status = StatusError
	e.ErrorMessage = reason
}
