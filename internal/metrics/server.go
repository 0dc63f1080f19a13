// Package metrics provides a simple Prometheus-compatible metrics endpoint.
package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds runtime counters for the Navigator service
type Metrics struct {
	// Chat requests
	ChatRequests atomic.Int64
	ChatFailures atomic.Int64

	// Model calls, one per orchestration step
	LLMCalls          atomic.Int64
	LLMFailures       atomic.Int64
	StepBudgetReached atomic.Int64

	// Tool executions
	ToolCalls    atomic.Int64
	ToolFailures atomic.Int64

	InputTokens  atomic.Int64
	OutputTokens atomic.Int64

	// Timing (last operation duration in ms)
	LastChatDurationMs atomic.Int64

	mu      sync.Mutex
	perTool map[string]*toolCounter

	startTime time.Time
}

type toolCounter struct {
	calls    atomic.Int64
	failures atomic.Int64
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// New returns an empty metrics set.
func New() *Metrics {
	return &Metrics{startTime: time.Now(), perTool: map[string]*toolCounter{}}
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// RecordChat records a finished chat request
func (m *Metrics) RecordChat(success bool, durationMs int64) {
	m.ChatRequests.Add(1)
	if !success {
		m.ChatFailures.Add(1)
	}
	m.LastChatDurationMs.Store(durationMs)
}

// RecordLLMCall records one model call and the tokens it used
func (m *Metrics) RecordLLMCall(success bool, inputTokens, outputTokens int) {
	m.LLMCalls.Add(1)
	if !success {
		m.LLMFailures.Add(1)
	}
	m.InputTokens.Add(int64(inputTokens))
	m.OutputTokens.Add(int64(outputTokens))
}

// RecordStepBudget records a run cut off by the step limit
func (m *Metrics) RecordStepBudget() {
	m.StepBudgetReached.Add(1)
}

// RecordTool records a tool execution
func (m *Metrics) RecordTool(name string, success bool) {
	m.ToolCalls.Add(1)
	if !success {
		m.ToolFailures.Add(1)
	}

	m.mu.Lock()
	if m.perTool == nil {
		m.perTool = map[string]*toolCounter{}
	}
	c, ok := m.perTool[name]
	if !ok {
		c = &toolCounter{}
		m.perTool[name] = c
	}
	m.mu.Unlock()

	c.calls.Add(1)
	if !success {
		c.failures.Add(1)
	}
}

// ToolCount returns calls and failures recorded for one tool
func (m *Metrics) ToolCount(name string) (calls, failures int64) {
	m.mu.Lock()
	c, ok := m.perTool[name]
	m.mu.Unlock()
	if !ok {
		return 0, 0
	}
	return c.calls.Load(), c.failures.Load()
}

func metric(w io.Writer, name, kind, help string, value any) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %v\n\n", name, value)
}

// Handler returns an HTTP handler for /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		metric(w, "navigator_uptime_seconds", "gauge", "Time since the service started",
			fmt.Sprintf("%.2f", time.Since(m.startTime).Seconds()))
		metric(w, "navigator_chat_requests_total", "counter", "Total chat requests", m.ChatRequests.Load())
		metric(w, "navigator_chat_failures_total", "counter", "Chat requests that ended in an error", m.ChatFailures.Load())
		metric(w, "navigator_llm_calls_total", "counter", "Total model calls", m.LLMCalls.Load())
		metric(w, "navigator_llm_failures_total", "counter", "Model calls that failed", m.LLMFailures.Load())
		metric(w, "navigator_step_budget_exhausted_total", "counter", "Runs stopped by the step limit", m.StepBudgetReached.Load())
		metric(w, "navigator_input_tokens_total", "counter", "Prompt tokens reported or estimated", m.InputTokens.Load())
		metric(w, "navigator_output_tokens_total", "counter", "Completion tokens reported or estimated", m.OutputTokens.Load())
		metric(w, "navigator_tool_failures_total", "counter", "Tool executions that returned a failure", m.ToolFailures.Load())
		metric(w, "navigator_last_chat_duration_ms", "gauge", "Duration of the last chat request", m.LastChatDurationMs.Load())

		m.mu.Lock()
		names := make([]string, 0, len(m.perTool))
		for name := range m.perTool {
			names = append(names, name)
		}
		m.mu.Unlock()
		sort.Strings(names)

		fmt.Fprintf(w, "# HELP navigator_tool_calls_total Tool executions by tool\n")
		fmt.Fprintf(w, "# TYPE navigator_tool_calls_total counter\n")
		if len(names) == 0 {
			fmt.Fprintf(w, "navigator_tool_calls_total %d\n", m.ToolCalls.Load())
		}
		for _, name := range names {
			calls, _ := m.ToolCount(name)
			fmt.Fprintf(w, "navigator_tool_calls_total{tool=%q} %d\n", name, calls)
		}
	}
}

// Server wraps a standalone metrics HTTP server
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server listening on addr
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start starts the metrics server in background
func (s *Server) Start() error {
	go s.srv.ListenAndServe()
	return nil
}

// Stop gracefully shuts down the metrics server
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
