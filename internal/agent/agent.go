// Package agent runs the Navigator chat loop: it streams model output,
// dispatches the tool calls the model makes and feeds their results back
// until the model answers without tools or the step limit is reached.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joss/navigator/internal/audit"
	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/logging"
	"github.com/joss/navigator/internal/metrics"
	"github.com/joss/navigator/internal/tokens"
	"github.com/joss/navigator/internal/tool"
	"github.com/joss/navigator/pkg/llm"
)

const (
	DefaultMaxSteps    = 10
	DefaultMaxTokens   = 2048
	DefaultParallelism = 4
	DefaultToolTimeout = 60 * time.Second
)

// GenerationFailedMessage is the only provider error text a client sees.
const GenerationFailedMessage = "The assistant could not complete the request. Please try again."

// ErrGeneration carries GenerationFailedMessage on error events.
var ErrGeneration = errors.New(GenerationFailedMessage)

// ErrNoProvider is returned by Run when the orchestrator has no provider.
var ErrNoProvider = errors.New("provider is nil")

// Config tunes one orchestrator.
type Config struct {
	Model       string
	MaxSteps    int
	MaxTokens   int
	Temperature float64
	// Parallelism bounds concurrent tool calls within one step.
	Parallelism int
	ToolTimeout time.Duration
	RequestID   string
}

func (c *Config) applyDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
}

// Orchestrator drives one chat request. It holds no conversation state of
// its own; the history passed to Run is the whole conversation.
type Orchestrator struct {
	provider llm.Provider
	tools    tool.ToolRegistry
	system   string
	cfg      Config

	logger  *logging.Logger
	metrics *metrics.Metrics
	audit   audit.Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAudit records every tool call in r.
func WithAudit(r audit.Recorder) Option {
	return func(o *Orchestrator) { o.audit = r }
}

// New creates an orchestrator. system is the prompt built for this request.
func New(provider llm.Provider, tools tool.ToolRegistry, system string, cfg Config, opts ...Option) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		provider: provider,
		tools:    tools,
		system:   system,
		cfg:      cfg,
		logger:   logging.New("agent"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MaxSteps returns the effective step limit.
func (o *Orchestrator) MaxSteps() int {
	return o.cfg.MaxSteps
}

// run is the mutable state of one Run call.
type run struct {
	ctx   context.Context
	out   chan<- domain.StreamEvent
	log   runLogger
	step  int
	text  strings.Builder
	usage domain.Usage
}

// emit forwards ev unless the consumer went away.
func (r *run) emit(ev domain.StreamEvent) bool {
	select {
	case r.out <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (o *Orchestrator) request(messages []domain.Message) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:        o.cfg.Model,
		Messages:     messages,
		Tools:        o.tools.All(),
		SystemPrompt: o.system,
		MaxTokens:    o.cfg.MaxTokens,
		Temperature:  o.cfg.Temperature,
	}
}

// Run starts the loop over history. The first generation is requested
// before Run returns so configuration and provider errors reach the caller
// directly; everything after that is reported on the returned channel,
// which always ends with a done or an error event.
func (o *Orchestrator) Run(ctx context.Context, history []domain.Message) (<-chan domain.StreamEvent, error) {
	if o.provider == nil {
		return nil, ErrNoProvider
	}

	log := newRunLogger(o.logger, o.cfg.RequestID, o.cfg.Model)
	messages := append([]domain.Message(nil), history...)

	start := time.Now()
	first, err := o.provider.Chat(ctx, o.request(messages))
	if err != nil {
		log.LLMCall(1, time.Since(start).Milliseconds(), 0, 0, false, err)
		if o.metrics != nil {
			o.metrics.RecordLLMCall(false, 0, 0)
		}
		return nil, fmt.Errorf("chat: %w", err)
	}

	events := make(chan domain.StreamEvent, 100)
	r := &run{ctx: ctx, out: events, log: log}
	recovery := logging.NewRecoveryHandler("agent")
	recovery.OnPanic = func(any, string) {
		r.emit(domain.StreamEvent{
			Type:         domain.StreamEventError,
			Error:        ErrGeneration,
			FinishReason: domain.FinishError,
			Step:         r.step,
		})
	}
	go func() {
		defer close(events)
		recovery.Wrap(func() { o.loop(r, messages, first, start) })
	}()
	return events, nil
}

func (o *Orchestrator) loop(r *run, messages []domain.Message, providerEvents <-chan domain.StreamEvent, start time.Time) {
	for r.step = 1; ; r.step++ {
		if r.step > 1 {
			start = time.Now()
			var err error
			providerEvents, err = o.provider.Chat(r.ctx, o.request(messages))
			if err != nil {
				o.abort(r, start, err)
				return
			}
		}

		res, err := o.consume(r, providerEvents)
		if err != nil {
			o.abort(r, start, err)
			return
		}
		if r.ctx.Err() != nil {
			r.log.Error("run_cancelled", r.ctx.Err(), map[string]any{"step": r.step})
			return
		}

		usage := res.usage
		if usage == nil {
			est := tokens.EstimateUsage(o.system, messages, res.text+callsText(res.calls))
			usage = &est
		}
		r.usage.Add(*usage)
		r.log.LLMCall(r.step, time.Since(start).Milliseconds(), usage.InputTokens, usage.OutputTokens, usage.Estimated, nil)
		if o.metrics != nil {
			o.metrics.RecordLLMCall(true, usage.InputTokens, usage.OutputTokens)
		}

		if len(res.calls) == 0 {
			finish := res.finish
			if finish == "" || finish == domain.FinishToolCalls {
				finish = domain.FinishStop
			}
			o.stepFinish(r, finish, usage, false)
			o.finish(r, finish)
			return
		}

		results := o.executeTools(r.ctx, r, res.calls)
		if r.ctx.Err() != nil {
			r.log.Error("run_cancelled", r.ctx.Err(), map[string]any{"step": r.step})
			return
		}
		last := r.step >= o.cfg.MaxSteps
		o.stepFinish(r, domain.FinishToolCalls, usage, !last)

		messages = append(messages, assistantMessage(res.text, res.calls), toolMessage(results))
		if last {
			if o.metrics != nil {
				o.metrics.RecordStepBudget()
			}
			o.finish(r, domain.FinishStepBudget)
			return
		}
	}
}

// stepResult is what one generation produced.
type stepResult struct {
	text   string
	calls  []domain.ToolCallPart
	usage  *domain.Usage
	finish domain.FinishReason
}

// consume forwards text and tool calls of one generation. Provider usage
// events replace each other since some backends report running totals.
func (o *Orchestrator) consume(r *run, providerEvents <-chan domain.StreamEvent) (stepResult, error) {
	var res stepResult
	var text strings.Builder
	var streamErr error

	for event := range providerEvents {
		if streamErr != nil {
			continue
		}
		switch event.Type {
		case domain.StreamEventText:
			text.WriteString(event.Content)
			r.text.WriteString(event.Content)
			event.Step = r.step
			r.emit(event)

		case domain.StreamEventToolCall:
			tc, ok := event.Part.(domain.ToolCallPart)
			if !ok {
				continue
			}
			if tc.ToolID == "" {
				tc.ToolID = "call_" + ulid.Make().String()
			}
			res.calls = append(res.calls, tc)
			r.emit(domain.StreamEvent{Type: domain.StreamEventToolCall, Part: tc, Step: r.step})

		case domain.StreamEventUsage:
			if event.Usage != nil {
				u := *event.Usage
				res.usage = &u
			}

		case domain.StreamEventError:
			streamErr = event.Error
			if streamErr == nil {
				streamErr = errors.New("provider reported an error")
			}

		case domain.StreamEventDone:
			res.finish = event.FinishReason
		}
	}

	res.text = text.String()
	return res, streamErr
}

// abort logs the real cause and reports only a generic error downstream.
func (o *Orchestrator) abort(r *run, start time.Time, err error) {
	r.log.LLMCall(r.step, time.Since(start).Milliseconds(), 0, 0, false, err)
	if o.metrics != nil {
		o.metrics.RecordLLMCall(false, 0, 0)
	}
	r.log.RunEnd(r.step, string(domain.FinishError), r.usage.InputTokens, r.usage.OutputTokens)
	r.emit(domain.StreamEvent{
		Type:         domain.StreamEventError,
		Error:        ErrGeneration,
		FinishReason: domain.FinishError,
		Step:         r.step,
	})
}

func (o *Orchestrator) stepFinish(r *run, reason domain.FinishReason, usage *domain.Usage, continued bool) {
	u := *usage
	r.emit(domain.StreamEvent{
		Type:         domain.StreamEventStepFinish,
		FinishReason: reason,
		Usage:        &u,
		Continued:    continued,
		Step:         r.step,
	})
}

func (o *Orchestrator) finish(r *run, reason domain.FinishReason) {
	r.log.RunEnd(r.step, string(reason), r.usage.InputTokens, r.usage.OutputTokens)
	total := r.usage
	r.emit(domain.StreamEvent{
		Type:         domain.StreamEventDone,
		Content:      r.text.String(),
		Done:         true,
		Usage:        &total,
		FinishReason: reason,
		Step:         r.step,
	})
}

func assistantMessage(text string, calls []domain.ToolCallPart) domain.Message {
	parts := make([]domain.Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, domain.TextPart{Text: text})
	}
	for _, tc := range calls {
		parts = append(parts, tc)
	}
	return domain.Message{
		ID:        ulid.Make().String(),
		Role:      domain.RoleAssistant,
		Parts:     parts,
		Timestamp: time.Now(),
	}
}

func toolMessage(results []domain.ToolCallPart) domain.Message {
	parts := make([]domain.Part, 0, len(results))
	for _, tc := range results {
		parts = append(parts, tc)
	}
	return domain.Message{
		ID:        ulid.Make().String(),
		Role:      domain.RoleTool,
		Parts:     parts,
		Timestamp: time.Now(),
	}
}

// callsText approximates the tokens spent on tool calls for estimates.
func callsText(calls []domain.ToolCallPart) string {
	var sb strings.Builder
	for _, c := range calls {
		sb.WriteString(c.Name)
		if raw, err := json.Marshal(c.Args); err == nil {
			sb.Write(raw)
		}
	}
	return sb.String()
}
