package tool

import (
	"context"
	"fmt"
	"sort"

	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/logging"
)

// Executor is the interface all tools must implement. Execute never returns
// a Go error: failures are reported as a *Failure result so the chat loop
// can feed them back to the model.
type Executor interface {
	Info() domain.Tool
	Execute(ctx context.Context, args map[string]any) Result
}

// ToolRegistry defines the interface for tool management
type ToolRegistry interface {
	Get(name string) (Executor, bool)
	All() []domain.Tool
	Execute(ctx context.Context, name string, args map[string]any) Result
	ExecuteCall(ctx context.Context, call domain.ToolCallPart) Result
}

// Registry holds the tools bound to one chat request.
type Registry struct {
	tools     map[string]Executor
	validator Validator
	recovery  *logging.RecoveryHandler
}

func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Executor),
		validator: SchemaValidator{},
		recovery:  logging.NewRecoveryHandler("tool"),
	}
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Executor) {
	info := t.Info()
	r.tools[info.Name] = t
}

func (r *Registry) Get(name string) (Executor, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns tool definitions sorted by name.
func (r *Registry) All() []domain.Tool {
	result := make([]domain.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t.Info())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Execute validates args against the tool schema and runs it. Unknown
// tools, invalid arguments and panics all become failures.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (res Result) {
	t, ok := r.tools[name]
	if !ok {
		return Fail(fmt.Sprintf("%s: %s. %s", ErrToolNotFound, name, r.availableTools()))
	}

	if err := r.validator.Validate(args, t.Info().Parameters); err != nil {
		return Fail(InvalidCallMessage(t.Info(), err))
	}

	err := r.recovery.WrapError(func() error {
		res = t.Execute(ctx, args)
		return nil
	})
	if err != nil {
		return Fail(fmt.Sprintf("Tool %s failed unexpectedly.", name))
	}
	if res == nil {
		res = Fail(fmt.Sprintf("Tool %s returned no result.", name))
	}
	return res
}

// ExecuteCall runs a call issued by the model. A call whose arguments
// could not be decoded is rejected with the same guidance as a schema
// violation and never reaches the tool.
func (r *Registry) ExecuteCall(ctx context.Context, call domain.ToolCallPart) Result {
	if call.ArgsError == "" {
		return r.Execute(ctx, call.Name, call.Args)
	}
	t, ok := r.tools[call.Name]
	if !ok {
		return Fail(fmt.Sprintf("%s: %s. %s", ErrToolNotFound, call.Name, r.availableTools()))
	}
	return Fail(InvalidCallMessage(t.Info(), fmt.Errorf("%w: %s", ErrInvalidArgs, call.ArgsError)))
}

type ToolError string

func (e ToolError) Error() string { return string(e) }

const (
	ErrToolNotFound ToolError = "tool not found"
	ErrInvalidArgs  ToolError = "invalid arguments"
)

var _ ToolRegistry = (*Registry)(nil)
