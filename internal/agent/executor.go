package agent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joss/navigator/internal/audit"
	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/tool"
)

// failureReason returns the failure text of r, or "" on success.
func failureReason(r tool.Result) string {
	if f, ok := r.(*tool.Failure); ok {
		return f.Error
	}
	if !r.Succeeded() {
		return "tool reported failure"
	}
	return ""
}

// executeTools runs the calls of one step with bounded parallelism. Each
// result is emitted as soon as its tool finishes; the returned parts keep
// the order in which the model issued the calls.
//
// Tools run detached from ctx so a client disconnect does not cut an
// in-flight call short.
func (o *Orchestrator) executeTools(ctx context.Context, r *run, calls []domain.ToolCallPart) []domain.ToolCallPart {
	parts := make([]domain.ToolCallPart, len(calls))
	toolCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(o.cfg.Parallelism)
	for i, call := range calls {
		g.Go(func() error {
			parts[i] = o.executeOne(toolCtx, r, call)
			return nil
		})
	}
	g.Wait()
	return parts
}

func (o *Orchestrator) executeOne(ctx context.Context, r *run, call domain.ToolCallPart) domain.ToolCallPart {
	if o.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ToolTimeout)
		defer cancel()
	}

	entry := audit.Start(o.cfg.RequestID, call.Name)
	start := time.Now()
	result := o.tools.ExecuteCall(ctx, call)
	call.Duration = time.Since(start)
	call.Result = tool.Encode(result)

	reason := failureReason(result)
	if reason != "" {
		call.Error = reason
	}
	entry.Complete(reason)

	r.log.ToolCall(r.step, call.Name, call.Args, call.Duration.Milliseconds(), reason)
	if o.metrics != nil {
		o.metrics.RecordTool(call.Name, reason == "")
	}
	if o.audit != nil {
		if err := o.audit.Record(ctx, entry); err != nil {
			r.log.Error("audit_failed", err, map[string]any{"tool": call.Name})
		}
	}

	r.emit(domain.StreamEvent{
		Type:   domain.StreamEventToolResult,
		Part:   call,
		Output: result,
		Step:   r.step,
	})
	return call
}
