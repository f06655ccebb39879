// Package tools implements the five task operations the reasoning step may
// invoke. Dispatch is a closed lookup table over known tool names; unknown
// names are rejected as validation errors rather than reflected on.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskpilot/pkg/models"
)

// Tool names, the complete set the reasoning capability may request.
const (
	ToolAddTask      = "add_task"
	ToolListTasks    = "list_tasks"
	ToolCompleteTask = "complete_task"
	ToolUpdateTask   = "update_task"
	ToolDeleteTask   = "delete_task"
)

// Call is a structured intent produced by the reasoning step. It lives for
// a single turn and is never persisted or reused.
type Call struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Result is the structured outcome of one tool call. Disambiguation is a
// result variant, not an error: Candidates non-empty means the free-text task
// reference matched several tasks and the user must clarify; nothing was
// mutated in that case.
type Result struct {
	Tool       string        `json:"tool"`
	Summary    string        `json:"summary"`
	Task       *models.Task  `json:"task,omitempty"`
	Tasks      []models.Task `json:"tasks,omitempty"`
	Candidates []models.Task `json:"candidates,omitempty"`
}

// NeedsClarification reports whether the result is a disambiguation variant
func (r *Result) NeedsClarification() bool {
	return len(r.Candidates) > 0
}

// HandlerFunc executes one tool call for the verified caller. The userID is
// always injected by the orchestrator from the caller credential, never taken
// from conversation content or reasoning output.
type HandlerFunc func(ctx context.Context, userID string, args json.RawMessage) (*Result, error)

// Registry maps tool names to handlers. The set is fixed at construction.
type Registry struct {
	handlers map[string]HandlerFunc
	timeout  time.Duration
}

// NewRegistry builds the closed registry over the given handlers
func NewRegistry(h *Handlers, timeout time.Duration) *Registry {
	return &Registry{
		handlers: map[string]HandlerFunc{
			ToolAddTask:      h.AddTask,
			ToolListTasks:    h.ListTasks,
			ToolCompleteTask: h.CompleteTask,
			ToolUpdateTask:   h.UpdateTask,
			ToolDeleteTask:   h.DeleteTask,
		},
		timeout: timeout,
	}
}

// Dispatch executes one call under the per-tool timeout. Unknown tool names
// fail with a validation error before any handler runs.
func (r *Registry) Dispatch(ctx context.Context, userID string, call Call) (*Result, error) {
	handler, ok := r.handlers[call.Name]
	if !ok {
		return nil, models.NewValidationError("unknown tool %q", call.Name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := handler(ctx, userID, call.Arguments)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, models.NewTimeoutError(fmt.Sprintf("tool %s", call.Name))
		}
		return nil, err
	}
	return result, nil
}
