// Package reasoning wraps the external language-model capability. The rest
// of the system consumes it as an opaque decision step: given a conversation
// history and the tool catalog, it answers directly or names tools to run.
package reasoning

import (
	"context"

	"github.com/taskpilot/internal/tools"
	"github.com/taskpilot/pkg/models"
)

// SystemPrompt is the fixed preamble sent on every reasoning call. The
// context assembler counts it against the token budget.
const SystemPrompt = `You are TaskPilot, an assistant that manages the user's task list.
Use the provided tools to add, list, update, complete, or delete tasks when the
user asks for task changes; answer directly for anything else. Never invent
task ids. When a request is ambiguous, prefer the tool whose result lets the
user clarify. Keep replies short and concrete.`

// Decision is the outcome of one reasoning call: either a direct
// natural-language reply, or a sequence of tool calls to execute in order.
type Decision struct {
	Reply     string
	ToolCalls []tools.Call
}

// IsDirectReply reports whether the decision carries no tool calls
func (d *Decision) IsDirectReply() bool {
	return len(d.ToolCalls) == 0
}

// Engine is the reasoning capability contract
type Engine interface {
	Decide(ctx context.Context, history []models.Message, catalog []tools.Spec) (*Decision, error)
}
