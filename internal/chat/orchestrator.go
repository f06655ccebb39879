// Package chat contains the turn-handling orchestrator: it receives a user
// message, assembles bounded context, invokes the reasoning capability,
// executes the chosen tools, and persists the reply. The orchestrator holds
// no per-conversation state; everything it needs is loaded per turn.
package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/taskpilot/internal/reasoning"
	"github.com/taskpilot/internal/store"
	"github.com/taskpilot/internal/tools"
	"github.com/taskpilot/pkg/models"
)

// FallbackReply is persisted and returned when the reasoning capability is
// unavailable. The user's own message is never lost in that case.
const FallbackReply = "I'm having trouble thinking right now. Your message is saved - please try again in a moment."

// DefaultMaxMessageChars bounds inbound message length
const DefaultMaxMessageChars = 4000

// Orchestrator runs one turn per call. A single instance is shared by all
// requests; the circuit breaker inside the engine is the only shared mutable
// state behind it.
type Orchestrator struct {
	store           store.ConversationStore
	registry        *tools.Registry
	engine          reasoning.Engine
	assembler       *Assembler
	maxMessageChars int
}

// NewOrchestrator wires the orchestrator
func NewOrchestrator(st store.ConversationStore, registry *tools.Registry, engine reasoning.Engine, assembler *Assembler, maxMessageChars int) *Orchestrator {
	if maxMessageChars <= 0 {
		maxMessageChars = DefaultMaxMessageChars
	}
	return &Orchestrator{
		store:           st,
		registry:        registry,
		engine:          engine,
		assembler:       assembler,
		maxMessageChars: maxMessageChars,
	}
}

// TurnInput is one inbound chat turn. UserID is the verified caller
// identity; it is injected into every tool call and never replaced by
// anything the conversation content or the reasoning output supplies.
type TurnInput struct {
	UserID         string
	ConversationID string // empty means start a new conversation
	Message        string
}

// TurnOutput is the result of one turn
type TurnOutput struct {
	Reply          string
	ConversationID string
	Degraded       bool // reasoning was unavailable, Reply is the fallback
	Truncated      bool // context assembly dropped old messages
}

// HandleTurn runs the full turn state machine. Validation failures are
// rejected before anything is persisted; once the user message is stored,
// reasoning and tool failures degrade the reply instead of failing the turn.
func (o *Orchestrator) HandleTurn(ctx context.Context, in TurnInput) (*TurnOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, models.NewValidationError("message must not be empty")
	}
	// The limit is on what gets stored: the trimmed message, in runes, so
	// multibyte text is not penalized by its encoding.
	if utf8.RuneCountInString(message) > o.maxMessageChars {
		return nil, models.NewValidationError("message exceeds %d characters", o.maxMessageChars)
	}

	// Writes must complete even if the caller disconnects mid-turn.
	persistCtx := context.WithoutCancel(ctx)

	conv, err := o.loadOrCreateConversation(ctx, persistCtx, in)
	if err != nil {
		return nil, err
	}

	logger := log.With().Str("conversation_id", conv.ID).Str("user_id", in.UserID).Logger()

	// Durability before reasoning: a failed reasoning call must never lose
	// the user's input.
	if _, err := o.store.AppendMessage(persistCtx, conv.ID, models.RoleUser, message); err != nil {
		return nil, err
	}

	history, err := o.store.LoadMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	assembled, truncated := o.assembler.Assemble(history)
	if truncated {
		logger.Info().Int("kept", len(assembled)).Int("total", len(history)).Msg("context truncated")
	}

	decision, err := o.engine.Decide(ctx, assembled, tools.Catalog())
	if err != nil {
		logger.Warn().Err(err).Msg("reasoning unavailable, degrading turn")
		if _, perr := o.store.AppendMessage(persistCtx, conv.ID, models.RoleAssistant, FallbackReply); perr != nil {
			return nil, perr
		}
		return &TurnOutput{
			Reply:          FallbackReply,
			ConversationID: conv.ID,
			Degraded:       true,
			Truncated:      truncated,
		}, nil
	}

	reply := o.resolveDecision(ctx, in.UserID, decision)

	if _, err := o.store.AppendMessage(persistCtx, conv.ID, models.RoleAssistant, reply); err != nil {
		return nil, err
	}

	return &TurnOutput{
		Reply:          reply,
		ConversationID: conv.ID,
		Truncated:      truncated,
	}, nil
}

func (o *Orchestrator) loadOrCreateConversation(ctx, persistCtx context.Context, in TurnInput) (*models.Conversation, error) {
	if in.ConversationID == "" {
		return o.store.CreateConversation(persistCtx, in.UserID)
	}
	return o.store.LoadConversation(ctx, in.ConversationID, in.UserID)
}

// resolveDecision turns a reasoning decision into the assistant reply,
// executing requested tool calls in order. The caller identity is injected
// into every dispatch. A disambiguation result stops the chain and becomes a
// clarifying question; a failed call stops the chain and its outcome is
// reported alongside whatever already succeeded.
func (o *Orchestrator) resolveDecision(ctx context.Context, userID string, decision *reasoning.Decision) string {
	if decision.IsDirectReply() {
		if decision.Reply == "" {
			return FallbackReply
		}
		return decision.Reply
	}

	var results []*tools.Result
	var failure string

	for _, call := range decision.ToolCalls {
		result, err := o.registry.Dispatch(ctx, userID, call)
		if err != nil {
			failure = describeToolFailure(call.Name, err)
			break
		}
		results = append(results, result)
		if result.NeedsClarification() {
			break
		}
	}

	return formatReply(results, failure)
}

func describeToolFailure(tool string, err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "I couldn't find a task matching that."
	case models.IsValidation(err):
		return "I couldn't do that: " + err.Error() + "."
	case models.IsTimeout(err):
		return "That took too long to complete. Please try again."
	default:
		return "Something went wrong while updating your tasks. Please try again."
	}
}
