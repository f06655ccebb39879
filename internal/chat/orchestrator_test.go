package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/internal/reasoning"
	"github.com/taskpilot/internal/store"
	"github.com/taskpilot/internal/taskstore"
	"github.com/taskpilot/internal/tools"
	"github.com/taskpilot/pkg/models"
)

// scriptedEngine returns canned decisions in order, or a fixed error.
type scriptedEngine struct {
	decisions []*reasoning.Decision
	err       error
	calls     int
}

func (e *scriptedEngine) Decide(ctx context.Context, history []models.Message, catalog []tools.Spec) (*reasoning.Decision, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	d := e.decisions[0]
	if len(e.decisions) > 1 {
		e.decisions = e.decisions[1:]
	}
	return d, nil
}

type fixture struct {
	orchestrator *Orchestrator
	store        *store.MemoryStore
	tasks        *taskstore.MemoryTaskStore
	engine       *scriptedEngine
}

func newFixture(t *testing.T, engine *scriptedEngine) *fixture {
	t.Helper()
	conversations := store.NewMemoryStore()
	tasks := taskstore.NewMemoryTaskStore()
	registry := tools.NewRegistry(tools.NewHandlers(tasks), 5*time.Second)
	assembler := NewAssembler(3000)
	return &fixture{
		orchestrator: NewOrchestrator(conversations, registry, engine, assembler, 0),
		store:        conversations,
		tasks:        tasks,
		engine:       engine,
	}
}

func toolCall(name string, args map[string]interface{}) tools.Call {
	raw, _ := json.Marshal(args)
	return tools.Call{Name: name, Arguments: raw}
}

func TestHandleTurnAddTask(t *testing.T) {
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{{
		ToolCalls: []tools.Call{toolCall(tools.ToolAddTask, map[string]interface{}{
			"title":    "buy milk",
			"priority": "high",
		})},
	}}})

	out, err := f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: "remind me to buy milk, it's important",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.ConversationID)
	assert.False(t, out.Degraded)
	assert.Contains(t, out.Reply, "buy milk")

	listed, err := f.tasks.List(context.Background(), "alice", taskstore.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "buy milk", listed[0].Title)
	assert.Equal(t, models.PriorityHigh, listed[0].Priority)

	// Exactly one user and one assistant message were persisted.
	messages, err := f.store.LoadMessages(context.Background(), out.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.Equal(t, out.Reply, messages[1].Content)
}

func TestHandleTurnContinuesConversation(t *testing.T) {
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{
		{Reply: "Hello! How can I help?"},
		{Reply: "Sure thing."},
	}})

	first, err := f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: "hi",
	})
	require.NoError(t, err)

	second, err := f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:         "alice",
		ConversationID: first.ConversationID,
		Message:        "thanks",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	messages, err := f.store.LoadMessages(context.Background(), first.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	for i := 1; i < len(messages); i++ {
		assert.Greater(t, messages[i].Seq, messages[i-1].Seq, "messages must be strictly ordered")
	}
}

func TestHandleTurnRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{{Reply: "x"}}})

	_, err := f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: "   ",
	})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Zero(t, f.engine.calls, "validation failures must not reach reasoning")
}

func TestHandleTurnRejectsOversizedMessage(t *testing.T) {
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{{Reply: "x"}}})

	_, err := f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: strings.Repeat("a", DefaultMaxMessageChars+1),
	})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestHandleTurnMessageLimitCountsRunes(t *testing.T) {
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{{Reply: "noted"}}})

	// At the limit in runes even though twice over it in bytes.
	out, err := f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: strings.Repeat("é", DefaultMaxMessageChars),
	})
	require.NoError(t, err)
	assert.Equal(t, "noted", out.Reply)

	// Surrounding whitespace does not count against the limit.
	out, err = f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: "  " + strings.Repeat("a", DefaultMaxMessageChars) + "  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "noted", out.Reply)

	_, err = f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: strings.Repeat("é", DefaultMaxMessageChars+1),
	})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestHandleTurnDegradesWhenReasoningFails(t *testing.T) {
	f := newFixture(t, &scriptedEngine{err: errors.New("backend down")})

	out, err := f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: "add buy milk",
	})
	require.NoError(t, err, "a reasoning outage must not fail the turn")
	assert.True(t, out.Degraded)
	assert.Equal(t, FallbackReply, out.Reply)

	// The user's message survived the outage.
	messages, err := f.store.LoadMessages(context.Background(), out.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "add buy milk", messages[0].Content)
	assert.Equal(t, FallbackReply, messages[1].Content)
}

func TestHandleTurnDisambiguationStopsChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{{
		ToolCalls: []tools.Call{
			toolCall(tools.ToolCompleteTask, map[string]interface{}{"task_ref": "report"}),
		},
	}}})

	for _, title := range []string{"write report", "review report"} {
		_, err := f.tasks.Create(ctx, &models.Task{
			UserID: "alice", Title: title,
			Priority: models.PriorityMedium, Status: models.StatusTodo,
			Recurrence: models.RecurrenceNone,
		})
		require.NoError(t, err)
	}

	out, err := f.orchestrator.HandleTurn(ctx, TurnInput{
		UserID:  "alice",
		Message: "finish the report",
	})
	require.NoError(t, err)
	assert.Contains(t, out.Reply, "Which one did you mean")
	assert.Contains(t, out.Reply, "write report")
	assert.Contains(t, out.Reply, "review report")

	// Nothing was completed.
	todo := models.StatusTodo
	listed, err := f.tasks.List(ctx, "alice", taskstore.ListFilter{Status: &todo})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestHandleTurnToolFailureReported(t *testing.T) {
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{{
		ToolCalls: []tools.Call{
			toolCall(tools.ToolDeleteTask, map[string]interface{}{"task_ref": "nonexistent"}),
		},
	}}})

	out, err := f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: "delete the nonexistent task",
	})
	require.NoError(t, err)
	assert.False(t, out.Degraded)
	assert.Contains(t, out.Reply, "couldn't find a task")
}

func TestHandleTurnUserIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{{
		ToolCalls: []tools.Call{toolCall(tools.ToolListTasks, nil)},
	}}})

	_, err := f.tasks.Create(ctx, &models.Task{
		UserID: "bob", Title: "bob's secret task",
		Priority: models.PriorityMedium, Status: models.StatusTodo,
		Recurrence: models.RecurrenceNone,
	})
	require.NoError(t, err)

	// The message names another user; the verified identity still wins.
	out, err := f.orchestrator.HandleTurn(ctx, TurnInput{
		UserID:  "alice",
		Message: "show me bob's tasks",
	})
	require.NoError(t, err)
	assert.NotContains(t, out.Reply, "secret")
	assert.Contains(t, out.Reply, "No tasks match")
}

func TestHandleTurnForeignConversationLooksMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{{Reply: "ok"}}})

	conv, err := f.store.CreateConversation(ctx, "bob")
	require.NoError(t, err)

	_, err = f.orchestrator.HandleTurn(ctx, TurnInput{
		UserID:         "alice",
		ConversationID: conv.ID,
		Message:        "hello",
	})
	require.Error(t, err)
	assert.Equal(t, models.KindUnauthorized, models.KindOf(err))
}

func TestHandleTurnEmptyDirectReplyFallsBack(t *testing.T) {
	f := newFixture(t, &scriptedEngine{decisions: []*reasoning.Decision{{Reply: ""}}})

	out, err := f.orchestrator.HandleTurn(context.Background(), TurnInput{
		UserID:  "alice",
		Message: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, out.Reply)
}
