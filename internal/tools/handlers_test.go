package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/internal/taskstore"
	"github.com/taskpilot/pkg/models"
)

func newTestRegistry() (*Registry, *taskstore.MemoryTaskStore) {
	tasks := taskstore.NewMemoryTaskStore()
	return NewRegistry(NewHandlers(tasks), 5*time.Second), tasks
}

func args(t *testing.T, m map[string]interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return raw
}

func TestAddTask(t *testing.T) {
	registry, _ := newTestRegistry()
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "alice", Call{
			Name:      ToolAddTask,
			Arguments: args(t, map[string]interface{}{"title": "buy milk"}),
		})
		require.NoError(t, err)
		require.NotNil(t, result.Task)
		assert.Equal(t, "buy milk", result.Task.Title)
		assert.Equal(t, models.PriorityMedium, result.Task.Priority)
		assert.Equal(t, models.StatusTodo, result.Task.Status)
		assert.Equal(t, models.RecurrenceNone, result.Task.Recurrence)
		assert.Nil(t, result.Task.DueDate)
	})

	t.Run("full arguments", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "alice", Call{
			Name: ToolAddTask,
			Arguments: args(t, map[string]interface{}{
				"title":      "weekly report",
				"priority":   "high",
				"due_date":   "2026-09-07",
				"tags":       []string{"work"},
				"recurrence": "weekly",
			}),
		})
		require.NoError(t, err)
		assert.Equal(t, models.PriorityHigh, result.Task.Priority)
		assert.Equal(t, models.RecurrenceWeekly, result.Task.Recurrence)
		require.NotNil(t, result.Task.DueDate)
		assert.Equal(t, "2026-09-07", result.Task.DueDate.Format("2006-01-02"))
	})

	t.Run("duplicate titles are distinct tasks", func(t *testing.T) {
		registry, tasks := newTestRegistry()
		for i := 0; i < 2; i++ {
			_, err := registry.Dispatch(ctx, "alice", Call{
				Name:      ToolAddTask,
				Arguments: args(t, map[string]interface{}{"title": "call mom"}),
			})
			require.NoError(t, err)
		}
		listed, err := tasks.List(ctx, "alice", taskstore.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})

	t.Run("validation", func(t *testing.T) {
		cases := []map[string]interface{}{
			{"title": "   "},
			{"title": "x", "priority": "critical"},
			{"title": "x", "recurrence": "hourly"},
			{"title": "x", "due_date": "next tuesday"},
		}
		for _, c := range cases {
			_, err := registry.Dispatch(ctx, "alice", Call{Name: ToolAddTask, Arguments: args(t, c)})
			assert.True(t, models.IsValidation(err), "expected validation error for %v", c)
		}
	})
}

func TestListTasksFilters(t *testing.T) {
	registry, _ := newTestRegistry()
	ctx := context.Background()

	seed := []map[string]interface{}{
		{"title": "buy milk", "priority": "low", "tags": []string{"errands"}},
		{"title": "write report", "priority": "high", "tags": []string{"work"}, "due_date": "2026-09-03"},
		{"title": "review PRs", "priority": "high", "tags": []string{"work"}, "due_date": "2026-09-10"},
	}
	for _, s := range seed {
		_, err := registry.Dispatch(ctx, "alice", Call{Name: ToolAddTask, Arguments: args(t, s)})
		require.NoError(t, err)
	}

	t.Run("all", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "alice", Call{Name: ToolListTasks})
		require.NoError(t, err)
		assert.Len(t, result.Tasks, 3)
	})

	t.Run("filters combine with AND", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "alice", Call{
			Name: ToolListTasks,
			Arguments: args(t, map[string]interface{}{
				"priority":   "high",
				"tag":        "work",
				"due_before": "2026-09-05",
			}),
		})
		require.NoError(t, err)
		require.Len(t, result.Tasks, 1)
		assert.Equal(t, "write report", result.Tasks[0].Title)
	})

	t.Run("empty result is success", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "alice", Call{
			Name:      ToolListTasks,
			Arguments: args(t, map[string]interface{}{"status": "done"}),
		})
		require.NoError(t, err)
		assert.Empty(t, result.Tasks)
		assert.Equal(t, "No tasks match.", result.Summary)
	})

	t.Run("scoped to caller", func(t *testing.T) {
		result, err := registry.Dispatch(ctx, "bob", Call{Name: ToolListTasks})
		require.NoError(t, err)
		assert.Empty(t, result.Tasks)
	})
}

func TestCompleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("by title", func(t *testing.T) {
		registry, tasks := newTestRegistry()
		created, err := tasks.Create(ctx, &models.Task{
			UserID: "alice", Title: "buy milk",
			Priority: models.PriorityMedium, Status: models.StatusTodo,
			Recurrence: models.RecurrenceNone,
		})
		require.NoError(t, err)

		result, err := registry.Dispatch(ctx, "alice", Call{
			Name:      ToolCompleteTask,
			Arguments: args(t, map[string]interface{}{"task_ref": "milk"}),
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusDone, result.Task.Status)

		stored, err := tasks.GetByID(ctx, "alice", created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDone, stored.Status)
	})

	t.Run("by id", func(t *testing.T) {
		registry, tasks := newTestRegistry()
		created, err := tasks.Create(ctx, &models.Task{
			UserID: "alice", Title: "buy milk",
			Priority: models.PriorityMedium, Status: models.StatusTodo,
			Recurrence: models.RecurrenceNone,
		})
		require.NoError(t, err)

		result, err := registry.Dispatch(ctx, "alice", Call{
			Name:      ToolCompleteTask,
			Arguments: args(t, map[string]interface{}{"task_ref": created.ID}),
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, result.Task.ID)
	})

	t.Run("recurring rolls forward", func(t *testing.T) {
		registry, tasks := newTestRegistry()
		due := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
		created, err := tasks.Create(ctx, &models.Task{
			UserID: "alice", Title: "weekly report",
			Priority: models.PriorityHigh, Status: models.StatusTodo,
			DueDate: &due, Recurrence: models.RecurrenceWeekly,
		})
		require.NoError(t, err)

		result, err := registry.Dispatch(ctx, "alice", Call{
			Name:      ToolCompleteTask,
			Arguments: args(t, map[string]interface{}{"task_ref": created.ID}),
		})
		require.NoError(t, err)
		assert.Contains(t, result.Summary, "2026-09-14")

		listed, err := tasks.List(ctx, "alice", taskstore.ListFilter{})
		require.NoError(t, err)
		require.Len(t, listed, 2, "completing a recurring task creates the next occurrence")

		var next *models.Task
		for i := range listed {
			if listed[i].ID != created.ID {
				next = &listed[i]
			}
		}
		require.NotNil(t, next)
		assert.Equal(t, "weekly report", next.Title)
		assert.Equal(t, models.StatusTodo, next.Status)
		assert.Equal(t, models.RecurrenceWeekly, next.Recurrence)
		require.NotNil(t, next.DueDate)
		assert.Equal(t, due.AddDate(0, 0, 7), *next.DueDate)

		// The completed task keeps its original due date.
		completed, err := tasks.GetByID(ctx, "alice", created.ID)
		require.NoError(t, err)
		require.NotNil(t, completed.DueDate)
		assert.Equal(t, due, *completed.DueDate)
	})

	t.Run("retried complete does not roll forward again", func(t *testing.T) {
		registry, tasks := newTestRegistry()
		due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		created, err := tasks.Create(ctx, &models.Task{
			UserID: "alice", Title: "take meds",
			Priority: models.PriorityMedium, Status: models.StatusTodo,
			DueDate: &due, Recurrence: models.RecurrenceDaily,
		})
		require.NoError(t, err)

		call := Call{
			Name:      ToolCompleteTask,
			Arguments: args(t, map[string]interface{}{"task_ref": created.ID}),
		}
		_, err = registry.Dispatch(ctx, "alice", call)
		require.NoError(t, err)
		_, err = registry.Dispatch(ctx, "alice", call)
		require.NoError(t, err)

		listed, err := tasks.List(ctx, "alice", taskstore.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, listed, 2, "only the first completion creates the next occurrence")
	})

	t.Run("daily recurrence advances one day", func(t *testing.T) {
		registry, tasks := newTestRegistry()
		due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		created, err := tasks.Create(ctx, &models.Task{
			UserID: "alice", Title: "take meds",
			Priority: models.PriorityMedium, Status: models.StatusTodo,
			DueDate: &due, Recurrence: models.RecurrenceDaily,
		})
		require.NoError(t, err)

		result, err := registry.Dispatch(ctx, "alice", Call{
			Name:      ToolCompleteTask,
			Arguments: args(t, map[string]interface{}{"task_ref": created.ID}),
		})
		require.NoError(t, err)
		assert.Contains(t, result.Summary, "2026-09-02")

		listed, err := tasks.List(ctx, "alice", taskstore.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})

	t.Run("ambiguous reference mutates nothing", func(t *testing.T) {
		registry, tasks := newTestRegistry()
		for _, title := range []string{"write report", "review report"} {
			_, err := tasks.Create(ctx, &models.Task{
				UserID: "alice", Title: title,
				Priority: models.PriorityMedium, Status: models.StatusTodo,
				Recurrence: models.RecurrenceNone,
			})
			require.NoError(t, err)
		}

		result, err := registry.Dispatch(ctx, "alice", Call{
			Name:      ToolCompleteTask,
			Arguments: args(t, map[string]interface{}{"task_ref": "report"}),
		})
		require.NoError(t, err)
		assert.True(t, result.NeedsClarification())
		assert.Len(t, result.Candidates, 2)

		done := models.StatusDone
		listed, err := tasks.List(ctx, "alice", taskstore.ListFilter{Status: &done})
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("unknown reference", func(t *testing.T) {
		registry, _ := newTestRegistry()
		_, err := registry.Dispatch(ctx, "alice", Call{
			Name:      ToolCompleteTask,
			Arguments: args(t, map[string]interface{}{"task_ref": "nothing here"}),
		})
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	registry, tasks := newTestRegistry()

	created, err := tasks.Create(ctx, &models.Task{
		UserID: "alice", Title: "draft proposal",
		Priority: models.PriorityLow, Status: models.StatusTodo,
		Recurrence: models.RecurrenceNone,
	})
	require.NoError(t, err)

	result, err := registry.Dispatch(ctx, "alice", Call{
		Name: ToolUpdateTask,
		Arguments: args(t, map[string]interface{}{
			"task_ref": created.ID,
			"priority": "urgent",
			"status":   "in_progress",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityUrgent, result.Task.Priority)
	assert.Equal(t, models.StatusInProgress, result.Task.Status)
	assert.Equal(t, "draft proposal", result.Task.Title, "unspecified fields stay untouched")

	_, err = registry.Dispatch(ctx, "alice", Call{
		Name: ToolUpdateTask,
		Arguments: args(t, map[string]interface{}{
			"task_ref": created.ID,
			"title":    "  ",
		}),
	})
	assert.True(t, models.IsValidation(err))
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	registry, tasks := newTestRegistry()

	created, err := tasks.Create(ctx, &models.Task{
		UserID: "alice", Title: "old chore",
		Priority: models.PriorityMedium, Status: models.StatusTodo,
		Recurrence: models.RecurrenceNone,
	})
	require.NoError(t, err)

	result, err := registry.Dispatch(ctx, "alice", Call{
		Name:      ToolDeleteTask,
		Arguments: args(t, map[string]interface{}{"task_ref": "chore"}),
	})
	require.NoError(t, err)
	assert.Contains(t, result.Summary, "old chore")

	_, err = tasks.GetByID(ctx, "alice", created.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestDispatchRejectsUnknownTool(t *testing.T) {
	registry, _ := newTestRegistry()

	_, err := registry.Dispatch(context.Background(), "alice", Call{Name: "drop_database"})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestDispatchRejectsMalformedArguments(t *testing.T) {
	registry, _ := newTestRegistry()

	_, err := registry.Dispatch(context.Background(), "alice", Call{
		Name:      ToolAddTask,
		Arguments: json.RawMessage(`{"title": `),
	})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestDispatchCrossUserIsolation(t *testing.T) {
	ctx := context.Background()
	registry, tasks := newTestRegistry()

	created, err := tasks.Create(ctx, &models.Task{
		UserID: "bob", Title: "bob's task",
		Priority: models.PriorityMedium, Status: models.StatusTodo,
		Recurrence: models.RecurrenceNone,
	})
	require.NoError(t, err)

	// Alice cannot touch bob's task even with its exact id.
	_, err = registry.Dispatch(ctx, "alice", Call{
		Name:      ToolDeleteTask,
		Arguments: args(t, map[string]interface{}{"task_ref": created.ID}),
	})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	still, err := tasks.GetByID(ctx, "bob", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob's task", still.Title)
}
