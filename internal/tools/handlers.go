package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskpilot/internal/taskstore"
	"github.com/taskpilot/pkg/models"
)

// Handlers holds the five tool implementations over the task store.
// Each handler is stateless: it validates its arguments, enforces user
// scoping through the store, and is safe to retry (add accepts duplicate
// titles as distinct tasks; complete/update/delete are guarded by existence
// checks).
type Handlers struct {
	tasks taskstore.TaskStore
}

// NewHandlers creates the tool handlers over the given task store
func NewHandlers(tasks taskstore.TaskStore) *Handlers {
	return &Handlers{tasks: tasks}
}

// AddTaskArgs are the typed arguments for add_task
type AddTaskArgs struct {
	Title      string   `json:"title"`
	Priority   string   `json:"priority,omitempty"`
	DueDate    string   `json:"due_date,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Recurrence string   `json:"recurrence,omitempty"`
}

// AddTask creates a task owned by userID
func (h *Handlers) AddTask(ctx context.Context, userID string, raw json.RawMessage) (*Result, error) {
	var args AddTaskArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(args.Title)
	if title == "" {
		return nil, models.NewValidationError("task title must not be empty")
	}
	if len(title) > models.MaxTitleLength {
		return nil, models.NewValidationError("task title exceeds %d characters", models.MaxTitleLength)
	}

	priority := models.PriorityMedium
	if args.Priority != "" {
		priority = models.TaskPriority(strings.ToUpper(args.Priority))
		if !models.ValidPriority(priority) {
			return nil, models.NewValidationError("unknown priority %q", args.Priority)
		}
	}

	recurrence := models.RecurrenceNone
	if args.Recurrence != "" {
		recurrence = models.Recurrence(strings.ToUpper(args.Recurrence))
		if !models.ValidRecurrence(recurrence) {
			return nil, models.NewValidationError("unknown recurrence %q", args.Recurrence)
		}
	}

	dueDate, err := parseOptionalDate(args.DueDate)
	if err != nil {
		return nil, err
	}

	task, err := h.tasks.Create(ctx, &models.Task{
		UserID:     userID,
		Title:      title,
		Priority:   priority,
		DueDate:    dueDate,
		Status:     models.StatusTodo,
		Tags:       args.Tags,
		Recurrence: recurrence,
	})
	if err != nil {
		return nil, models.NewToolExecutionError(ToolAddTask, err)
	}

	log.Debug().Str("user_id", userID).Str("task_id", task.ID).Msg("task created")

	return &Result{
		Tool:    ToolAddTask,
		Summary: fmt.Sprintf("Added task %q.", task.Title),
		Task:    task,
	}, nil
}

// ListTasksArgs are the typed arguments for list_tasks
type ListTasksArgs struct {
	Status    string `json:"status,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Tag       string `json:"tag,omitempty"`
	DueBefore string `json:"due_before,omitempty"`
}

// ListTasks returns the user's tasks matching all supplied filters.
// An empty result is success, not an error.
func (h *Handlers) ListTasks(ctx context.Context, userID string, raw json.RawMessage) (*Result, error) {
	var args ListTasksArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	var filter taskstore.ListFilter
	if args.Status != "" {
		status := models.TaskStatus(strings.ToUpper(args.Status))
		if !models.ValidStatus(status) {
			return nil, models.NewValidationError("unknown status %q", args.Status)
		}
		filter.Status = &status
	}
	if args.Priority != "" {
		priority := models.TaskPriority(strings.ToUpper(args.Priority))
		if !models.ValidPriority(priority) {
			return nil, models.NewValidationError("unknown priority %q", args.Priority)
		}
		filter.Priority = &priority
	}
	if args.Tag != "" {
		filter.Tag = &args.Tag
	}
	if args.DueBefore != "" {
		due, err := parseOptionalDate(args.DueBefore)
		if err != nil {
			return nil, err
		}
		filter.DueBefore = due
	}

	tasks, err := h.tasks.List(ctx, userID, filter)
	if err != nil {
		return nil, models.NewToolExecutionError(ToolListTasks, err)
	}

	summary := fmt.Sprintf("Found %d task(s).", len(tasks))
	if len(tasks) == 0 {
		summary = "No tasks match."
	}

	return &Result{
		Tool:    ToolListTasks,
		Summary: summary,
		Tasks:   tasks,
	}, nil
}

// TaskRefArgs carry a task reference: an id or free text matched against titles
type TaskRefArgs struct {
	TaskRef string `json:"task_ref"`
}

// CompleteTask marks a task done. Completing a recurring task also creates
// the next occurrence as a new task with the due date advanced by one
// recurrence unit; the completed task itself is left untouched apart from
// its status.
func (h *Handlers) CompleteTask(ctx context.Context, userID string, raw json.RawMessage) (*Result, error) {
	var args TaskRefArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	task, disambiguation, err := h.resolveTaskRef(ctx, userID, args.TaskRef)
	if err != nil {
		return nil, err
	}
	if disambiguation != nil {
		return disambiguation.tagged(ToolCompleteTask), nil
	}

	done := models.StatusDone
	completed, err := h.tasks.Update(ctx, userID, task.ID, taskstore.UpdateFields{Status: &done})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, models.NewToolExecutionError(ToolCompleteTask, err)
	}

	summary := fmt.Sprintf("Completed %q.", completed.Title)

	// Roll forward only on the first completion. A retried complete on an
	// already-done task must not mint another occurrence.
	if task.Status != models.StatusDone && completed.Recurrence != models.RecurrenceNone {
		seed := time.Now()
		if completed.DueDate != nil {
			seed = *completed.DueDate
		}
		nextDue := models.NextDueDate(seed, completed.Recurrence)

		next, err := h.tasks.Create(ctx, &models.Task{
			UserID:      userID,
			Title:       completed.Title,
			Description: completed.Description,
			Priority:    completed.Priority,
			DueDate:     &nextDue,
			Status:      models.StatusTodo,
			Tags:        completed.Tags,
			Recurrence:  completed.Recurrence,
		})
		if err != nil {
			return nil, models.NewToolExecutionError(ToolCompleteTask, err)
		}
		log.Debug().Str("task_id", completed.ID).Str("next_id", next.ID).Msg("recurring task rolled forward")
		summary = fmt.Sprintf("Completed %q. Next occurrence is due %s.",
			completed.Title, nextDue.Format("2006-01-02"))
	}

	return &Result{
		Tool:    ToolCompleteTask,
		Summary: summary,
		Task:    completed,
	}, nil
}

// UpdateTaskArgs carry a task reference plus the fields to change
type UpdateTaskArgs struct {
	TaskRef     string   `json:"task_ref"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Recurrence  *string  `json:"recurrence,omitempty"`
}

// UpdateTask applies a partial update; unspecified fields are left untouched
func (h *Handlers) UpdateTask(ctx context.Context, userID string, raw json.RawMessage) (*Result, error) {
	var args UpdateTaskArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	task, disambiguation, err := h.resolveTaskRef(ctx, userID, args.TaskRef)
	if err != nil {
		return nil, err
	}
	if disambiguation != nil {
		return disambiguation.tagged(ToolUpdateTask), nil
	}

	var fields taskstore.UpdateFields

	if args.Title != nil {
		title := strings.TrimSpace(*args.Title)
		if title == "" {
			return nil, models.NewValidationError("task title must not be empty")
		}
		if len(title) > models.MaxTitleLength {
			return nil, models.NewValidationError("task title exceeds %d characters", models.MaxTitleLength)
		}
		fields.Title = &title
	}
	if args.Description != nil {
		fields.Description = args.Description
	}
	if args.Priority != nil {
		priority := models.TaskPriority(strings.ToUpper(*args.Priority))
		if !models.ValidPriority(priority) {
			return nil, models.NewValidationError("unknown priority %q", *args.Priority)
		}
		fields.Priority = &priority
	}
	if args.DueDate != nil {
		due, err := parseOptionalDate(*args.DueDate)
		if err != nil {
			return nil, err
		}
		fields.DueDate = due
	}
	if args.Status != nil {
		status := models.TaskStatus(strings.ToUpper(*args.Status))
		if !models.ValidStatus(status) {
			return nil, models.NewValidationError("unknown status %q", *args.Status)
		}
		fields.Status = &status
	}
	if args.Tags != nil {
		fields.Tags = args.Tags
	}
	if args.Recurrence != nil {
		recurrence := models.Recurrence(strings.ToUpper(*args.Recurrence))
		if !models.ValidRecurrence(recurrence) {
			return nil, models.NewValidationError("unknown recurrence %q", *args.Recurrence)
		}
		fields.Recurrence = &recurrence
	}

	updated, err := h.tasks.Update(ctx, userID, task.ID, fields)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, models.NewToolExecutionError(ToolUpdateTask, err)
	}

	return &Result{
		Tool:    ToolUpdateTask,
		Summary: fmt.Sprintf("Updated %q.", updated.Title),
		Task:    updated,
	}, nil
}

// DeleteTask hard-deletes a task; an ambiguous reference returns
// disambiguation rather than deleting anything.
func (h *Handlers) DeleteTask(ctx context.Context, userID string, raw json.RawMessage) (*Result, error) {
	var args TaskRefArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	task, disambiguation, err := h.resolveTaskRef(ctx, userID, args.TaskRef)
	if err != nil {
		return nil, err
	}
	if disambiguation != nil {
		return disambiguation.tagged(ToolDeleteTask), nil
	}

	if err := h.tasks.Delete(ctx, userID, task.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, models.NewToolExecutionError(ToolDeleteTask, err)
	}

	return &Result{
		Tool:    ToolDeleteTask,
		Summary: fmt.Sprintf("Deleted %q.", task.Title),
		Task:    task,
	}, nil
}

// resolveTaskRef resolves an id or free-text reference to exactly one task.
// A UUID is looked up directly. Free text is matched against titles: one hit
// resolves, several hits produce a disambiguation result, none is not-found.
func (h *Handlers) resolveTaskRef(ctx context.Context, userID, ref string) (*models.Task, *Result, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil, models.NewValidationError("task reference must not be empty")
	}

	if _, err := uuid.Parse(ref); err == nil {
		task, err := h.tasks.GetByID(ctx, userID, ref)
		if err != nil {
			return nil, nil, err
		}
		return task, nil, nil
	}

	matches, err := h.tasks.SearchByTitle(ctx, userID, ref)
	if err != nil {
		return nil, nil, models.NewToolExecutionError("resolve", err)
	}

	switch len(matches) {
	case 0:
		return nil, nil, models.ErrNotFound
	case 1:
		return &matches[0], nil, nil
	default:
		return nil, &Result{
			Summary:    fmt.Sprintf("%d tasks match %q.", len(matches), ref),
			Candidates: matches,
		}, nil
	}
}

func (r *Result) tagged(tool string) *Result {
	r.Tool = tool
	return r
}

func unmarshalArgs(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return models.NewValidationError("malformed tool arguments: %v", err)
	}
	return nil
}

func parseOptionalDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, models.NewValidationError("unparseable date %q, expected YYYY-MM-DD", s)
}
