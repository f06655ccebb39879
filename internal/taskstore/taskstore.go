// Package taskstore is the client for the task-store collaborator. Tool
// handlers are its only callers; nothing else in the system touches task rows.
package taskstore

import (
	"context"
	"time"

	"github.com/taskpilot/pkg/models"
)

// ListFilter narrows a task listing. All supplied filters apply together.
type ListFilter struct {
	Status    *models.TaskStatus
	Priority  *models.TaskPriority
	Tag       *string
	DueBefore *time.Time
}

// UpdateFields holds a partial update. Nil fields are left untouched.
type UpdateFields struct {
	Title       *string
	Description *string
	Priority    *models.TaskPriority
	DueDate     *time.Time
	Status      *models.TaskStatus
	Tags        []string
	Recurrence  *models.Recurrence
}

// TaskStore is the CRUD contract over task rows. Every operation is scoped
// to the owning user; a task belonging to another user is indistinguishable
// from an absent one.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, userID, taskID string) (*models.Task, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]models.Task, error)

	// SearchByTitle returns the user's tasks whose title contains ref,
	// case-insensitively. Used for free-text task references.
	SearchByTitle(ctx context.Context, userID, ref string) ([]models.Task, error)

	Update(ctx context.Context, userID, taskID string, fields UpdateFields) (*models.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
}
