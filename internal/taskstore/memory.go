package taskstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskpilot/pkg/models"
)

// MemoryTaskStore is an in-memory TaskStore used by unit tests
type MemoryTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
}

// NewMemoryTaskStore creates an empty in-memory task store
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*models.Task)}
}

func (s *MemoryTaskStore) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.UpdatedAt = now

	copied := *task
	s.tasks[task.ID] = &copied

	out := copied
	return &out, nil
}

func (s *MemoryTaskStore) GetByID(ctx context.Context, userID, taskID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, models.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (s *MemoryTaskStore) List(ctx context.Context, userID string, filter ListFilter) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Task
	for _, task := range s.tasks {
		if task.UserID != userID {
			continue
		}
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && task.Priority != *filter.Priority {
			continue
		}
		if filter.Tag != nil && !containsTag(task.Tags, *filter.Tag) {
			continue
		}
		if filter.DueBefore != nil && (task.DueDate == nil || !task.DueDate.Before(*filter.DueBefore)) {
			continue
		}
		out = append(out, *task)
	}

	sortByCreation(out)
	return out, nil
}

func (s *MemoryTaskStore) SearchByTitle(ctx context.Context, userID, ref string) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(ref)
	var out []models.Task
	for _, task := range s.tasks {
		if task.UserID != userID {
			continue
		}
		if strings.Contains(strings.ToLower(task.Title), needle) {
			out = append(out, *task)
		}
	}

	sortByCreation(out)
	return out, nil
}

func (s *MemoryTaskStore) Update(ctx context.Context, userID, taskID string, fields UpdateFields) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, models.ErrNotFound
	}

	if fields.Title != nil {
		task.Title = *fields.Title
	}
	if fields.Description != nil {
		task.Description = fields.Description
	}
	if fields.Priority != nil {
		task.Priority = *fields.Priority
	}
	if fields.DueDate != nil {
		task.DueDate = fields.DueDate
	}
	if fields.Status != nil {
		task.Status = *fields.Status
	}
	if fields.Tags != nil {
		task.Tags = fields.Tags
	}
	if fields.Recurrence != nil {
		task.Recurrence = *fields.Recurrence
	}
	task.UpdatedAt = time.Now()

	copied := *task
	return &copied, nil
}

func (s *MemoryTaskStore) Delete(ctx context.Context, userID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return models.ErrNotFound
	}
	delete(s.tasks, taskID)
	return nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func sortByCreation(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
