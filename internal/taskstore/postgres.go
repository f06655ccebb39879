package taskstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/taskpilot/pkg/models"
)

// PostgresTaskStore implements TaskStore on a relational database
type PostgresTaskStore struct {
	db *sql.DB
}

// NewPostgresTaskStore creates a new task store over db
func NewPostgresTaskStore(db *sql.DB) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

const taskColumns = `id, user_id, title, description, priority, due_date, status, tags, recurrence, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority,
		&t.DueDate, &t.Status, pq.Array(&t.Tags), &t.Recurrence,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new task row. The caller fills everything but ID and
// timestamps.
func (s *PostgresTaskStore) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	task.ID = uuid.NewString()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, priority, due_date, status, tags, recurrence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`, task.ID, task.UserID, task.Title, task.Description, task.Priority,
		task.DueDate, task.Status, pq.Array(task.Tags), task.Recurrence,
	).Scan(&task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// GetByID loads one task scoped to userID
func (s *PostgresTaskStore) GetByID(ctx context.Context, userID, taskID string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2
	`, taskID, userID)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns the user's tasks matching all supplied filters
func (s *PostgresTaskStore) List(ctx context.Context, userID string, filter ListFilter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if filter.Tag != nil {
		args = append(args, *filter.Tag)
		query += fmt.Sprintf(" AND $%d = ANY(tags)", len(args))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		query += fmt.Sprintf(" AND due_date IS NOT NULL AND due_date < $%d", len(args))
	}

	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// SearchByTitle returns the user's tasks whose title contains ref
func (s *PostgresTaskStore) SearchByTitle(ctx context.Context, userID, ref string) ([]models.Task, error) {
	pattern := "%" + escapeLike(ref) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = $1 AND title ILIKE $2
		ORDER BY created_at ASC
	`, userID, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// Update applies a partial update to one task scoped to userID
func (s *PostgresTaskStore) Update(ctx context.Context, userID, taskID string, fields UpdateFields) (*models.Task, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.Title != nil {
		addSet("title", *fields.Title)
	}
	if fields.Description != nil {
		addSet("description", *fields.Description)
	}
	if fields.Priority != nil {
		addSet("priority", *fields.Priority)
	}
	if fields.DueDate != nil {
		addSet("due_date", *fields.DueDate)
	}
	if fields.Status != nil {
		addSet("status", *fields.Status)
	}
	if fields.Tags != nil {
		addSet("tags", pq.Array(fields.Tags))
	}
	if fields.Recurrence != nil {
		addSet("recurrence", *fields.Recurrence)
	}

	args = append(args, taskID)
	idArg := len(args)
	args = append(args, userID)
	userArg := len(args)

	query := fmt.Sprintf(`
		UPDATE tasks SET %s
		WHERE id = $%d AND user_id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), idArg, userArg, taskColumns)

	row := s.db.QueryRowContext(ctx, query, args...)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Delete hard-deletes one task scoped to userID
func (s *PostgresTaskStore) Delete(ctx context.Context, userID, taskID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE id = $1 AND user_id = $2
	`, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
