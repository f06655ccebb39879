package models

import (
	"time"
)

// Conversation models

// MessageRole identifies who authored a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Conversation represents a chat thread owned by exactly one user.
// The owning user is fixed at creation and never changes.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Message represents one append-only entry in a conversation.
// Seq is the sole ordering key for context reconstruction: it strictly
// increases within a conversation.
type Message struct {
	ID             string      `json:"id" db:"id"`
	ConversationID string      `json:"conversation_id" db:"conversation_id"`
	Seq            int64       `json:"seq" db:"seq"`
	Role           MessageRole `json:"role" db:"role"`
	Content        string      `json:"content" db:"content"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// Task models

// TaskPriority is the priority enum for tasks
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// TaskStatus is the lifecycle enum for tasks
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

// Recurrence describes how a task repeats after completion
type Recurrence string

const (
	RecurrenceNone    Recurrence = "NONE"
	RecurrenceDaily   Recurrence = "DAILY"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
)

// MaxTitleLength is the upper bound on task titles
const MaxTitleLength = 500

// Task represents a task row owned by exactly one user
type Task struct {
	ID          string       `json:"id" db:"id"`
	UserID      string       `json:"user_id" db:"user_id"`
	Title       string       `json:"title" db:"title"`
	Description *string      `json:"description,omitempty" db:"description"`
	Priority    TaskPriority `json:"priority" db:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty" db:"due_date"`
	Status      TaskStatus   `json:"status" db:"status"`
	Tags        []string     `json:"tags,omitempty" db:"tags"`
	Recurrence  Recurrence   `json:"recurrence" db:"recurrence"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// ValidPriority reports whether p is a known priority value
func ValidPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known status value
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ValidRecurrence reports whether r is a known recurrence value
func ValidRecurrence(r Recurrence) bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// NextDueDate advances a due date by one recurrence unit.
// Returns the input unchanged for RecurrenceNone.
func NextDueDate(due time.Time, r Recurrence) time.Time {
	switch r {
	case RecurrenceDaily:
		return due.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		return due.AddDate(0, 0, 7)
	case RecurrenceMonthly:
		return due.AddDate(0, 1, 0)
	}
	return due
}
