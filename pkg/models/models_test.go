package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDueDate(t *testing.T) {
	due := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, due.AddDate(0, 0, 1), NextDueDate(due, RecurrenceDaily))
	assert.Equal(t, due.AddDate(0, 0, 7), NextDueDate(due, RecurrenceWeekly))
	// Jan 31 + 1 month normalizes per time.AddDate.
	assert.Equal(t, due.AddDate(0, 1, 0), NextDueDate(due, RecurrenceMonthly))
	assert.Equal(t, due, NextDueDate(due, RecurrenceNone))
}

func TestEnumValidators(t *testing.T) {
	assert.True(t, ValidPriority(PriorityUrgent))
	assert.False(t, ValidPriority(TaskPriority("CRITICAL")))

	assert.True(t, ValidStatus(StatusInProgress))
	assert.False(t, ValidStatus(TaskStatus("BLOCKED")))

	assert.True(t, ValidRecurrence(RecurrenceMonthly))
	assert.False(t, ValidRecurrence(Recurrence("HOURLY")))
}

func TestKindErrorMatching(t *testing.T) {
	err := NewValidationError("bad input %q", "x")
	assert.True(t, IsValidation(err))
	assert.Equal(t, KindValidation, KindOf(err))

	wrapped := NewToolExecutionError("add_task", errors.New("connection reset"))
	assert.Equal(t, KindToolExecution, KindOf(wrapped))
	assert.Contains(t, wrapped.Error(), "add_task")

	assert.True(t, errors.Is(ErrUnauthorized, ErrUnauthorized))
	assert.False(t, errors.Is(ErrUnauthorized, ErrNotFound), "ownership and missing are distinct kinds")

	timeout := NewTimeoutError("reasoning call")
	assert.True(t, IsTimeout(timeout))
}
