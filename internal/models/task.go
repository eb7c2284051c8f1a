package models

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the allowed statuses
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task is a tracked to-do item.
// Invariant: CompletedAt is non-nil exactly when Status is completed. The
// store sets it on the transition into completed and clears it on the
// transition out; status updates are the only mutation path.
type Task struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskUpdate carries a partial update to a task. Nil fields are left
// untouched; an update with all fields nil is a no-op reported as success.
type TaskUpdate struct {
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
}

// Empty reports whether the update changes nothing
func (u TaskUpdate) Empty() bool {
	return u.Description == nil && u.Status == nil && u.Deadline == nil
}

// Validate checks field-level constraints before the update hits the store
func (u TaskUpdate) Validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: invalid task status %q", ErrInvalidArgument, *u.Status)
	}
	return nil
}
