package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// TaskCreatedEvent is emitted after a task is stored.
type TaskCreatedEvent struct {
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	CreatedBy   string    `json:"created_by"`
	AssigneeIDs []string  `json:"assignee_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskCreatedV1 is the typed event definition for task creation.
// Subject: events.task.v1.task-created
var TaskCreatedV1 = helper.EventDefinition[TaskCreatedEvent](
	"task", "TaskCreated", "v1",
)

// TaskUpdatedEvent is emitted after any successful update, status change,
// subtask toggle or attachment upload.
type TaskUpdatedEvent struct {
	TaskID      string    `json:"task_id"`
	Status      string    `json:"status"`
	Version     int64     `json:"version"`
	UpdatedBy   string    `json:"updated_by"`
	AssigneeIDs []string  `json:"assignee_ids"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskUpdatedV1 is the typed event definition for task updates.
// Subject: events.task.v1.task-updated
var TaskUpdatedV1 = helper.EventDefinition[TaskUpdatedEvent](
	"task", "TaskUpdated", "v1",
)

// TaskCompletedEvent is emitted when a task passes the completion gate.
type TaskCompletedEvent struct {
	TaskID      string    `json:"task_id"`
	CompletedBy string    `json:"completed_by"`
	AssigneeIDs []string  `json:"assignee_ids"`
	CompletedAt time.Time `json:"completed_at"`
}

// TaskCompletedV1 is the typed event definition for task completion.
// Subject: events.task.v1.task-completed
var TaskCompletedV1 = helper.EventDefinition[TaskCompletedEvent](
	"task", "TaskCompleted", "v1",
)

// TaskDeletedEvent is emitted when a task is deleted.
type TaskDeletedEvent struct {
	TaskID      string    `json:"task_id"`
	DeletedBy   string    `json:"deleted_by"`
	AssigneeIDs []string  `json:"assignee_ids"`
	DeletedAt   time.Time `json:"deleted_at"`
}

// TaskDeletedV1 is the typed event definition for task deletion.
// Subject: events.task.v1.task-deleted
var TaskDeletedV1 = helper.EventDefinition[TaskDeletedEvent](
	"task", "TaskDeleted", "v1",
)
