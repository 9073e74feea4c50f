package api

import (
	domain "github.com/example/task-lifecycle/domain/notification"
	"github.com/example/task-lifecycle/domain/task"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Pending []string          `json:"pending,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// TaskListResponse is the body of the task list endpoints.
type TaskListResponse struct {
	Tasks []*task.Task `json:"tasks"`
	Total int          `json:"total"`
}

// NotificationListResponse is the body of the inbox endpoint.
type NotificationListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

// StatusRequest is the object form of a status change body.
type StatusRequest struct {
	Status task.Status `json:"status"`
}
