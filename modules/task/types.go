package task

import "github.com/example/task-lifecycle/domain/task"

// GetTaskRequest is the request for the get-task service.
type GetTaskRequest struct {
	TaskID string `json:"task_id"`
}

// ListUserTasksRequest is the request for the list-user-tasks service.
type ListUserTasksRequest struct {
	UserID       string `json:"user_id"`
	AssignedOnly bool   `json:"assigned_only"`
}

// CompleteTaskRequest is the request for the complete-task service.
type CompleteTaskRequest struct {
	TaskID string `json:"task_id"`
	Actor  string `json:"actor"`
}

// ServiceError carries a typed failure across the request-reply boundary.
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// TaskResponse is the response of the get-task and complete-task services.
type TaskResponse struct {
	Task        *task.Task    `json:"task,omitempty"`
	Invalidated []string      `json:"invalidated,omitempty"`
	Error       *ServiceError `json:"error,omitempty"`
}

// TaskListResponse is the response of the list-user-tasks service.
type TaskListResponse struct {
	Tasks []*task.Task  `json:"tasks"`
	Total int           `json:"total"`
	Error *ServiceError `json:"error,omitempty"`
}
