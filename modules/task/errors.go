package task

import (
	"errors"

	"github.com/example/task-lifecycle/domain/task"
)

// Error codes shared by the request-reply services and the HTTP surface.
const (
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeForbidden         = "forbidden"
	CodeCompletionBlocked = "completion_blocked"
	CodeTaskLocked        = "task_locked"
	CodeConflict          = "conflict"
	CodeInternal          = "internal_error"
)

// ErrorCode classifies err into one of the error codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, task.ErrValidation):
		return CodeValidation
	case errors.Is(err, task.ErrNotFound), errors.Is(err, task.ErrSubtaskNotFound):
		return CodeNotFound
	case errors.Is(err, task.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, task.ErrCompletionBlocked):
		return CodeCompletionBlocked
	case errors.Is(err, task.ErrTaskLocked):
		return CodeTaskLocked
	case errors.Is(err, task.ErrConflict):
		return CodeConflict
	default:
		return CodeInternal
	}
}

func toServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	se := &ServiceError{Code: ErrorCode(err), Message: err.Error()}
	var blocked *task.CompletionBlockedError
	if errors.As(err, &blocked) {
		se.Reason = string(blocked.Reason)
	}
	return se
}
