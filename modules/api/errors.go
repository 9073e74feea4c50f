package api

import (
	"errors"
	"log"

	"github.com/example/task-lifecycle/domain/task"
	"github.com/example/task-lifecycle/modules/attachment"
	"github.com/example/task-lifecycle/modules/notification"
	"github.com/example/task-lifecycle/modules/performance"
	tasksvc "github.com/example/task-lifecycle/modules/task"
	"github.com/gofiber/fiber/v2"
)

var codeStatus = map[string]int{
	tasksvc.CodeValidation:        fiber.StatusBadRequest,
	tasksvc.CodeNotFound:          fiber.StatusNotFound,
	tasksvc.CodeForbidden:         fiber.StatusForbidden,
	tasksvc.CodeCompletionBlocked: fiber.StatusUnprocessableEntity,
	tasksvc.CodeTaskLocked:        fiber.StatusLocked,
	tasksvc.CodeConflict:          fiber.StatusConflict,
	tasksvc.CodeInternal:          fiber.StatusInternalServerError,
}

// writeError maps a service error to its HTTP status and body.
func writeError(c *fiber.Ctx, err error) error {
	if errors.Is(err, attachment.ErrFileNotFound) || errors.Is(err, attachment.ErrInvalidFileID) ||
		errors.Is(err, notification.ErrNotFound) || errors.Is(err, performance.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: tasksvc.CodeNotFound, Message: err.Error()})
	}

	code := tasksvc.ErrorCode(err)
	resp := ErrorResponse{Error: code, Message: err.Error()}

	var verr *task.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = map[string]string{verr.Field: verr.Message}
	}
	var blocked *task.CompletionBlockedError
	if errors.As(err, &blocked) {
		resp.Reason = string(blocked.Reason)
		resp.Pending = blocked.Pending
	}
	if code == tasksvc.CodeInternal {
		log.Printf("[api] Internal error on %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(codeStatus[code]).JSON(resp)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}
