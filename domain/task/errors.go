package task

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for task operations.
var (
	// ErrNotFound is returned when a task id does not resolve.
	ErrNotFound = errors.New("task not found")

	// ErrSubtaskNotFound is returned when a subtask id does not exist on the task.
	ErrSubtaskNotFound = errors.New("subtask not found")

	// ErrForbidden is returned when someone other than the creator updates or deletes a task.
	ErrForbidden = errors.New("only the task creator may perform this action")

	// ErrTaskLocked is returned for subtask, attachment or status changes on a completed or overdue task.
	ErrTaskLocked = errors.New("task is locked")

	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrCompletionBlocked matches every *CompletionBlockedError.
	ErrCompletionBlocked = errors.New("completion blocked")

	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("version conflict")

	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError reports an invalid or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CompletionBlockedReason explains why a task cannot be completed.
type CompletionBlockedReason string

const (
	ReasonAlreadyTerminal        CompletionBlockedReason = "AlreadyTerminal"
	ReasonSubtasksIncomplete     CompletionBlockedReason = "SubtasksIncomplete"
	ReasonDependenciesIncomplete CompletionBlockedReason = "DependenciesIncomplete"
)

// CompletionBlockedError is returned when the completion gate rejects a task.
// Pending holds the ids of the offending subtasks or dependencies.
type CompletionBlockedError struct {
	Reason  CompletionBlockedReason
	Pending []string
}

func (e *CompletionBlockedError) Error() string {
	if len(e.Pending) == 0 {
		return fmt.Sprintf("completion blocked: %s", e.Reason)
	}
	return fmt.Sprintf("completion blocked: %s (%s)", e.Reason, strings.Join(e.Pending, ", "))
}

func (e *CompletionBlockedError) Is(target error) bool {
	return target == ErrCompletionBlocked
}

// ConflictError is returned when a write's base version is not the stored version.
type ConflictError struct {
	TaskID   string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s was modified concurrently: base version %d, current version %d",
		e.TaskID, e.Expected, e.Actual)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// PersistenceError wraps a failure of the underlying store.
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError wraps err unless it already carries a domain meaning.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
