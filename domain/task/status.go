package task

import (
	"fmt"
	"time"
)

// IsPastDue reports whether the due date has passed at now.
func IsPastDue(t *Task, now time.Time) bool {
	return t.DueDate != nil && now.After(*t.DueDate)
}

// ComputeDerivedStatus returns the status a task should have at now.
//
// Completed is sticky. A task past its due date that is not completed is
// overdue, and overdue stays overdue. Otherwise the status follows the
// subtasks: none done is todo, some or all done is in-progress. A task
// without subtasks keeps an explicit in-progress and defaults to todo.
func ComputeDerivedStatus(t *Task, now time.Time) Status {
	if t.Status == StatusCompleted {
		return StatusCompleted
	}
	if t.Status == StatusOverdue || IsPastDue(t, now) {
		return StatusOverdue
	}
	if len(t.SubTasks) == 0 {
		if t.Status == StatusInProgress {
			return StatusInProgress
		}
		return StatusTodo
	}
	if t.CompletedSubtasks() == 0 {
		return StatusTodo
	}
	return StatusInProgress
}

// Refresh applies the time-driven overdue transition and the terminal lock to t
// in place. It reports whether t changed.
func Refresh(t *Task, now time.Time) bool {
	changed := false
	if !t.Status.Terminal() && IsPastDue(t, now) {
		t.Status = StatusOverdue
		changed = true
	}
	if t.Status.Terminal() && !t.IsLocked {
		t.IsLocked = true
		changed = true
	}
	return changed
}

// Recompute sets t's status from its subtasks and due date and locks it when
// the result is terminal.
func Recompute(t *Task, now time.Time) {
	t.Status = ComputeDerivedStatus(t, now)
	if t.Status.Terminal() {
		t.IsLocked = true
	}
}

// ApplySubtaskToggle flips the completed flag of one subtask and returns the
// updated copy. It never moves the task to completed.
func ApplySubtaskToggle(t *Task, subtaskID string, now time.Time) (*Task, error) {
	if t.IsLocked || ComputeDerivedStatus(t, now).Terminal() {
		return nil, ErrTaskLocked
	}
	i := t.FindSubtask(subtaskID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSubtaskNotFound, subtaskID)
	}

	updated := t.Clone()
	updated.SubTasks[i].Completed = !updated.SubTasks[i].Completed
	Recompute(updated, now)
	return updated, nil
}

// ValidateCompletion checks the completion gate. deps maps dependency ids to
// their current status; a missing entry counts as not completed.
func ValidateCompletion(t *Task, deps map[string]Status) error {
	if t.Status.Terminal() {
		return &CompletionBlockedError{Reason: ReasonAlreadyTerminal}
	}

	var pending []string
	for _, s := range t.SubTasks {
		if !s.Completed {
			pending = append(pending, s.ID)
		}
	}
	if len(pending) > 0 {
		return &CompletionBlockedError{Reason: ReasonSubtasksIncomplete, Pending: pending}
	}

	for _, id := range t.Dependencies {
		if deps[id] != StatusCompleted {
			pending = append(pending, id)
		}
	}
	if len(pending) > 0 {
		return &CompletionBlockedError{Reason: ReasonDependenciesIncomplete, Pending: pending}
	}
	return nil
}

// Complete validates completion at now and returns the completed, locked copy.
func Complete(t *Task, deps map[string]Status, now time.Time) (*Task, error) {
	updated := t.Clone()
	Refresh(updated, now)
	if err := ValidateCompletion(updated, deps); err != nil {
		return nil, err
	}

	completedAt := now
	updated.Status = StatusCompleted
	updated.CompletedDate = &completedAt
	updated.IsLocked = true
	return updated, nil
}

// ValidateStatusChange checks a change through the generic status path.
// Completed goes through Complete and overdue is derived, so neither is accepted here.
func ValidateStatusChange(t *Task, next Status) error {
	if !next.Valid() {
		return NewValidationError("status", "unknown status %q", next)
	}
	if t.IsLocked || t.Status.Terminal() {
		return ErrTaskLocked
	}
	switch next {
	case StatusCompleted:
		return NewValidationError("status", "completed can only be set through the completion action")
	case StatusOverdue:
		return NewValidationError("status", "overdue is derived from the due date")
	}
	return nil
}

// ApplyStatusChange validates next at now and returns the updated copy.
// A task with subtasks takes its status from them, so next must match the
// derived status.
func ApplyStatusChange(t *Task, next Status, now time.Time) (*Task, error) {
	updated := t.Clone()
	Refresh(updated, now)
	if err := ValidateStatusChange(updated, next); err != nil {
		return nil, err
	}
	updated.Status = next
	if len(updated.SubTasks) > 0 {
		if derived := ComputeDerivedStatus(updated, now); derived != next {
			return nil, NewValidationError("status", "status %s contradicts the subtasks, which give %s", next, derived)
		}
	}
	return updated, nil
}
