package task

import (
	"context"
	"fmt"
	"slices"

	notificationdomain "github.com/example/task-lifecycle/domain/notification"
	"github.com/example/task-lifecycle/domain/task"
)

// Create validates input and stores a new task created by actor.
func (s *Service) Create(ctx context.Context, actor string, in TaskInput) (*MutationResult, error) {
	if err := validateBasics(&in); err != nil {
		return nil, err
	}
	if in.Status.Terminal() {
		return nil, task.NewValidationError("status", "a new task cannot be %s", in.Status)
	}

	id := s.newID()
	subtasks, err := buildSubtasks(in.SubTasks)
	if err != nil {
		return nil, err
	}
	deps, err := s.validateDependencies(ctx, id, in.Dependencies)
	if err != nil {
		return nil, err
	}
	assignees, err := s.buildAssignees(ctx, in.AssignedUsers, nil)
	if err != nil {
		return nil, err
	}
	creator, err := s.creatorRef(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &task.Task{
		ID:            id,
		Title:         in.Title,
		Description:   in.Description,
		Status:        in.Status,
		Priority:      in.Priority,
		Category:      in.Category,
		TeamID:        in.TeamID,
		DueDate:       in.DueDate,
		CreatedBy:     creator,
		AssignedUsers: assignees,
		SubTasks:      subtasks,
		Dependencies:  deps,
		Attachments:   []task.Attachment{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	task.Recompute(t, now)

	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("Task created", "task_id", t.ID, "created_by", actor, "assignees", len(assignees))

	res := s.commit(ctx, t, effects{
		users:   [][]string{t.AssigneeIDs(), {actor}},
		notices: []notice{{event: notificationdomain.TypeTaskAssigned, recipients: t.AssigneeIDs()}},
	})
	s.publishCreated(t, actor)
	return res, nil
}

// Update replaces the writable fields of a task. Only the creator may update.
func (s *Service) Update(ctx context.Context, actor, id string, in TaskInput) (*MutationResult, error) {
	stored, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.CreatedBy.ID != actor {
		return nil, task.ErrForbidden
	}
	if in.Version != nil && *in.Version != stored.Version {
		return nil, &task.ConflictError{TaskID: id, Expected: *in.Version, Actual: stored.Version}
	}
	if err := validateBasics(&in); err != nil {
		return nil, err
	}

	now := s.now()
	current := stored.Clone()
	task.Refresh(current, now)

	subtasks, err := buildSubtasks(in.SubTasks)
	if err != nil {
		return nil, err
	}
	// A terminal task keeps the facts its status was decided on.
	if current.IsLocked && (!subtasksEqual(current.SubTasks, subtasks) ||
		!sameIDs(current.Dependencies, task.NormalizeDependencies(in.Dependencies)) ||
		!sameDueDate(current.DueDate, in.DueDate)) {
		return nil, task.ErrTaskLocked
	}
	if in.Status != "" && in.Status != current.Status {
		if err := task.ValidateStatusChange(current, in.Status); err != nil {
			return nil, err
		}
	}
	deps, err := s.validateDependencies(ctx, id, in.Dependencies)
	if err != nil {
		return nil, err
	}
	assignees, err := s.buildAssignees(ctx, in.AssignedUsers, current.AssignedUsers)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	next.Title = in.Title
	next.Description = in.Description
	next.Priority = in.Priority
	next.Category = in.Category
	next.TeamID = in.TeamID
	next.DueDate = in.DueDate
	next.AssignedUsers = assignees
	next.SubTasks = subtasks
	next.Dependencies = deps
	next.UpdatedAt = now
	if !current.Status.Terminal() {
		if in.Status != "" {
			next.Status = in.Status
		}
		task.Recompute(next, now)
	}

	if err := s.store.Update(ctx, next, stored.Version); err != nil {
		return nil, err
	}

	before := stored.AssigneeIDs()
	after := next.AssigneeIDs()
	added := addedUsers(before, after)
	event := notificationdomain.TypeTaskUpdated
	if stored.Status != task.StatusOverdue && next.Status == task.StatusOverdue {
		event = notificationdomain.TypeTaskOverdue
	}

	res := s.commit(ctx, next, effects{
		users: [][]string{before, after, {next.CreatedBy.ID}},
		notices: []notice{
			{event: notificationdomain.TypeTaskAssigned, recipients: added},
			{event: event, recipients: without(after, added)},
		},
	})
	s.publishUpdated(next, actor)
	return res, nil
}

// ToggleSubtask flips one subtask. Any actor may toggle while the task is unlocked.
func (s *Service) ToggleSubtask(ctx context.Context, actor, id, subtaskID string) (*MutationResult, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := task.ApplySubtaskToggle(current, subtaskID, s.now())
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.store.Update(ctx, next, current.Version); err != nil {
		return nil, err
	}

	res := s.commit(ctx, next, effects{
		users:   [][]string{next.AssigneeIDs(), {next.CreatedBy.ID}},
		notices: []notice{{event: notificationdomain.TypeTaskUpdated, recipients: next.AssigneeIDs()}},
	})
	s.publishUpdated(next, actor)
	return res, nil
}

// ChangeStatus sets todo or in-progress. Only the creator may change the status.
func (s *Service) ChangeStatus(ctx context.Context, actor, id string, status task.Status) (*MutationResult, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.CreatedBy.ID != actor {
		return nil, task.ErrForbidden
	}
	next, err := task.ApplyStatusChange(current, status, s.now())
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.store.Update(ctx, next, current.Version); err != nil {
		return nil, err
	}

	res := s.commit(ctx, next, effects{
		users:   [][]string{next.AssigneeIDs(), {next.CreatedBy.ID}},
		notices: []notice{{event: notificationdomain.TypeTaskUpdated, recipients: next.AssigneeIDs()}},
	})
	s.publishUpdated(next, actor)
	return res, nil
}

// Complete passes the task through the completion gate. On success every
// assignee is notified and has their performance recalculated.
func (s *Service) Complete(ctx context.Context, actor, id string) (*MutationResult, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	deps, err := s.dependencyStatuses(ctx, current.Dependencies)
	if err != nil {
		return nil, err
	}
	next, err := task.Complete(current, deps, s.now())
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.store.Update(ctx, next, current.Version); err != nil {
		return nil, err
	}
	s.logger.Info("Task completed", "task_id", next.ID, "completed_by", actor)

	assignees := next.AssigneeIDs()
	res := s.commit(ctx, next, effects{
		users:       [][]string{assignees, {next.CreatedBy.ID}},
		notices:     []notice{{event: notificationdomain.TypeTaskCompleted, recipients: assignees}},
		recalculate: assignees,
	})
	s.publishCompleted(next, actor)
	return res, nil
}

// Delete removes a task and its attachment files. Only the creator may delete.
func (s *Service) Delete(ctx context.Context, actor, id string) (*MutationResult, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.CreatedBy.ID != actor {
		return nil, task.ErrForbidden
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, err
	}

	if s.files != nil {
		for _, a := range current.Attachments {
			if err := s.files.Remove(ctx, a.ID); err != nil {
				s.logger.Warn("Attachment cleanup failed", "task_id", id, "file_id", a.ID, "error", err.Error())
			}
		}
	}
	s.logger.Info("Task deleted", "task_id", id, "deleted_by", actor)

	res := s.commit(ctx, current, effects{
		users:   [][]string{current.AssigneeIDs(), {current.CreatedBy.ID}},
		notices: []notice{{event: notificationdomain.TypeTaskDeleted, recipients: current.AssigneeIDs()}},
	})
	s.publishDeleted(current, actor)
	return res, nil
}

// AddAttachment stores a file and appends it to the task while it is unlocked.
func (s *Service) AddAttachment(ctx context.Context, actor, id string, up Upload) (*MutationResult, error) {
	if s.files == nil {
		return nil, fmt.Errorf("attachment storage not configured")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsLocked || current.Status.Terminal() {
		return nil, task.ErrTaskLocked
	}
	if len(up.Data) == 0 {
		return nil, task.NewValidationError("file", "file is empty")
	}

	att, err := s.files.Upload(ctx, id, up.FileName, up.Data, up.ContentType)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	next.Attachments = append(next.Attachments, att)
	next.UpdatedAt = s.now()
	if err := s.store.Update(ctx, next, current.Version); err != nil {
		if rerr := s.files.Remove(context.WithoutCancel(ctx), att.ID); rerr != nil {
			s.logger.Warn("Orphaned attachment cleanup failed", "task_id", id, "file_id", att.ID, "error", rerr.Error())
		}
		return nil, err
	}

	res := s.commit(ctx, next, effects{
		users:   [][]string{next.AssigneeIDs(), {next.CreatedBy.ID}},
		notices: []notice{{event: notificationdomain.TypeTaskUpdated, recipients: next.AssigneeIDs()}},
	})
	s.publishUpdated(next, actor)
	return res, nil
}

// dependencyStatuses maps each dependency id to its status at now. Ids that
// no longer exist are left out and so count as not completed.
func (s *Service) dependencyStatuses(ctx context.Context, ids []string) (map[string]task.Status, error) {
	statuses := make(map[string]task.Status, len(ids))
	if len(ids) == 0 {
		return statuses, nil
	}
	deps, err := s.store.QueryByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, d := range deps {
		statuses[d.ID] = task.ComputeDerivedStatus(d, now)
	}
	return statuses, nil
}

func without(ids, drop []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(drop, id) {
			out = append(out, id)
		}
	}
	return out
}
