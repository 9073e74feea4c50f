package task

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/example/task-lifecycle/domain/task"
	"github.com/google/uuid"
)

// SubTaskInput is a posted subtask. An empty ID creates a new subtask.
type SubTaskInput struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// TaskInput is the writable part of a task, used for create and full update.
type TaskInput struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Status        task.Status    `json:"status,omitempty"`
	Priority      task.Priority  `json:"priority"`
	Category      string         `json:"category"`
	TeamID        string         `json:"teamId,omitempty"`
	DueDate       *time.Time     `json:"dueDate,omitempty"`
	AssignedUsers []string       `json:"assignedUsers"`
	SubTasks      []SubTaskInput `json:"subTasks"`
	Dependencies  []string       `json:"dependencies"`
	// Version is the base version of an update. Nil means the current one.
	Version *int64 `json:"version,omitempty"`
}

func newTaskID() string {
	return uuid.New().String()
}

func validateBasics(in *TaskInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return task.NewValidationError("title", "title is required")
	}
	if in.Priority == "" {
		in.Priority = task.PriorityMedium
	}
	if !in.Priority.Valid() {
		return task.NewValidationError("priority", "unknown priority %q", in.Priority)
	}
	if in.Status != "" && !in.Status.Valid() {
		return task.NewValidationError("status", "unknown status %q", in.Status)
	}
	return nil
}

// buildSubtasks assigns ids to new subtasks and rejects empty titles and duplicate ids.
func buildSubtasks(in []SubTaskInput) ([]task.SubTask, error) {
	out := make([]task.SubTask, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, s := range in {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			return nil, task.NewValidationError("subTasks", "subtask %d has no title", i)
		}
		id := strings.TrimSpace(s.ID)
		if id == "" {
			id = newSubtaskID()
		}
		if _, dup := seen[id]; dup {
			return nil, task.NewValidationError("subTasks", "duplicate subtask id %q", id)
		}
		seen[id] = struct{}{}
		out = append(out, task.SubTask{ID: id, Title: title, Completed: s.Completed})
	}
	return out, nil
}

// buildAssignees returns the assignee snapshots for ids. Users already in
// existing keep their snapshot; only new ids are resolved in the directory.
func (s *Service) buildAssignees(ctx context.Context, ids []string, existing []task.AssignedUser) ([]task.AssignedUser, error) {
	ids = task.NormalizeDependencies(ids)
	known := make(map[string]task.AssignedUser, len(existing))
	for _, u := range existing {
		known[u.ID] = u
	}

	var unresolved []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			unresolved = append(unresolved, id)
		}
	}
	if len(unresolved) > 0 {
		profiles, missing, err := s.users.ResolveUsers(ctx, unresolved)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve assigned users: %w", err)
		}
		if len(missing) > 0 {
			return nil, task.NewValidationError("assignedUsers", "unknown user ids: %s", strings.Join(missing, ", "))
		}
		for _, p := range profiles {
			known[p.ID] = p.Snapshot()
		}
	}

	out := make([]task.AssignedUser, 0, len(ids))
	for _, id := range ids {
		out = append(out, known[id])
	}
	return out, nil
}

// creatorRef resolves the actor into the creator snapshot. An actor the
// directory does not know is recorded by id only.
func (s *Service) creatorRef(ctx context.Context, actor string) (task.UserRef, error) {
	profiles, _, err := s.users.ResolveUsers(ctx, []string{actor})
	if err != nil {
		return task.UserRef{}, fmt.Errorf("failed to resolve creator: %w", err)
	}
	if len(profiles) == 0 {
		return task.UserRef{ID: actor}, nil
	}
	return profiles[0].Ref(), nil
}

// validateDependencies checks existence, self reference and cycles for the
// dependencies of taskID and returns the normalized list.
func (s *Service) validateDependencies(ctx context.Context, taskID string, ids []string) ([]string, error) {
	deps := task.NormalizeDependencies(ids)
	if len(deps) == 0 {
		return []string{}, nil
	}
	if slices.Contains(deps, taskID) {
		return nil, task.NewValidationError("dependencies", "a task cannot depend on itself")
	}

	found, err := s.store.QueryByIDs(ctx, deps)
	if err != nil {
		return nil, err
	}
	if missing := task.MissingDependencies(deps, found); len(missing) > 0 {
		return nil, task.DependencyError(missing)
	}

	cycle, err := task.FindCycle(ctx, taskID, deps, s.loadEdges)
	if err != nil {
		return nil, err
	}
	if cycle != nil {
		return nil, task.CycleError(cycle)
	}
	return deps, nil
}

func (s *Service) loadEdges(ctx context.Context, ids []string) (map[string][]string, error) {
	tasks, err := s.store.QueryByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	edges := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		edges[t.ID] = t.Dependencies
	}
	return edges, nil
}

// sameIDs compares two id sets regardless of order.
func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func sameDueDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// subtasksEqual compares subtasks by id, title and completion, in order.
func subtasksEqual(a, b []task.SubTask) bool {
	return slices.Equal(a, b)
}

func addedUsers(before, after []string) []string {
	var out []string
	for _, id := range after {
		if !slices.Contains(before, id) {
			out = append(out, id)
		}
	}
	return out
}
