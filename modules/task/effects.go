package task

import (
	"context"
	"log"

	notificationdomain "github.com/example/task-lifecycle/domain/notification"
	"github.com/example/task-lifecycle/domain/task"
	"github.com/example/task-lifecycle/events"
	"github.com/example/task-lifecycle/modules/cache"
)

// notice is one notification event and its recipients.
type notice struct {
	event      notificationdomain.Type
	recipients []string
}

// effects describes the post-commit work of a mutation.
type effects struct {
	// users whose per-user cache keys must be cleared besides the task key
	users       [][]string
	notices     []notice
	recalculate []string
}

// commit runs the side effects of a persisted mutation. Invalidation happens
// before notifications so no reader sees the pre-mutation value afterwards.
// Failures are logged and recorded, never returned.
func (s *Service) commit(ctx context.Context, t *task.Task, fx effects) *MutationResult {
	res := &MutationResult{Task: t}
	res.Invalidated = s.invalidate(ctx, t.ID, fx.users...)

	for _, n := range fx.notices {
		if len(n.recipients) == 0 || s.notifier == nil {
			continue
		}
		res.Deliveries = append(res.Deliveries, s.notifier.Notify(ctx, n.event, t, n.recipients)...)
	}

	if len(fx.recalculate) > 0 && s.performance != nil {
		res.Performance = s.performance.RecalculateAll(ctx, fx.recalculate)
	}

	for _, d := range res.Deliveries {
		if d.Err != nil {
			s.logger.Warn("Notification not delivered", "task_id", t.ID, "user_id", d.UserID, "error", d.Error)
		}
	}
	for _, o := range res.Performance {
		if o.Err != nil {
			s.logger.Warn("Performance not updated", "task_id", t.ID, "user_id", o.UserID, "error", o.Error)
		}
	}
	return res
}

// invalidate clears the task key and the per-user keys of users. It uses a
// context detached from cancellation so a disconnecting client cannot leave
// stale entries behind a committed write.
func (s *Service) invalidate(ctx context.Context, taskID string, users ...[]string) []string {
	keys := cache.InvalidationSet(taskID, users...)
	s.fills.invalidate(keys)
	for _, k := range keys {
		s.sfGroup.Forget(k)
	}
	if err := s.cache.InvalidateAll(context.WithoutCancel(ctx), keys); err != nil {
		s.logger.Error("Cache invalidation failed", "task_id", taskID, "keys", keys, "error", err.Error())
	}
	return keys
}

func (s *Service) publishCreated(t *task.Task, actor string) {
	if s.events == nil {
		return
	}
	ev := events.TaskCreatedEvent{
		TaskID:      t.ID,
		Title:       t.Title,
		CreatedBy:   actor,
		AssigneeIDs: t.AssigneeIDs(),
		CreatedAt:   t.CreatedAt,
	}
	if err := events.TaskCreatedV1.Publish(s.events, ev, nil); err != nil {
		log.Printf("[task] Warning: failed to publish TaskCreated event for task %s: %v", t.ID, err)
	}
}

func (s *Service) publishUpdated(t *task.Task, actor string) {
	if s.events == nil {
		return
	}
	ev := events.TaskUpdatedEvent{
		TaskID:      t.ID,
		Status:      string(t.Status),
		Version:     t.Version,
		UpdatedBy:   actor,
		AssigneeIDs: t.AssigneeIDs(),
		UpdatedAt:   t.UpdatedAt,
	}
	if err := events.TaskUpdatedV1.Publish(s.events, ev, nil); err != nil {
		log.Printf("[task] Warning: failed to publish TaskUpdated event for task %s: %v", t.ID, err)
	}
}

func (s *Service) publishCompleted(t *task.Task, actor string) {
	if s.events == nil {
		return
	}
	ev := events.TaskCompletedEvent{
		TaskID:      t.ID,
		CompletedBy: actor,
		AssigneeIDs: t.AssigneeIDs(),
		CompletedAt: *t.CompletedDate,
	}
	if err := events.TaskCompletedV1.Publish(s.events, ev, nil); err != nil {
		log.Printf("[task] Warning: failed to publish TaskCompleted event for task %s: %v", t.ID, err)
	}
}

func (s *Service) publishDeleted(t *task.Task, actor string) {
	if s.events == nil {
		return
	}
	ev := events.TaskDeletedEvent{
		TaskID:      t.ID,
		DeletedBy:   actor,
		AssigneeIDs: t.AssigneeIDs(),
		DeletedAt:   s.now(),
	}
	if err := events.TaskDeletedV1.Publish(s.events, ev, nil); err != nil {
		log.Printf("[task] Warning: failed to publish TaskDeleted event for task %s: %v", t.ID, err)
	}
}
