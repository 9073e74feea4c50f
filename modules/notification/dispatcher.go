package notification

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/task-lifecycle/domain/notification"
	"github.com/example/task-lifecycle/domain/task"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DeliveryResult records the outcome for one recipient.
type DeliveryResult struct {
	UserID         string `json:"userId"`
	NotificationID string `json:"notificationId"`
	Delivered      bool   `json:"delivered"`
	Error          string `json:"error,omitempty"`
	Err            error  `json:"-"`
}

// DeliveryError wraps a failed delivery for one recipient.
type DeliveryError struct {
	UserID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notification delivery to %s failed: %v", e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Dispatcher fans a lifecycle event out to recipients, one notification each.
// Deliveries run in parallel up to the configured limit and never affect each other.
type Dispatcher struct {
	sender      Sender
	concurrency int
	logger      types.Logger
	now         func() time.Time
}

// NewDispatcher creates a dispatcher. concurrency < 1 means 1.
func NewDispatcher(sender Sender, concurrency int, logger types.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		sender:      sender,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Notify builds and sends one notification per distinct recipient and returns
// the outcome of each, in recipient order. It never retries. Once ctx is done,
// remaining recipients are recorded with the context error and skipped.
func (d *Dispatcher) Notify(ctx context.Context, event domain.Type, t *task.Task, recipients []string) []DeliveryResult {
	recipients = distinct(recipients)
	results := make([]DeliveryResult, len(recipients))
	if len(recipients) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, userID := range recipients {
		n := Compose(event, t, userID, d.now())
		results[i] = DeliveryResult{UserID: userID, NotificationID: n.ID}
		g.Go(func() error {
			d.deliver(ctx, n, &results[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, n *domain.Notification, res *DeliveryResult) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = &DeliveryError{UserID: n.UserID, Err: fmt.Errorf("panic: %v", r)}
			res.Error = res.Err.Error()
			d.logger.Error("Notification sender panicked", "user_id", n.UserID, "task_id", n.RelatedJobID, "panic", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = &DeliveryError{UserID: n.UserID, Err: err}
		res.Error = res.Err.Error()
		return
	}
	if err := d.sender.Send(ctx, n); err != nil {
		res.Err = &DeliveryError{UserID: n.UserID, Err: err}
		res.Error = res.Err.Error()
		d.logger.Warn("Notification delivery failed",
			"user_id", n.UserID, "task_id", n.RelatedJobID, "type", string(n.Type), "error", err.Error())
		return
	}
	res.Delivered = true
}

// Compose builds the notification for one recipient of an event.
func Compose(event domain.Type, t *task.Task, userID string, now time.Time) *domain.Notification {
	title, message := describe(event, t)
	return &domain.Notification{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        title,
		Message:      message,
		Type:         event,
		RelatedJobID: t.ID,
		CreatedAt:    now,
	}
}

func describe(event domain.Type, t *task.Task) (string, string) {
	switch event {
	case domain.TypeTaskAssigned:
		return "New task assigned", fmt.Sprintf("You have been assigned to %q", t.Title)
	case domain.TypeTaskUpdated:
		return "Task updated", fmt.Sprintf("%q was updated", t.Title)
	case domain.TypeTaskCompleted:
		return "Task completed", fmt.Sprintf("%q was completed", t.Title)
	case domain.TypeTaskDeleted:
		return "Task deleted", fmt.Sprintf("%q was deleted", t.Title)
	case domain.TypeTaskOverdue:
		return "Task overdue", fmt.Sprintf("%q is past its due date", t.Title)
	case domain.TypeReminder:
		return "Reminder", fmt.Sprintf("Reminder for %q", t.Title)
	default:
		return string(event), t.Title
	}
}

func distinct(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
