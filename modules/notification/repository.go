package notification

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/example/task-lifecycle/domain/notification"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a notification id does not resolve.
var ErrNotFound = errors.New("notification not found")

// Repository is the notification inbox.
type Repository struct {
	db *gorm.DB
}

var _ Sender = (*Repository)(nil)

// NewRepository creates a new inbox repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the notifications table.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&domain.Notification{}); err != nil {
		return fmt.Errorf("failed to migrate notifications: %w", err)
	}
	return nil
}

// Send stores the notification in the recipient's inbox.
func (r *Repository) Send(ctx context.Context, n *domain.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Notification
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// ListByTask returns every notification related to a task.
func (r *Repository) ListByTask(ctx context.Context, taskID string) ([]domain.Notification, error) {
	var out []domain.Notification
	if err := r.db.WithContext(ctx).Where("related_job_id = ?", taskID).Order("created_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags a notification as read.
func (r *Repository) MarkRead(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&domain.Notification{}).Where("id = ?", id).Update("is_read", true)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnread returns the number of unread notifications for a user.
func (r *Repository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}
