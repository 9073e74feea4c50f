package performance

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/example/task-lifecycle/domain/performance"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no score has been computed for a user.
var ErrNotFound = errors.New("performance record not found")

// Repository persists per-user performance aggregates.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new performance repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the user_performance table.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&domain.Aggregate{}); err != nil {
		return fmt.Errorf("failed to migrate user_performance: %w", err)
	}
	return nil
}

// Upsert inserts the aggregate or replaces the existing row for the same user.
func (r *Repository) Upsert(ctx context.Context, agg *domain.Aggregate) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(agg).Error
	if err != nil {
		return fmt.Errorf("failed to save performance for %s: %w", agg.UserID, err)
	}
	return nil
}

// Get returns the stored aggregate for a user.
func (r *Repository) Get(ctx context.Context, userID string) (*domain.Aggregate, error) {
	var agg domain.Aggregate
	if err := r.db.WithContext(ctx).First(&agg, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load performance for %s: %w", userID, err)
	}
	return &agg, nil
}

// Count returns the number of stored aggregates.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Aggregate{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count performance records: %w", err)
	}
	return n, nil
}
