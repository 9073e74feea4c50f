package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/task-lifecycle/domain/task"
	"gorm.io/gorm"
)

// Repository is the GORM-backed task store.
type Repository struct {
	db *gorm.DB
}

var _ task.Store = (*Repository)(nil)

// NewRepository creates a new task repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the task tables.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&taskRecord{}, &taskAssignee{}); err != nil {
		return fmt.Errorf("failed to migrate task tables: %w", err)
	}
	return nil
}

// Create saves a new task together with its assignee index.
func (r *Repository) Create(ctx context.Context, t *task.Task) error {
	if t.Version == 0 {
		t.Version = 1
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toRecord(t)).Error; err != nil {
			return err
		}
		if rows := assigneeRows(t); len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return task.NewPersistenceError("create", err)
	}
	return nil
}

// GetByID retrieves a task by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*task.Task, error) {
	var rec taskRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, task.ErrNotFound
		}
		return nil, task.NewPersistenceError("get", err)
	}
	return rec.toTask(), nil
}

// Update replaces the stored task if its version still equals expectedVersion.
func (r *Repository) Update(ctx context.Context, t *task.Task, expectedVersion int64) error {
	next := t.Clone()
	next.Version = expectedVersion + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&taskRecord{}).
			Where("id = ? AND version = ?", t.ID, expectedVersion).
			Select("*").
			Omit("id", "created_at").
			Updates(toRecord(next))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var current taskRecord
			if err := tx.Select("id", "version").First(&current, "id = ?", t.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return task.ErrNotFound
				}
				return err
			}
			return &task.ConflictError{TaskID: t.ID, Expected: expectedVersion, Actual: current.Version}
		}

		if err := tx.Where("task_id = ?", t.ID).Delete(&taskAssignee{}).Error; err != nil {
			return err
		}
		if rows := assigneeRows(next); len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return task.NewPersistenceError("update", err)
	}

	t.Version = next.Version
	return nil
}

// Delete removes a task and its assignee index.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&taskAssignee{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&taskRecord{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return task.ErrNotFound
		}
		return nil
	})
	return task.NewPersistenceError("delete", err)
}

// QueryByUserID returns the user's tasks, newest first.
func (r *Repository) QueryByUserID(ctx context.Context, userID string, scope task.Scope) ([]*task.Task, error) {
	assigned := r.db.Model(&taskAssignee{}).Select("task_id").Where("user_id = ?", userID)

	q := r.db.WithContext(ctx).Model(&taskRecord{})
	if scope == task.ScopeAssigned {
		q = q.Where("id IN (?)", assigned)
	} else {
		q = q.Where("created_by_id = ? OR id IN (?)", userID, assigned)
	}
	return r.find(q, "query by user")
}

// QueryByTeamID returns the team's tasks, newest first.
func (r *Repository) QueryByTeamID(ctx context.Context, teamID string) ([]*task.Task, error) {
	return r.find(r.db.WithContext(ctx).Where("team_id = ?", teamID), "query by team")
}

// QueryByIDs returns the tasks whose ids are in ids. Unknown ids are skipped.
func (r *Repository) QueryByIDs(ctx context.Context, ids []string) ([]*task.Task, error) {
	if len(ids) == 0 {
		return []*task.Task{}, nil
	}
	return r.find(r.db.WithContext(ctx).Where("id IN ?", ids), "query by ids")
}

func (r *Repository) find(q *gorm.DB, op string) ([]*task.Task, error) {
	var records []taskRecord
	if err := q.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, task.NewPersistenceError(op, err)
	}
	tasks := make([]*task.Task, 0, len(records))
	for i := range records {
		tasks = append(tasks, records[i].toTask())
	}
	return tasks, nil
}
