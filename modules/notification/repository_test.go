package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/example/task-lifecycle/domain/notification"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	repo := NewRepository(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return repo
}

func TestRepository_SendListMarkRead(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"n1", "n2", "n3"} {
		n := &domain.Notification{
			ID:           id,
			UserID:       "u1",
			Title:        "Task updated",
			Type:         domain.TypeTaskUpdated,
			RelatedJobID: "t1",
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Send(ctx, n); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	items, err := repo.ListByUser(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(items) != 2 || items[0].ID != "n3" {
		t.Errorf("ListByUser() = %+v, want n3 first and 2 items", items)
	}

	if err := repo.MarkRead(ctx, "n1"); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	unread, err := repo.CountUnread(ctx, "u1")
	if err != nil {
		t.Fatalf("CountUnread() error = %v", err)
	}
	if unread != 2 {
		t.Errorf("CountUnread() = %d, want 2", unread)
	}

	if err := repo.MarkRead(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead(missing) error = %v, want ErrNotFound", err)
	}

	related, _ := repo.ListByTask(ctx, "t1")
	if len(related) != 3 {
		t.Errorf("ListByTask() = %d, want 3", len(related))
	}
}

func TestDispatcherWithInbox(t *testing.T) {
	repo := setupRepository(t)
	d := NewDispatcher(NewBreakerSender(repo, DefaultBreakerConfig()), 4, &mockLogger{})

	results := d.Notify(context.Background(), domain.TypeTaskAssigned, sampleTask(), []string{"u1", "u2"})
	for _, r := range results {
		if !r.Delivered {
			t.Errorf("delivery to %s failed: %v", r.UserID, r.Err)
		}
	}

	items, _ := repo.ListByUser(context.Background(), "u2", 0)
	if len(items) != 1 || items[0].Type != domain.TypeTaskAssigned {
		t.Errorf("inbox of u2 = %+v, want one TaskAssigned", items)
	}
}
