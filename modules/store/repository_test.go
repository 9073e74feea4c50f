package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/task-lifecycle/domain/task"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository(setupTestDB(t))
	if err := repo.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return repo
}

func newTask(creator string, assignees ...string) *task.Task {
	now := time.Now().UTC().Truncate(time.Millisecond)
	t := &task.Task{
		ID:        uuid.New().String(),
		Title:     "Write report",
		Status:    task.StatusTodo,
		Priority:  task.PriorityMedium,
		TeamID:    "team-1",
		CreatedBy: task.UserRef{ID: creator, Username: creator},
		SubTasks:  []task.SubTask{{ID: "s1", Title: "draft"}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, a := range assignees {
		t.AssignedUsers = append(t.AssignedUsers, task.AssignedUser{ID: a, Username: a})
	}
	return t
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	created := newTask("alice", "bob")
	if err := repo.Create(ctx, created); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Version != 1 {
		t.Errorf("Version = %d, want 1", created.Version)
	}

	found, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Title != created.Title {
		t.Errorf("Title = %q, want %q", found.Title, created.Title)
	}
	if len(found.SubTasks) != 1 || found.SubTasks[0].ID != "s1" {
		t.Errorf("SubTasks = %+v, want one subtask s1", found.SubTasks)
	}
	if len(found.AssignedUsers) != 1 || found.AssignedUsers[0].ID != "bob" {
		t.Errorf("AssignedUsers = %+v, want bob", found.AssignedUsers)
	}
	if found.CreatedBy.ID != "alice" {
		t.Errorf("CreatedBy = %+v, want alice", found.CreatedBy)
	}
	if found.Dependencies == nil || found.Attachments == nil {
		t.Error("nil collections were not normalized")
	}
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo := setupRepository(t)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, task.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_UpdateVersionCheck(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	created := newTask("alice", "bob")
	if err := repo.Create(ctx, created); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first := created.Clone()
	first.Title = "First writer"
	if err := repo.Update(ctx, first, 1); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if first.Version != 2 {
		t.Errorf("Version = %d, want 2", first.Version)
	}

	second := created.Clone()
	second.Title = "Second writer"
	err := repo.Update(ctx, second, 1)
	var conflict *task.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Update() error = %v, want *ConflictError", err)
	}
	if conflict.Expected != 1 || conflict.Actual != 2 {
		t.Errorf("conflict = %+v, want expected 1 actual 2", conflict)
	}

	stored, _ := repo.GetByID(ctx, created.ID)
	if stored.Title != "First writer" {
		t.Errorf("Title = %q, want the first write to survive", stored.Title)
	}

	missing := newTask("alice")
	if err := repo.Update(ctx, missing, 1); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("Update() on missing task error = %v, want ErrNotFound", err)
	}
}

func TestRepository_UpdateReindexesAssignees(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	created := newTask("alice", "bob")
	if err := repo.Create(ctx, created); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated := created.Clone()
	updated.AssignedUsers = []task.AssignedUser{{ID: "carol"}}
	if err := repo.Update(ctx, updated, created.Version); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	bobs, err := repo.QueryByUserID(ctx, "bob", task.ScopeAssigned)
	if err != nil {
		t.Fatalf("QueryByUserID() error = %v", err)
	}
	if len(bobs) != 0 {
		t.Errorf("bob still has %d assigned tasks, want 0", len(bobs))
	}

	carols, _ := repo.QueryByUserID(ctx, "carol", task.ScopeAssigned)
	if len(carols) != 1 {
		t.Errorf("carol has %d assigned tasks, want 1", len(carols))
	}
}

func TestRepository_QueryByUserID(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	for _, tk := range []*task.Task{
		newTask("alice"),
		newTask("alice", "bob"),
		newTask("carol", "alice"),
		newTask("carol", "bob"),
	} {
		if err := repo.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		user  string
		scope task.Scope
		want  int
	}{
		{"alice", task.ScopeInvolved, 3},
		{"alice", task.ScopeAssigned, 1},
		{"bob", task.ScopeInvolved, 2},
		{"carol", task.ScopeAssigned, 0},
		{"nobody", task.ScopeInvolved, 0},
	}
	for _, tt := range tests {
		got, err := repo.QueryByUserID(ctx, tt.user, tt.scope)
		if err != nil {
			t.Fatalf("QueryByUserID(%s) error = %v", tt.user, err)
		}
		if len(got) != tt.want {
			t.Errorf("QueryByUserID(%s, %v) = %d tasks, want %d", tt.user, tt.scope, len(got), tt.want)
		}
	}
}

func TestRepository_QueryByTeamAndIDs(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	a, b := newTask("alice"), newTask("alice")
	b.TeamID = "team-2"
	for _, tk := range []*task.Task{a, b} {
		if err := repo.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	team, err := repo.QueryByTeamID(ctx, "team-2")
	if err != nil {
		t.Fatalf("QueryByTeamID() error = %v", err)
	}
	if len(team) != 1 || team[0].ID != b.ID {
		t.Errorf("QueryByTeamID() = %v, want only %s", team, b.ID)
	}

	byIDs, err := repo.QueryByIDs(ctx, []string{a.ID, "unknown", b.ID})
	if err != nil {
		t.Fatalf("QueryByIDs() error = %v", err)
	}
	if len(byIDs) != 2 {
		t.Errorf("QueryByIDs() = %d tasks, want 2", len(byIDs))
	}

	empty, err := repo.QueryByIDs(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("QueryByIDs(nil) = %v, %v; want empty", empty, err)
	}
}

func TestRepository_Delete(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	created := newTask("alice", "bob")
	if err := repo.Create(ctx, created); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
	bobs, _ := repo.QueryByUserID(ctx, "bob", task.ScopeAssigned)
	if len(bobs) != 0 {
		t.Errorf("assignee index still lists %d tasks", len(bobs))
	}
}
