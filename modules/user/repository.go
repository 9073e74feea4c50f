package user

import (
	"context"
	"sync"

	domain "github.com/example/task-lifecycle/domain/user"
)

// UserRepository provides in-memory user storage.
type UserRepository struct {
	users map[string]domain.Profile
	mu    sync.RWMutex
}

// NewUserRepository creates a new user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]domain.Profile),
	}
}

// SeedDemoUsers adds demo users to the repository.
func (r *UserRepository) SeedDemoUsers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	demoUsers := []domain.Profile{
		{ID: "user-1", Username: "alice", FullName: "Alice Johnson", Email: "alice@example.com", Department: "Engineering", Title: "Engineer", Position: "Backend", TeamID: "team-1"},
		{ID: "user-2", Username: "bob", FullName: "Bob Smith", Email: "bob@example.com", Department: "Engineering", Title: "Engineer", Position: "Frontend", TeamID: "team-1"},
		{ID: "user-3", Username: "charlie", FullName: "Charlie Brown", Email: "charlie@example.com", Department: "Design", Title: "Designer", Position: "Product", TeamID: "team-2"},
	}

	for _, u := range demoUsers {
		r.users[u.ID] = u
	}
}

// Save inserts or replaces a profile.
func (r *UserRepository) Save(p domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[p.ID] = p
}

// FindByID finds a user by ID.
func (r *UserRepository) FindByID(userID string) (domain.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, found := r.users[userID]
	return p, found
}

// FindMany returns the profiles for ids in order, plus the ids that were not found.
func (r *UserRepository) FindMany(ids []string) ([]domain.Profile, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := make([]domain.Profile, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if p, ok := r.users[id]; ok {
			found = append(found, p)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

// ResolveUsers lets the repository act as a directory in-process.
func (r *UserRepository) ResolveUsers(_ context.Context, ids []string) ([]domain.Profile, []string, error) {
	found, missing := r.FindMany(ids)
	return found, missing, nil
}
