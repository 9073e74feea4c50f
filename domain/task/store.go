package task

import "context"

// Scope selects which of a user's tasks a query returns.
type Scope int

const (
	// ScopeInvolved returns tasks the user created or is assigned to.
	ScopeInvolved Scope = iota
	// ScopeAssigned returns only tasks the user is assigned to.
	ScopeAssigned
)

// Store is the durable task repository.
//
// Update replaces the whole entity only if the stored version equals
// expectedVersion, and on success sets t.Version to expectedVersion+1.
// A missing task yields ErrNotFound and a version mismatch a *ConflictError.
type Store interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, t *Task, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	QueryByUserID(ctx context.Context, userID string, scope Scope) ([]*Task, error)
	QueryByTeamID(ctx context.Context, teamID string) ([]*Task, error)
	QueryByIDs(ctx context.Context, ids []string) ([]*Task, error)
}
