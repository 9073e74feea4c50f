package user

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/task-lifecycle/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// UserPort defines the interface for user operations (used by other modules).
type UserPort interface {
	GetUser(ctx context.Context, userID string) (*domain.Profile, error)
	ResolveUsers(ctx context.Context, ids []string) ([]domain.Profile, []string, error)
	UpdateUser(ctx context.Context, p domain.Profile) (*domain.Profile, error)
}

// userAdapter wraps ServiceContainer for type-safe cross-module communication.
type userAdapter struct {
	container mono.ServiceContainer
}

// NewUserAdapter creates a new adapter for user services.
func NewUserAdapter(container mono.ServiceContainer) UserPort {
	if container == nil {
		panic("user adapter requires non-nil ServiceContainer")
	}
	return &userAdapter{container: container}
}

// GetUser retrieves a profile via the get-user service.
func (a *userAdapter) GetUser(ctx context.Context, userID string) (*domain.Profile, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"get-user",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("get-user service call failed: %w", err)
	}
	if !resp.Found {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return resp.User, nil
}

// ResolveUsers retrieves several profiles via the get-users service.
func (a *userAdapter) ResolveUsers(ctx context.Context, ids []string) ([]domain.Profile, []string, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	req := GetUsersRequest{UserIDs: ids}
	var resp GetUsersResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"get-users",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, nil, fmt.Errorf("get-users service call failed: %w", err)
	}
	return resp.Users, resp.Missing, nil
}

// UpdateUser replaces a profile via the update-user service.
func (a *userAdapter) UpdateUser(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	req := UpdateUserRequest{User: p}
	var resp UpdateUserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"update-user",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("update-user service call failed: %w", err)
	}
	if !resp.Found {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, p.ID)
	}
	return resp.User, nil
}
