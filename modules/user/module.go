package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ErrUserNotFound is returned when a user id does not resolve.
var ErrUserNotFound = errors.New("user not found")

// UserModule provides the user directory.
type UserModule struct {
	repo *UserRepository
}

// Compile-time interface checks.
var _ mono.Module = (*UserModule)(nil)
var _ mono.ServiceProviderModule = (*UserModule)(nil)

// NewModule creates a new UserModule.
func NewModule() *UserModule {
	return &UserModule{
		repo: NewUserRepository(),
	}
}

// Name returns the module name.
func (m *UserModule) Name() string {
	return "user"
}

// Repository exposes the underlying store.
func (m *UserModule) Repository() *UserRepository {
	return m.repo
}

// RegisterServices registers request-reply services in the service container.
func (m *UserModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "get-user", json.Unmarshal, json.Marshal, m.getUser,
	); err != nil {
		return fmt.Errorf("failed to register get-user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-users", json.Unmarshal, json.Marshal, m.getUsers,
	); err != nil {
		return fmt.Errorf("failed to register get-users service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-user", json.Unmarshal, json.Marshal, m.updateUser,
	); err != nil {
		return fmt.Errorf("failed to register update-user service: %w", err)
	}

	log.Printf("[user] Registered services: get-user, get-users, update-user")
	return nil
}

func (m *UserModule) getUser(_ context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	p, found := m.repo.FindByID(req.UserID)
	if !found {
		return GetUserResponse{Found: false}, nil
	}
	return GetUserResponse{User: &p, Found: true}, nil
}

func (m *UserModule) getUsers(_ context.Context, req GetUsersRequest, _ *mono.Msg) (GetUsersResponse, error) {
	found, missing := m.repo.FindMany(req.UserIDs)
	return GetUsersResponse{Users: found, Missing: missing}, nil
}

// updateUser replaces an existing profile. Tasks keep the snapshots they
// already hold; only later assignments see the new values.
func (m *UserModule) updateUser(_ context.Context, req UpdateUserRequest, _ *mono.Msg) (UpdateUserResponse, error) {
	if _, found := m.repo.FindByID(req.User.ID); !found {
		return UpdateUserResponse{Found: false}, nil
	}
	m.repo.Save(req.User)
	p := req.User
	return UpdateUserResponse{User: &p, Found: true}, nil
}

// Start seeds the demo users.
func (m *UserModule) Start(_ context.Context) error {
	m.repo.SeedDemoUsers()
	log.Println("[user] Module started with demo users")
	return nil
}

// Stop shuts down the module.
func (m *UserModule) Stop(_ context.Context) error {
	log.Println("[user] Module stopped")
	return nil
}
