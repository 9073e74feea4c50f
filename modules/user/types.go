package user

import domain "github.com/example/task-lifecycle/domain/user"

// GetUserRequest is the request for getting a user.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse is the response for getting a user.
type GetUserResponse struct {
	User  *domain.Profile `json:"user,omitempty"`
	Found bool            `json:"found"`
}

// GetUsersRequest resolves several users at once.
type GetUsersRequest struct {
	UserIDs []string `json:"user_ids"`
}

// GetUsersResponse lists the resolved profiles and the ids that did not resolve.
type GetUsersResponse struct {
	Users   []domain.Profile `json:"users"`
	Missing []string         `json:"missing,omitempty"`
}

// UpdateUserRequest replaces a stored profile.
type UpdateUserRequest struct {
	User domain.Profile `json:"user"`
}

// UpdateUserResponse is the response for updating a user.
type UpdateUserResponse struct {
	User  *domain.Profile `json:"user,omitempty"`
	Found bool            `json:"found"`
}
