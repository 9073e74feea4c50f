package user

import "github.com/example/task-lifecycle/domain/task"

// Profile is the user record owned by the user directory.
type Profile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	Department   string `json:"department"`
	Title        string `json:"title"`
	Position     string `json:"position"`
	ProfileImage string `json:"profileImage"`
	TeamID       string `json:"teamId"`
}

// Snapshot copies the profile fields a task keeps for an assignee.
func (p Profile) Snapshot() task.AssignedUser {
	return task.AssignedUser{
		ID:           p.ID,
		Username:     p.Username,
		Email:        p.Email,
		FullName:     p.FullName,
		Department:   p.Department,
		Title:        p.Title,
		Position:     p.Position,
		ProfileImage: p.ProfileImage,
	}
}

// Ref copies the profile fields a task keeps for its creator.
func (p Profile) Ref() task.UserRef {
	return task.UserRef{ID: p.ID, Username: p.Username, FullName: p.FullName}
}
