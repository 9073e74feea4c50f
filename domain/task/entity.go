package task

import (
	"slices"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusOverdue:
		return true
	}
	return false
}

// Terminal reports whether s is a state after which subtasks and attachments are frozen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusOverdue
}

// Priority is the relative importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// UserRef is the creator snapshot stored on a task.
type UserRef struct {
	ID       string `json:"id" bson:"id"`
	Username string `json:"username" bson:"username"`
	FullName string `json:"fullName" bson:"fullName"`
}

// AssignedUser is a denormalized copy of a user profile taken when the user is
// first assigned. It is not refreshed when the profile changes later.
type AssignedUser struct {
	ID           string `json:"id" bson:"id"`
	Username     string `json:"username" bson:"username"`
	Email        string `json:"email" bson:"email"`
	FullName     string `json:"fullName" bson:"fullName"`
	Department   string `json:"department" bson:"department"`
	Title        string `json:"title" bson:"title"`
	Position     string `json:"position" bson:"position"`
	ProfileImage string `json:"profileImage" bson:"profileImage"`
}

// SubTask is one step of a task.
type SubTask struct {
	ID        string `json:"id" bson:"id"`
	Title     string `json:"title" bson:"title"`
	Completed bool   `json:"completed" bson:"completed"`
}

// Attachment references a file held by the attachment store.
type Attachment struct {
	ID         string    `json:"id" bson:"id"`
	FileName   string    `json:"fileName" bson:"fileName"`
	FileURL    string    `json:"fileUrl" bson:"fileUrl"`
	FileType   string    `json:"fileType" bson:"fileType"`
	UploadDate time.Time `json:"uploadDate" bson:"uploadDate"`
}

// Task is the core work item.
type Task struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Status        Status         `json:"status"`
	Priority      Priority       `json:"priority"`
	Category      string         `json:"category"`
	TeamID        string         `json:"teamId,omitempty"`
	DueDate       *time.Time     `json:"dueDate,omitempty"`
	CreatedBy     UserRef        `json:"createdBy"`
	AssignedUsers []AssignedUser `json:"assignedUsers"`
	SubTasks      []SubTask      `json:"subTasks"`
	Dependencies  []string       `json:"dependencies"`
	Attachments   []Attachment   `json:"attachments"`
	IsLocked      bool           `json:"isLocked"`
	CompletedDate *time.Time     `json:"completedDate,omitempty"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.AssignedUsers = slices.Clone(t.AssignedUsers)
	c.SubTasks = slices.Clone(t.SubTasks)
	c.Dependencies = slices.Clone(t.Dependencies)
	c.Attachments = slices.Clone(t.Attachments)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedDate != nil {
		d := *t.CompletedDate
		c.CompletedDate = &d
	}
	return &c
}

// AssigneeIDs returns the ids of the assigned users in stored order.
func (t *Task) AssigneeIDs() []string {
	ids := make([]string, 0, len(t.AssignedUsers))
	for _, u := range t.AssignedUsers {
		ids = append(ids, u.ID)
	}
	return ids
}

// IsAssigned reports whether userID is among the assignees.
func (t *Task) IsAssigned(userID string) bool {
	for _, u := range t.AssignedUsers {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Involves reports whether the user created or is assigned to the task.
func (t *Task) Involves(userID string) bool {
	return t.CreatedBy.ID == userID || t.IsAssigned(userID)
}

// CompletedSubtasks returns the number of completed subtasks.
func (t *Task) CompletedSubtasks() int {
	n := 0
	for _, s := range t.SubTasks {
		if s.Completed {
			n++
		}
	}
	return n
}

// FindSubtask returns the index of the subtask with the given id, or -1.
func (t *Task) FindSubtask(id string) int {
	for i, s := range t.SubTasks {
		if s.ID == id {
			return i
		}
	}
	return -1
}
