package store

import (
	"time"

	"github.com/example/task-lifecycle/domain/task"
)

// taskRecord is the GORM row for a task. Nested collections are stored as JSON.
type taskRecord struct {
	ID            string `gorm:"primaryKey;size:36"`
	Title         string `gorm:"not null"`
	Description   string `gorm:"type:text"`
	Status        string `gorm:"index;size:16;not null"`
	Priority      string `gorm:"size:8"`
	Category      string `gorm:"size:64"`
	TeamID        string `gorm:"index;size:64"`
	DueDate       *time.Time
	CreatedByID   string              `gorm:"index;size:64;not null"`
	CreatedBy     task.UserRef        `gorm:"type:text;serializer:json"`
	AssignedUsers []task.AssignedUser `gorm:"type:text;serializer:json"`
	SubTasks      []task.SubTask      `gorm:"type:text;serializer:json"`
	Dependencies  []string            `gorm:"type:text;serializer:json"`
	Attachments   []task.Attachment   `gorm:"type:text;serializer:json"`
	IsLocked      bool
	CompletedDate *time.Time
	Version       int64     `gorm:"not null;default:1"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

func (taskRecord) TableName() string {
	return "tasks"
}

// taskAssignee indexes tasks by assigned user.
type taskAssignee struct {
	TaskID string `gorm:"primaryKey;size:36"`
	UserID string `gorm:"primaryKey;size:64;index"`
}

func (taskAssignee) TableName() string {
	return "task_assignees"
}

func toRecord(t *task.Task) *taskRecord {
	return &taskRecord{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		Category:      t.Category,
		TeamID:        t.TeamID,
		DueDate:       t.DueDate,
		CreatedByID:   t.CreatedBy.ID,
		CreatedBy:     t.CreatedBy,
		AssignedUsers: t.AssignedUsers,
		SubTasks:      t.SubTasks,
		Dependencies:  t.Dependencies,
		Attachments:   t.Attachments,
		IsLocked:      t.IsLocked,
		CompletedDate: t.CompletedDate,
		Version:       t.Version,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func (r *taskRecord) toTask() *task.Task {
	t := &task.Task{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Status:        task.Status(r.Status),
		Priority:      task.Priority(r.Priority),
		Category:      r.Category,
		TeamID:        r.TeamID,
		DueDate:       r.DueDate,
		CreatedBy:     r.CreatedBy,
		AssignedUsers: r.AssignedUsers,
		SubTasks:      r.SubTasks,
		Dependencies:  r.Dependencies,
		Attachments:   r.Attachments,
		IsLocked:      r.IsLocked,
		CompletedDate: r.CompletedDate,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	normalize(t)
	return t
}

// normalize replaces nil collections with empty ones so they encode as [].
func normalize(t *task.Task) {
	if t.AssignedUsers == nil {
		t.AssignedUsers = []task.AssignedUser{}
	}
	if t.SubTasks == nil {
		t.SubTasks = []task.SubTask{}
	}
	if t.Dependencies == nil {
		t.Dependencies = []string{}
	}
	if t.Attachments == nil {
		t.Attachments = []task.Attachment{}
	}
}

func assigneeRows(t *task.Task) []taskAssignee {
	rows := make([]taskAssignee, 0, len(t.AssignedUsers))
	seen := make(map[string]struct{}, len(t.AssignedUsers))
	for _, u := range t.AssignedUsers {
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		rows = append(rows, taskAssignee{TaskID: t.ID, UserID: u.ID})
	}
	return rows
}
