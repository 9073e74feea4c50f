package notification

import (
	"fmt"
	"time"
)

// Type is the closed set of notification kinds.
type Type string

const (
	TypeTaskAssigned         Type = "TaskAssigned"
	TypeTaskUpdated          Type = "TaskUpdated"
	TypeTaskCompleted        Type = "TaskCompleted"
	TypeTaskDeleted          Type = "TaskDeleted"
	TypeTaskOverdue          Type = "TaskOverdue"
	TypeReminder             Type = "Reminder"
	TypeMention              Type = "Mention"
	TypeMessage              Type = "Message"
	TypeCalendarEventCreated Type = "CalendarEventCreated"
	TypeCalendarEventUpdated Type = "CalendarEventUpdated"
	TypeCalendarEventDeleted Type = "CalendarEventDeleted"
	TypeTeamStatusCreated    Type = "TeamStatusCreated"
	TypeTeamStatusUpdated    Type = "TeamStatusUpdated"
)

var allTypes = []Type{
	TypeTaskAssigned, TypeTaskUpdated, TypeTaskCompleted, TypeTaskDeleted, TypeTaskOverdue,
	TypeReminder, TypeMention, TypeMessage,
	TypeCalendarEventCreated, TypeCalendarEventUpdated, TypeCalendarEventDeleted,
	TypeTeamStatusCreated, TypeTeamStatusUpdated,
}

// Types returns every notification type.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// Valid reports whether t is part of the enumeration.
func (t Type) Valid() bool {
	for _, k := range allTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ParseType converts s into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown notification type %q", s)
	}
	return t, nil
}

// Notification is one message addressed to one user.
type Notification struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	UserID       string    `json:"userId" gorm:"index;not null"`
	Title        string    `json:"title" gorm:"not null"`
	Message      string    `json:"message"`
	Type         Type      `json:"type" gorm:"index;size:32;not null"`
	RelatedJobID string    `json:"relatedJobId" gorm:"index"`
	IsRead       bool      `json:"isRead" gorm:"default:false"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}
