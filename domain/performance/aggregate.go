// Package performance holds the per-user performance aggregate and its scoring rules.
package performance

import (
	"math"
	"time"

	"github.com/example/task-lifecycle/domain/task"
)

const (
	completionWeight = 0.6
	onTimeWeight     = 0.4
	overduePenalty   = 5
)

// Aggregate is the performance summary of one user over the tasks assigned to them.
type Aggregate struct {
	UserID          string    `json:"userId" gorm:"primaryKey;size:64"`
	TotalTasks      int       `json:"totalTasks"`
	CompletedTasks  int       `json:"completedTasks"`
	OnTimeCompleted int       `json:"onTimeCompleted"`
	OverdueTasks    int       `json:"overdueTasks"`
	InProgressTasks int       `json:"inProgressTasks"`
	CompletionRate  float64   `json:"completionRate"`
	OnTimeRate      float64   `json:"onTimeRate"`
	Score           int       `json:"score"`
	ComputedAt      time.Time `json:"computedAt"`
}

// TableName specifies the table name for GORM.
func (Aggregate) TableName() string {
	return "user_performance"
}

// Compute derives the aggregate for userID from the user's full task set.
// Statuses are evaluated at now, so a task that became overdue since it was
// last written still counts as overdue.
func Compute(userID string, tasks []*task.Task, now time.Time) Aggregate {
	agg := Aggregate{UserID: userID, ComputedAt: now}
	for _, t := range tasks {
		agg.TotalTasks++
		switch task.ComputeDerivedStatus(t, now) {
		case task.StatusCompleted:
			agg.CompletedTasks++
			if onTime(t) {
				agg.OnTimeCompleted++
			}
		case task.StatusOverdue:
			agg.OverdueTasks++
		case task.StatusInProgress:
			agg.InProgressTasks++
		}
	}

	if agg.TotalTasks > 0 {
		agg.CompletionRate = round2(float64(agg.CompletedTasks) / float64(agg.TotalTasks) * 100)
	}
	if agg.CompletedTasks > 0 {
		agg.OnTimeRate = round2(float64(agg.OnTimeCompleted) / float64(agg.CompletedTasks) * 100)
	}

	score := completionWeight*agg.CompletionRate + onTimeWeight*agg.OnTimeRate - overduePenalty*float64(agg.OverdueTasks)
	agg.Score = clamp(int(math.Round(score)), 0, 100)
	return agg
}

func onTime(t *task.Task) bool {
	if t.DueDate == nil || t.CompletedDate == nil {
		return true
	}
	return !t.CompletedDate.After(*t.DueDate)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
