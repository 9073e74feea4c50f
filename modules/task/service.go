// Package task orchestrates task mutations: validation, persistence, cache
// invalidation and the post-commit fan-out of notifications and scores.
package task

import (
	"context"
	"time"

	notificationdomain "github.com/example/task-lifecycle/domain/notification"
	"github.com/example/task-lifecycle/domain/task"
	userdomain "github.com/example/task-lifecycle/domain/user"
	"github.com/example/task-lifecycle/modules/cache"
	"github.com/example/task-lifecycle/modules/notification"
	"github.com/example/task-lifecycle/modules/performance"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	nanoid "github.com/jaevor/go-nanoid"
	"golang.org/x/sync/singleflight"
)

// UserDirectory resolves user ids to profiles.
type UserDirectory interface {
	ResolveUsers(ctx context.Context, ids []string) ([]userdomain.Profile, []string, error)
}

// Notifier fans an event out to recipients.
type Notifier interface {
	Notify(ctx context.Context, event notificationdomain.Type, t *task.Task, recipients []string) []notification.DeliveryResult
}

// Recalculator recomputes performance scores for a set of users.
type Recalculator interface {
	RecalculateAll(ctx context.Context, userIDs []string) []performance.Outcome
}

// FileStore stores attachment content.
type FileStore interface {
	Upload(ctx context.Context, taskID, fileName string, data []byte, contentType string) (task.Attachment, error)
	Remove(ctx context.Context, fileID string) error
}

// Dependencies are the collaborators of a Service. Events may be nil.
type Dependencies struct {
	Store       task.Store
	Users       UserDirectory
	Cache       cache.Cache
	Notifier    Notifier
	Performance Recalculator
	Files       FileStore
	Events      mono.EventBus
	Logger      types.Logger
	CacheTTL    time.Duration
}

// MutationResult is returned by every mutation.
type MutationResult struct {
	Task        *task.Task                    `json:"task,omitempty"`
	Invalidated []string                      `json:"invalidated"`
	Deliveries  []notification.DeliveryResult `json:"deliveries,omitempty"`
	Performance []performance.Outcome         `json:"performance,omitempty"`
}

// Upload is an attachment to add to a task.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Service is the task lifecycle engine.
type Service struct {
	store       task.Store
	users       UserDirectory
	cache       cache.Cache
	notifier    Notifier
	performance Recalculator
	files       FileStore
	events      mono.EventBus
	logger      types.Logger
	cacheTTL    time.Duration

	sfGroup singleflight.Group
	fills   fillTracker
	now     func() time.Time
	newID   func() string
}

var newSubtaskID = mustNanoid(12)

func mustNanoid(length int) func() string {
	gen, err := nanoid.Standard(length)
	if err != nil {
		panic(err)
	}
	return gen
}

// NewService creates the engine.
func NewService(deps Dependencies) *Service {
	return &Service{
		store:       deps.Store,
		users:       deps.Users,
		cache:       deps.Cache,
		notifier:    deps.Notifier,
		performance: deps.Performance,
		files:       deps.Files,
		events:      deps.Events,
		logger:      deps.Logger,
		cacheTTL:    deps.CacheTTL,
		now:         time.Now,
		newID:       newTaskID,
	}
}
