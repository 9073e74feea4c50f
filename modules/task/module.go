package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/example/task-lifecycle/domain/task"
	"github.com/example/task-lifecycle/events"
	"github.com/example/task-lifecycle/modules/attachment"
	"github.com/example/task-lifecycle/modules/cache"
	"github.com/example/task-lifecycle/modules/notification"
	"github.com/example/task-lifecycle/modules/performance"
	"github.com/example/task-lifecycle/modules/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// StoreProvider supplies the task store once its owner has started.
type StoreProvider interface {
	Store() task.Store
}

// CacheProvider supplies the read cache once its owner has started.
type CacheProvider interface {
	GetCache() cache.Cache
}

// TaskModule exposes the lifecycle engine to the rest of the application.
type TaskModule struct {
	storeProvider StoreProvider
	cacheProvider CacheProvider
	notifications *notification.NotificationModule
	performance   *performance.PerformanceModule
	attachments   *attachment.Module

	userPort user.UserPort
	eventBus mono.EventBus
	service  *Service
	cacheTTL time.Duration
	logger   types.Logger
}

var _ mono.Module = (*TaskModule)(nil)
var _ mono.ServiceProviderModule = (*TaskModule)(nil)
var _ mono.DependentModule = (*TaskModule)(nil)
var _ mono.EventEmitterModule = (*TaskModule)(nil)

// NewModule creates a new TaskModule.
func NewModule(cacheTTL time.Duration, logger types.Logger) *TaskModule {
	return &TaskModule{
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Name returns the module name.
func (m *TaskModule) Name() string {
	return "task"
}

// Dependencies returns the list of module dependencies. Notification and
// performance are listed so they start before the engine is built.
func (m *TaskModule) Dependencies() []string {
	return []string{"user", "notification", "performance"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *TaskModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "user" {
		m.userPort = user.NewUserAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *TaskModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *TaskModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskCreatedV1.ToBase(),
		events.TaskUpdatedV1.ToBase(),
		events.TaskCompletedV1.ToBase(),
		events.TaskDeletedV1.ToBase(),
	}
}

// SetStoreProvider sets the owner of the task store.
func (m *TaskModule) SetStoreProvider(p StoreProvider) {
	m.storeProvider = p
}

// SetCacheProvider sets the owner of the read cache.
func (m *TaskModule) SetCacheProvider(p CacheProvider) {
	m.cacheProvider = p
}

// SetNotificationModule sets the notification module.
func (m *TaskModule) SetNotificationModule(n *notification.NotificationModule) {
	m.notifications = n
}

// SetPerformanceModule sets the performance module.
func (m *TaskModule) SetPerformanceModule(p *performance.PerformanceModule) {
	m.performance = p
}

// SetAttachmentModule sets the attachment module.
func (m *TaskModule) SetAttachmentModule(a *attachment.Module) {
	m.attachments = a
}

// RegisterServices registers request-reply services in the service container.
func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "get-task", json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register get-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-user-tasks", json.Unmarshal, json.Marshal, m.listUserTasks,
	); err != nil {
		return fmt.Errorf("failed to register list-user-tasks service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "complete-task", json.Unmarshal, json.Marshal, m.completeTask,
	); err != nil {
		return fmt.Errorf("failed to register complete-task service: %w", err)
	}

	log.Printf("[task] Registered services: get-task, list-user-tasks, complete-task")
	return nil
}

func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.Get(ctx, req.TaskID)
	if err != nil {
		return TaskResponse{Error: toServiceError(err)}, nil
	}
	return TaskResponse{Task: t}, nil
}

func (m *TaskModule) listUserTasks(ctx context.Context, req ListUserTasksRequest, _ *mono.Msg) (TaskListResponse, error) {
	list := m.service.ListForUser
	if req.AssignedOnly {
		list = m.service.ListAssigned
	}
	tasks, err := list(ctx, req.UserID)
	if err != nil {
		return TaskListResponse{Error: toServiceError(err)}, nil
	}
	return TaskListResponse{Tasks: tasks, Total: len(tasks)}, nil
}

func (m *TaskModule) completeTask(ctx context.Context, req CompleteTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	res, err := m.service.Complete(ctx, req.Actor, req.TaskID)
	if err != nil {
		return TaskResponse{Error: toServiceError(err)}, nil
	}
	return TaskResponse{Task: res.Task, Invalidated: res.Invalidated}, nil
}

// Start builds the engine from the collaborators started before it.
func (m *TaskModule) Start(_ context.Context) error {
	if m.userPort == nil {
		return fmt.Errorf("user dependency not set")
	}
	if m.storeProvider == nil || m.storeProvider.Store() == nil {
		return fmt.Errorf("task store not available")
	}
	if m.cacheProvider == nil || m.cacheProvider.GetCache() == nil {
		return fmt.Errorf("cache not available")
	}

	deps := Dependencies{
		Store:    m.storeProvider.Store(),
		Users:    m.userPort,
		Cache:    m.cacheProvider.GetCache(),
		Events:   m.eventBus,
		Logger:   m.logger.WithModule("task"),
		CacheTTL: m.cacheTTL,
	}
	if m.notifications != nil && m.notifications.Dispatcher() != nil {
		deps.Notifier = m.notifications.Dispatcher()
	}
	if m.performance != nil && m.performance.Recalculator() != nil {
		deps.Performance = m.performance.Recalculator()
	}
	if m.attachments != nil && m.attachments.Service() != nil {
		deps.Files = m.attachments.Service()
	}
	m.service = NewService(deps)

	log.Printf("[task] Module started (notifications: %t, performance: %t, attachments: %t)",
		deps.Notifier != nil, deps.Performance != nil, deps.Files != nil)
	return nil
}

// Stop shuts down the module.
func (m *TaskModule) Stop(_ context.Context) error {
	log.Println("[task] Module stopped")
	return nil
}

// Service returns the engine. It is nil before Start.
func (m *TaskModule) Service() *Service {
	return m.service
}
