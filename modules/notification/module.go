package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	domain "github.com/example/task-lifecycle/domain/notification"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/gorm"
)

// DBProvider supplies the shared database once its owner has started.
type DBProvider interface {
	DB() *gorm.DB
}

// ListNotificationsRequest is the request for a user's inbox.
type ListNotificationsRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

// ListNotificationsResponse is the response for a user's inbox.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

// MarkReadRequest is the request for marking a notification read.
type MarkReadRequest struct {
	ID string `json:"id"`
}

// MarkReadResponse is the response for marking a notification read.
type MarkReadResponse struct {
	Found bool `json:"found"`
}

// NotificationModule owns the inbox and the dispatcher used by task mutations.
type NotificationModule struct {
	dbProvider  DBProvider
	repo        *Repository
	breaker     *BreakerSender
	dispatcher  *Dispatcher
	breakerCfg  BreakerConfig
	concurrency int
	logger      types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*NotificationModule)(nil)
var _ mono.ServiceProviderModule = (*NotificationModule)(nil)
var _ mono.HealthCheckableModule = (*NotificationModule)(nil)

// NewModule creates a new NotificationModule.
func NewModule(concurrency int, breakerCfg BreakerConfig, logger types.Logger) *NotificationModule {
	return &NotificationModule{
		concurrency: concurrency,
		breakerCfg:  breakerCfg,
		logger:      logger,
	}
}

// Name returns the module name.
func (m *NotificationModule) Name() string {
	return "notification"
}

// SetDBProvider sets the database owner.
func (m *NotificationModule) SetDBProvider(p DBProvider) {
	m.dbProvider = p
}

// RegisterServices registers request-reply services in the service container.
func (m *NotificationModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "list-notifications", json.Unmarshal, json.Marshal, m.listNotifications,
	); err != nil {
		return fmt.Errorf("failed to register list-notifications service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "mark-notification-read", json.Unmarshal, json.Marshal, m.markRead,
	); err != nil {
		return fmt.Errorf("failed to register mark-notification-read service: %w", err)
	}

	log.Printf("[notification] Registered services: list-notifications, mark-notification-read")
	return nil
}

func (m *NotificationModule) listNotifications(ctx context.Context, req ListNotificationsRequest, _ *mono.Msg) (ListNotificationsResponse, error) {
	items, err := m.repo.ListByUser(ctx, req.UserID, req.Limit)
	if err != nil {
		return ListNotificationsResponse{}, err
	}
	unread, err := m.repo.CountUnread(ctx, req.UserID)
	if err != nil {
		return ListNotificationsResponse{}, err
	}
	return ListNotificationsResponse{Notifications: items, Unread: unread}, nil
}

func (m *NotificationModule) markRead(ctx context.Context, req MarkReadRequest, _ *mono.Msg) (MarkReadResponse, error) {
	if err := m.repo.MarkRead(ctx, req.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return MarkReadResponse{Found: false}, nil
		}
		return MarkReadResponse{}, err
	}
	return MarkReadResponse{Found: true}, nil
}

// Start migrates the inbox and builds the sender chain.
func (m *NotificationModule) Start(_ context.Context) error {
	if m.dbProvider == nil || m.dbProvider.DB() == nil {
		return fmt.Errorf("database not available")
	}

	m.repo = NewRepository(m.dbProvider.DB())
	if err := m.repo.Migrate(); err != nil {
		return err
	}
	m.breaker = NewBreakerSender(m.repo, m.breakerCfg)
	m.dispatcher = NewDispatcher(m.breaker, m.concurrency, m.logger.WithModule("notification"))

	log.Printf("[notification] Module started (concurrency: %d, breaker trips after %d failures)",
		m.concurrency, m.breakerCfg.MaxFailures)
	return nil
}

// Stop shuts down the module.
func (m *NotificationModule) Stop(_ context.Context) error {
	log.Println("[notification] Module stopped")
	return nil
}

// Health reports the breaker state.
func (m *NotificationModule) Health(_ context.Context) mono.HealthStatus {
	if m.breaker == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"breaker": m.breaker.State().String(),
		},
	}
}

// Dispatcher returns the dispatcher. It is nil before Start.
func (m *NotificationModule) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Inbox returns the inbox repository. It is nil before Start.
func (m *NotificationModule) Inbox() *Repository {
	return m.repo
}
