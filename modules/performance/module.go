package performance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	domain "github.com/example/task-lifecycle/domain/performance"
	"github.com/example/task-lifecycle/domain/task"
	"github.com/example/task-lifecycle/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/gorm"
)

// StoreProvider supplies the shared database and task store once started.
type StoreProvider interface {
	DB() *gorm.DB
	Store() task.Store
}

// GetPerformanceRequest is the request for a user's score.
type GetPerformanceRequest struct {
	UserID string `json:"user_id"`
}

// GetPerformanceResponse is the response for a user's score.
type GetPerformanceResponse struct {
	Found       bool              `json:"found"`
	Performance *domain.Aggregate `json:"performance,omitempty"`
}

// PerformanceModule keeps user performance scores up to date.
type PerformanceModule struct {
	provider     StoreProvider
	repo         *Repository
	recalculator *Recalculator
	concurrency  int
	logger       types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*PerformanceModule)(nil)
var _ mono.ServiceProviderModule = (*PerformanceModule)(nil)
var _ mono.EventConsumerModule = (*PerformanceModule)(nil)
var _ mono.HealthCheckableModule = (*PerformanceModule)(nil)

// NewModule creates a new PerformanceModule.
func NewModule(concurrency int, logger types.Logger) *PerformanceModule {
	return &PerformanceModule{
		concurrency: concurrency,
		logger:      logger,
	}
}

// Name returns the module name.
func (m *PerformanceModule) Name() string {
	return "performance"
}

// SetStoreProvider sets the owner of the database and task store.
func (m *PerformanceModule) SetStoreProvider(p StoreProvider) {
	m.provider = p
}

// RegisterServices registers request-reply services in the service container.
func (m *PerformanceModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "get-performance", json.Unmarshal, json.Marshal, m.getPerformance,
	); err != nil {
		return fmt.Errorf("failed to register get-performance service: %w", err)
	}

	log.Printf("[performance] Registered services: get-performance")
	return nil
}

// RegisterEventConsumers subscribes to task deletions.
func (m *PerformanceModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDeletedV1, m.handleTaskDeleted, m); err != nil {
		return fmt.Errorf("failed to register TaskDeleted consumer: %w", err)
	}

	log.Printf("[performance] Registered event consumers: TaskDeleted")
	return nil
}

func (m *PerformanceModule) handleTaskDeleted(ctx context.Context, event events.TaskDeletedEvent, _ *mono.Msg) error {
	if m.recalculator == nil || len(event.AssigneeIDs) == 0 {
		return nil
	}
	outcomes := m.recalculator.RecalculateAll(ctx, event.AssigneeIDs)
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	log.Printf("[performance] Task %s deleted: recalculated %d users (%d failed)", event.TaskID, len(outcomes), failed)
	return nil
}

func (m *PerformanceModule) getPerformance(ctx context.Context, req GetPerformanceRequest, _ *mono.Msg) (GetPerformanceResponse, error) {
	agg, err := m.repo.Get(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return GetPerformanceResponse{Found: false}, nil
		}
		return GetPerformanceResponse{}, err
	}
	return GetPerformanceResponse{Found: true, Performance: agg}, nil
}

// Start migrates the score table and builds the recalculator.
func (m *PerformanceModule) Start(_ context.Context) error {
	if m.provider == nil || m.provider.DB() == nil || m.provider.Store() == nil {
		return fmt.Errorf("store not available")
	}

	m.repo = NewRepository(m.provider.DB())
	if err := m.repo.Migrate(); err != nil {
		return err
	}
	m.recalculator = NewRecalculator(m.provider.Store(), m.repo, m.concurrency, m.logger.WithModule("performance"))

	log.Printf("[performance] Module started (concurrency: %d)", m.concurrency)
	return nil
}

// Stop shuts down the module.
func (m *PerformanceModule) Stop(_ context.Context) error {
	log.Println("[performance] Module stopped")
	return nil
}

// Health reports the number of stored scores.
func (m *PerformanceModule) Health(ctx context.Context) mono.HealthStatus {
	if m.repo == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	n, err := m.repo.Count(ctx)
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"users": n},
	}
}

// Recalculator returns the recalculator. It is nil before Start.
func (m *PerformanceModule) Recalculator() *Recalculator {
	return m.recalculator
}

// Repository returns the score repository. It is nil before Start.
func (m *PerformanceModule) Repository() *Repository {
	return m.repo
}
