package api

import (
	"context"
	"fmt"
	"log"

	"github.com/example/task-lifecycle/modules/attachment"
	"github.com/example/task-lifecycle/modules/cache"
	"github.com/example/task-lifecycle/modules/notification"
	"github.com/example/task-lifecycle/modules/performance"
	tasksvc "github.com/example/task-lifecycle/modules/task"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config holds the HTTP surface settings.
type Config struct {
	Port      int
	JWTSecret string
	// CacheMaxAge is the max-age in seconds sent with read responses.
	CacheMaxAge int
	BodyLimit   int
}

// Module provides the HTTP API.
type Module struct {
	config        Config
	app           *fiber.App
	handlers      *Handlers
	taskModule    *tasksvc.TaskModule
	cacheProvider tasksvc.CacheProvider
	notifications *notification.NotificationModule
	performance   *performance.PerformanceModule
	attachments   *attachment.Module
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)

// NewModule creates a new API module.
func NewModule(config Config) *Module {
	return &Module{config: config}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"task"}
}

// SetDependencyServiceContainer is a no-op; handlers call the engine directly.
func (m *Module) SetDependencyServiceContainer(_ string, _ mono.ServiceContainer) {}

// SetTaskModule sets the task module dependency.
func (m *Module) SetTaskModule(t *tasksvc.TaskModule) {
	m.taskModule = t
}

// SetCacheProvider sets the cache owner used for statistics.
func (m *Module) SetCacheProvider(p tasksvc.CacheProvider) {
	m.cacheProvider = p
}

// SetNotificationModule sets the notification module dependency.
func (m *Module) SetNotificationModule(n *notification.NotificationModule) {
	m.notifications = n
}

// SetPerformanceModule sets the performance module dependency.
func (m *Module) SetPerformanceModule(p *performance.PerformanceModule) {
	m.performance = p
}

// SetAttachmentModule sets the attachment module dependency.
func (m *Module) SetAttachmentModule(a *attachment.Module) {
	m.attachments = a
}

// Start builds the handlers and starts the HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.taskModule == nil || m.taskModule.Service() == nil {
		return fmt.Errorf("task module not set")
	}
	if m.config.JWTSecret == "" {
		return fmt.Errorf("JWT secret not configured")
	}

	backends := Backends{Tasks: m.taskModule.Service()}
	if m.cacheProvider != nil {
		backends.Cache = m.cacheProvider.GetCache()
	}
	if m.notifications != nil && m.notifications.Inbox() != nil {
		backends.Inbox = m.notifications.Inbox()
	}
	if m.performance != nil && m.performance.Repository() != nil {
		backends.Scores = m.performance.Repository()
	}
	if m.attachments != nil && m.attachments.Service() != nil {
		backends.Files = m.attachments.Service()
	}

	m.handlers = NewHandlers(backends, m.config.CacheMaxAge)
	m.app = NewApp(m.handlers, NewTokenVerifier(m.config.JWTSecret), m.config.BodyLimit)

	go func() {
		addr := fmt.Sprintf(":%d", m.config.Port)
		log.Printf("[api] Starting HTTP server on %s", addr)
		if err := m.app.Listen(addr); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully.
func (m *Module) Stop(_ context.Context) error {
	if m.app != nil {
		log.Println("[api] Shutting down HTTP server...")
		return m.app.Shutdown()
	}
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port": m.config.Port,
		},
	}
}

// NewApp builds the fiber app with middleware and routes.
func NewApp(h *Handlers, verifier *TokenVerifier, bodyLimit int) *fiber.App {
	cfg := fiber.Config{
		AppName:               "Task Lifecycle",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	}
	if bodyLimit > 0 {
		cfg.BodyLimit = bodyLimit
	}
	app := fiber.New(cfg)

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New())

	app.Get("/health", h.HealthCheck)

	api := app.Group("/api/v1", AuthMiddleware(verifier))

	tasks := api.Group("/tasks")
	tasks.Post("/", h.CreateTask)
	tasks.Get("/:id", h.GetTask)
	tasks.Put("/:id", h.UpdateTask)
	tasks.Delete("/:id", h.DeleteTask)
	tasks.Put("/:id/status", h.ChangeStatus)
	tasks.Put("/:id/complete", h.CompleteTask)
	tasks.Post("/:id/complete", h.CompleteTask)
	tasks.Post("/:id/subtasks/:subtaskId/toggle", h.ToggleSubtask)
	tasks.Post("/:id/attachments", h.UploadAttachment)

	api.Get("/attachments/:id", h.DownloadAttachment)

	users := api.Group("/users/:userId")
	users.Get("/tasks", h.ListUserTasks)
	users.Get("/assigned-tasks", h.ListAssignedTasks)
	users.Get("/history", h.ListHistory)
	users.Get("/notifications", h.ListNotifications)
	users.Get("/performance", h.GetPerformance)

	api.Get("/teams/:teamId/tasks", h.ListTeamTasks)
	api.Put("/notifications/:id/read", h.MarkNotificationRead)
	api.Get("/cache/stats", h.GetCacheStats)

	return app
}

// errorHandler handles errors from Fiber routes.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "http_error",
		Message: message,
	})
}

// GetApp returns the Fiber app (for testing).
func (m *Module) GetApp() *fiber.App {
	return m.app
}

var _ tasksvc.CacheProvider = (*cache.Module)(nil)
