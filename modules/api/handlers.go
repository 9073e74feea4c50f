package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	notificationdomain "github.com/example/task-lifecycle/domain/notification"
	performancedomain "github.com/example/task-lifecycle/domain/performance"
	"github.com/example/task-lifecycle/domain/task"
	"github.com/example/task-lifecycle/modules/attachment"
	"github.com/example/task-lifecycle/modules/cache"
	tasksvc "github.com/example/task-lifecycle/modules/task"
	"github.com/gofiber/fiber/v2"
)

// TaskService is the lifecycle engine as seen by the HTTP surface.
type TaskService interface {
	Create(ctx context.Context, actor string, in tasksvc.TaskInput) (*tasksvc.MutationResult, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	ListForUser(ctx context.Context, userID string) ([]*task.Task, error)
	ListAssigned(ctx context.Context, userID string) ([]*task.Task, error)
	History(ctx context.Context, userID string) ([]*task.Task, error)
	ListByTeam(ctx context.Context, teamID string) ([]*task.Task, error)
	Update(ctx context.Context, actor, id string, in tasksvc.TaskInput) (*tasksvc.MutationResult, error)
	ToggleSubtask(ctx context.Context, actor, id, subtaskID string) (*tasksvc.MutationResult, error)
	ChangeStatus(ctx context.Context, actor, id string, status task.Status) (*tasksvc.MutationResult, error)
	Complete(ctx context.Context, actor, id string) (*tasksvc.MutationResult, error)
	Delete(ctx context.Context, actor, id string) (*tasksvc.MutationResult, error)
	AddAttachment(ctx context.Context, actor, id string, up tasksvc.Upload) (*tasksvc.MutationResult, error)
}

// Inbox serves stored notifications.
type Inbox interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]notificationdomain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id string) error
}

// Scores serves stored performance aggregates.
type Scores interface {
	Get(ctx context.Context, userID string) (*performancedomain.Aggregate, error)
}

// Files serves attachment downloads.
type Files interface {
	Download(ctx context.Context, fileID string) (*attachment.File, error)
}

// Backends are the services behind the handlers. Only Tasks is required.
type Backends struct {
	Tasks  TaskService
	Cache  cache.Cache
	Inbox  Inbox
	Scores Scores
	Files  Files
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	backends Backends
	maxAge   int
}

// NewHandlers creates a new Handlers instance. maxAge is the Cache-Control
// max-age in seconds sent with read responses.
func NewHandlers(backends Backends, maxAge int) *Handlers {
	return &Handlers{backends: backends, maxAge: maxAge}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "healthy"}
	if h.backends.Cache != nil {
		resp["cache"] = h.backends.Cache.GetStats().Backend
	}
	return c.JSON(resp)
}

// CreateTask handles POST /tasks.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	var in tasksvc.TaskInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	res, err := h.backends.Tasks.Create(c.UserContext(), actorOf(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return h.mutation(c, fiber.StatusCreated, res)
}

// GetTask handles GET /tasks/:id.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	t, err := h.backends.Tasks.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	h.readHeaders(c)
	c.Set(fiber.HeaderETag, etag(t.Version))
	return c.JSON(t)
}

// UpdateTask handles PUT /tasks/:id. The base version comes from If-Match,
// falling back to the body version field.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	var in tasksvc.TaskInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if header := c.Get(fiber.HeaderIfMatch); header != "" {
		v, err := parseETag(header)
		if err != nil {
			return badRequest(c, err.Error())
		}
		in.Version = &v
	}
	res, err := h.backends.Tasks.Update(c.UserContext(), actorOf(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return h.mutation(c, fiber.StatusOK, res)
}

// ChangeStatus handles PUT /tasks/:id/status. The body is a bare JSON
// string, a {"status": ...} object or plain text.
func (h *Handlers) ChangeStatus(c *fiber.Ctx) error {
	status, err := parseStatusBody(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.backends.Tasks.ChangeStatus(c.UserContext(), actorOf(c), c.Params("id"), status)
	if err != nil {
		return writeError(c, err)
	}
	return h.mutation(c, fiber.StatusOK, res)
}

// CompleteTask handles PUT and POST /tasks/:id/complete.
func (h *Handlers) CompleteTask(c *fiber.Ctx) error {
	res, err := h.backends.Tasks.Complete(c.UserContext(), actorOf(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return h.mutation(c, fiber.StatusOK, res)
}

// DeleteTask handles DELETE /tasks/:id.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	res, err := h.backends.Tasks.Delete(c.UserContext(), actorOf(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	h.mutationHeaders(c, res)
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleSubtask handles POST /tasks/:id/subtasks/:subtaskId/toggle.
func (h *Handlers) ToggleSubtask(c *fiber.Ctx) error {
	res, err := h.backends.Tasks.ToggleSubtask(c.UserContext(), actorOf(c), c.Params("id"), c.Params("subtaskId"))
	if err != nil {
		return writeError(c, err)
	}
	return h.mutation(c, fiber.StatusOK, res)
}

// UploadAttachment handles POST /tasks/:id/attachments with a multipart "file" field.
func (h *Handlers) UploadAttachment(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "Multipart field 'file' is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "Unable to read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return badRequest(c, "Unable to read uploaded file")
	}

	res, err := h.backends.Tasks.AddAttachment(c.UserContext(), actorOf(c), c.Params("id"), tasksvc.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return writeError(c, err)
	}
	return h.mutation(c, fiber.StatusCreated, res)
}

// DownloadAttachment handles GET /attachments/:id.
func (h *Handlers) DownloadAttachment(c *fiber.Ctx) error {
	if h.backends.Files == nil {
		return unavailable(c, "attachments")
	}
	file, err := h.backends.Files.Download(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	h.readHeaders(c)
	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return c.Send(file.Data)
}

// ListUserTasks handles GET /users/:userId/tasks.
func (h *Handlers) ListUserTasks(c *fiber.Ctx) error {
	return h.list(c, h.backends.Tasks.ListForUser, c.Params("userId"))
}

// ListAssignedTasks handles GET /users/:userId/assigned-tasks.
func (h *Handlers) ListAssignedTasks(c *fiber.Ctx) error {
	return h.list(c, h.backends.Tasks.ListAssigned, c.Params("userId"))
}

// ListHistory handles GET /users/:userId/history.
func (h *Handlers) ListHistory(c *fiber.Ctx) error {
	return h.list(c, h.backends.Tasks.History, c.Params("userId"))
}

// ListTeamTasks handles GET /teams/:teamId/tasks.
func (h *Handlers) ListTeamTasks(c *fiber.Ctx) error {
	return h.list(c, h.backends.Tasks.ListByTeam, c.Params("teamId"))
}

// ListNotifications handles GET /users/:userId/notifications.
func (h *Handlers) ListNotifications(c *fiber.Ctx) error {
	if h.backends.Inbox == nil {
		return unavailable(c, "notifications")
	}
	userID := c.Params("userId")
	items, err := h.backends.Inbox.ListByUser(c.UserContext(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return writeError(c, err)
	}
	unread, err := h.backends.Inbox.CountUnread(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(NotificationListResponse{Notifications: items, Unread: unread})
}

// MarkNotificationRead handles PUT /notifications/:id/read.
func (h *Handlers) MarkNotificationRead(c *fiber.Ctx) error {
	if h.backends.Inbox == nil {
		return unavailable(c, "notifications")
	}
	if err := h.backends.Inbox.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(fiber.Map{"id": c.Params("id"), "isRead": true})
}

// GetPerformance handles GET /users/:userId/performance.
func (h *Handlers) GetPerformance(c *fiber.Ctx) error {
	if h.backends.Scores == nil {
		return unavailable(c, "performance")
	}
	agg, err := h.backends.Scores.Get(c.UserContext(), c.Params("userId"))
	if err != nil {
		return writeError(c, err)
	}
	h.readHeaders(c)
	return c.JSON(agg)
}

// GetCacheStats handles GET /cache/stats.
func (h *Handlers) GetCacheStats(c *fiber.Ctx) error {
	if h.backends.Cache == nil {
		return unavailable(c, "cache")
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(h.backends.Cache.GetStats())
}

func (h *Handlers) list(c *fiber.Ctx, fn func(context.Context, string) ([]*task.Task, error), id string) error {
	tasks, err := fn(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	h.readHeaders(c)
	return c.JSON(TaskListResponse{Tasks: tasks, Total: len(tasks)})
}

func (h *Handlers) mutation(c *fiber.Ctx, status int, res *tasksvc.MutationResult) error {
	h.mutationHeaders(c, res)
	c.Set(fiber.HeaderETag, etag(res.Task.Version))
	return c.Status(status).JSON(res.Task)
}

func (h *Handlers) mutationHeaders(c *fiber.Ctx, res *tasksvc.MutationResult) {
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("X-Cache-Invalidated", strings.Join(res.Invalidated, ","))
}

func (h *Handlers) readHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, fmt.Sprintf("private, max-age=%d", h.maxAge))
}

func unavailable(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
		Error:   "unavailable",
		Message: what + " not available",
	})
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// parseETag accepts "3", 3 and W/"3".
func parseETag(header string) (int64, error) {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid If-Match header %q", header)
	}
	return n, nil
}

func parseStatusBody(body []byte) (task.Status, error) {
	raw := strings.TrimSpace(string(body))
	switch {
	case raw == "":
		return "", fmt.Errorf("status is required")
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return "", fmt.Errorf("invalid status body")
		}
		return task.Status(s), nil
	case strings.HasPrefix(raw, "{"):
		var req StatusRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return "", fmt.Errorf("invalid status body")
		}
		return req.Status, nil
	default:
		return task.Status(raw), nil
	}
}
