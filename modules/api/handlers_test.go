package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/task-lifecycle/domain/task"
	"github.com/example/task-lifecycle/modules/cache"
	"github.com/example/task-lifecycle/modules/store"
	tasksvc "github.com/example/task-lifecycle/modules/task"
	"github.com/example/task-lifecycle/modules/user"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

type testServer struct {
	app      *fiber.App
	verifier *TokenVerifier
}

func setupTestApp(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	repo := store.NewRepository(db)
	require.NoError(t, repo.Migrate())

	users := user.NewUserRepository()
	users.SeedDemoUsers()
	memCache := cache.NewMemoryCache(time.Minute)

	svc := tasksvc.NewService(tasksvc.Dependencies{
		Store:    repo,
		Users:    users,
		Cache:    memCache,
		Logger:   &mockLogger{},
		CacheTTL: time.Minute,
	})

	verifier := NewTokenVerifier(testSecret)
	handlers := NewHandlers(Backends{Tasks: svc, Cache: memCache}, 30)
	return &testServer{app: NewApp(handlers, verifier, 0), verifier: verifier}
}

func (s *testServer) do(t *testing.T, method, path, actor string, body any, headers ...string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		token, err := s.verifier.Issue(actor, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) createTask(t *testing.T, in tasksvc.TaskInput) *task.Task {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/tasks", "user-1", in)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return decode[*task.Task](t, resp)
}

func TestHealthCheck(t *testing.T) {
	s := setupTestApp(t)

	resp := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCreateTask(t *testing.T) {
	s := setupTestApp(t)
	due := time.Now().Add(48 * time.Hour)

	resp := s.do(t, http.MethodPost, "/api/v1/tasks", "user-1", tasksvc.TaskInput{
		Title:         "Prepare demo",
		DueDate:       &due,
		AssignedUsers: []string{"user-2"},
		SubTasks:      []tasksvc.SubTaskInput{{Title: "slides"}},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Equal(t, `"1"`, resp.Header.Get("ETag"))
	assert.Contains(t, resp.Header.Get("X-Cache-Invalidated"), "tasks:user-2")

	created := decode[*task.Task](t, resp)
	assert.Equal(t, task.StatusTodo, created.Status)
	assert.Equal(t, "user-1", created.CreatedBy.ID)
	require.Len(t, created.AssignedUsers, 1)
	assert.Equal(t, "Bob Smith", created.AssignedUsers[0].FullName)
}

func TestCreateTask_Validation(t *testing.T) {
	s := setupTestApp(t)

	tests := []struct {
		name  string
		input tasksvc.TaskInput
		field string
	}{
		{name: "empty title", input: tasksvc.TaskInput{Title: "  "}, field: "title"},
		{name: "unknown assignee", input: tasksvc.TaskInput{Title: "x", AssignedUsers: []string{"ghost"}}, field: "assignedUsers"},
		{name: "terminal status", input: tasksvc.TaskInput{Title: "x", Status: task.StatusCompleted}, field: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, "/api/v1/tasks", "user-1", tt.input)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			body := decode[ErrorResponse](t, resp)
			assert.Equal(t, tasksvc.CodeValidation, body.Error)
			assert.Contains(t, body.Fields, tt.field)
		})
	}
}

func TestGetTask(t *testing.T) {
	s := setupTestApp(t)
	created := s.createTask(t, tasksvc.TaskInput{Title: "Read me"})

	resp := s.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, "user-2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "private, max-age=30", resp.Header.Get("Cache-Control"))
	assert.Equal(t, `"1"`, resp.Header.Get("ETag"))

	resp = s.do(t, http.MethodGet, "/api/v1/tasks/missing", "user-2", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpdateTask_IfMatch(t *testing.T) {
	s := setupTestApp(t)
	created := s.createTask(t, tasksvc.TaskInput{Title: "Draft"})
	in := tasksvc.TaskInput{Title: "Final"}
	path := "/api/v1/tasks/" + created.ID

	resp := s.do(t, http.MethodPut, path, "user-2", in, "If-Match", `"1"`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodPut, path, "user-1", in, "If-Match", `"1"`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, `"2"`, resp.Header.Get("ETag"))
	updated := decode[*task.Task](t, resp)
	assert.Equal(t, "Final", updated.Title)

	resp = s.do(t, http.MethodPut, path, "user-1", in, "If-Match", `"1"`)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, tasksvc.CodeConflict, decode[ErrorResponse](t, resp).Error)

	resp = s.do(t, http.MethodPut, path, "user-1", in, "If-Match", "abc")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCompleteTask_BlockedThenDone(t *testing.T) {
	s := setupTestApp(t)
	created := s.createTask(t, tasksvc.TaskInput{
		Title:         "Ship it",
		AssignedUsers: []string{"user-2"},
		SubTasks:      []tasksvc.SubTaskInput{{Title: "tests"}},
	})
	path := "/api/v1/tasks/" + created.ID

	resp := s.do(t, http.MethodPut, path+"/complete", "user-2", nil)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, tasksvc.CodeCompletionBlocked, body.Error)
	assert.Equal(t, string(task.ReasonSubtasksIncomplete), body.Reason)
	assert.Equal(t, []string{created.SubTasks[0].ID}, body.Pending)

	resp = s.do(t, http.MethodPost, path+"/subtasks/"+created.SubTasks[0].ID+"/toggle", "user-2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, task.StatusInProgress, decode[*task.Task](t, resp).Status)

	resp = s.do(t, http.MethodPost, path+"/complete", "user-2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	done := decode[*task.Task](t, resp)
	assert.Equal(t, task.StatusCompleted, done.Status)
	assert.True(t, done.IsLocked)

	resp = s.do(t, http.MethodPost, path+"/subtasks/"+created.SubTasks[0].ID+"/toggle", "user-2", nil)
	assert.Equal(t, fiber.StatusLocked, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/users/user-2/history", "user-2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	history := decode[TaskListResponse](t, resp)
	require.Equal(t, 1, history.Total)
	assert.Equal(t, created.ID, history.Tasks[0].ID)
}

func TestChangeStatus_BodyForms(t *testing.T) {
	s := setupTestApp(t)
	created := s.createTask(t, tasksvc.TaskInput{Title: "Status"})
	path := "/api/v1/tasks/" + created.ID + "/status"

	resp := s.do(t, http.MethodPut, path, "user-1", StatusRequest{Status: task.StatusInProgress})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, task.StatusInProgress, decode[*task.Task](t, resp).Status)

	resp = s.do(t, http.MethodPut, path, "user-1", "todo")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, task.StatusTodo, decode[*task.Task](t, resp).Status)

	resp = s.do(t, http.MethodPut, path, "user-1", "overdue")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPut, path, "user-2", "in-progress")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestDeleteTask(t *testing.T) {
	s := setupTestApp(t)
	created := s.createTask(t, tasksvc.TaskInput{Title: "Throwaway", AssignedUsers: []string{"user-3"}})
	path := "/api/v1/tasks/" + created.ID

	resp := s.do(t, http.MethodDelete, path, "user-3", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, path, "user-1", nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("X-Cache-Invalidated"), "task:"+created.ID)

	resp = s.do(t, http.MethodGet, path, "user-1", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListEndpoints(t *testing.T) {
	s := setupTestApp(t)
	s.createTask(t, tasksvc.TaskInput{Title: "Team work", TeamID: "team-a", AssignedUsers: []string{"user-2"}})
	s.createTask(t, tasksvc.TaskInput{Title: "Solo"})

	resp := s.do(t, http.MethodGet, "/api/v1/users/user-1/tasks", "user-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[TaskListResponse](t, resp).Total)

	resp = s.do(t, http.MethodGet, "/api/v1/users/user-2/assigned-tasks", "user-2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[TaskListResponse](t, resp).Total)

	resp = s.do(t, http.MethodGet, "/api/v1/teams/team-a/tasks", "user-3", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[TaskListResponse](t, resp).Total)

	resp = s.do(t, http.MethodGet, "/api/v1/users/user-3/history", "user-3", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	empty := decode[TaskListResponse](t, resp)
	assert.Equal(t, 0, empty.Total)
	assert.NotNil(t, empty.Tasks)
}

func TestOptionalBackendsUnavailable(t *testing.T) {
	s := setupTestApp(t)

	for _, path := range []string{
		"/api/v1/users/user-1/notifications",
		"/api/v1/users/user-1/performance",
		"/api/v1/attachments/3f1c2a5e-0000-4000-8000-000000000000",
	} {
		resp := s.do(t, http.MethodGet, path, "user-1", nil)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode, path)
	}
}

func TestCacheStats(t *testing.T) {
	s := setupTestApp(t)
	created := s.createTask(t, tasksvc.TaskInput{Title: "Cached"})

	s.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, "user-1", nil)
	s.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, "user-1", nil)

	resp := s.do(t, http.MethodGet, "/api/v1/cache/stats", "user-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	stats := decode[map[string]any](t, resp)
	assert.NotEmpty(t, stats)
}

func TestParseETag(t *testing.T) {
	tests := []struct {
		header string
		want   int64
		ok     bool
	}{
		{`"3"`, 3, true},
		{"3", 3, true},
		{`W/"12"`, 12, true},
		{`"x"`, 0, false},
	}
	for _, tt := range tests {
		got, err := parseETag(tt.header)
		if !tt.ok {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}
