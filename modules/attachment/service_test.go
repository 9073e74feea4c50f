package attachment

import (
	"context"
	"strings"
	"testing"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// createTestService starts an embedded NATS with an in-memory attachments bucket.
func createTestService(t *testing.T) *Service {
	t.Helper()

	app, err := mono.NewMonoApplication(mono.WithLogLevel(mono.LogLevelError))
	require.NoError(t, err)

	plugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        BucketName,
				Description: "Test bucket",
				MaxBytes:    10 * 1024 * 1024,
				Storage:     fsjetstream.MemoryStorage,
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, app.RegisterPlugin(plugin, "storage"))
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})

	module := NewModule(&mockLogger{})
	module.SetPlugin("storage", plugin)
	require.NoError(t, module.Start(context.Background()))
	return module.Service()
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"dir/sub/file.txt", "file.txt"},
		{"..", "unnamed"},
		{"", "unnamed"},
		{`a\b.txt`, "a_b.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}

func TestValidateFileID(t *testing.T) {
	assert.NoError(t, validateFileID(uuid.New().String()))
	assert.ErrorIs(t, validateFileID("not-a-uuid"), ErrInvalidFileID)
	assert.ErrorIs(t, validateFileID(""), ErrInvalidFileID)
}

func TestService_UploadDownloadRemove(t *testing.T) {
	svc := createTestService(t)
	ctx := context.Background()

	att, err := svc.Upload(ctx, "task-1", "../notes.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", att.FileName)
	assert.Equal(t, "text/plain", att.FileType)
	assert.True(t, strings.HasPrefix(att.FileURL, URLPrefix))
	assert.Equal(t, URLPrefix+att.ID, att.FileURL)

	file, err := svc.Download(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), file.Data)
	assert.Equal(t, "task-1", file.TaskID)
	assert.Equal(t, "notes.txt", file.Name)

	require.NoError(t, svc.Remove(ctx, att.ID))
	_, err = svc.Download(ctx, att.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	assert.NoError(t, svc.Remove(ctx, att.ID), "removing a missing file is not an error")
}

func TestService_UploadEmpty(t *testing.T) {
	svc := createTestService(t)
	_, err := svc.Upload(context.Background(), "task-1", "a.txt", nil, "")
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestModule_StartWithoutPlugin(t *testing.T) {
	m := NewModule(&mockLogger{})
	assert.Error(t, m.Start(context.Background()))
	assert.False(t, m.Health(context.Background()).Healthy)
}
