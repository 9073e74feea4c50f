package attachment

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

// BucketName is the object store bucket holding attachments.
const BucketName = "attachments"

// Module provides attachment storage backed by the fs-jetstream plugin.
type Module struct {
	storage *fsjetstream.PluginModule
	service *Service
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new attachment module.
func NewModule(logger types.Logger) *Module {
	return &Module{logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "attachment"
}

// SetPlugin receives the storage plugin from the framework before Start.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	storage, ok := plugin.(*fsjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for storage",
			"alias", alias,
			"expected", "*fsjetstream.PluginModule")
		return
	}
	m.storage = storage
	m.logger.Info("Received storage plugin", "alias", alias)
}

// Start opens the attachments bucket.
func (m *Module) Start(_ context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}
	bucket := m.storage.Bucket(BucketName)
	if bucket == nil {
		return fmt.Errorf("bucket %q not found in storage plugin", BucketName)
	}
	m.service = NewService(bucket)

	m.logger.Info("Attachment module started", "bucket", BucketName)
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Attachment module stopped")
	return nil
}

// Health reports whether the bucket is open.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "bucket not open"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"bucket": BucketName},
	}
}

// Service returns the attachment service. It is nil before Start.
func (m *Module) Service() *Service {
	return m.service
}
