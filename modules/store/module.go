package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/task-lifecycle/domain/task"
	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Backend names accepted by Config.Backend.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config selects and configures the task store backend.
// The SQLite database is always opened; it also holds notifications and scores.
type Config struct {
	Backend       string
	DBPath        string
	MongoURI      string
	MongoDatabase string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendSQLite,
		DBPath:        "tasks.db",
		MongoDatabase: "tasks_db",
	}
}

// Module owns the database connections and exposes the task store.
type Module struct {
	config Config
	db     *gorm.DB
	mongo  *MongoStore
	store  task.Store
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new store module.
func NewModule(config Config) *Module {
	return &Module{config: config}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start opens the databases and runs migrations.
func (m *Module) Start(ctx context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	m.db = db

	switch m.config.Backend {
	case BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		ms, err := ConnectMongo(connectCtx, m.config.MongoURI, m.config.MongoDatabase)
		if err != nil {
			return err
		}
		if err := ms.EnsureIndexes(connectCtx); err != nil {
			return err
		}
		m.mongo = ms
		m.store = ms
	case BackendSQLite, "":
		repo := NewRepository(db)
		if err := repo.Migrate(); err != nil {
			return err
		}
		m.store = repo
	default:
		return fmt.Errorf("unknown store backend %q", m.config.Backend)
	}

	log.Printf("[store] Module started (backend: %s, db: %s)", m.backendName(), m.config.DBPath)
	return nil
}

// Stop closes the database connections.
func (m *Module) Stop(ctx context.Context) error {
	if m.mongo != nil {
		if err := m.mongo.Close(ctx); err != nil {
			log.Printf("[store] Warning: failed to disconnect MongoDB: %v", err)
		}
	}
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Println("[store] Module stopped")
	return nil
}

// Health reports database reachability.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil || m.store == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get sql.DB: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	if m.mongo != nil {
		if err := m.mongo.Ping(ctx); err != nil {
			return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("mongo ping failed: %v", err)}
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"backend": m.backendName(),
			"path":    m.config.DBPath,
		},
	}
}

// Store returns the task store. It is nil before Start.
func (m *Module) Store() task.Store {
	return m.store
}

// DB returns the shared SQLite connection. It is nil before Start.
func (m *Module) DB() *gorm.DB {
	return m.db
}

func (m *Module) backendName() string {
	if m.config.Backend == "" {
		return BackendSQLite
	}
	return m.config.Backend
}
