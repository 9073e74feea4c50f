package main

import (
	"context"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/task-lifecycle/logging"
	apimod "github.com/example/task-lifecycle/modules/api"
	attachmentmod "github.com/example/task-lifecycle/modules/attachment"
	cachemod "github.com/example/task-lifecycle/modules/cache"
	notificationmod "github.com/example/task-lifecycle/modules/notification"
	performancemod "github.com/example/task-lifecycle/modules/performance"
	storemod "github.com/example/task-lifecycle/modules/store"
	taskmod "github.com/example/task-lifecycle/modules/task"
	usermod "github.com/example/task-lifecycle/modules/user"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	// Load configuration from environment
	storeCfg := storemod.DefaultConfig()
	storeCfg.Backend = getEnv("STORE_BACKEND", storeCfg.Backend)
	storeCfg.DBPath = getEnv("DB_PATH", storeCfg.DBPath)
	storeCfg.MongoURI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	storeCfg.MongoDatabase = getEnv("MONGO_DATABASE", storeCfg.MongoDatabase)

	cacheCfg := cachemod.DefaultConfig()
	cacheCfg.Backend = getEnv("CACHE_BACKEND", cacheCfg.Backend)
	cacheCfg.RedisAddr = getEnv("REDIS_ADDR", cacheCfg.RedisAddr)
	cacheCfg.Prefix = getEnv("CACHE_PREFIX", cacheCfg.Prefix)
	cacheCfg.TTL = getEnvDuration("CACHE_TTL", cacheCfg.TTL)

	apiCfg := apimod.Config{
		Port:        getEnvInt("HTTP_PORT", 3000),
		JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production"),
		CacheMaxAge: getEnvInt("HTTP_CACHE_MAX_AGE", 30),
		BodyLimit:   getEnvInt("MAX_UPLOAD_SIZE", 10*1024*1024),
	}
	storagePath := getEnv("STORAGE_PATH", "/tmp/task-lifecycle")
	natsPort := getEnvInt("NATS_PORT", 4222)
	notifyConcurrency := getEnvInt("NOTIFY_CONCURRENCY", 8)
	perfConcurrency := getEnvInt("PERFORMANCE_CONCURRENCY", 4)
	breakerCfg := notificationmod.DefaultBreakerConfig()
	breakerCfg.Timeout = getEnvDuration("BREAKER_TIMEOUT", breakerCfg.Timeout)
	breakerCfg.MaxFailures = uint32(getEnvInt("BREAKER_MAX_FAILURES", int(breakerCfg.MaxFailures)))

	log.Println("=== Task Lifecycle Engine ===")
	log.Printf("Store: %s", storeCfg.Backend)
	log.Printf("Cache: %s (TTL %s)", cacheCfg.Backend, cacheCfg.TTL)
	log.Printf("HTTP Port: %d", apiCfg.Port)
	log.Printf("Storage Path: %s", storagePath)
	log.Printf("NATS Port: %d", natsPort)

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(storagePath),
		mono.WithNATSPort(natsPort),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Services log to a rotating file when LOG_FILE is set.
	var logger types.Logger = app.Logger()
	var logCloser io.Closer
	if logFile := getEnv("LOG_FILE", ""); logFile != "" {
		cfg := logging.DefaultConfig(logFile)
		cfg.Level = getEnv("LOG_LEVEL", cfg.Level)
		cfg.MaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", cfg.MaxSizeMB)
		cfg.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", cfg.MaxBackups)
		cfg.MaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", cfg.MaxAgeDays)
		fileLogger, closer, err := logging.New(cfg)
		if err != nil {
			log.Fatalf("Failed to create file logger: %v", err)
		}
		logger, logCloser = fileLogger, closer
		log.Printf("Logging to %s", logFile)
	}

	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        attachmentmod.BucketName,
				Description: "Task attachments",
				MaxBytes:    1024 * 1024 * 1024,
				Storage:     fsjetstream.FileStorage,
				Compression: true,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	kvPlugin, err := kvjetstream.New(kvjetstream.Config{
		Buckets: []kvjetstream.BucketConfig{
			{
				Name:        cachemod.BucketName,
				Description: "Cached task reads",
				TTL:         cacheCfg.TTL,
				Storage:     kvjetstream.MemoryStorage,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create KV plugin: %v", err)
	}
	if err := app.RegisterPlugin(kvPlugin, "kv"); err != nil {
		log.Fatalf("Failed to register KV plugin: %v", err)
	}

	// Create modules
	storeModule := storemod.NewModule(storeCfg)
	cacheModule := cachemod.NewModule(cacheCfg)
	userModule := usermod.NewModule()
	notificationModule := notificationmod.NewModule(notifyConcurrency, breakerCfg, logger)
	performanceModule := performancemod.NewModule(perfConcurrency, logger)
	attachmentModule := attachmentmod.NewModule(logger)
	taskModule := taskmod.NewModule(cacheCfg.TTL, logger)
	apiModule := apimod.NewModule(apiCfg)

	// Wire up dependencies; modules resolve them in Start
	notificationModule.SetDBProvider(storeModule)
	performanceModule.SetStoreProvider(storeModule)
	taskModule.SetStoreProvider(storeModule)
	taskModule.SetCacheProvider(cacheModule)
	taskModule.SetNotificationModule(notificationModule)
	taskModule.SetPerformanceModule(performanceModule)
	taskModule.SetAttachmentModule(attachmentModule)
	apiModule.SetTaskModule(taskModule)
	apiModule.SetCacheProvider(cacheModule)
	apiModule.SetNotificationModule(notificationModule)
	apiModule.SetPerformanceModule(performanceModule)
	apiModule.SetAttachmentModule(attachmentModule)

	// Register modules; start order follows registration
	app.Register(storeModule)
	app.Register(cacheModule)
	app.Register(userModule)
	app.Register(notificationModule)
	app.Register(performanceModule)
	app.Register(attachmentModule)
	app.Register(taskModule)
	app.Register(apiModule)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	log.Println("=== Application Started ===")
	log.Printf("API available at http://localhost:%d", apiCfg.Port)
	log.Println("Endpoints:")
	log.Println("  GET    /health                                  - Health check")
	log.Println("  POST   /api/v1/tasks                            - Create task")
	log.Println("  GET    /api/v1/tasks/:id                        - Get task (cached)")
	log.Println("  PUT    /api/v1/tasks/:id                        - Update task (If-Match)")
	log.Println("  DELETE /api/v1/tasks/:id                        - Delete task")
	log.Println("  PUT    /api/v1/tasks/:id/status                 - Change status")
	log.Println("  PUT    /api/v1/tasks/:id/complete               - Complete task")
	log.Println("  POST   /api/v1/tasks/:id/subtasks/:sid/toggle   - Toggle subtask")
	log.Println("  POST   /api/v1/tasks/:id/attachments            - Upload attachment")
	log.Println("  GET    /api/v1/attachments/:id                  - Download attachment")
	log.Println("  GET    /api/v1/users/:userId/tasks              - Tasks created by or assigned to user")
	log.Println("  GET    /api/v1/users/:userId/assigned-tasks     - Tasks assigned to user")
	log.Println("  GET    /api/v1/users/:userId/history            - Completed and overdue tasks")
	log.Println("  GET    /api/v1/users/:userId/notifications      - Notification inbox")
	log.Println("  GET    /api/v1/users/:userId/performance        - Performance score")
	log.Println("  GET    /api/v1/teams/:teamId/tasks              - Team tasks")
	log.Println("  PUT    /api/v1/notifications/:id/read           - Mark notification read")
	log.Println("  GET    /api/v1/cache/stats                      - Cache statistics")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	if logCloser != nil {
		logCloser.Close()
	}
	os.Exit(exitCode)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
