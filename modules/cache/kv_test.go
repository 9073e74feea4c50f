package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-monolith/mono"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

func startKVModule(t *testing.T) *Module {
	t.Helper()

	app, err := mono.NewMonoApplication(mono.WithLogLevel(mono.LogLevelError))
	if err != nil {
		t.Fatalf("NewMonoApplication() error = %v", err)
	}
	plugin, err := kvjetstream.New(kvjetstream.Config{
		Buckets: []kvjetstream.BucketConfig{
			{
				Name:        BucketName,
				Description: "Test cache",
				TTL:         time.Minute,
				Storage:     kvjetstream.MemoryStorage,
			},
		},
	})
	if err != nil {
		t.Fatalf("kvjetstream.New() error = %v", err)
	}
	if err := app.RegisterPlugin(plugin, "kv"); err != nil {
		t.Fatalf("RegisterPlugin() error = %v", err)
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})

	m := NewModule(Config{Backend: BackendKV, TTL: time.Minute})
	m.SetPlugin("kv", plugin)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Module.Start() error = %v", err)
	}
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})
	return m
}

func TestKVCache_SetGetInvalidate(t *testing.T) {
	m := startKVModule(t)
	c := m.GetCache()
	ctx := context.Background()

	if err := c.Set(ctx, TaskKey("1"), payload{ID: "1", Count: 3}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set(ctx, UserTasksKey("user-1"), []payload{{ID: "1"}}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got payload
	found, err := c.Get(ctx, TaskKey("1"), &got)
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v; want hit", found, err)
	}
	if got.Count != 3 {
		t.Errorf("Count = %d, want 3", got.Count)
	}

	if err := c.InvalidateAll(ctx, []string{TaskKey("1"), HistoryKey("nobody")}); err != nil {
		t.Fatalf("InvalidateAll() error = %v", err)
	}
	if found, _ := c.Get(ctx, TaskKey("1"), &got); found {
		t.Error("task:1 survived invalidation")
	}
	var list []payload
	if found, _ := c.Get(ctx, UserTasksKey("user-1"), &list); !found {
		t.Error("tasks:user-1 was invalidated but not requested")
	}

	stats := c.GetStats()
	if stats.Backend != "kv-jetstream" {
		t.Errorf("Backend = %q, want kv-jetstream", stats.Backend)
	}
	if stats.Deletes != 1 {
		t.Errorf("Deletes = %d, want 1", stats.Deletes)
	}
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 2/1", stats.Hits, stats.Misses)
	}
}

func TestKVCache_MissOnUnknownKey(t *testing.T) {
	m := startKVModule(t)

	var got payload
	found, err := m.GetCache().Get(context.Background(), AssignedTasksKey("ghost"), &got)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("unknown key reported as found")
	}
}

func TestKVKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"task:3f2c", "task.3f2c"},
		{"assignedTasks:user-1", "assignedTasks.user-1"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := kvKey(tt.in); got != tt.want {
			t.Errorf("kvKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModule_KVBackendRequiresPlugin(t *testing.T) {
	m := NewModule(DefaultConfig())
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() without the kv plugin should fail")
	}
	if m.GetCache() != nil {
		t.Error("cache set despite failed start")
	}
}
