package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/example/task-lifecycle/domain/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMongoStore connects to MONGO_TEST_URI and skips when it is unset or unreachable.
func setupMongoStore(t *testing.T) *MongoStore {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := ConnectMongo(ctx, uri, "task_lifecycle_test")
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", uri, err)
	}
	t.Cleanup(func() {
		_ = s.collection.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestMongoStore_Lifecycle(t *testing.T) {
	s := setupMongoStore(t)
	ctx := context.Background()

	created := newTask("alice", "bob")
	require.NoError(t, s.Create(ctx, created))

	found, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, found.Title)
	assert.Equal(t, int64(1), found.Version)

	found.Title = "Renamed"
	require.NoError(t, s.Update(ctx, found, 1))
	assert.Equal(t, int64(2), found.Version)

	stale := created.Clone()
	err = s.Update(ctx, stale, 1)
	var conflict *task.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(2), conflict.Actual)

	assigned, err := s.QueryByUserID(ctx, "bob", task.ScopeAssigned)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	involved, err := s.QueryByUserID(ctx, "alice", task.ScopeInvolved)
	require.NoError(t, err)
	assert.Len(t, involved, 1)

	require.NoError(t, s.Delete(ctx, created.ID))
	_, err = s.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, task.ErrNotFound)
}
