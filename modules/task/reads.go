package task

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	notificationdomain "github.com/example/task-lifecycle/domain/notification"
	"github.com/example/task-lifecycle/domain/task"
	"github.com/example/task-lifecycle/modules/cache"
)

// Get returns a task by id, cache-aside on task:{id}.
func (s *Service) Get(ctx context.Context, id string) (*task.Task, error) {
	key := cache.TaskKey(id)

	var cached task.Task
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("Cache read failed", "key", key, "error", err.Error())
	}
	if found {
		if !task.Refresh(&cached, s.now()) {
			return &cached, nil
		}
		// Demoted since it was cached: fall through to the store.
	}

	val, err := s.fill(ctx, key, func(ctx context.Context) (any, error) {
		return s.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return val.(*task.Task).Clone(), nil
}

// ListForUser returns every task the user created or is assigned to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*task.Task, error) {
	return s.cachedList(ctx, cache.UserTasksKey(userID), func(ctx context.Context) ([]*task.Task, error) {
		return s.store.QueryByUserID(ctx, userID, task.ScopeInvolved)
	})
}

// ListAssigned returns the tasks assigned to the user.
func (s *Service) ListAssigned(ctx context.Context, userID string) ([]*task.Task, error) {
	return s.cachedList(ctx, cache.AssignedTasksKey(userID), func(ctx context.Context) ([]*task.Task, error) {
		return s.store.QueryByUserID(ctx, userID, task.ScopeAssigned)
	})
}

// History returns the user's completed and overdue tasks, most recently finished first.
func (s *Service) History(ctx context.Context, userID string) ([]*task.Task, error) {
	return s.cachedList(ctx, cache.HistoryKey(userID), func(ctx context.Context) ([]*task.Task, error) {
		all, err := s.store.QueryByUserID(ctx, userID, task.ScopeInvolved)
		if err != nil {
			return nil, err
		}
		now := s.now()
		var done []*task.Task
		for _, t := range all {
			if task.ComputeDerivedStatus(t, now).Terminal() {
				done = append(done, t)
			}
		}
		return done, nil
	}, sortHistory)
}

// ListByTeam returns the tasks of a team. It is not cached.
func (s *Service) ListByTeam(ctx context.Context, teamID string) ([]*task.Task, error) {
	tasks, err := s.store.QueryByTeamID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return s.refreshAll(ctx, tasks), nil
}

// cachedList serves a per-user list from the cache, falling back to query.
// Cached entries are refreshed on the way out; a demotion is persisted and
// clears the affected keys.
func (s *Service) cachedList(ctx context.Context, key string, query func(context.Context) ([]*task.Task, error), post ...func([]*task.Task)) ([]*task.Task, error) {
	var cached []*task.Task
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("Cache read failed", "key", key, "error", err.Error())
	}
	if found {
		now := s.now()
		stale := false
		for _, t := range cached {
			if task.Refresh(t.Clone(), now) {
				stale = true
				break
			}
		}
		if !stale {
			return cached, nil
		}
	}

	val, err := s.fill(ctx, key, func(ctx context.Context) (any, error) {
		tasks, err := query(ctx)
		if err != nil {
			return nil, err
		}
		tasks = s.refreshAll(ctx, tasks)
		for _, p := range post {
			p(tasks)
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}

	src := val.([]*task.Task)
	out := make([]*task.Task, len(src))
	for i, t := range src {
		out[i] = t.Clone()
	}
	return out, nil
}

// fill loads the value for key once for all concurrent callers and caches
// it. The load is detached from the leading caller's cancellation, and each
// caller stops waiting when its own context ends. A value loaded across an
// invalidation of key is returned but never cached.
func (s *Service) fill(ctx context.Context, key string, loadFn func(context.Context) (any, error)) (any, error) {
	ch := s.sfGroup.DoChan(key, func() (any, error) {
		lctx := context.WithoutCancel(ctx)
		gen := s.fills.begin(key)
		defer s.fills.end(key)

		val, err := loadFn(lctx)
		if err != nil {
			return nil, err
		}
		if s.fills.changed(key, gen) {
			return val, nil
		}
		if err := s.cache.Set(lctx, key, val, s.cacheTTL); err != nil {
			s.logger.Warn("Cache write failed", "key", key, "error", err.Error())
		}
		// An invalidation that ran during Set may have missed the entry.
		if s.fills.changed(key, gen) {
			if err := s.cache.InvalidateAll(lctx, []string{key}); err != nil {
				s.logger.Warn("Cache invalidation failed", "key", key, "error", err.Error())
			}
		}
		return val, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fillTracker counts invalidations of keys that have a load in flight.
type fillTracker struct {
	mu   sync.Mutex
	keys map[string]*fillState
}

type fillState struct {
	gen     uint64
	readers int
}

// begin registers a load of key and returns the generation it started at.
func (f *fillTracker) begin(key string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]*fillState)
	}
	st, ok := f.keys[key]
	if !ok {
		st = &fillState{}
		f.keys[key] = st
	}
	st.readers++
	return st.gen
}

// end releases a load registered by begin.
func (f *fillTracker) end(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.keys[key]; ok {
		st.readers--
		if st.readers <= 0 {
			delete(f.keys, key)
		}
	}
}

// changed reports whether key was invalidated since gen.
func (f *fillTracker) changed(key string, gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.keys[key]
	return ok && st.gen != gen
}

// invalidate bumps the generation of every key with a load in flight.
func (f *fillTracker) invalidate(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		if st, ok := f.keys[k]; ok {
			st.gen++
		}
	}
}

// load reads a task from the store and applies the overdue rule, persisting
// the demotion when it changes the task.
func (s *Service) load(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, t)
}

func (s *Service) refreshAll(ctx context.Context, tasks []*task.Task) []*task.Task {
	out := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		refreshed, err := s.refresh(ctx, t)
		if err != nil {
			s.logger.Warn("Overdue refresh failed", "task_id", t.ID, "error", err.Error())
			refreshed = t
			task.Refresh(refreshed, s.now())
		}
		out = append(out, refreshed)
	}
	return out
}

// refresh applies the time-driven transition to t. When the stored task is
// demoted to overdue the change is written, caches are cleared and the
// assignees are told once. A concurrent writer wins: the task is reloaded.
func (s *Service) refresh(ctx context.Context, t *task.Task) (*task.Task, error) {
	stored := t.Status
	next := t.Clone()
	if !task.Refresh(next, s.now()) {
		return t, nil
	}

	next.UpdatedAt = s.now()
	if err := s.store.Update(ctx, next, t.Version); err != nil {
		if errors.Is(err, task.ErrConflict) {
			latest, gerr := s.store.GetByID(ctx, t.ID)
			if gerr != nil {
				return nil, gerr
			}
			task.Refresh(latest, s.now())
			return latest, nil
		}
		return nil, err
	}

	fx := effects{users: [][]string{next.AssigneeIDs(), {next.CreatedBy.ID}}}
	if stored != task.StatusOverdue && next.Status == task.StatusOverdue {
		fx.notices = []notice{{event: notificationdomain.TypeTaskOverdue, recipients: next.AssigneeIDs()}}
	}
	s.commit(ctx, next, fx)
	s.publishUpdated(next, "")
	return next, nil
}

func sortHistory(tasks []*task.Task) {
	slices.SortStableFunc(tasks, func(a, b *task.Task) int {
		ta, tb := finishedAt(a), finishedAt(b)
		if c := tb.Compare(ta); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func finishedAt(t *task.Task) time.Time {
	if t.CompletedDate != nil {
		return *t.CompletedDate
	}
	if t.DueDate != nil {
		return *t.DueDate
	}
	return t.UpdatedAt
}
