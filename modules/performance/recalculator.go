package performance

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/task-lifecycle/domain/performance"
	"github.com/example/task-lifecycle/domain/task"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Outcome records the result of one user's recalculation.
type Outcome struct {
	UserID  string `json:"userId"`
	Score   int    `json:"score"`
	Updated bool   `json:"updated"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// UpdateError wraps a failed recalculation for one user.
type UpdateError struct {
	UserID string
	Err    error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("performance update for %s failed: %v", e.UserID, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// Recalculator rebuilds performance aggregates from the task store.
// Recalculating a user is idempotent: the row depends only on the user's tasks.
type Recalculator struct {
	tasks       task.Store
	repo        *Repository
	concurrency int
	logger      types.Logger
	now         func() time.Time
}

// NewRecalculator creates a recalculator. concurrency < 1 means 1.
func NewRecalculator(tasks task.Store, repo *Repository, concurrency int, logger types.Logger) *Recalculator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Recalculator{
		tasks:       tasks,
		repo:        repo,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// RecalculateForUser recomputes and stores the aggregate of one user.
func (r *Recalculator) RecalculateForUser(ctx context.Context, userID string) (*domain.Aggregate, error) {
	assigned, err := r.tasks.QueryByUserID(ctx, userID, task.ScopeAssigned)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks of %s: %w", userID, err)
	}
	agg := domain.Compute(userID, assigned, r.now())
	if err := r.repo.Upsert(ctx, &agg); err != nil {
		return nil, err
	}
	return &agg, nil
}

// RecalculateAll recomputes every listed user with bounded parallelism.
// A failure for one user is logged and recorded without affecting the others.
func (r *Recalculator) RecalculateAll(ctx context.Context, userIDs []string) []Outcome {
	userIDs = distinct(userIDs)
	outcomes := make([]Outcome, len(userIDs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, userID := range userIDs {
		outcomes[i].UserID = userID
		g.Go(func() error {
			r.recalculate(ctx, &outcomes[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *Recalculator) recalculate(ctx context.Context, out *Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out.Err = &UpdateError{UserID: out.UserID, Err: fmt.Errorf("panic: %v", rec)}
			out.Error = out.Err.Error()
			r.logger.Error("Performance recalculation panicked", "user_id", out.UserID, "panic", rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Err = &UpdateError{UserID: out.UserID, Err: err}
		out.Error = out.Err.Error()
		return
	}
	agg, err := r.RecalculateForUser(ctx, out.UserID)
	if err != nil {
		out.Err = &UpdateError{UserID: out.UserID, Err: err}
		out.Error = out.Err.Error()
		r.logger.Warn("Performance recalculation failed", "user_id", out.UserID, "error", err.Error())
		return
	}
	out.Score = agg.Score
	out.Updated = true
}

func distinct(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
