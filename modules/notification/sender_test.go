package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/example/task-lifecycle/domain/notification"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestBreakerSender_TripsAndFailsFast(t *testing.T) {
	calls := 0
	failing := SenderFunc(func(context.Context, *domain.Notification) error {
		calls++
		return errors.New("sink unavailable")
	})
	b := NewBreakerSender(failing, BreakerConfig{Name: "test", Timeout: time.Minute, MaxFailures: 2})
	n := &domain.Notification{ID: "n1", UserID: "u1"}

	assert.Error(t, b.Send(context.Background(), n))
	assert.Error(t, b.Send(context.Background(), n))
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Send(context.Background(), n)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls, "open breaker must not call the sink")
}

func TestBreakerSender_PassesThrough(t *testing.T) {
	var got *domain.Notification
	ok := SenderFunc(func(_ context.Context, n *domain.Notification) error {
		got = n
		return nil
	})
	b := NewBreakerSender(ok, DefaultBreakerConfig())
	n := &domain.Notification{ID: "n1"}

	assert.NoError(t, b.Send(context.Background(), n))
	assert.Same(t, n, got)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
