package notification

import (
	"context"
	"log"
	"time"

	domain "github.com/example/task-lifecycle/domain/notification"
	"github.com/sony/gobreaker"
)

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n *domain.Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n *domain.Notification) error

func (f SenderFunc) Send(ctx context.Context, n *domain.Notification) error {
	return f(ctx, n)
}

// BreakerConfig configures the circuit breaker around a sender.
type BreakerConfig struct {
	Name        string
	Timeout     time.Duration
	MaxFailures uint32
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:        "notifications",
		Timeout:     30 * time.Second,
		MaxFailures: 3,
	}
}

// BreakerSender stops calling a failing sink after MaxFailures consecutive
// failures and fails fast until Timeout has passed.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSender wraps next with a circuit breaker.
func NewBreakerSender(next Sender, cfg BreakerConfig) *BreakerSender {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[notification] Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &BreakerSender{next: next, cb: cb}
}

// Send delivers through the breaker. When open it returns gobreaker.ErrOpenState.
func (b *BreakerSender) Send(ctx context.Context, n *domain.Notification) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, n)
	})
	return err
}

// State returns the breaker state.
func (b *BreakerSender) State() gobreaker.State {
	return b.cb.State()
}
