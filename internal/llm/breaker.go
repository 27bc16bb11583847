package llm

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps a Client so that a provider failing repeatedly is skipped for
// a cooldown period instead of being waited on for every message.
type Breaker struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

// BreakerSettings tunes a Breaker. Zero values take defaults.
type BreakerSettings struct {
	FailThreshold uint32        // consecutive failures before opening (default 3)
	Cooldown      time.Duration // open duration before a trial request (default 60s)
}

// NewBreaker wraps next with default settings.
func NewBreaker(name string, next Client) *Breaker {
	return NewBreakerWithSettings(name, next, BreakerSettings{})
}

// NewBreakerWithSettings wraps next in a circuit breaker.
func NewBreakerWithSettings(name string, next Client, s BreakerSettings) *Breaker {
	if s.FailThreshold == 0 {
		s.FailThreshold = 3
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 60 * time.Second
	}
	threshold := s.FailThreshold
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm-" + name,
			MaxRequests: 1,
			Timeout:     s.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("llm: circuit %s %s -> %s", name, from, to)
			},
		}),
	}
}

// Complete forwards to the wrapped client unless the circuit is open, in
// which case it returns gobreaker.ErrOpenState immediately.
func (b *Breaker) Complete(ctx context.Context, r Request) (*Response, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Response), nil
}

// State reports the current circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
