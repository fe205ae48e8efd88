// Package resilience guards outbound calls and batch fan-out: retries with
// capped exponential backoff, a circuit breaker and a bulkhead.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds retry limits. MaxBackoff caps a single wait; zero means 30s.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as final. RetryWithBackoff stops and returns err
// unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryWithBackoff calls fn up to MaxRetries+1 times, sleeping between
// attempts. It gives up early on a Permanent error or a done context.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = fn(); err == nil {
			return nil
		}
		if perm := (*permanentError)(nil); errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}

		wait := time.NewTimer(cfg.delay(attempt))
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}

// delay doubles InitialBackoff per attempt, adds up to 50% jitter and caps
// the result at MaxBackoff.
func (cfg Config) delay(attempt int) time.Duration {
	ceiling := cfg.MaxBackoff
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	d := cfg.InitialBackoff
	for i := 0; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	if d > 1 {
		d += time.Duration(rand.Int63n(int64(d / 2)))
	}
	return min(d, ceiling)
}

// NewCircuitBreaker trips after at least 5 calls in a 30s window fail at a
// 60% ratio, lets calls through again after 10s and logs every transition.
func NewCircuitBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= 5 && float64(c.TotalFailures) >= 0.6*float64(c.Requests)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// IsOpen reports whether err came from a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Bulkhead caps how many callers hold a slot at once.
type Bulkhead struct {
	slots chan struct{}
}

// NewBulkhead allows n concurrent holders, at least one.
func NewBulkhead(n int) *Bulkhead {
	return &Bulkhead{slots: make(chan struct{}, max(n, 1))}
}

// Acquire waits for a slot or for ctx to end.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) Release() { <-b.slots }

// InUse reports how many slots are held.
func (b *Bulkhead) InUse() int { return len(b.slots) }
