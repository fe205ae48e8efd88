// Package cache keeps read-mostly data, such as the category catalog, in
// process memory for a fixed TTL.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type slot[T any] struct {
	val   T
	until time.Time
}

// InMemory is a TTL cache safe for concurrent use. Concurrent misses on the
// same key through Load share a single fill.
type InMemory[T any] struct {
	mu    sync.RWMutex
	slots map[string]slot[T]
	ttl   time.Duration
	now   func() time.Time
	fills singleflight.Group

	done      chan struct{}
	closeOnce sync.Once
}

// New starts a cache whose entries live for ttl. A background sweeper evicts
// expired entries until Close.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		slots: make(map[string]slot[T]),
		ttl:   ttl,
		now:   time.Now,
		done:  make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// WithClock replaces the clock used for expiry checks.
func (c *InMemory[T]) WithClock(now func() time.Time) *InMemory[T] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.slots[key]
	if !ok || !c.now().Before(s.until) {
		var zero T
		return zero, false
	}
	return s.val, true
}

func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	c.slots[key] = slot[T]{val: value, until: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.slots, key)
	c.mu.Unlock()
}

// Load returns the live value for key or runs fill and stores its result.
// hit is true when no fill was needed. Errors from fill are not cached.
func (c *InMemory[T]) Load(ctx context.Context, key string, fill func(context.Context) (T, error)) (value T, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	res, err, _ := c.fills.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

// Len counts entries that have not expired.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	live := 0
	for _, s := range c.slots {
		if now.Before(s.until) {
			live++
		}
	}
	return live
}

// Close stops the sweeper. Expired entries are then hidden but kept.
func (c *InMemory[T]) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *InMemory[T]) sweepLoop() {
	tick := time.NewTicker(c.ttl)
	defer tick.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-tick.C:
			c.evictExpired()
		}
	}
}

func (c *InMemory[T]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, s := range c.slots {
		if !now.Before(s.until) {
			delete(c.slots, k)
		}
	}
}
