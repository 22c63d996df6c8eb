package verifycache

import (
	"context"
	"sync"
	"time"

	"github.com/chainsafe/qtx-rewards/pkg/oracle"
)

type entry struct {
	payment *oracle.Payment
	expires time.Time
}

type memoryCache struct {
	mu       sync.Mutex
	now      func() time.Time
	locks    map[string]time.Time
	payments map[string]entry
}

// NewMemoryCache creates an in-process Cache for single-instance deployments and tests.
func NewMemoryCache() *memoryCache {
	return &memoryCache{
		now:      time.Now,
		locks:    make(map[string]time.Time),
		payments: make(map[string]entry),
	}
}

func (c *memoryCache) Acquire(_ context.Context, ref string, ttl time.Duration) (ReleaseFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, held := c.locks[ref]; held && now.Before(exp) {
		return nil, ErrLocked
	}
	exp := now.Add(ttl)
	c.locks[ref] = exp

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.locks[ref].Equal(exp) {
				delete(c.locks, ref)
			}
		})
	}, nil
}

func (c *memoryCache) Remember(_ context.Context, ref string, p *oracle.Payment, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *p
	c.payments[ref] = entry{payment: &cp, expires: c.now().Add(ttl)}
	return nil
}

func (c *memoryCache) Lookup(_ context.Context, ref string) (*oracle.Payment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.payments[ref]
	if !ok {
		return nil, ErrMiss
	}
	if !c.now().Before(e.expires) {
		delete(c.payments, ref)
		return nil, ErrMiss
	}
	cp := *e.payment
	return &cp, nil
}
