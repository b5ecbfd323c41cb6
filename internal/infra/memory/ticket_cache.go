package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
)

// TicketLoader fetches ticket documents from a backing store.
type TicketLoader interface {
	Get(ctx context.Context, code string) (*domain.Ticket, error)
}

// TicketCache caches published tickets with TTL to spare the store on the
// student read path. Tickets are immutable apart from status; status changes
// evict through Invalidate, and the TTL bounds staleness for any writer that
// bypasses it.
type TicketCache struct {
	loader TicketLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedTicket
}

type cachedTicket struct {
	ticket    *domain.Ticket
	expiresAt time.Time
}

func NewTicketCache(loader TicketLoader, ttl time.Duration) *TicketCache {
	return &TicketCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedTicket),
	}
}

var (
	_ app.TicketSource      = (*TicketCache)(nil)
	_ app.TicketInvalidator = (*TicketCache)(nil)
)

func (c *TicketCache) GetTicket(ctx context.Context, code string) (*domain.Ticket, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.ticket, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.ticket, nil
		}
		c.mu.RUnlock()

		ticket, err := c.loader.Get(ctx, code)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[code] = cachedTicket{ticket: ticket, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return ticket, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Ticket), nil
}

// Invalidate drops one code from the cache, used after status changes.
func (c *TicketCache) Invalidate(_ context.Context, code string) {
	c.mu.Lock()
	delete(c.cache, code)
	c.mu.Unlock()
}

func (c *TicketCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations; top-level rand locks internally
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
