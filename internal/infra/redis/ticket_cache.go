package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
)

// TicketLoader fetches ticket documents from the backing store.
type TicketLoader interface {
	Get(ctx context.Context, code string) (*domain.Ticket, error)
}

// TicketCache is a read-through cache of whole ticket documents in Redis.
// The full JSON is cached (not a reduced form) because student sessions
// need prompts and options, not just correct letters.
type TicketCache struct {
	client *redis.Client
	loader TicketLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewTicketCache(client *redis.Client, loader TicketLoader, ttl time.Duration) *TicketCache {
	return &TicketCache{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

var (
	_ app.TicketSource      = (*TicketCache)(nil)
	_ app.TicketInvalidator = (*TicketCache)(nil)
)

func (c *TicketCache) GetTicket(ctx context.Context, code string) (*domain.Ticket, error) {
	key := c.key(code)

	if ticket, ok := c.fromCache(ctx, key); ok {
		return ticket, nil
	}

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if ticket, ok := c.fromCache(ctx, key); ok {
			return ticket, nil
		}
		ticket, err := c.loader.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(ticket); err == nil {
			// best-effort fill
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return ticket, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Ticket), nil
}

// Invalidate drops one code, used after status changes so deactivation is
// visible before the TTL runs out.
func (c *TicketCache) Invalidate(ctx context.Context, code string) {
	_ = c.client.Del(ctx, c.key(code)).Err()
}

func (c *TicketCache) fromCache(ctx context.Context, key string) (*domain.Ticket, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) || err != nil {
		return nil, false
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(data, &ticket); err != nil {
		return nil, false
	}
	return &ticket, true
}

func (c *TicketCache) key(code string) string {
	return "ticket:doc:" + code
}

func (c *TicketCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// top-level rand locks internally
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
