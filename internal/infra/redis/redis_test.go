package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
	"exit-ticket-service/internal/infra/memory"
)

func runMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func sampleTicket() *domain.Ticket {
	return &domain.Ticket{
		Code:         "A3X9K2",
		Title:        "Networking Exit Ticket",
		Subject:      "Networking",
		InstructorID: "teacher-1",
		Status:       domain.TicketActive,
		CreatedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Questions: []domain.Question{
			{
				Prompt:        "Q1",
				Choices:       map[string]string{"A": "1", "B": "2", "C": "3", "D": "4"},
				CorrectLetter: "A",
			},
		},
	}
}

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, client := runMiniredis(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	session := &app.Session{
		ID:         "sess-1",
		TicketCode: "A3X9K2",
		State:      app.SessionAwaitingName,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("ticket:session:sess-1") {
		t.Fatalf("expected redis key to be set")
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TicketCode != "A3X9K2" || got.State != app.SessionAwaitingName {
		t.Fatalf("round trip lost state: %+v", got)
	}

	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSessionStoreExpiresWithTTL(t *testing.T) {
	mr, client := runMiniredis(t)
	store := NewSessionStore(client, 30*time.Minute)
	ctx := context.Background()

	session := &app.Session{ID: "sess-1", TicketCode: "A3X9K2", State: app.SessionAwaitingName}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}

// countingLoader counts reads that reach the backing store.
type countingLoader struct {
	mu    sync.Mutex
	calls int
	store *memory.TicketStore
}

func (l *countingLoader) Get(ctx context.Context, code string) (*domain.Ticket, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.store.Get(ctx, code)
}

func TestTicketCacheCachesInRedis(t *testing.T) {
	mr, client := runMiniredis(t)
	ctx := context.Background()

	backing := memory.NewTicketStore()
	if err := backing.Create(ctx, sampleTicket()); err != nil {
		t.Fatalf("create: %v", err)
	}
	loader := &countingLoader{store: backing}
	cache := NewTicketCache(client, loader, time.Minute)

	for i := 0; i < 5; i++ {
		ticket, err := cache.GetTicket(ctx, "A3X9K2")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if ticket.Code != "A3X9K2" || len(ticket.Questions) != 1 {
			t.Fatalf("unexpected ticket %+v", ticket)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single backing read, got %d", loader.calls)
	}
	if !mr.Exists("ticket:doc:A3X9K2") {
		t.Fatalf("expected cached document key")
	}

	cache.Invalidate(ctx, "A3X9K2")
	if mr.Exists("ticket:doc:A3X9K2") {
		t.Fatalf("expected key removed after invalidate")
	}
	if _, err := cache.GetTicket(ctx, "A3X9K2"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d reads", loader.calls)
	}
}

func TestTicketCachePropagatesNotFound(t *testing.T) {
	_, client := runMiniredis(t)
	cache := NewTicketCache(client, &countingLoader{store: memory.NewTicketStore()}, time.Minute)

	if _, err := cache.GetTicket(context.Background(), "NOSUCH"); !errors.Is(err, domain.ErrTicketNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
