package app

import (
	"context"

	"exit-ticket-service/internal/domain"
)

// TicketStore persists ticket documents keyed by code.
type TicketStore interface {
	// Create writes a new ticket. Returns domain.ErrCodeTaken if the code is
	// already present.
	Create(ctx context.Context, ticket *domain.Ticket) error
	Get(ctx context.Context, code string) (*domain.Ticket, error)
	Exists(ctx context.Context, code string) (bool, error)
	// SetStatus updates only the status field. Setting the same status twice
	// is a no-op success.
	SetStatus(ctx context.Context, code string, status domain.TicketStatus) error
	ListByInstructor(ctx context.Context, instructorID string) ([]*domain.Ticket, error)
	Delete(ctx context.Context, code string) error
}

// ResponseStore persists write-once response records. Insert must enforce
// the (ticket code, student key) uniqueness constraint atomically, so that
// concurrent submissions for the same pair yield exactly one accepted write.
type ResponseStore interface {
	// Insert returns domain.ErrDuplicateAttempt if a response for the same
	// (ticket code, student key) pair already exists.
	Insert(ctx context.Context, response *domain.Response) error
	ListByTicket(ctx context.Context, code string) ([]*domain.Response, error)
	ListByStudent(ctx context.Context, studentKey string) ([]*domain.Response, error)
	HasAttempted(ctx context.Context, code, studentKey string) (bool, error)
}

// SessionStore keeps in-flight quiz sessions keyed by session id. Entries
// expire on their own; an abandoned session needs no compensating cleanup.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	// Get returns domain.ErrSessionNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// TicketSource is the read path sessions use to resolve a ticket by code.
// Implementations may cache; they must serve the ticket as published.
type TicketSource interface {
	GetTicket(ctx context.Context, code string) (*domain.Ticket, error)
}

// TicketInvalidator drops a cached ticket document after a mutation, so a
// status change or delete is visible before the cache TTL runs out.
type TicketInvalidator interface {
	Invalidate(ctx context.Context, code string)
}
