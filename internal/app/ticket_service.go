package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"exit-ticket-service/internal/domain"
)

// TicketService owns the ticket lifecycle: publish, retrieve, status
// toggling, instructor listings and administrative deletion.
type TicketService struct {
	tickets TicketStore
	codes   *CodeAllocator
	cache   TicketInvalidator
	clock   func() time.Time
}

func NewTicketService(tickets TicketStore) *TicketService {
	return &TicketService{
		tickets: tickets,
		codes:   NewCodeAllocator(tickets),
		clock:   time.Now,
	}
}

// SetCacheInvalidator wires the read-path cache so status changes and deletes
// evict the stale document immediately. Optional; without it staleness is
// bounded by the cache TTL alone.
func (s *TicketService) SetCacheInvalidator(cache TicketInvalidator) {
	s.cache = cache
}

// NewTicketServiceWithClock is test-only for deterministic timestamps.
func NewTicketServiceWithClock(tickets TicketStore, now func() time.Time) *TicketService {
	s := NewTicketService(tickets)
	s.clock = now
	return s
}

// Publish validates the question batch, allocates a fresh code and writes the
// immutable ticket document with status active. The questions are copied into
// the ticket so later edits to the caller's draft cannot reach it.
func (s *TicketService) Publish(ctx context.Context, questions []domain.Question, instructorID, subject, topics, title string) (*domain.Ticket, error) {
	if strings.TrimSpace(instructorID) == "" {
		return nil, &domain.ValidationError{Field: "instructorId", Reason: "instructor id is required"}
	}
	if err := domain.ValidateQuestions(questions); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = subject + " Exit Ticket"
	}

	owned := domain.CloneQuestions(questions)

	// A concurrent publish can still grab the code between the allocator's
	// existence check and our insert; the store's key constraint reports
	// that as ErrCodeTaken and we draw again.
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := s.codes.Allocate(ctx)
		if err != nil {
			return nil, err
		}
		ticket := &domain.Ticket{
			Code:         code,
			Title:        title,
			Subject:      subject,
			Topics:       topics,
			InstructorID: instructorID,
			Questions:    owned,
			Status:       domain.TicketActive,
			CreatedAt:    s.clock().UTC(),
		}
		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			log.Printf("published ticket %s (%d questions) for instructor %s", code, len(owned), instructorID)
			return ticket, nil
		}
		if errors.Is(err, domain.ErrCodeTaken) {
			continue
		}
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return nil, domain.ErrCodeSpaceExhausted
}

// Retrieve looks a ticket up by its (normalized) code.
func (s *TicketService) Retrieve(ctx context.Context, rawCode string) (*domain.Ticket, error) {
	code, err := domain.ParseCode(rawCode)
	if err != nil {
		return nil, err
	}
	return s.tickets.Get(ctx, code)
}

// SetStatus toggles a ticket between active and inactive. Idempotent.
func (s *TicketService) SetStatus(ctx context.Context, rawCode string, status domain.TicketStatus) error {
	code, err := domain.ParseCode(rawCode)
	if err != nil {
		return err
	}
	if !domain.ValidStatus(status) {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if err := s.tickets.SetStatus(ctx, code, status); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, code)
	}
	return nil
}

// ListByInstructor returns the instructor's tickets newest first, ties broken
// by code. The sort runs here so every store backend yields the same order.
func (s *TicketService) ListByInstructor(ctx context.Context, instructorID string) ([]*domain.Ticket, error) {
	tickets, err := s.tickets.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	domain.SortTicketsNewestFirst(tickets)
	return tickets, nil
}

// Stats returns the compact metadata projection for one ticket.
func (s *TicketService) Stats(ctx context.Context, rawCode string) (*domain.TicketStats, error) {
	ticket, err := s.Retrieve(ctx, rawCode)
	if err != nil {
		return nil, err
	}
	return &domain.TicketStats{
		Code:           ticket.Code,
		Title:          ticket.Title,
		Subject:        ticket.Subject,
		TotalQuestions: ticket.TotalQuestions(),
		Status:         ticket.Status,
		CreatedAt:      ticket.CreatedAt,
	}, nil
}

// Delete removes a ticket document. Administrative operation; responses for
// the code are kept so historical analytics still resolve.
func (s *TicketService) Delete(ctx context.Context, rawCode string) error {
	code, err := domain.ParseCode(rawCode)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, code); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, code)
	}
	log.Printf("deleted ticket %s", code)
	return nil
}
