package memory

import (
	"context"
	"sync"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
)

// TicketStore is an in-memory implementation of app.TicketStore.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]*domain.Ticket)}
}

var _ app.TicketStore = (*TicketStore)(nil)

func (s *TicketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.Code]; ok {
		return domain.ErrCodeTaken
	}
	s.tickets[ticket.Code] = copyTicket(ticket)
	return nil
}

func (s *TicketStore) Get(_ context.Context, code string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[code]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return copyTicket(ticket), nil
}

func (s *TicketStore) Exists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tickets[code]
	return ok, nil
}

func (s *TicketStore) SetStatus(_ context.Context, code string, status domain.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[code]
	if !ok {
		return domain.ErrTicketNotFound
	}
	ticket.Status = status
	return nil
}

func (s *TicketStore) ListByInstructor(_ context.Context, instructorID string) ([]*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tickets []*domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.InstructorID == instructorID {
			tickets = append(tickets, copyTicket(ticket))
		}
	}
	return tickets, nil
}

func (s *TicketStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[code]; !ok {
		return domain.ErrTicketNotFound
	}
	delete(s.tickets, code)
	return nil
}

// copyTicket shields stored tickets from caller mutation; the question
// sequence, choice maps included, is immutable once published.
func copyTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	clone.Questions = domain.CloneQuestions(t.Questions)
	return &clone
}
