package memory

import (
	"context"
	"sort"
	"sync"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
)

// ResponseStore is an in-memory implementation of app.ResponseStore. The
// pair index under the store mutex gives the same at-most-once behavior the
// postgres unique index provides.
type ResponseStore struct {
	mu        sync.Mutex
	responses []*domain.Response
	pairs     map[string]struct{}
}

func NewResponseStore() *ResponseStore {
	return &ResponseStore{pairs: make(map[string]struct{})}
}

var _ app.ResponseStore = (*ResponseStore)(nil)

func (s *ResponseStore) Insert(_ context.Context, response *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(response.TicketCode, response.StudentKey)
	if _, ok := s.pairs[key]; ok {
		return domain.ErrDuplicateAttempt
	}
	clone := *response
	s.responses = append(s.responses, &clone)
	s.pairs[key] = struct{}{}
	return nil
}

func (s *ResponseStore) ListByTicket(_ context.Context, code string) ([]*domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Response
	for _, response := range s.responses {
		if response.TicketCode == code {
			clone := *response
			out = append(out, &clone)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *ResponseStore) ListByStudent(_ context.Context, studentKey string) ([]*domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Response
	for _, response := range s.responses {
		if response.StudentKey == studentKey {
			clone := *response
			out = append(out, &clone)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *ResponseStore) HasAttempted(_ context.Context, code, studentKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pairs[pairKey(code, studentKey)]
	return ok, nil
}

func pairKey(code, studentKey string) string {
	return code + "\x00" + studentKey
}

func sortNewestFirst(responses []*domain.Response) {
	sort.Slice(responses, func(i, j int) bool {
		return responses[i].CompletedAt.After(responses[j].CompletedAt)
	})
}
