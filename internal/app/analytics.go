package app

import (
	"context"

	"exit-ticket-service/internal/domain"
)

// AnalyticsService folds a ticket's responses into instructor-facing
// statistics.
type AnalyticsService struct {
	responses ResponseStore
}

func NewAnalyticsService(responses ResponseStore) *AnalyticsService {
	return &AnalyticsService{responses: responses}
}

// Summarize fetches every response for the code, keeps only the latest per
// student and averages the kept percentages. An empty response set yields
// zeroed statistics.
func (s *AnalyticsService) Summarize(ctx context.Context, rawCode string) (*domain.Summary, error) {
	code, err := domain.ParseCode(rawCode)
	if err != nil {
		return nil, err
	}
	responses, err := s.responses.ListByTicket(ctx, code)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]*domain.Response)
	for _, response := range responses {
		key := response.StudentKey
		if key == "" {
			key = domain.StudentKey(response.StudentName)
		}
		if kept, ok := latest[key]; !ok || response.CompletedAt.After(kept.CompletedAt) {
			latest[key] = response
		}
	}

	deduped := make([]*domain.Response, 0, len(latest))
	total := 0.0
	for _, response := range latest {
		deduped = append(deduped, response)
		total += response.Score.Percentage
	}

	average := 0.0
	if len(deduped) > 0 {
		average = domain.RoundScore(total / float64(len(deduped)))
	}
	return &domain.Summary{
		TicketCode:     code,
		TotalResponses: len(deduped),
		UniqueStudents: len(latest),
		AverageScore:   average,
		Responses:      deduped,
	}, nil
}

// ListResponses returns the raw, non-deduplicated records for the code in
// store order (newest first).
func (s *AnalyticsService) ListResponses(ctx context.Context, rawCode string) ([]*domain.Response, error) {
	code, err := domain.ParseCode(rawCode)
	if err != nil {
		return nil, err
	}
	return s.responses.ListByTicket(ctx, code)
}

// StudentHistory returns everything one student has submitted, newest first.
func (s *AnalyticsService) StudentHistory(ctx context.Context, studentName string) ([]*domain.Response, error) {
	return s.responses.ListByStudent(ctx, domain.StudentKey(studentName))
}
