// Package generator ingests AI-produced multiple-choice questions. The
// producer is an external collaborator; everything it returns is validated
// here before a ticket can be built from it.
package generator

import (
	"context"
	"fmt"
	"strings"

	"exit-ticket-service/internal/domain"
)

// Request describes one generation call.
type Request struct {
	Subject      string
	Topics       string
	Instructions string
	Count        int
}

// Producer returns raw question records for a request. Implementations may
// return fewer or malformed records; Service rejects those batches.
type Producer interface {
	Generate(ctx context.Context, req Request) ([]domain.Question, error)
}

// Service wraps a producer with the ingestion contract: exactly Count valid
// questions or a reported failure, never a silently short batch.
type Service struct {
	producer Producer
}

func NewService(producer Producer) *Service {
	return &Service{producer: producer}
}

// Generate calls the producer and validates the batch. Accepted questions
// are tagged with the request subject and the AI provenance mark.
func (s *Service) Generate(ctx context.Context, req Request) ([]domain.Question, error) {
	if req.Count <= 0 {
		return nil, &domain.ValidationError{Field: "count", Reason: "requested count must be positive"}
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, &domain.ValidationError{Field: "subject", Reason: "subject is required"}
	}
	if strings.TrimSpace(req.Topics) == "" {
		return nil, &domain.ValidationError{Field: "topics", Reason: "lecture topics are required"}
	}

	questions, err := s.producer.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("question producer: %w", err)
	}
	if len(questions) != req.Count {
		return nil, &domain.ValidationError{
			Field:  "questions",
			Reason: fmt.Sprintf("producer returned %d questions, requested %d", len(questions), req.Count),
		}
	}
	for i := range questions {
		questions[i].Subject = req.Subject
		questions[i].Source = domain.SourceAI
		if err := questions[i].Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return questions, nil
}
