package generator

import (
	"context"
	"fmt"

	"exit-ticket-service/internal/domain"
)

// StaticProducer serves canned questions when no API key is configured.
// Useful for demos and tests; cycles its pool to satisfy any count.
type StaticProducer struct {
	pool []domain.Question
}

func NewStaticProducer(pool []domain.Question) *StaticProducer {
	return &StaticProducer{pool: pool}
}

func (p *StaticProducer) Generate(_ context.Context, req Request) ([]domain.Question, error) {
	if len(p.pool) == 0 {
		return nil, fmt.Errorf("static producer has no questions")
	}
	questions := make([]domain.Question, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		q := p.pool[i%len(p.pool)]
		if i >= len(p.pool) {
			q.Prompt = fmt.Sprintf("%s (variant %d)", q.Prompt, i/len(p.pool)+1)
		}
		q.Topic = req.Topics
		questions = append(questions, q)
	}
	return questions, nil
}

// SamplePool is a minimal default pool for the no-API-key mode.
func SamplePool() []domain.Question {
	return []domain.Question{
		{
			Prompt: "Which consistency model guarantees that a read returns the most recent committed write?",
			Choices: map[string]string{
				"A": "Eventual consistency",
				"B": "Strong consistency",
				"C": "Causal consistency",
				"D": "Read-your-writes consistency",
			},
			CorrectLetter: "B",
			Explanation:   "Strong consistency makes every read observe the latest committed write.",
			Subtopic:      "Consistency models",
		},
		{
			Prompt: "What does a unique index on a pair of columns enforce?",
			Choices: map[string]string{
				"A": "Faster joins on those columns",
				"B": "Non-null values in both columns",
				"C": "At most one row per distinct pair of values",
				"D": "Ordered storage of the table",
			},
			CorrectLetter: "C",
			Explanation:   "A unique index rejects a second row with the same pair of values.",
			Subtopic:      "Indexes",
		},
		{
			Prompt: "Which HTTP status code is conventionally used for a rejected duplicate submission?",
			Choices: map[string]string{
				"A": "200",
				"B": "301",
				"C": "404",
				"D": "409",
			},
			CorrectLetter: "D",
			Explanation:   "409 Conflict signals the request conflicts with existing state.",
			Subtopic:      "HTTP semantics",
		},
	}
}
