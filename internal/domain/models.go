package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// TicketStatus gates whether students may open a ticket.
type TicketStatus string

const (
	TicketActive   TicketStatus = "active"
	TicketInactive TicketStatus = "inactive"
)

// ValidStatus reports whether s is a status the engine accepts.
func ValidStatus(s TicketStatus) bool {
	return s == TicketActive || s == TicketInactive
}

// QuestionSource tags where a question came from.
type QuestionSource string

const (
	SourceUser QuestionSource = "user"
	SourceAI   QuestionSource = "ai"
)

// ChoiceLetters are the only valid choice keys, in display order.
var ChoiceLetters = []string{"A", "B", "C", "D"}

// Question is a single multiple-choice question with exactly four options.
type Question struct {
	Prompt        string            `json:"question"`
	Choices       map[string]string `json:"options"`
	CorrectLetter string            `json:"correctAnswer"`
	Explanation   string            `json:"explanation"`
	Topic         string            `json:"topic"`
	Subtopic      string            `json:"subtopic"`
	Subject       string            `json:"subject"`
	Source        QuestionSource    `json:"source"`
}

// Validate checks the construction invariants: a non-empty prompt, exactly
// the four A-D choices, and a correct letter that is one of those choices.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return &ValidationError{Field: "question", Reason: "prompt is empty"}
	}
	if len(q.Choices) != len(ChoiceLetters) {
		return &ValidationError{Field: "options", Reason: fmt.Sprintf("expected %d options, got %d", len(ChoiceLetters), len(q.Choices))}
	}
	for _, letter := range ChoiceLetters {
		if _, ok := q.Choices[letter]; !ok {
			return &ValidationError{Field: "options", Reason: "missing option " + letter}
		}
	}
	if _, ok := q.Choices[q.CorrectLetter]; !ok {
		return &ValidationError{Field: "correctAnswer", Reason: fmt.Sprintf("correct answer %q is not an option", q.CorrectLetter)}
	}
	return nil
}

// CloneQuestions deep-copies a question batch, including each choice map, so
// the copy is independent of later edits to the source.
func CloneQuestions(questions []Question) []Question {
	cloned := make([]Question, len(questions))
	for i, q := range questions {
		choices := make(map[string]string, len(q.Choices))
		for letter, text := range q.Choices {
			choices[letter] = text
		}
		q.Choices = choices
		cloned[i] = q
	}
	return cloned
}

// ValidateQuestions rejects an empty batch and any malformed record.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return &ValidationError{Field: "questions", Reason: "at least one question is required"}
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// Ticket is a published exit ticket. The question sequence is immutable once
// the ticket is created; only the status field changes afterwards.
type Ticket struct {
	Code         string       `json:"code"`
	Title        string       `json:"title"`
	Subject      string       `json:"subject"`
	Topics       string       `json:"lectureTopics"`
	InstructorID string       `json:"instructorId"`
	Questions    []Question   `json:"questions"`
	Status       TicketStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// TotalQuestions returns the size of the ticket's full question set.
func (t *Ticket) TotalQuestions() int { return len(t.Questions) }

// TicketStats is a compact projection for instructor listings.
type TicketStats struct {
	Code           string       `json:"code"`
	Title          string       `json:"title"`
	Subject        string       `json:"subject"`
	TotalQuestions int          `json:"totalQuestions"`
	Status         TicketStatus `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Score summarizes one completed attempt over the sampled subset.
type Score struct {
	CorrectCount   int     `json:"correctCount"`
	TotalQuestions int     `json:"totalQuestions"`
	Percentage     float64 `json:"percentage"`
}

// Response is the durable, write-once record of one completed session.
// At most one response is accepted per (ticket code, student key) pair.
type Response struct {
	SubmissionID string            `json:"submissionId"`
	TicketCode   string            `json:"ticketCode"`
	StudentName  string            `json:"studentName"`
	StudentKey   string            `json:"studentKey"`
	Answers      map[string]string `json:"responses"`
	Score        Score             `json:"score"`
	CompletedAt  time.Time         `json:"completedAt"`
}

// Summary is the deduplicated analytics view over a ticket's responses.
type Summary struct {
	TicketCode     string      `json:"ticketCode"`
	TotalResponses int         `json:"totalResponses"`
	UniqueStudents int         `json:"uniqueStudents"`
	AverageScore   float64     `json:"averageScore"`
	Responses      []*Response `json:"responses"`
}

const codeLength = 6

// ParseCode normalizes a supplied ticket code (trim, uppercase) and rejects
// anything that is not exactly six characters before a store lookup is ever
// attempted.
func ParseCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != codeLength {
		return "", &ValidationError{Field: "code", Reason: fmt.Sprintf("ticket code must be %d characters", codeLength)}
	}
	return code, nil
}

// StudentKey normalizes a display name into the key used for duplicate
// detection and analytics grouping: whitespace collapsed, lower-cased.
func StudentKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// RoundScore rounds a percentage to one decimal place.
func RoundScore(pct float64) float64 {
	return math.Round(pct*10) / 10
}

// SortTicketsNewestFirst orders tickets by creation time descending, ties
// broken by code so listings are deterministic.
func SortTicketsNewestFirst(tickets []*Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		if !tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
		}
		return tickets[i].Code < tickets[j].Code
	})
}
