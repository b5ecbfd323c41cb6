package app

import (
	"errors"
	"time"

	"exit-ticket-service/internal/domain"
)

// SessionState tracks a student's traversal of a ticket.
type SessionState string

const (
	// SessionAwaitingName: ticket opened, waiting for the student's name.
	SessionAwaitingName SessionState = "awaiting_name"
	// SessionInProgress: name accepted, subset sampled, answering.
	SessionInProgress SessionState = "in_progress"
	// SessionCompleted: finished and scored. Terminal.
	SessionCompleted SessionState = "completed"
	// SessionBlocked: a prior submission exists for this (ticket, student)
	// pair. Terminal, distinct from completed so the caller can say
	// "already completed" instead of replaying results.
	SessionBlocked SessionState = "blocked"
)

// Direction moves the session cursor.
type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

var (
	ErrSessionNotInProgress = errors.New("session is not in progress")
	ErrNameRequired         = errors.New("student name is required")
	ErrAnswerOutOfTurn      = errors.New("answer index does not match the current question")
	ErrAnswerRecorded       = errors.New("an answer is already recorded for this question")
	ErrUnknownChoice        = errors.New("choice letter is not one of the question's options")
	ErrSampleFrozen         = errors.New("question subset is already drawn for this session")
	ErrUnknownDirection     = errors.New("direction must be prev or next")
)

// SampleSize is the number of questions drawn per session, capped by the
// ticket's total.
const SampleSize = 3

// Session is one student's pass over a ticket. Fields are exported so stores
// can serialize it; all transitions go through the methods below, which
// enforce the state machine invariants.
type Session struct {
	ID          string         `json:"id"`
	TicketCode  string         `json:"ticketCode"`
	StudentName string         `json:"studentName,omitempty"`
	State       SessionState   `json:"state"`
	// Questions is the subset sampled at the awaiting-name -> in-progress
	// transition. Frozen for the session's lifetime.
	Questions []domain.Question `json:"questions,omitempty"`
	Position  int               `json:"position"`
	// Answers maps question index to the chosen letter. An entry is
	// immutable once recorded.
	Answers   map[int]string `json:"answers"`
	Score     *domain.Score  `json:"score,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func newSession(id, ticketCode string, now time.Time) *Session {
	return &Session{
		ID:         id,
		TicketCode: ticketCode,
		State:      SessionAwaitingName,
		Answers:    make(map[int]string),
		CreatedAt:  now,
	}
}

// start moves the session to in-progress with the given name and sampled
// subset. It refuses to re-sample: once questions are drawn they stay.
func (s *Session) start(name string, subset []domain.Question) error {
	if s.State != SessionAwaitingName {
		return ErrSampleFrozen
	}
	s.StudentName = name
	s.Questions = subset
	s.Position = 0
	s.State = SessionInProgress
	return nil
}

// block marks the session terminally blocked by a prior submission.
func (s *Session) block(name string) {
	s.StudentName = name
	s.State = SessionBlocked
}

// Answer records the letter for the question at index and reports whether it
// is correct, for immediate feedback only; final scoring is recomputed at
// finish. Only the current position may be answered, and only once.
func (s *Session) Answer(index int, letter string) (bool, error) {
	if s.State != SessionInProgress {
		return false, ErrSessionNotInProgress
	}
	if index != s.Position || index < 0 || index >= len(s.Questions) {
		return false, ErrAnswerOutOfTurn
	}
	if _, ok := s.Answers[index]; ok {
		return false, ErrAnswerRecorded
	}
	question := s.Questions[index]
	if _, ok := question.Choices[letter]; !ok {
		return false, ErrUnknownChoice
	}
	s.Answers[index] = letter
	return letter == question.CorrectLetter, nil
}

// Advance moves the cursor one step, clamped to the subset bounds. Moving
// does not require the current question to be answered.
func (s *Session) Advance(direction Direction) error {
	if s.State != SessionInProgress {
		return ErrSessionNotInProgress
	}
	switch direction {
	case DirectionPrev:
		if s.Position > 0 {
			s.Position--
		}
	case DirectionNext:
		if s.Position < len(s.Questions)-1 {
			s.Position++
		}
	default:
		return ErrUnknownDirection
	}
	return nil
}

// Finish completes the session and computes the score over the whole subset.
// Unanswered questions count as incorrect.
func (s *Session) Finish() (domain.Score, error) {
	if s.State != SessionInProgress {
		return domain.Score{}, ErrSessionNotInProgress
	}
	correct := 0
	for i, question := range s.Questions {
		if letter, ok := s.Answers[i]; ok && letter == question.CorrectLetter {
			correct++
		}
	}
	total := len(s.Questions)
	percentage := 0.0
	if total > 0 {
		percentage = domain.RoundScore(100 * float64(correct) / float64(total))
	}
	score := domain.Score{
		CorrectCount:   correct,
		TotalQuestions: total,
		Percentage:     percentage,
	}
	s.Score = &score
	s.State = SessionCompleted
	return score, nil
}
