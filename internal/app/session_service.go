package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"exit-ticket-service/internal/domain"
)

// DuplicateGuard decides whether a (ticket, student) pair has already
// submitted. The read-time check is advisory; the response store's unique
// constraint is the authoritative guard at write time.
type DuplicateGuard struct {
	responses ResponseStore
}

func NewDuplicateGuard(responses ResponseStore) *DuplicateGuard {
	return &DuplicateGuard{responses: responses}
}

// HasAttempted normalizes both inputs before querying.
func (g *DuplicateGuard) HasAttempted(ctx context.Context, rawCode, studentName string) (bool, error) {
	code, err := domain.ParseCode(rawCode)
	if err != nil {
		return false, err
	}
	return g.responses.HasAttempted(ctx, code, domain.StudentKey(studentName))
}

// SessionService drives per-student quiz sessions against published tickets
// and owns the submission path.
type SessionService struct {
	tickets   TicketSource
	sessions  SessionStore
	responses ResponseStore
	guard     *DuplicateGuard
	feed      *ResultsFeed
	analytics *AnalyticsService
	clock     func() time.Time
}

func NewSessionService(tickets TicketSource, sessions SessionStore, responses ResponseStore) *SessionService {
	return &SessionService{
		tickets:   tickets,
		sessions:  sessions,
		responses: responses,
		guard:     NewDuplicateGuard(responses),
		clock:     time.Now,
	}
}

// SetResultsFeed wires the instructor results feed. Optional; without it
// accepted submissions are simply not announced.
func (s *SessionService) SetResultsFeed(feed *ResultsFeed, analytics *AnalyticsService) {
	s.feed = feed
	s.analytics = analytics
}

// Open starts a session for an active ticket, in the awaiting-name state.
func (s *SessionService) Open(ctx context.Context, rawCode string) (*Session, error) {
	code, err := domain.ParseCode(rawCode)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetTicket(ctx, code)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketActive {
		return nil, domain.ErrTicketInactive
	}
	session := newSession(uuid.NewString(), code, s.clock().UTC())
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// ProvideName runs the duplicate check for the named student and either
// blocks the session or samples its question subset and starts it. The
// sample is drawn exactly once; calling this on a started session fails
// without re-sampling.
func (s *SessionService) ProvideName(ctx context.Context, sessionID, name string) (*Session, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	attempted, err := s.guard.HasAttempted(ctx, session.TicketCode, name)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if attempted {
		session.block(strings.TrimSpace(name))
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		return session, nil
	}
	ticket, err := s.tickets.GetTicket(ctx, session.TicketCode)
	if err != nil {
		return nil, err
	}
	if err := session.start(strings.TrimSpace(name), s.sampleQuestions(ticket.Questions)); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// Answer records a choice for the current question and returns the session
// along with immediate correctness feedback.
func (s *SessionService) Answer(ctx context.Context, sessionID string, index int, letter string) (*Session, bool, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	correct, err := session.Answer(index, strings.ToUpper(strings.TrimSpace(letter)))
	if err != nil {
		return nil, false, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, false, fmt.Errorf("save session: %w", err)
	}
	return session, correct, nil
}

// Advance moves the session cursor.
func (s *SessionService) Advance(ctx context.Context, sessionID string, direction Direction) (*Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Advance(direction); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// Finish completes the session and computes its score. Nothing is persisted
// to the response store yet; Submit does that.
func (s *SessionService) Finish(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := session.Finish(); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// Submit durably records a completed session's response. The pre-check is a
// fast path; the store's unique (ticket, student) constraint decides races,
// so two tabs finishing simultaneously get exactly one accepted write.
func (s *SessionService) Submit(ctx context.Context, sessionID string) (*domain.Response, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != SessionCompleted || session.Score == nil {
		return nil, ErrSessionNotInProgress
	}
	attempted, err := s.responses.HasAttempted(ctx, session.TicketCode, domain.StudentKey(session.StudentName))
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if attempted {
		return nil, domain.ErrDuplicateAttempt
	}

	answers := make(map[string]string, len(session.Answers))
	for index, letter := range session.Answers {
		answers[strconv.Itoa(index)] = letter
	}
	response := &domain.Response{
		SubmissionID: uuid.NewString(),
		TicketCode:   session.TicketCode,
		StudentName:  session.StudentName,
		StudentKey:   domain.StudentKey(session.StudentName),
		Answers:      answers,
		Score:        *session.Score,
		CompletedAt:  s.clock().UTC(),
	}
	if err := s.responses.Insert(ctx, response); err != nil {
		return nil, err
	}
	log.Printf("accepted response %s for ticket %s", response.SubmissionID, response.TicketCode)
	s.announce(ctx, response.TicketCode)
	return response, nil
}

// Abandon discards an in-flight session. Nothing was written, so nothing
// needs compensating.
func (s *SessionService) Abandon(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

func (s *SessionService) announce(ctx context.Context, code string) {
	if s.feed == nil || s.analytics == nil {
		return
	}
	summary, err := s.analytics.Summarize(ctx, code)
	if err != nil {
		log.Printf("results feed: summarize %s: %v", code, err)
		return
	}
	s.feed.Publish(code, summary)
}

// sampleQuestions draws min(SampleSize, n) questions without replacement.
// The top-level rand functions lock internally, so concurrent sessions can
// sample at the same time.
func (s *SessionService) sampleQuestions(questions []domain.Question) []domain.Question {
	n := len(questions)
	size := SampleSize
	if n < size {
		size = n
	}
	picked := rand.Perm(n)[:size]
	subset := make([]domain.Question, 0, size)
	for _, i := range picked {
		subset = append(subset, questions[i])
	}
	return subset
}
