package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
	"exit-ticket-service/internal/infra/memory"
)

type fixture struct {
	tickets   *app.TicketService
	sessions  *app.SessionService
	analytics *app.AnalyticsService
	responses app.ResponseStore
	feed      *app.ResultsFeed
}

func newFixture() *fixture {
	ticketStore := memory.NewTicketStore()
	responseStore := memory.NewResponseStore()
	sessionStore := memory.NewSessionStore(time.Hour)
	cache := memory.NewTicketCache(ticketStore, time.Minute)

	analytics := app.NewAnalyticsService(responseStore)
	sessions := app.NewSessionService(cache, sessionStore, responseStore)
	feed := app.NewResultsFeed()
	sessions.SetResultsFeed(feed, analytics)
	tickets := app.NewTicketService(ticketStore)
	tickets.SetCacheInvalidator(cache)

	return &fixture{
		tickets:   tickets,
		sessions:  sessions,
		analytics: analytics,
		responses: responseStore,
		feed:      feed,
	}
}

func (f *fixture) publish(t *testing.T, n int) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Publish(context.Background(), sampleQuestions(n), "teacher-1", "Networking", "subnets", "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return ticket
}

// completeSession runs a session through to Completed, answering `correct`
// questions right and the rest wrong.
func (f *fixture) completeSession(t *testing.T, code, name string, correct int) *app.Session {
	t.Helper()
	ctx := context.Background()

	session, err := f.sessions.Open(ctx, code)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	session, err = f.sessions.ProvideName(ctx, session.ID, name)
	if err != nil {
		t.Fatalf("provide name: %v", err)
	}
	if session.State != app.SessionInProgress {
		t.Fatalf("expected in-progress session, got %s", session.State)
	}

	for i := range session.Questions {
		letter := session.Questions[i].CorrectLetter
		if i >= correct {
			letter = wrongLetter(session.Questions[i].CorrectLetter)
		}
		if session, _, err = f.sessions.Answer(ctx, session.ID, i, letter); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if session, err = f.sessions.Advance(ctx, session.ID, app.DirectionNext); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}

	session, err = f.sessions.Finish(ctx, session.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	return session
}

func wrongLetter(correct string) string {
	for _, letter := range domain.ChoiceLetters {
		if letter != correct {
			return letter
		}
	}
	return correct
}

func TestOpenRejectsInactiveAndUnknown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 5)

	if _, err := f.sessions.Open(ctx, "NOSUCH"); !errors.Is(err, domain.ErrTicketNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.sessions.Open(ctx, "bad"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for malformed code, got %v", err)
	}

	if err := f.tickets.SetStatus(ctx, ticket.Code, domain.TicketInactive); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := f.sessions.Open(ctx, ticket.Code); !errors.Is(err, domain.ErrTicketInactive) {
		t.Fatalf("expected inactive error, got %v", err)
	}
}

func TestProvideNameSamplesOnceAndCapsAtThree(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 10)

	session, err := f.sessions.Open(ctx, ticket.Code)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if session.State != app.SessionAwaitingName {
		t.Fatalf("expected awaiting-name state, got %s", session.State)
	}

	if _, err := f.sessions.ProvideName(ctx, session.ID, "   "); !errors.Is(err, app.ErrNameRequired) {
		t.Fatalf("expected name-required error, got %v", err)
	}

	session, err = f.sessions.ProvideName(ctx, session.ID, "Ana Silva")
	if err != nil {
		t.Fatalf("provide name: %v", err)
	}
	if len(session.Questions) != app.SampleSize {
		t.Fatalf("expected %d sampled questions, got %d", app.SampleSize, len(session.Questions))
	}
	prompts := make([]string, len(session.Questions))
	for i, q := range session.Questions {
		prompts[i] = q.Prompt
	}

	// A second name submission must not re-draw the sample.
	if _, err := f.sessions.ProvideName(ctx, session.ID, "Ana Silva"); !errors.Is(err, app.ErrSampleFrozen) {
		t.Fatalf("expected frozen sample, got %v", err)
	}
	session, _, err = f.sessions.Answer(ctx, session.ID, 0, session.Questions[0].CorrectLetter)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	for i, q := range session.Questions {
		if q.Prompt != prompts[i] {
			t.Fatalf("sample changed at %d: %q vs %q", i, q.Prompt, prompts[i])
		}
	}
}

func TestProvideNameConcurrentStudents(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 10)

	const students = 16
	ids := make([]string, students)
	for i := range ids {
		session, err := f.sessions.Open(ctx, ticket.Code)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		ids[i] = session.ID
	}

	// Whole classes hit the name gate at once; every session must sample
	// independently and land in progress.
	var wg sync.WaitGroup
	errs := make([]error, students)
	for i, id := range ids {
		wg.Add(1)
		go func(slot int, sessionID string) {
			defer wg.Done()
			_, errs[slot] = f.sessions.ProvideName(ctx, sessionID, fmt.Sprintf("Student %d", slot))
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("provide name %d: %v", i, err)
		}
	}
	for i, id := range ids {
		session, err := f.sessions.Advance(ctx, id, app.DirectionNext)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if session.State != app.SessionInProgress || len(session.Questions) != app.SampleSize {
			t.Fatalf("session %d in state %s with %d questions", i, session.State, len(session.Questions))
		}
	}
}

func TestSetStatusEvictsCachedTicket(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 3)

	// Warm the read-path cache.
	if _, err := f.sessions.Open(ctx, ticket.Code); err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := f.tickets.SetStatus(ctx, ticket.Code, domain.TicketInactive); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := f.sessions.Open(ctx, ticket.Code); !errors.Is(err, domain.ErrTicketInactive) {
		t.Fatalf("expected inactive error right after deactivation, got %v", err)
	}
}

func TestProvideNameUsesWholeShortTicket(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 2)

	session, err := f.sessions.Open(ctx, ticket.Code)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	session, err = f.sessions.ProvideName(ctx, session.ID, "Ana")
	if err != nil {
		t.Fatalf("provide name: %v", err)
	}
	if len(session.Questions) != 2 {
		t.Fatalf("expected both questions for a 2-question ticket, got %d", len(session.Questions))
	}
}

func TestProvideNameBlocksRepeatStudent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 5)

	first := f.completeSession(t, ticket.Code, "Ana Silva", 2)
	if _, err := f.sessions.Submit(ctx, first.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Same student, different casing and spacing.
	session, err := f.sessions.Open(ctx, ticket.Code)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	session, err = f.sessions.ProvideName(ctx, session.ID, "  ANA   silva ")
	if err != nil {
		t.Fatalf("provide name: %v", err)
	}
	if session.State != app.SessionBlocked {
		t.Fatalf("expected blocked session, got %s", session.State)
	}
	if len(session.Questions) != 0 {
		t.Fatalf("blocked session should expose no questions")
	}

	// A different student is unaffected.
	other, err := f.sessions.Open(ctx, ticket.Code)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	other, err = f.sessions.ProvideName(ctx, other.ID, "Bruno")
	if err != nil {
		t.Fatalf("provide name: %v", err)
	}
	if other.State != app.SessionInProgress {
		t.Fatalf("expected in-progress for new student, got %s", other.State)
	}
}

func TestSubmitFlowAndDuplicateRejection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 3)

	session := f.completeSession(t, ticket.Code, "Ana", 2)
	if session.Score == nil || session.Score.Percentage != 66.7 {
		t.Fatalf("expected 66.7%%, got %+v", session.Score)
	}

	response, err := f.sessions.Submit(ctx, session.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if response.SubmissionID == "" {
		t.Fatalf("expected a submission id")
	}
	if response.Score.CorrectCount != 2 || response.Score.TotalQuestions != 3 {
		t.Fatalf("unexpected score %+v", response.Score)
	}

	summary, err := f.analytics.Summarize(ctx, ticket.Code)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TotalResponses != 1 || summary.AverageScore != 66.7 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	blocked, err := f.sessions.Open(ctx, ticket.Code)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	blocked, err = f.sessions.ProvideName(ctx, blocked.ID, "ana")
	if err != nil {
		t.Fatalf("provide name: %v", err)
	}
	if blocked.State != app.SessionBlocked {
		t.Fatalf("expected blocked repeat attempt, got %s", blocked.State)
	}
}

func TestSubmitRequiresCompletedSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 3)

	session, err := f.sessions.Open(ctx, ticket.Code)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.sessions.Submit(ctx, session.ID); !errors.Is(err, app.ErrSessionNotInProgress) {
		t.Fatalf("expected rejection before completion, got %v", err)
	}

	if _, err := f.sessions.Submit(ctx, "missing-session"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestConcurrentSubmitAcceptsExactlyOne(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 3)

	// Two tabs: both sessions complete before either submits.
	first := f.completeSession(t, ticket.Code, "Ana", 3)
	second := f.completeSession(t, ticket.Code, "Ana", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(slot int, sessionID string) {
			defer wg.Done()
			_, errs[slot] = f.sessions.Submit(ctx, sessionID)
		}(i, id)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else if !errors.Is(err, domain.ErrDuplicateAttempt) {
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", accepted)
	}

	summary, err := f.analytics.Summarize(ctx, ticket.Code)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TotalResponses != 1 {
		t.Fatalf("expected one stored response, got %d", summary.TotalResponses)
	}
}

func TestSubmitAnnouncesOnFeed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 3)

	updates, cancel := f.feed.Subscribe(ticket.Code)
	defer cancel()

	session := f.completeSession(t, ticket.Code, "Ana", 3)
	if _, err := f.sessions.Submit(ctx, session.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case summary := <-updates:
		if summary.TotalResponses != 1 || summary.AverageScore != 100 {
			t.Fatalf("unexpected feed summary %+v", summary)
		}
	case <-time.After(time.Second):
		t.Fatalf("no feed update after submit")
	}
}

func TestAbandonDiscardsSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ticket := f.publish(t, 3)

	session, err := f.sessions.Open(ctx, ticket.Code)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.sessions.Abandon(ctx, session.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, err := f.sessions.ProvideName(ctx, session.ID, "Ana"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}
