package domain

import (
	"testing"
	"time"
)

func validQuestion() Question {
	return Question{
		Prompt: "What does TTL stand for?",
		Choices: map[string]string{
			"A": "Time to live",
			"B": "Total trip length",
			"C": "Transfer time limit",
			"D": "Timed table lookup",
		},
		CorrectLetter: "A",
		Explanation:   "TTL bounds how long an entry may be served.",
		Topic:         "Caching",
		Subtopic:      "Expiry",
		Subject:       "Distributed Systems",
		Source:        SourceUser,
	}
}

func TestQuestionValidate(t *testing.T) {
	if err := validQuestion().Validate(); err != nil {
		t.Fatalf("valid question rejected: %v", err)
	}

	q := validQuestion()
	q.CorrectLetter = "E"
	if err := q.Validate(); err == nil {
		t.Fatalf("expected rejection for correct letter outside options")
	}

	q = validQuestion()
	delete(q.Choices, "D")
	if err := q.Validate(); err == nil {
		t.Fatalf("expected rejection for three options")
	}

	q = validQuestion()
	q.Choices["E"] = "Fifth option"
	if err := q.Validate(); err == nil {
		t.Fatalf("expected rejection for five options")
	}

	q = validQuestion()
	q.Prompt = "   "
	if err := q.Validate(); err == nil {
		t.Fatalf("expected rejection for empty prompt")
	}
}

func TestValidateQuestionsEmptyBatch(t *testing.T) {
	err := ValidateQuestions(nil)
	if err == nil {
		t.Fatalf("expected empty batch to fail")
	}
	if !IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestParseCode(t *testing.T) {
	code, err := ParseCode("  a3x9k2 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if code != "A3X9K2" {
		t.Fatalf("expected normalized A3X9K2, got %s", code)
	}

	if _, err := ParseCode("ABC"); err == nil {
		t.Fatalf("expected short code to be rejected")
	}
	if _, err := ParseCode("ABCDEFG"); err == nil {
		t.Fatalf("expected long code to be rejected")
	}
}

func TestStudentKeyNormalization(t *testing.T) {
	if StudentKey("  Ana   Silva ") != "ana silva" {
		t.Fatalf("expected collapsed lower-case key, got %q", StudentKey("  Ana   Silva "))
	}
	if StudentKey("ANA SILVA") != StudentKey("ana silva") {
		t.Fatalf("expected case-insensitive keys")
	}
}

func TestSortTicketsNewestFirst(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tickets := []*Ticket{
		{Code: "BBBBBB", CreatedAt: base},
		{Code: "AAAAAA", CreatedAt: base},
		{Code: "CCCCCC", CreatedAt: base.Add(time.Hour)},
	}
	SortTicketsNewestFirst(tickets)
	if tickets[0].Code != "CCCCCC" {
		t.Fatalf("expected newest first, got %s", tickets[0].Code)
	}
	if tickets[1].Code != "AAAAAA" || tickets[2].Code != "BBBBBB" {
		t.Fatalf("expected code tie-break, got %s then %s", tickets[1].Code, tickets[2].Code)
	}
}

func TestRoundScore(t *testing.T) {
	if RoundScore(100.0/3) != 33.3 {
		t.Fatalf("expected 33.3, got %v", RoundScore(100.0/3))
	}
	if RoundScore(200.0/3) != 66.7 {
		t.Fatalf("expected 66.7, got %v", RoundScore(200.0/3))
	}
}
