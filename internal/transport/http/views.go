package http

import (
	"time"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
)

// SessionView is the client-facing snapshot of a quiz session. Correct
// letters and explanations are withheld; the answer endpoint reveals them
// per question as feedback once that question is answered.
type SessionView struct {
	ID          string           `json:"id"`
	TicketCode  string           `json:"ticketCode"`
	StudentName string           `json:"studentName,omitempty"`
	State       app.SessionState `json:"state"`
	Position    int              `json:"position"`
	Total       int              `json:"totalQuestions"`
	Answered    map[int]string   `json:"answers"`
	Questions   []QuestionView   `json:"questions,omitempty"`
	Score       *domain.Score    `json:"score,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// QuestionView carries what a student needs to answer: prompt and options.
type QuestionView struct {
	Index   int               `json:"index"`
	Prompt  string            `json:"question"`
	Choices map[string]string `json:"options"`
}

type answerFeedback struct {
	Session       SessionView `json:"session"`
	Correct       bool        `json:"correct"`
	CorrectAnswer string      `json:"correctAnswer"`
	Explanation   string      `json:"explanation"`
}

func sessionView(s *app.Session) SessionView {
	view := SessionView{
		ID:          s.ID,
		TicketCode:  s.TicketCode,
		StudentName: s.StudentName,
		State:       s.State,
		Position:    s.Position,
		Total:       len(s.Questions),
		Answered:    s.Answers,
		Score:       s.Score,
		CreatedAt:   s.CreatedAt,
	}
	for i, q := range s.Questions {
		view.Questions = append(view.Questions, QuestionView{
			Index:   i,
			Prompt:  q.Prompt,
			Choices: q.Choices,
		})
	}
	return view
}
