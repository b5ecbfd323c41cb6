package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
	"exit-ticket-service/internal/generator"
)

// Handler bundles the engine's services behind REST endpoints. All rendering
// concerns live with the client; responses here are plain data records.
type Handler struct {
	tickets   *app.TicketService
	sessions  *app.SessionService
	analytics *app.AnalyticsService
	questions *generator.Service
	feed      *app.ResultsFeed
}

func NewHandler(tickets *app.TicketService, sessions *app.SessionService, analytics *app.AnalyticsService, questions *generator.Service, feed *app.ResultsFeed) *Handler {
	return &Handler{
		tickets:   tickets,
		sessions:  sessions,
		analytics: analytics,
		questions: questions,
		feed:      feed,
	}
}

// NewRouter wires every operation onto a gorilla/mux router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	v1 := r.PathPrefix("/v1").Subrouter()

	// Instructor side.
	v1.HandleFunc("/questions/generate", h.generateQuestions).Methods(http.MethodPost)
	v1.HandleFunc("/tickets", h.publishTicket).Methods(http.MethodPost)
	v1.HandleFunc("/tickets/{code}", h.getTicket).Methods(http.MethodGet)
	v1.HandleFunc("/tickets/{code}", h.deleteTicket).Methods(http.MethodDelete)
	v1.HandleFunc("/tickets/{code}/status", h.setTicketStatus).Methods(http.MethodPut)
	v1.HandleFunc("/tickets/{code}/stats", h.ticketStats).Methods(http.MethodGet)
	v1.HandleFunc("/tickets/{code}/responses", h.listResponses).Methods(http.MethodGet)
	v1.HandleFunc("/tickets/{code}/summary", h.summarize).Methods(http.MethodGet)
	v1.HandleFunc("/tickets/{code}/watch", h.watchResults).Methods(http.MethodGet)
	v1.HandleFunc("/instructors/{id}/tickets", h.listInstructorTickets).Methods(http.MethodGet)
	v1.HandleFunc("/students/{name}/responses", h.studentHistory).Methods(http.MethodGet)

	// Student side.
	v1.HandleFunc("/tickets/{code}/sessions", h.openSession).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/name", h.provideName).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/answers", h.answer).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/position", h.advance).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/finish", h.finish).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/submit", h.submit).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", h.abandonSession).Methods(http.MethodDelete)

	return r
}

func (h *Handler) generateQuestions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Subject      string `json:"subject"`
		Topics       string `json:"lectureTopics"`
		Instructions string `json:"instructions"`
		Count        int    `json:"count"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	questions, err := h.questions.Generate(r.Context(), generator.Request{
		Subject:      body.Subject,
		Topics:       body.Topics,
		Instructions: body.Instructions,
		Count:        body.Count,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

func (h *Handler) publishTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Questions    []domain.Question `json:"questions"`
		InstructorID string            `json:"instructorId"`
		Subject      string            `json:"subject"`
		Topics       string            `json:"lectureTopics"`
		Title        string            `json:"title"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	ticket, err := h.tickets.Publish(r.Context(), body.Questions, body.InstructorID, body.Subject, body.Topics, body.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) getTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.tickets.Retrieve(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) deleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.tickets.Delete(r.Context(), mux.Vars(r)["code"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setTicketStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status domain.TicketStatus `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.tickets.SetStatus(r.Context(), mux.Vars(r)["code"], body.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(body.Status)})
}

func (h *Handler) ticketStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tickets.Stats(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) listInstructorTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.ListByInstructor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets})
}

func (h *Handler) listResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.analytics.ListResponses(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"responses": responses})
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summarize(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) studentHistory(w http.ResponseWriter, r *http.Request) {
	responses, err := h.analytics.StudentHistory(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"responses": responses})
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Open(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView(session))
}

func (h *Handler) provideName(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	session, err := h.sessions.ProvideName(r.Context(), mux.Vars(r)["id"], body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index  int    `json:"index"`
		Letter string `json:"letter"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	session, correct, err := h.sessions.Answer(r.Context(), mux.Vars(r)["id"], body.Index, body.Letter)
	if err != nil {
		writeError(w, err)
		return
	}
	question := session.Questions[body.Index]
	writeJSON(w, http.StatusOK, answerFeedback{
		Session:       sessionView(session),
		Correct:       correct,
		CorrectAnswer: question.CorrectLetter,
		Explanation:   question.Explanation,
	})
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction app.Direction `json:"direction"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	session, err := h.sessions.Advance(r.Context(), mux.Vars(r)["id"], body.Direction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Finish(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	response, err := h.sessions.Submit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response)
}

func (h *Handler) abandonSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Abandon(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError maps engine errors onto HTTP statuses. Unknown errors are
// treated as store unavailability: the operation was left unperformed and
// the caller may retry it whole.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrTicketNotFound), errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrDuplicateAttempt):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrTicketInactive):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	case errors.Is(err, app.ErrSessionNotInProgress),
		errors.Is(err, app.ErrAnswerOutOfTurn),
		errors.Is(err, app.ErrAnswerRecorded),
		errors.Is(err, app.ErrSampleFrozen):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, app.ErrNameRequired),
		errors.Is(err, app.ErrUnknownChoice),
		errors.Is(err, app.ErrUnknownDirection):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store unavailable, retry the operation"})
	}
}
