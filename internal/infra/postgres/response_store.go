package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
)

// ResponseStore persists write-once response documents. The unique index on
// (ticket_code, student_key) is the authoritative at-most-once guard.
type ResponseStore struct {
	pool *pgxpool.Pool
}

func NewResponseStore(pool *pgxpool.Pool) *ResponseStore {
	return &ResponseStore{pool: pool}
}

var _ app.ResponseStore = (*ResponseStore)(nil)

func (s *ResponseStore) Insert(ctx context.Context, response *domain.Response) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO student_responses (submission_id, ticket_code, student_key, completed_at, data)
		 VALUES ($1, $2, $3, $4, $5)`,
		response.SubmissionID, response.TicketCode, response.StudentKey, response.CompletedAt, data)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateAttempt
	}
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *ResponseStore) ListByTicket(ctx context.Context, code string) ([]*domain.Response, error) {
	return s.list(ctx,
		`SELECT data FROM student_responses WHERE ticket_code=$1 ORDER BY completed_at DESC`, code)
}

func (s *ResponseStore) ListByStudent(ctx context.Context, studentKey string) ([]*domain.Response, error) {
	return s.list(ctx,
		`SELECT data FROM student_responses WHERE student_key=$1 ORDER BY completed_at DESC`, studentKey)
}

func (s *ResponseStore) HasAttempted(ctx context.Context, code, studentKey string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM student_responses WHERE ticket_code=$1 AND student_key=$2)`,
		code, studentKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attempt: %w", err)
	}
	return exists, nil
}

func (s *ResponseStore) list(ctx context.Context, query string, arg string) ([]*domain.Response, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var responses []*domain.Response
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		var response domain.Response
		if err := json.Unmarshal(raw, &response); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		responses = append(responses, &response)
	}
	return responses, rows.Err()
}
