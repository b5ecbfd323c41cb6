package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"exit-ticket-service/internal/app"
	"exit-ticket-service/internal/domain"
)

const uniqueViolation = "23505"

// TicketStore persists ticket documents as JSONB keyed by code, with the
// query columns (instructor, status, created_at) extracted alongside.
type TicketStore struct {
	pool *pgxpool.Pool
}

func NewTicketStore(pool *pgxpool.Pool) *TicketStore {
	return &TicketStore{pool: pool}
}

var _ app.TicketStore = (*TicketStore)(nil)

func (s *TicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tickets (code, instructor_id, status, created_at, data) VALUES ($1, $2, $3, $4, $5)`,
		ticket.Code, ticket.InstructorID, string(ticket.Status), ticket.CreatedAt, data)
	if isUniqueViolation(err) {
		return domain.ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (s *TicketStore) Get(ctx context.Context, code string) (*domain.Ticket, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM tickets WHERE code=$1`, code).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	return decodeTicket(raw)
}

func (s *TicketStore) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE code=$1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ticket: %w", err)
	}
	return exists, nil
}

func (s *TicketStore) SetStatus(ctx context.Context, code string, status domain.TicketStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tickets SET status=$2, data = jsonb_set(data, '{status}', to_jsonb($2::text)) WHERE code=$1`,
		code, string(status))
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (s *TicketStore) ListByInstructor(ctx context.Context, instructorID string) ([]*domain.Ticket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM tickets WHERE instructor_id=$1 ORDER BY created_at DESC, code ASC`, instructorID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		ticket, err := decodeTicket(raw)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *TicketStore) Delete(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tickets WHERE code=$1`, code)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func decodeTicket(raw []byte) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, fmt.Errorf("unmarshal ticket: %w", err)
	}
	return &ticket, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
