package app

import (
	"context"
	"crypto/rand"
	"fmt"

	"exit-ticket-service/internal/domain"
)

const (
	codeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength          = 6
	maxAllocateAttempts = 10
)

// CodeAllocator hands out ticket codes that are free in the ticket store at
// the instant of the existence check. The store's primary key settles the
// residual check-then-create race.
type CodeAllocator struct {
	tickets TicketStore
	// generate is swappable in tests for deterministic candidates.
	generate func() (string, error)
}

func NewCodeAllocator(tickets TicketStore) *CodeAllocator {
	return &CodeAllocator{tickets: tickets, generate: randomCode}
}

// Allocate returns a code not present in the store, retrying fresh candidates
// up to a fixed cap and reporting domain.ErrCodeSpaceExhausted past it.
func (a *CodeAllocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := a.generate()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		exists, err := a.tickets.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code %s: %w", code, err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", domain.ErrCodeSpaceExhausted
}

func randomCode() (string, error) {
	// Rejection sampling: bytes at or above the largest multiple of the
	// alphabet size are redrawn, keeping every character equally likely.
	limit := byte(256 - 256%len(codeAlphabet))
	code := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength)
	for len(code) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if len(code) == codeLength {
				break
			}
			if b >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
		}
	}
	return string(code), nil
}
