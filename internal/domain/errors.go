package domain

import "errors"

var (
	// ErrTicketNotFound is returned for lookups of unknown ticket codes.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrTicketInactive is returned when a student opens a deactivated ticket.
	ErrTicketInactive = errors.New("ticket is no longer active")
	// ErrCodeTaken signals a code collision on ticket creation.
	ErrCodeTaken = errors.New("ticket code already taken")
	// ErrCodeSpaceExhausted is returned when code allocation gives up after
	// its retry cap. Effectively unreachable at realistic scale, but reported
	// rather than looping forever.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique ticket code")
	// ErrDuplicateAttempt rejects a second submission for the same
	// (ticket, student) pair.
	ErrDuplicateAttempt = errors.New("student has already completed this ticket")
	// ErrSessionNotFound is returned when a quiz session has expired or never existed.
	ErrSessionNotFound = errors.New("quiz session not found")
)

// ValidationError reports malformed caller input. It is surfaced immediately
// and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
