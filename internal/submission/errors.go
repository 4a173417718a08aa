package submission

import "errors"

// Error kinds, matched with errors.Is. The HTTP layer maps them to status
// codes in one place; everything else wraps them with context via fmt.Errorf.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)
