package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStateTransition = errors.New("event not allowed in current cart state")
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrDuplicateSubmission    = errors.New("transaction already submitted")
	ErrPersistence            = errors.New("persistence failure")
	ErrDelivery               = errors.New("delivery failure")
	ErrConflict               = errors.New("cart was modified concurrently")
)

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
