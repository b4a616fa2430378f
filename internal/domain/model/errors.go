package model

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the only failure kind of the scoring and profile cores.
// Callers match it with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputf formats a message and wraps ErrInvalidInput.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
