package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidPlacement  = errors.New("invalid placement")
	ErrValidationFailed  = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
)

// TransitionError reports an event that has no rule from the current status.
type TransitionError struct {
	From  string
	Event string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s is not allowed from %s", e.Event, e.From)
}

func (e TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ValidationError collects every problem found in one request.
type ValidationError struct {
	Issues []string
}

func (e ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrValidationFailed.Error()
	}
	return "validation failed: " + strings.Join(e.Issues, "; ")
}

func (e ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// Validation returns a ValidationError for one issue.
func Validation(format string, args ...any) error {
	return ValidationError{Issues: []string{fmt.Sprintf(format, args...)}}
}

// ConflictError reports a checklist template that is still referenced.
type ConflictError struct {
	TemplateID string
	References int
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("checklist template %s is referenced by %d sub-object template task(s)", e.TemplateID, e.References)
}

func (e ConflictError) Is(target error) bool { return target == ErrConflict }

// Placement wraps ErrInvalidPlacement with a reason.
func Placement(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlacement, fmt.Sprintf(format, args...))
}
