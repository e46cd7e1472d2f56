package engine

import (
	"errors"
	"fmt"

	"spyagency/internal/repo"
)

// ErrNotFound matches every NotFoundError.
var ErrNotFound = repo.ErrNotFound

// ValidationError is a rejected request body or a rule the request breaks.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string { return e.Reason }

// ConflictError is a request that clashes with current state.
type ConflictError struct {
	Summary string
	Reason  string
}

func (e ConflictError) Error() string { return fmt.Sprintf("%s: %s", e.Summary, e.Reason) }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Kind, e.ID) }

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

func invalid(format string, args ...any) error {
	return ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// notFound rewrites a bare repo miss into a NotFoundError for kind.
func notFound(err error, kind string, id int64) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Kind: kind, ID: id}
	}
	return err
}
