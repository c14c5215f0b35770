package semview

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/semview/catalog"
	"github.com/hupe1980/semview/expand"
	"github.com/hupe1980/semview/internal/writer"
	"github.com/hupe1980/semview/model"
)

var (
	// ErrNotFound is returned when a view is not registered.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when defining a name that is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidDefinition is returned when a definition fails to parse.
	ErrInvalidDefinition = errors.New("invalid definition")

	// ErrInvalidRequest is returned when a request cannot be expanded
	// against its view.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmptyRequest is matched by *EmptyRequestError.
	ErrEmptyRequest = errors.New("empty request")

	// ErrWriterGone is returned when the background persistence writer has
	// stopped.
	ErrWriterGone = errors.New("persistence writer is gone")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("semview: closed")

	// ErrNoHost is returned by Query and Explain when Open was given no
	// *sql.DB to execute against.
	ErrNoHost = errors.New("semview: no host database")
)

// ViewNotFoundError is returned by Expand, Query and Explain for an unknown view.
type ViewNotFoundError struct {
	Name       string
	Suggestion string
	Available  []string
}

func (e *ViewNotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Semantic view '%s' not found.", e.Name)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " Did you mean '%s'?", e.Suggestion)
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, " Available views: [%s].", strings.Join(e.Available, ", "))
	}
	return b.String()
}

func (e *ViewNotFoundError) Is(target error) bool { return target == ErrNotFound }

// EmptyRequestError is returned when a request names no dimensions and no
// metrics.
type EmptyRequestError struct {
	View string
}

func (e *EmptyRequestError) Error() string {
	return fmt.Sprintf("semantic view '%s': specify at least one dimension or metric", e.View)
}

func (e *EmptyRequestError) Is(target error) bool { return target == ErrEmptyRequest }

// SQLExecutionError is returned when the host database rejects expanded SQL.
//
// The driver error can be accessed via errors.Unwrap.
type SQLExecutionError struct {
	SQL   string
	cause error
}

func (e *SQLExecutionError) Error() string {
	return fmt.Sprintf("SQL execution failed: %v\nExpanded SQL:\n%s", e.cause, e.SQL)
}

func (e *SQLExecutionError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, catalog.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case errors.Is(err, model.ErrInvalidDefinition):
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	case errors.Is(err, writer.ErrWriterGone):
		return fmt.Errorf("%w: %w", ErrWriterGone, err)
	}

	// Request validation.
	for _, target := range []error{
		expand.ErrEmptyMetrics,
		expand.ErrUnknownDimension,
		expand.ErrUnknownMetric,
		expand.ErrDuplicateDimension,
		expand.ErrDuplicateMetric,
	} {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	return err
}
