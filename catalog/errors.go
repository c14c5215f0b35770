package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned by Insert for a name already in the catalog.
	ErrAlreadyExists = errors.New("semantic view already exists")

	// ErrNotFound is returned for a name not in the catalog.
	ErrNotFound = errors.New("semantic view not found")
)

// AlreadyExistsError reports an Insert of a registered name.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("semantic view '%s' already exists; drop it first", e.Name)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// NotFoundError reports a lookup or Delete of an unregistered name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("semantic view '%s' does not exist", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PersistError wraps a durability failure. The catalog is unchanged.
type PersistError struct {
	Name  string
	cause error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist semantic view '%s': %v", e.Name, e.cause)
}

func (e *PersistError) Unwrap() error { return e.cause }
