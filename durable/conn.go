// Package durable defines the storage collaborator that holds the
// persistent copy of the semantic view catalog.
//
// A Conn owns one relation of (name, definition) pairs. Implementations:
//
//   - Memory: in-process, with fault hooks for tests
//   - sqlstore.Store: database/sql (DuckDB, PostgreSQL)
//   - dynamo.Store: Amazon DynamoDB
//
// A Conn is used by one goroutine at a time unless the implementation says
// otherwise. The background writer opens its own Conn through an Opener so
// that durable writes never share a handle with the caller.
package durable

import (
	"context"
	"errors"
)

var (
	// ErrConflict is returned by Insert when the name is already stored.
	ErrConflict = errors.New("definition already stored")

	// ErrClosed is returned by operations on a closed Conn.
	ErrClosed = errors.New("durable connection closed")
)

// Conn is a handle to the durable catalog relation.
type Conn interface {
	// EnsureSchema creates the relation if it does not exist. Idempotent.
	EnsureSchema(ctx context.Context) error

	// LoadAll returns every stored (name, definition) pair.
	LoadAll(ctx context.Context) (map[string]string, error)

	// Insert stores a new definition. Returns ErrConflict if name exists.
	Insert(ctx context.Context, name, definition string) error

	// Delete removes a definition. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// ReplaceAll makes the relation contain exactly the given pairs.
	ReplaceAll(ctx context.Context, defs map[string]string) error

	// Checkpoint flushes buffered writes to stable storage.
	Checkpoint(ctx context.Context) error

	// Close releases the handle.
	Close() error
}

// Opener opens a new, independent Conn.
type Opener func(ctx context.Context) (Conn, error)
