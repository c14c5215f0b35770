// Package sqlstore implements durable.Conn on top of database/sql.
//
// Definitions live in semantic_layer._definitions(name PRIMARY KEY,
// definition). DuckDB and PostgreSQL are supported through Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/hupe1980/semview/durable"
)

const (
	// Schema holds the catalog relation.
	Schema = "semantic_layer"
	// Table is the catalog relation name.
	Table = "_definitions"
)

const qualified = Schema + "." + Table

// querier is satisfied by *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Store is a durable.Conn backed by a SQL database.
type Store struct {
	q       querier
	dialect Dialect
	closeFn func() error
	closed  atomic.Bool
}

var _ durable.Conn = (*Store)(nil)

// New wraps a connection pool. Close does not close db.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{q: db, dialect: dialect}
}

// Dedicated pins a single connection from db. Close returns it to the pool.
func Dedicated(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: pin connection: %w", err)
	}
	return &Store{q: conn, dialect: dialect, closeFn: conn.Close}, nil
}

// Opener returns a durable.Opener that pins a dedicated connection from db
// on every call.
func Opener(db *sql.DB, dialect Dialect) durable.Opener {
	return func(ctx context.Context) (durable.Conn, error) {
		return Dedicated(ctx, db, dialect)
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.closed.Load() {
		return durable.ErrClosed
	}
	stmts := []string{
		"CREATE SCHEMA IF NOT EXISTS " + Schema,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (name %s PRIMARY KEY, definition %s NOT NULL)",
			qualified, s.dialect.TextType, s.dialect.TextType),
	}
	for _, stmt := range stmts {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) LoadAll(ctx context.Context) (map[string]string, error) {
	if s.closed.Load() {
		return nil, durable.ErrClosed
	}
	rows, err := s.q.QueryContext(ctx, "SELECT name, definition FROM "+qualified)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: load: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, fmt.Errorf("sqlstore: load: %w", err)
		}
		out[name] = def
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: load: %w", err)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, name, definition string) error {
	if s.closed.Load() {
		return durable.ErrClosed
	}
	_, err := s.q.ExecContext(ctx, "INSERT INTO "+qualified+" (name, definition) VALUES ($1, $2)", name, definition)
	if err != nil {
		if s.dialect.conflict(err) {
			return fmt.Errorf("sqlstore: insert %q: %w", name, durable.ErrConflict)
		}
		return fmt.Errorf("sqlstore: insert %q: %w", name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if s.closed.Load() {
		return durable.ErrClosed
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM "+qualified+" WHERE name = $1", name); err != nil {
		return fmt.Errorf("sqlstore: delete %q: %w", name, err)
	}
	return nil
}

// ReplaceAll rewrites the relation in one transaction. Rows are inserted in
// name order.
func (s *Store) ReplaceAll(ctx context.Context, defs map[string]string) (err error) {
	if s.closed.Load() {
		return durable.ErrClosed
	}
	tx, err := s.q.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+qualified); err != nil {
		return fmt.Errorf("sqlstore: replace: %w", err)
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err = tx.ExecContext(ctx, "INSERT INTO "+qualified+" (name, definition) VALUES ($1, $2)", name, defs[name]); err != nil {
			return fmt.Errorf("sqlstore: replace %q: %w", name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: replace: %w", err)
	}
	return nil
}

func (s *Store) Checkpoint(ctx context.Context) error {
	if s.closed.Load() {
		return durable.ErrClosed
	}
	if s.dialect.CheckpointSQL == "" {
		return nil
	}
	if _, err := s.q.ExecContext(ctx, s.dialect.CheckpointSQL); err != nil {
		return fmt.Errorf("sqlstore: checkpoint: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

// DatabasePath reports the file backing the primary DuckDB database, or
// ":memory:" when it has none.
func DatabasePath(ctx context.Context, db *sql.DB) (string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return "", fmt.Errorf("sqlstore: database_list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	if len(cols) < 3 {
		return "", errors.New("sqlstore: database_list: unexpected column count")
	}

	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(sql.NullString)
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return "", fmt.Errorf("sqlstore: database_list: %w", err)
		}
		if file := dest[2].(*sql.NullString); file.Valid && file.String != "" {
			return file.String, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return MemoryPath, nil
}

// MemoryPath is the path reported for databases without a backing file.
const MemoryPath = ":memory:"
