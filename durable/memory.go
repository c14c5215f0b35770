package durable

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
)

// Memory is an in-process Conn backed by a shared Table.
// It is safe for concurrent use.
type Memory struct {
	table  *Table
	closed atomic.Bool
}

// Table is the shared state behind one or more Memory connections, the
// way several handles see one database file.
type Table struct {
	mu      sync.Mutex
	rows    map[string]string
	schema  bool
	faults  Faults
	history []string

	checkpoints atomic.Int64
}

// Faults injects errors into Memory operations. A nil field means no fault.
type Faults struct {
	Insert     error
	Delete     error
	ReplaceAll error
	Checkpoint error
	Open       error
}

// NewTable creates an empty shared table.
func NewTable() *Table {
	return &Table{rows: make(map[string]string)}
}

// NewMemory opens a connection to a fresh table.
func NewMemory() *Memory {
	return NewTable().Conn()
}

// Conn opens a new connection to the table.
func (t *Table) Conn() *Memory {
	return &Memory{table: t}
}

// Opener returns an Opener that connects to the table.
func (t *Table) Opener() Opener {
	return func(context.Context) (Conn, error) {
		t.mu.Lock()
		err := t.faults.Open
		t.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return t.Conn(), nil
	}
}

// SetFaults replaces the injected faults.
func (t *Table) SetFaults(f Faults) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faults = f
}

// Rows returns a copy of the stored pairs.
func (t *Table) Rows() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.rows)
}

// History returns the applied mutations in order, as "insert:<name>",
// "delete:<name>" or "replace".
func (t *Table) History() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.history...)
}

// Checkpoints returns how many checkpoints have succeeded.
func (t *Table) Checkpoints() int64 {
	return t.checkpoints.Load()
}

// Table returns the shared table behind the connection.
func (m *Memory) Table() *Table { return m.table }

func (m *Memory) EnsureSchema(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.table.mu.Lock()
	defer m.table.mu.Unlock()
	m.table.schema = true
	return nil
}

func (m *Memory) LoadAll(ctx context.Context) (map[string]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	return m.table.Rows(), nil
}

func (m *Memory) Insert(ctx context.Context, name, definition string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	t := m.table
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.faults.Insert != nil {
		return t.faults.Insert
	}
	if _, ok := t.rows[name]; ok {
		return ErrConflict
	}
	t.rows[name] = definition
	t.history = append(t.history, "insert:"+name)
	return nil
}

func (m *Memory) Delete(ctx context.Context, name string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	t := m.table
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.faults.Delete != nil {
		return t.faults.Delete
	}
	delete(t.rows, name)
	t.history = append(t.history, "delete:"+name)
	return nil
}

func (m *Memory) ReplaceAll(ctx context.Context, defs map[string]string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	t := m.table
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.faults.ReplaceAll != nil {
		return t.faults.ReplaceAll
	}
	t.rows = maps.Clone(defs)
	if t.rows == nil {
		t.rows = make(map[string]string)
	}
	t.history = append(t.history, "replace")
	return nil
}

func (m *Memory) Checkpoint(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.table.mu.Lock()
	err := m.table.faults.Checkpoint
	m.table.mu.Unlock()
	if err != nil {
		return err
	}
	m.table.checkpoints.Add(1)
	return nil
}

func (m *Memory) Close() error {
	m.closed.Store(true)
	return nil
}
