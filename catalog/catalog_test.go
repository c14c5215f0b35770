package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/semview/durable"
	"github.com/hupe1980/semview/internal/sidecar"
	"github.com/hupe1980/semview/internal/writer"
	"github.com/hupe1980/semview/model"
)

const ordersJSON = `{"base_table":"orders","dimensions":[{"name":"region","expr":"region"}],"metrics":[{"name":"total_revenue","expr":"sum(amount)"}]}`

func TestInit_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn := durable.NewMemory()

	c1, err := Init(ctx, conn)
	require.NoError(t, err)
	require.NoError(t, c1.Insert(ctx, "orders", ordersJSON))
	require.NoError(t, conn.Insert(ctx, "orders", ordersJSON))

	c2, err := Init(ctx, conn)
	require.NoError(t, err)
	c3, err := Init(ctx, conn)
	require.NoError(t, err)

	assert.Equal(t, c2.Snapshot(), c3.Snapshot())
	assert.Equal(t, map[string]string{"orders": ordersJSON}, c3.Snapshot())
}

func TestInit_Errors(t *testing.T) {
	ctx := context.Background()
	conn := durable.NewMemory()
	require.NoError(t, conn.Close())

	_, err := Init(ctx, conn)
	assert.ErrorIs(t, err, durable.ErrClosed)
}

func TestInit_SidecarWins(t *testing.T) {
	ctx := context.Background()
	conn := durable.NewMemory()
	require.NoError(t, conn.Insert(ctx, "stale", ordersJSON))

	file := sidecar.NewFile(filepath.Join(t.TempDir(), "db.duckdb"+sidecar.Suffix))
	require.NoError(t, file.Write(map[string]string{"fresh": ordersJSON}))

	c, err := Init(ctx, conn, WithSidecar(file))
	require.NoError(t, err)

	assert.Equal(t, []string{"fresh"}, c.Names())
	assert.Equal(t, map[string]string{"fresh": ordersJSON}, conn.Table().Rows(), "table resynchronized")
	assert.Equal(t, []string{"insert:stale", "replace"}, conn.Table().History())
}

func TestInit_ZeroByteSidecarKeepsTable(t *testing.T) {
	ctx := context.Background()
	conn := durable.NewMemory()
	require.NoError(t, conn.Insert(ctx, "orders", ordersJSON))

	path := filepath.Join(t.TempDir(), "db"+sidecar.Suffix)
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	c, err := Init(ctx, conn, WithSidecar(sidecar.NewFile(path)))
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, c.Names())
	assert.Equal(t, []string{"insert:orders"}, conn.Table().History())
}

func TestInit_EmptySidecarObjectWins(t *testing.T) {
	ctx := context.Background()
	conn := durable.NewMemory()
	require.NoError(t, conn.Insert(ctx, "orders", ordersJSON))

	path := filepath.Join(t.TempDir(), "db"+sidecar.Suffix)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	c, err := Init(ctx, conn, WithSidecar(sidecar.NewFile(path)))
	require.NoError(t, err)
	assert.Empty(t, c.Names())
	assert.Empty(t, conn.Table().Rows())
	assert.Equal(t, []string{"insert:orders", "replace"}, conn.Table().History())
}

func TestSidecar_DropLastViewSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	table := durable.NewTable()
	path := filepath.Join(t.TempDir(), "db.duckdb"+sidecar.Suffix)

	restart := func() *Catalog {
		file := sidecar.NewFile(path)
		p := sidecar.NewPersister(file, nil, nil)
		c, err := Init(ctx, table.Conn(), WithSidecar(file), WithPersister(p))
		require.NoError(t, err)
		p.Reset(c.Snapshot())
		return c
	}

	c := restart()
	require.NoError(t, c.Insert(ctx, "orders", ordersJSON))

	c = restart()
	require.True(t, c.Contains("orders"))
	require.NoError(t, c.Delete(ctx, "orders"))

	c = restart()
	assert.False(t, c.Contains("orders"))
	_, err := c.Get("orders")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, table.Rows())
}

func TestInit_CorruptSidecarIgnored(t *testing.T) {
	ctx := context.Background()
	conn := durable.NewMemory()
	require.NoError(t, conn.Insert(ctx, "orders", ordersJSON))

	path := filepath.Join(t.TempDir(), "db"+sidecar.Suffix)
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	c, err := Init(ctx, conn, WithSidecar(sidecar.NewFile(path)))
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, c.Names())
}

func TestInit_SidecarResyncFailure(t *testing.T) {
	ctx := context.Background()
	conn := durable.NewMemory()
	boom := errors.New("read-only database")
	conn.Table().SetFaults(durable.Faults{ReplaceAll: boom})

	file := sidecar.NewFile(filepath.Join(t.TempDir(), "db"+sidecar.Suffix))
	require.NoError(t, file.Write(map[string]string{"v": ordersJSON}))

	_, err := Init(ctx, conn, WithSidecar(file))
	assert.ErrorIs(t, err, boom)
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	c := New()

	require.NoError(t, c.Insert(ctx, "orders", ordersJSON))
	got, err := c.Get("orders")
	require.NoError(t, err)
	assert.Equal(t, ordersJSON, got)

	err = c.Insert(ctx, "orders", ordersJSON)
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Contains(t, err.Error(), "already exists")

	err = c.Insert(ctx, "bad", `{"base_table":"orders"}`)
	require.ErrorIs(t, err, model.ErrInvalidDefinition)
	assert.False(t, c.Contains("bad"))
	assert.Equal(t, 1, c.Len())
}

func TestInsert_PreservesBytes(t *testing.T) {
	ctx := context.Background()
	c := New()
	raw := "{ \"base_table\" : \"t\",\n \"dimensions\": [], \"metrics\": [] }"
	require.NoError(t, c.Insert(ctx, "t", raw))
	got, err := c.Get("t")
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := New()

	err := c.Delete(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "does not exist")

	require.NoError(t, c.Insert(ctx, "orders", ordersJSON))
	require.NoError(t, c.Delete(ctx, "orders"))

	_, err = c.Get("orders")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, "orders"), ErrNotFound)
}

type failingPersister struct {
	err error
}

func (f failingPersister) PersistInsert(context.Context, string, string) error { return f.err }
func (f failingPersister) PersistDelete(context.Context, string) error         { return f.err }

func TestPersistFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	c := New()
	require.NoError(t, c.Insert(ctx, "kept", ordersJSON))
	c.persister = failingPersister{err: boom}

	err := c.Insert(ctx, "lost", ordersJSON)
	require.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "persist semantic view 'lost': disk full")
	assert.False(t, c.Contains("lost"))

	err = c.Delete(ctx, "kept")
	require.ErrorIs(t, err, boom)
	assert.True(t, c.Contains("kept"))
}

func TestDurableConflictIsAlreadyExists(t *testing.T) {
	ctx := context.Background()
	c := New(WithPersister(failingPersister{err: durable.ErrConflict}))
	assert.ErrorIs(t, c.Insert(ctx, "orders", ordersJSON), ErrAlreadyExists)
}

func TestWithWriter(t *testing.T) {
	ctx := context.Background()
	table := durable.NewTable()
	conn := table.Conn()

	w, err := writer.Start(ctx, table.Opener())
	require.NoError(t, err)

	c, err := Init(ctx, conn, WithPersister(w))
	require.NoError(t, err)
	require.NoError(t, c.Insert(ctx, "orders", ordersJSON))
	require.NoError(t, c.Insert(ctx, "tmp", ordersJSON))
	require.NoError(t, c.Delete(ctx, "tmp"))
	assert.Equal(t, map[string]string{"orders": ordersJSON}, table.Rows())

	require.NoError(t, w.Close())

	err = c.Insert(ctx, "late", ordersJSON)
	require.ErrorIs(t, err, writer.ErrWriterGone)
	assert.False(t, c.Contains("late"))

	// Restart: a new catalog sees what the writer committed.
	c2, err := Init(ctx, table.Conn())
	require.NoError(t, err)
	assert.Equal(t, c.Snapshot(), c2.Snapshot())
}

func TestWithSidecarPersister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.duckdb"+sidecar.Suffix)
	file := sidecar.NewFile(path)
	p := sidecar.NewPersister(file, nil, nil)

	c, err := Init(ctx, durable.NewMemory(), WithSidecar(file), WithPersister(p))
	require.NoError(t, err)
	require.NoError(t, c.Insert(ctx, "a", ordersJSON))
	require.NoError(t, c.Insert(ctx, "b", ordersJSON))
	require.NoError(t, c.Delete(ctx, "a"))

	// A fresh table picks the catalog up from the sidecar.
	conn := durable.NewMemory()
	c2, err := Init(ctx, conn, WithSidecar(sidecar.NewFile(path)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, c2.Names())
	assert.Equal(t, map[string]string{"b": ordersJSON}, conn.Table().Rows())
}

func TestList(t *testing.T) {
	ctx := context.Background()
	c := New()
	assert.Empty(t, c.List())

	require.NoError(t, c.Insert(ctx, "zeta", `{"base_table":"z","dimensions":[],"metrics":[]}`))
	require.NoError(t, c.Insert(ctx, "alpha", `{"base_table":"a","dimensions":[],"metrics":[]}`))
	require.NoError(t, c.Insert(ctx, "Mid", `{"base_table":"m","dimensions":[],"metrics":[]}`))

	assert.Equal(t, []Entry{
		{Name: "Mid", BaseTable: "m"},
		{Name: "alpha", BaseTable: "a"},
		{Name: "zeta", BaseTable: "z"},
	}, c.List())
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	c := New()
	def := `{
		"base_table": "orders",
		"dimensions": [ {"name": "region", "expr": "region", "source_table": "customers"} ],
		"metrics": [ {"name": "n", "expr": "count(*)"} ],
		"joins": [ {"table": "customers", "on": "orders.cid = customers.id"} ]
	}`
	require.NoError(t, c.Insert(ctx, "orders", def))

	d, err := c.Describe("orders")
	require.NoError(t, err)
	assert.Equal(t, &Description{
		Name:       "orders",
		BaseTable:  "orders",
		Dimensions: `[{"name":"region","expr":"region","source_table":"customers"}]`,
		Metrics:    `[{"name":"n","expr":"count(*)"}]`,
		Filters:    `[]`,
		Joins:      `[{"table":"customers","on":"orders.cid = customers.id"}]`,
	}, d)

	_, err = c.Describe("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	table := durable.NewTable()
	w, err := writer.Start(ctx, table.Opener(), writer.WithQueueSize(4))
	require.NoError(t, err)
	defer w.Close()

	c, err := Init(ctx, table.Conn(), WithPersister(w))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("v%d", i)
			assert.NoError(t, c.Insert(ctx, name, ordersJSON))
			if i%2 == 0 {
				assert.NoError(t, c.Delete(ctx, name))
			}
		}(i)
		go func() {
			defer wg.Done()
			_ = c.List()
			_ = c.Names()
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, c.Len())
	assert.Equal(t, c.Snapshot(), table.Rows())
}

func TestConcurrentDuplicateInsert(t *testing.T) {
	ctx := context.Background()
	table := durable.NewTable()
	w, err := writer.Start(ctx, table.Opener())
	require.NoError(t, err)
	defer w.Close()

	c, err := Init(ctx, table.Conn(), WithPersister(w))
	require.NoError(t, err)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { errs <- c.Insert(ctx, "same", ordersJSON) }()
	}
	var ok int
	for i := 0; i < n; i++ {
		if err := <-errs; err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyExists)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, []string{"insert:same"}, table.History())
}

// gatedPersister blocks every delete until the gate is released.
type gatedPersister struct {
	NoopPersister
	entered chan struct{}
	gate    chan struct{}
}

func (p *gatedPersister) PersistDelete(ctx context.Context, name string) error {
	p.entered <- struct{}{}
	<-p.gate
	return nil
}

func TestConcurrentDuplicateDelete(t *testing.T) {
	ctx := context.Background()
	p := &gatedPersister{entered: make(chan struct{}, 2), gate: make(chan struct{})}
	c := New(WithPersister(p))
	require.NoError(t, c.Insert(ctx, "orders", ordersJSON))

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- c.Delete(ctx, "orders") }()
	}
	// Both deletes pass the presence check before either commits.
	<-p.entered
	<-p.entered
	close(p.gate)

	var ok int
	for i := 0; i < 2; i++ {
		if err := <-errs; err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrNotFound)
		}
	}
	assert.Equal(t, 1, ok)
	assert.False(t, c.Contains("orders"))
}
