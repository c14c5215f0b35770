package sidecar

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/semview/codec"
	"github.com/hupe1980/semview/durable"
	"github.com/hupe1980/semview/internal/fs"
)

func TestPath(t *testing.T) {
	assert.Equal(t, "/data/analytics.duckdb.semantic_views", Path("/data/analytics.duckdb"))
	assert.Equal(t, "/data/analytics.semantic_views", Path("/data/analytics"))
	assert.Equal(t, "", Path(":memory:"))
	assert.Equal(t, "", Path(""))
}

func TestFile_Read(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing", func(t *testing.T) {
		defs, found, err := NewFile(filepath.Join(dir, "missing")).Read()
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, defs)
	})

	t.Run("Empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		defs, found, err := NewFile(path).Read()
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, defs)
	})

	t.Run("EmptyObject", func(t *testing.T) {
		path := filepath.Join(dir, "empty-object")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		defs, found, err := NewFile(path).Read()
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, defs)
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, found, err := NewFile(path).Read()
		assert.ErrorIs(t, err, ErrCorrupt)
		assert.False(t, found)
	})

	t.Run("NullObject", func(t *testing.T) {
		path := filepath.Join(dir, "null")
		require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))
		defs, found, err := NewFile(path).Read()
		require.NoError(t, err)
		assert.True(t, found)
		assert.NotNil(t, defs)
		assert.Empty(t, defs)
	})
}

func TestFile_WriteRead(t *testing.T) {
	path := Path(filepath.Join(t.TempDir(), "db.duckdb"))
	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			f := NewFile(path, WithCodec(c))
			want := map[string]string{
				"orders": `{"base_table":"orders","dimensions":[],"metrics":[]}`,
				"quoted": `{"base_table":"a\"b"}`,
			}
			require.NoError(t, f.Write(want))

			got, found, err := f.Read()
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, want, got)

			_, err = os.Stat(path + fs.TempSuffix)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestPersister(t *testing.T) {
	ctx := context.Background()
	path := Path(filepath.Join(t.TempDir(), "db.duckdb"))
	f := NewFile(path)
	p := NewPersister(f, map[string]string{"seed": "{}"}, nil)

	require.NoError(t, p.PersistInsert(ctx, "a", `{"a":1}`))
	require.NoError(t, p.PersistInsert(ctx, "b", `{"b":1}`))
	require.NoError(t, p.PersistDelete(ctx, "seed"))

	got, _, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": `{"a":1}`, "b": `{"b":1}`}, got)
	assert.Equal(t, got, p.Committed())
}

func TestPersister_FailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	path := Path(filepath.Join(t.TempDir(), "db.duckdb"))
	ffs := fs.NewFaultyFS(nil)
	f := NewFile(path, WithFileSystem(ffs))
	p := NewPersister(f, nil, nil)

	require.NoError(t, p.PersistInsert(ctx, "kept", "{}"))

	for _, fault := range []fs.Fault{
		{FailAfterBytes: 1},
		{FailAfterBytes: -1, FailOnSync: true},
		{FailAfterBytes: -1, FailOnRename: true},
	} {
		ffs.ClearRules()
		ffs.AddRule(Suffix, fault)

		err := p.PersistInsert(ctx, "lost", "{}")
		require.ErrorIs(t, err, fs.ErrInjected)

		got, _, err := NewFile(path).Read()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"kept": "{}"}, got)
		assert.Equal(t, map[string]string{"kept": "{}"}, p.Committed())
	}
}

func TestPersister_DirSyncFailureCommits(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := Path(filepath.Join(dir, "db.duckdb"))
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(dir, fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule(path, fs.Fault{FailAfterBytes: -1})
	p := NewPersister(NewFile(path, WithFileSystem(ffs)), nil, nil)

	require.NoError(t, p.PersistInsert(ctx, "orders", "{}"))

	got, found, err := NewFile(path).Read()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]string{"orders": "{}"}, got)
	assert.Equal(t, got, p.Committed())
}

func TestPersister_Concurrent(t *testing.T) {
	ctx := context.Background()
	path := Path(filepath.Join(t.TempDir(), "db.duckdb"))
	f := NewFile(path)
	p := NewPersister(f, nil, nil)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			assert.NoError(t, p.PersistInsert(ctx, n, `"`+n+`"`))
		}(n)
	}
	wg.Wait()

	got, _, err := f.Read()
	require.NoError(t, err)
	assert.Len(t, got, len(names))
}

func TestPersister_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPersister(NewFile(filepath.Join(t.TempDir(), "x"+Suffix)), nil, nil)
	assert.ErrorIs(t, p.PersistInsert(ctx, "a", "{}"), context.Canceled)
	assert.Empty(t, p.Committed())
}

func TestPersister_InsertConflict(t *testing.T) {
	ctx := context.Background()
	p := NewPersister(NewFile(filepath.Join(t.TempDir(), "db"+Suffix)), map[string]string{"a": "{}"}, nil)
	assert.ErrorIs(t, p.PersistInsert(ctx, "a", `{"x":1}`), durable.ErrConflict)
	assert.Equal(t, map[string]string{"a": "{}"}, p.Committed())
}
