package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.semantic_views")

	require.NoError(t, WriteFileAtomic(nil, path, []byte(`{"a":"1"}`), 0o644))
	got, err := ReadFile(nil, path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1"}`, string(got))

	require.NoError(t, WriteFileAtomic(Default, path, []byte(`{}`), 0o644))
	got, err = ReadFile(Default, path)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))

	_, err = os.Stat(path + TempSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFileAtomic_FailureKeepsPrevious(t *testing.T) {
	faults := map[string]Fault{
		"Write":  {FailAfterBytes: 3},
		"Sync":   {FailAfterBytes: -1, FailOnSync: true},
		"Close":  {FailAfterBytes: -1, FailOnClose: true},
		"Rename": {FailAfterBytes: -1, FailOnRename: true},
	}

	for name, fault := range faults {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "views")
			require.NoError(t, WriteFileAtomic(nil, path, []byte("previous"), 0o644))

			ffs := NewFaultyFS(nil)
			if fault.FailOnRename {
				ffs.AddRule("views", fault)
			} else {
				ffs.AddRule(TempSuffix, fault)
			}

			err := WriteFileAtomic(ffs, path, []byte("replacement"), 0o644)
			require.ErrorIs(t, err, ErrInjected)

			got, err := ReadFile(nil, path)
			require.NoError(t, err)
			assert.Equal(t, "previous", string(got))

			_, err = os.Stat(path + TempSuffix)
			assert.True(t, os.IsNotExist(err), "staging file must be removed")
		})
	}
}

func TestWriteFileAtomic_DirSyncFailureKeepsNewContent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directories are not synced on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "views")
	require.NoError(t, WriteFileAtomic(nil, path, []byte("previous"), 0o644))

	ffs := NewFaultyFS(nil)
	ffs.AddRule(dir, Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule(path, Fault{FailAfterBytes: -1})

	err := WriteFileAtomic(ffs, path, []byte("replacement"), 0o644)
	require.ErrorIs(t, err, ErrDirSync)
	assert.ErrorIs(t, err, ErrInjected)

	got, err := ReadFile(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "replacement", string(got))
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(nil, filepath.Join(t.TempDir(), "nope"))
	assert.True(t, os.IsNotExist(err))
}

func TestLock_Exclusive(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("advisory locks are a no-op on windows")
	}
	path := filepath.Join(t.TempDir(), "views.lock")

	unlock, err := Lock(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string

	done := make(chan struct{})
	go func() {
		defer close(done)
		release, err := Lock(path)
		if !assert.NoError(t, err) {
			return
		}
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		assert.NoError(t, release())
	}()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	order = append(order, "first")
	mu.Unlock()
	require.NoError(t, unlock())
	<-done

	assert.Equal(t, []string{"first", "second"}, order)
}
