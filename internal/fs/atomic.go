package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// TempSuffix is appended to a path to form its staging file.
const TempSuffix = ".tmp"

// ErrDirSync is returned by WriteFileAtomic when the new content is already
// in place but the parent directory could not be synced.
var ErrDirSync = errors.New("fs: directory sync failed after rename")

// WriteFileAtomic replaces path with data so that readers observe either
// the previous content or the new content, never a mix.
//
// The data is written to path+TempSuffix, synced, closed and renamed over
// path; the parent directory is synced afterwards. On any failure before
// the rename the staging file is removed and path is left untouched. A
// failed directory sync yields an error matching ErrDirSync; path then
// already holds data.
func WriteFileAtomic(fsys FileSystem, path string, data []byte, perm os.FileMode) (err error) {
	if fsys == nil {
		fsys = Default
	}
	tmp := path + TempSuffix

	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}
		if err != nil {
			_ = fsys.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	err = f.Close()
	f = nil
	if err != nil {
		return err
	}

	if err = fsys.Rename(tmp, path); err != nil {
		return err
	}
	if serr := SyncDir(fsys, filepath.Dir(path)); serr != nil {
		return fmt.Errorf("%w: %w", ErrDirSync, serr)
	}
	return nil
}

// ReadFile reads the whole file through fsys.
func ReadFile(fsys FileSystem, path string) ([]byte, error) {
	if fsys == nil {
		fsys = Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size())
	n, err := f.ReadAt(buf, 0)
	if err != nil && n != len(buf) {
		return nil, err
	}
	return buf[:n], nil
}

// SyncDir fsyncs a directory so that a preceding rename is durable.
// Directories cannot be synced on Windows; that case is a no-op.
func SyncDir(fsys FileSystem, dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := fsys.OpenFile(dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
