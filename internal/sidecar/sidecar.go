// Package sidecar persists the catalog as one JSON object in a file next to
// the database file, without issuing any SQL.
//
// For /data/analytics.duckdb the sidecar is /data/analytics.duckdb.semantic_views.
// Every write replaces the whole file atomically under an advisory lock, so
// a crash leaves either the previous or the new catalog on disk.
package sidecar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"sync"

	"github.com/hupe1980/semview/codec"
	"github.com/hupe1980/semview/durable"
	"github.com/hupe1980/semview/internal/fs"
)

// Suffix is appended to the database path to form the sidecar path.
const Suffix = ".semantic_views"

// ErrCorrupt is returned by Read when the file exists but does not decode.
var ErrCorrupt = errors.New("sidecar: corrupt file")

// Path returns the sidecar path for a database path, or "" for databases
// without a backing file.
func Path(storePath string) string {
	if storePath == "" || storePath == ":memory:" {
		return ""
	}
	return storePath + Suffix
}

// File reads and writes one sidecar file.
type File struct {
	path  string
	fs    fs.FileSystem
	codec codec.Codec
}

// Option configures a File.
type Option func(*File)

// WithFileSystem sets the filesystem used for reads and writes.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(f *File) {
		if fsys != nil {
			f.fs = fsys
		}
	}
}

// WithCodec sets the codec for the JSON object.
func WithCodec(c codec.Codec) Option {
	return func(f *File) {
		if c != nil {
			f.codec = c
		}
	}
}

// NewFile returns a File for the sidecar at path.
func NewFile(path string, optFns ...Option) *File {
	f := &File{path: path, fs: fs.Default, codec: codec.Default}
	for _, fn := range optFns {
		fn(f)
	}
	return f
}

// Path returns the sidecar file path.
func (f *File) Path() string { return f.path }

// Read returns the stored catalog and whether the file holds one. A missing
// or zero-byte file yields an empty map and found == false; a file holding
// "{}" is found and empty. A file that does not decode yields an error
// matching ErrCorrupt.
func (f *File) Read() (defs map[string]string, found bool, err error) {
	data, err := fs.ReadFile(f.fs, f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, false, nil
		}
		return nil, false, fmt.Errorf("sidecar: read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return map[string]string{}, false, nil
	}
	if err := f.codec.Unmarshal(data, &defs); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrCorrupt, f.path, err)
	}
	if defs == nil {
		defs = map[string]string{}
	}
	return defs, true, nil
}

// Write replaces the file with defs.
func (f *File) Write(defs map[string]string) error {
	data, err := f.codec.Marshal(defs)
	if err != nil {
		return fmt.Errorf("sidecar: encode: %w", err)
	}

	unlock, err := fs.Lock(f.path + ".lock")
	if err != nil {
		return fmt.Errorf("sidecar: lock %s: %w", f.path, err)
	}
	defer func() { _ = unlock() }()

	if err := fs.WriteFileAtomic(f.fs, f.path, data, 0o644); err != nil {
		return fmt.Errorf("sidecar: write %s: %w", f.path, err)
	}
	return nil
}

// Persister writes the full catalog to a sidecar File on every mutation.
//
// It keeps its own copy of the last committed catalog; a mutation is applied
// to a clone, written, and only then committed. Calls are serialized.
type Persister struct {
	file   *File
	logger *slog.Logger

	mu        sync.Mutex
	committed map[string]string
}

// NewPersister returns a Persister whose committed state starts as initial.
func NewPersister(file *File, initial map[string]string, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := maps.Clone(initial)
	if c == nil {
		c = map[string]string{}
	}
	return &Persister{file: file, committed: c, logger: logger}
}

// PersistInsert writes the catalog with name added. It returns
// durable.ErrConflict if name is already committed.
func (p *Persister) PersistInsert(ctx context.Context, name, definition string) error {
	return p.apply(ctx, func(m map[string]string) error {
		if _, ok := m[name]; ok {
			return durable.ErrConflict
		}
		m[name] = definition
		return nil
	})
}

// PersistDelete writes the catalog with name removed.
func (p *Persister) PersistDelete(ctx context.Context, name string) error {
	return p.apply(ctx, func(m map[string]string) error {
		delete(m, name)
		return nil
	})
}

// Reset replaces the committed state without writing.
func (p *Persister) Reset(defs map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.committed = maps.Clone(defs)
	if p.committed == nil {
		p.committed = map[string]string{}
	}
}

// Committed returns a copy of the last successfully written catalog.
func (p *Persister) Committed() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.committed)
}

func (p *Persister) apply(ctx context.Context, mutate func(map[string]string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	next := maps.Clone(p.committed)
	if err := mutate(next); err != nil {
		return err
	}
	if err := p.file.Write(next); err != nil {
		if !errors.Is(err, fs.ErrDirSync) {
			p.logger.ErrorContext(ctx, "sidecar write failed", "path", p.file.Path(), "error", err)
			return err
		}
		// The new file is in place and is what the next Init reads.
		p.logger.WarnContext(ctx, "sidecar directory sync failed", "path", p.file.Path(), "error", err)
	}
	p.committed = next
	p.logger.DebugContext(ctx, "sidecar written", "path", p.file.Path(), "views", len(next))
	return nil
}
