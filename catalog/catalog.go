package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/hupe1980/semview/durable"
	"github.com/hupe1980/semview/model"
)

// SidecarSource supplies a catalog that overrides the durable relation at
// startup whenever the sidecar file exists and has content, even if it
// holds no views.
type SidecarSource interface {
	Read() (defs map[string]string, found bool, err error)
	Path() string
}

// Entry is one row of List.
type Entry struct {
	Name      string
	BaseTable string
}

// Description is the field breakdown of one stored definition. The list
// fields hold compact JSON arrays.
type Description struct {
	Name       string
	BaseTable  string
	Dimensions string
	Metrics    string
	Filters    string
	Joins      string
}

// Options configures Init.
type Options struct {
	Sidecar   SidecarSource
	Persister Persister
	Logger    *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithSidecar sets the sidecar read at Init.
func WithSidecar(src SidecarSource) Option {
	return func(o *Options) { o.Sidecar = src }
}

// WithPersister sets the durability path for Insert and Delete.
func WithPersister(p Persister) Option {
	return func(o *Options) {
		if p != nil {
			o.Persister = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Catalog maps view names to their raw JSON definitions.
type Catalog struct {
	mu    sync.RWMutex
	views map[string]string

	persister Persister
	logger    *slog.Logger
}

// New returns an empty catalog with no durable backing beyond the given
// persister.
func New(optFns ...Option) *Catalog {
	opts := applyOptions(optFns)
	return &Catalog{
		views:     make(map[string]string),
		persister: opts.Persister,
		logger:    opts.Logger,
	}
}

// Init ensures the durable relation exists and loads it. When a sidecar is
// configured and its file exists with content, the sidecar wins and the
// relation is rewritten to match it, including to an empty catalog. A sidecar that cannot be read is logged and
// ignored. Init is safe to call repeatedly on the same conn.
func Init(ctx context.Context, conn durable.Conn, optFns ...Option) (*Catalog, error) {
	opts := applyOptions(optFns)

	if err := conn.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("catalog: ensure schema: %w", err)
	}
	views, err := conn.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load definitions: %w", err)
	}

	if opts.Sidecar != nil {
		side, found, err := opts.Sidecar.Read()
		switch {
		case err != nil:
			opts.Logger.WarnContext(ctx, "ignoring unreadable sidecar", "path", opts.Sidecar.Path(), "error", err)
		case found:
			if err := conn.ReplaceAll(ctx, side); err != nil {
				return nil, fmt.Errorf("catalog: sync table from sidecar: %w", err)
			}
			opts.Logger.InfoContext(ctx, "catalog restored from sidecar", "path", opts.Sidecar.Path(), "views", len(side))
			views = side
		}
	}

	if views == nil {
		views = make(map[string]string)
	}
	return &Catalog{
		views:     views,
		persister: opts.Persister,
		logger:    opts.Logger,
	}, nil
}

func applyOptions(optFns []Option) Options {
	opts := Options{
		Persister: NoopPersister{},
		Logger:    slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Insert validates and durably registers a new view.
func (c *Catalog) Insert(ctx context.Context, name, definition string) error {
	if _, err := model.ParseString(name, definition); err != nil {
		return err
	}

	c.mu.RLock()
	_, exists := c.views[name]
	c.mu.RUnlock()
	if exists {
		return &AlreadyExistsError{Name: name}
	}

	if err := c.persister.PersistInsert(ctx, name, definition); err != nil {
		if errors.Is(err, durable.ErrConflict) {
			return &AlreadyExistsError{Name: name}
		}
		return &PersistError{Name: name, cause: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Persisters that cannot detect a conflicting insert let a racing
	// duplicate reach this point; the first one stays.
	if _, exists := c.views[name]; exists {
		return &AlreadyExistsError{Name: name}
	}
	c.views[name] = definition
	return nil
}

// Delete durably removes a view.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	c.mu.RLock()
	_, exists := c.views[name]
	c.mu.RUnlock()
	if !exists {
		return &NotFoundError{Name: name}
	}

	if err := c.persister.PersistDelete(ctx, name); err != nil {
		return &PersistError{Name: name, cause: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent Delete of the same name may have won while this one was
	// persisting; only one caller observes the view as present.
	if _, exists := c.views[name]; !exists {
		return &NotFoundError{Name: name}
	}
	delete(c.views, name)
	return nil
}

// Get returns the stored JSON text exactly as it was inserted.
func (c *Catalog) Get(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.views[name]
	if !ok {
		return "", &NotFoundError{Name: name}
	}
	return def, nil
}

// Contains reports whether name is registered.
func (c *Catalog) Contains(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.views[name]
	return ok
}

// List returns every view with its base table, sorted by name.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	entries := make([]Entry, 0, len(c.views))
	for name, def := range c.views {
		entries = append(entries, Entry{Name: name, BaseTable: model.BaseTableOf([]byte(def))})
	}
	c.mu.RUnlock()

	slices.SortFunc(entries, func(a, b Entry) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return entries
}

// Describe returns the field breakdown of one view.
func (c *Catalog) Describe(name string) (*Description, error) {
	def, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	fields, err := model.RawFields([]byte(def))
	if err != nil {
		return nil, fmt.Errorf("describe semantic view '%s': %w", name, err)
	}
	return &Description{
		Name:       name,
		BaseTable:  model.BaseTableOf([]byte(def)),
		Dimensions: compactArray(fields["dimensions"]),
		Metrics:    compactArray(fields["metrics"]),
		Filters:    compactArray(fields["filters"]),
		Joins:      compactArray(fields["joins"]),
	}, nil
}

// Names returns the registered names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	names := slices.Collect(maps.Keys(c.views))
	c.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Len returns the number of registered views.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.views)
}

// Snapshot returns a copy of the catalog.
func (c *Catalog) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.views)
}

func compactArray(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "[]"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
