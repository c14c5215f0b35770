package semview

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hupe1980/semview/catalog"
	"github.com/hupe1980/semview/codec"
	"github.com/hupe1980/semview/durable/sqlstore"
	"github.com/hupe1980/semview/expand"
	"github.com/hupe1980/semview/internal/cache"
	"github.com/hupe1980/semview/internal/resource"
	"github.com/hupe1980/semview/internal/writer"
	"github.com/hupe1980/semview/model"
)

// QueryRequest selects dimensions and metrics of a view by name.
type QueryRequest = model.QueryRequest

// View is one row of List.
type View = catalog.Entry

// Description is the field breakdown returned by Describe.
type Description = catalog.Description

// WriterStats is a snapshot of the background writer's counters.
type WriterStats = writer.Stats

// DB is a semantic layer attached to one host database.
//
// All methods are safe for concurrent use.
type DB struct {
	host      *sql.DB
	dialect   sqlstore.Dialect
	storePath string
	mode      Durability

	catalog *catalog.Catalog
	writer  *writer.Writer
	defs    *cache.Definitions
	rc      *resource.Controller

	codec             codec.Codec
	backupCompression Compression
	metrics           MetricsCollector
	logger            *Logger

	closed atomic.Bool
}

// Open attaches a semantic layer to host and loads the stored definitions.
//
// host may be nil when definitions live in a store set by WithCatalogStore;
// Query and Explain then return ErrNoHost.
func Open(ctx context.Context, host *sql.DB, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)

	storePath := o.storePath
	if storePath == "" && host != nil && o.dialect.Name == sqlstore.DuckDB.Name {
		p, err := sqlstore.DatabasePath(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("semview: resolve database path: %w", err)
		}
		storePath = p
	}
	if storePath == "" {
		storePath = sqlstore.MemoryPath
	}

	rc := resource.NewController(o.limits)
	db := &DB{
		host:      host,
		dialect:   o.dialect,
		storePath: storePath,
		mode:      o.durability.resolve(storePath, o.catalogStore != nil),
		defs:      cache.NewDefinitions(o.definitionCacheSize, rc),
		rc:        rc,
		codec:     o.codec,
		metrics:   o.metricsCollector,
		logger:    o.logger,

		backupCompression: o.backupCompression,
	}

	s, err := openCatalog(ctx, db, o)
	if err != nil {
		return nil, translateError(err)
	}
	db.catalog = s.catalog
	db.writer = s.writer

	db.logger.LogInit(ctx, storePath, db.mode, db.catalog.Len())
	return db, nil
}

// Durability reports the resolved durability mode.
func (db *DB) Durability() Durability { return db.mode }

// StorePath reports the database file path, or ":memory:".
func (db *DB) StorePath() string { return db.storePath }

// Define registers a view. It returns a confirmation message once the
// definition is durable.
func (db *DB) Define(ctx context.Context, name, definition string) (string, error) {
	start := time.Now()
	err := db.checkOpen()
	if err == nil {
		err = translateError(db.catalog.Insert(ctx, name, definition))
	}
	db.metrics.RecordDefine(time.Since(start), err)
	db.logger.LogDefine(ctx, name, err)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Semantic view '%s' registered successfully", name), nil
}

// Drop removes a view. It returns a confirmation message once the removal
// is durable.
func (db *DB) Drop(ctx context.Context, name string) (string, error) {
	start := time.Now()
	err := db.checkOpen()
	if err == nil {
		err = translateError(db.catalog.Delete(ctx, name))
	}
	if err == nil {
		db.defs.Forget(name)
	}
	db.metrics.RecordDrop(time.Since(start), err)
	db.logger.LogDrop(ctx, name, err)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Semantic view '%s' removed successfully", name), nil
}

// List returns every registered view sorted by name.
func (db *DB) List() ([]View, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.catalog.List(), nil
}

// Describe returns the field breakdown of a view.
func (db *DB) Describe(name string) (*Description, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	d, err := db.catalog.Describe(name)
	return d, translateError(err)
}

// Get returns the stored definition of a view byte for byte.
func (db *DB) Get(name string) (string, error) {
	if err := db.checkOpen(); err != nil {
		return "", err
	}
	raw, err := db.catalog.Get(name)
	return raw, translateError(err)
}

// Expand returns the SQL for req against view without executing it.
func (db *DB) Expand(ctx context.Context, view string, req QueryRequest) (string, error) {
	start := time.Now()
	sqlText, err := db.expand(view, req)
	db.metrics.RecordExpand(time.Since(start), err)
	db.logger.LogExpand(ctx, view, req, err)
	return sqlText, err
}

func (db *DB) expand(view string, req QueryRequest) (string, error) {
	if err := db.checkOpen(); err != nil {
		return "", err
	}
	if req.IsEmpty() {
		return "", &EmptyRequestError{View: view}
	}
	raw, err := db.catalog.Get(view)
	if err != nil {
		return "", db.viewNotFound(view)
	}
	def, err := db.defs.Parse(view, raw)
	if err != nil {
		return "", translateError(err)
	}
	sqlText, err := expand.Expand(view, def, req)
	return sqlText, translateError(err)
}

func (db *DB) viewNotFound(name string) error {
	available := db.catalog.Names()
	sort.Strings(available)
	suggestion, _ := expand.SuggestClosest(name, available)
	return &ViewNotFoundError{Name: name, Suggestion: suggestion, Available: available}
}

// Query expands req and executes it on the host database. The caller must
// close the returned rows.
func (db *DB) Query(ctx context.Context, view string, req QueryRequest) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.query(ctx, view, req)
	db.metrics.RecordQuery(time.Since(start), err)
	db.logger.LogQuery(ctx, view, err)
	return rows, err
}

func (db *DB) query(ctx context.Context, view string, req QueryRequest) (*sql.Rows, error) {
	sqlText, err := db.Expand(ctx, view, req)
	if err != nil {
		return nil, err
	}
	if db.host == nil {
		return nil, ErrNoHost
	}
	release, err := db.rc.AcquireQuery(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.host.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, &SQLExecutionError{SQL: sqlText, cause: err}
	}
	return rows, nil
}

// Explain returns a human-readable report: a header naming the request,
// the expanded SQL, and the host's plan for it. A plan that cannot be
// obtained, including when no query slot is free right now, is reported
// inline rather than as an error.
func (db *DB) Explain(ctx context.Context, view string, req QueryRequest) ([]string, error) {
	sqlText, err := db.Expand(ctx, view, req)
	if err != nil {
		return nil, err
	}

	lines := []string{
		"-- Semantic View: " + view,
		"-- Dimensions: " + strings.Join(req.Dimensions, ", "),
		"-- Metrics: " + strings.Join(req.Metrics, ", "),
		"",
		"-- Expanded SQL:",
	}
	lines = append(lines, strings.Split(sqlText, "\n")...)
	lines = append(lines, "", "-- Plan:")

	plan, err := db.plan(ctx, sqlText)
	if err != nil {
		lines = append(lines, fmt.Sprintf("-- (not available -- %v)", err))
		return lines, nil
	}
	return append(lines, plan...), nil
}

func (db *DB) plan(ctx context.Context, sqlText string) ([]string, error) {
	if db.host == nil {
		return nil, ErrNoHost
	}
	// The plan is informational; it is skipped rather than queued when
	// admission would have to wait.
	release, err := db.rc.TryAcquireQuery()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.host.QueryContext(ctx, "EXPLAIN "+sqlText)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var lines []string
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(sql.NullString)
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for _, d := range dest {
			if s := d.(*sql.NullString); s.Valid && s.String != "" {
				lines = append(lines, strings.Split(strings.TrimRight(s.String, "\n"), "\n")...)
			}
		}
	}
	return lines, rows.Err()
}

// Stats reports the background writer's counters. It is the zero value
// unless the durability mode is DurabilityWriter.
func (db *DB) Stats() WriterStats {
	if db.writer == nil {
		return WriterStats{}
	}
	return db.writer.Stats()
}

// CacheStats describes the parsed-definition cache.
type CacheStats struct {
	Hits   int64
	Misses int64
	// Bytes is the definition source held by the cache; LimitBytes is the
	// configured memory limit, 0 when unlimited.
	Bytes      int64
	LimitBytes int64
}

// CacheStats reports the parsed-definition cache counters.
func (db *DB) CacheStats() CacheStats {
	hits, misses := db.defs.Stats()
	return CacheStats{
		Hits:       hits,
		Misses:     misses,
		Bytes:      db.rc.MemoryUsage(),
		LimitBytes: db.rc.MemoryLimit(),
	}
}

// Close stops the background writer after it drains queued writes. The
// host database is not closed.
func (db *DB) Close() error {
	if db == nil || !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	if db.writer != nil {
		return db.writer.Close()
	}
	return nil
}

func (db *DB) checkOpen() error {
	if db.closed.Load() {
		return ErrClosed
	}
	return nil
}
