package semview

import (
	"log/slog"

	"github.com/hupe1980/semview/codec"
	"github.com/hupe1980/semview/durable"
	"github.com/hupe1980/semview/durable/sqlstore"
	"github.com/hupe1980/semview/internal/cache"
	"github.com/hupe1980/semview/internal/fs"
	"github.com/hupe1980/semview/internal/resource"
	"github.com/hupe1980/semview/internal/writer"
)

// QueryLimits bounds query admission, definition cache memory and backup
// throughput. The zero value limits nothing.
type QueryLimits = resource.Config

type options struct {
	storePath           string
	dialect             sqlstore.Dialect
	durability          Durability
	catalogStore        durable.Opener
	writerQueueSize     int
	codec               codec.Codec
	definitionCacheSize int64
	limits              QueryLimits
	metricsCollector    MetricsCollector
	logger              *Logger
	fs                  fs.FileSystem
	backupCompression   Compression
}

// Option configures Open.
type Option func(*options)

// WithStorePath sets the path of the database file. It decides the sidecar
// location and whether Auto durability uses the writer. When unset, Open asks
// a DuckDB host for its primary database file.
func WithStorePath(path string) Option {
	return func(o *options) {
		o.storePath = path
	}
}

// WithDialect sets the SQL dialect of the host database.
// Default: sqlstore.DuckDB
func WithDialect(d sqlstore.Dialect) Option {
	return func(o *options) {
		o.dialect = d
	}
}

// WithDurability selects how definitions survive restarts.
// Default: DurabilityAuto
func WithDurability(mode Durability) Option {
	return func(o *options) {
		o.durability = mode
	}
}

// WithCatalogStore stores definitions through open instead of the host
// database, for example a DynamoDB table:
//
//	semview.Open(ctx, db, semview.WithCatalogStore(dynamo.Opener(client, "views")))
func WithCatalogStore(open durable.Opener) Option {
	return func(o *options) {
		o.catalogStore = open
	}
}

// WithWriterQueueSize bounds the number of durable writes waiting for the
// background writer.
// Default: 64
func WithWriterQueueSize(n int) Option {
	return func(o *options) {
		o.writerQueueSize = n
	}
}

// WithCodec configures the codec used for the sidecar and backups.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithDefinitionCacheSize bounds the bytes of parsed definitions kept in
// memory.
// Default: 4MB
func WithDefinitionCacheSize(n int64) Option {
	return func(o *options) {
		o.definitionCacheSize = n
	}
}

// WithQueryLimits configures admission control for Query and Explain.
//
// Example:
//
//	semview.Open(ctx, db, semview.WithQueryLimits(semview.QueryLimits{
//	    MaxConcurrentQueries: 8,
//	    QueriesPerSecond:     100,
//	}))
func WithQueryLimits(limits QueryLimits) Option {
	return func(o *options) {
		o.limits = limits
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &semview.BasicMetricsCollector{}
//	db, _ := semview.Open(ctx, sqlDB, semview.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := semview.NewJSONLogger(slog.LevelInfo)
//	db, _ := semview.Open(ctx, sqlDB, semview.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFileSystem sets the filesystem used for the sidecar file.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithBackupCompression selects the compression of backups written by Backup.
// Default: CompressionZstd
func WithBackupCompression(c Compression) Option {
	return func(o *options) {
		o.backupCompression = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		dialect:             sqlstore.DuckDB,
		durability:          DurabilityAuto,
		writerQueueSize:     writer.DefaultQueueSize,
		codec:               codec.Default,
		definitionCacheSize: cache.DefaultDefinitionCapacity,
		metricsCollector:    NoopMetricsCollector{},
		logger:              NoopLogger(),
		fs:                  fs.Default,
		backupCompression:   CompressionZstd,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
