package semview

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with semview-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// LogInit logs catalog initialization.
func (l *Logger) LogInit(ctx context.Context, storePath string, mode Durability, views int) {
	l.InfoContext(ctx, "semantic catalog loaded",
		"store_path", storePath,
		"durability", mode.String(),
		"views", views,
	)
}

// LogDefine logs a define operation.
func (l *Logger) LogDefine(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "define failed",
			"view", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "view defined",
			"view", name,
		)
	}
}

// LogDrop logs a drop operation.
func (l *Logger) LogDrop(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "drop failed",
			"view", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "view dropped",
			"view", name,
		)
	}
}

// LogExpand logs an expansion.
func (l *Logger) LogExpand(ctx context.Context, name string, req QueryRequest, err error) {
	if err != nil {
		l.WarnContext(ctx, "expand failed",
			"view", name,
			"dimensions", req.Dimensions,
			"metrics", req.Metrics,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "expand completed",
			"view", name,
			"dimensions", req.Dimensions,
			"metrics", req.Metrics,
		)
	}
}

// LogQuery logs a query execution.
func (l *Logger) LogQuery(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"view", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query started",
			"view", name,
		)
	}
}

// LogBackup logs a backup or restore.
func (l *Logger) LogBackup(ctx context.Context, op, name string, views int, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"backup", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, op+" completed",
			"backup", name,
			"views", views,
		)
	}
}
