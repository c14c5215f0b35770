// Package writer runs durable catalog writes on a dedicated goroutine that
// owns its own durable connection.
//
// Callers enqueue an insert or delete and block until the worker has
// committed and checkpointed it. The queue is FIFO, so it is the single
// serialization point for durable writes. A Writer is a reference-counted
// handle: Clone adds a reference, Close drops one, and the worker stops
// after the last reference is dropped and the queue is drained.
package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/semview/durable"
)

// ErrWriterGone is returned when the worker is no longer running.
var ErrWriterGone = errors.New("persistence writer is gone")

// DefaultQueueSize is the request queue capacity used when none is set.
const DefaultQueueSize = 64

type op uint8

const (
	opInsert op = iota
	opDelete
)

func (o op) String() string {
	if o == opDelete {
		return "delete"
	}
	return "insert"
}

type request struct {
	op         op
	name       string
	definition string
	reply      chan error // capacity 1, so the worker never blocks on it
}

// Stats is a point-in-time view of the writer counters.
type Stats struct {
	Submitted          int64
	Written            int64
	Failed             int64
	CheckpointFailures int64
	QueueDepth         int
}

// Options configures Start.
type Options struct {
	QueueSize int
	Logger    *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithQueueSize sets the request queue capacity.
func WithQueueSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.QueueSize = n
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

// shared is the state common to every handle.
type shared struct {
	conn   durable.Conn
	reqs   chan request
	done   chan struct{}
	logger *slog.Logger

	submitMu sync.RWMutex
	closed   atomic.Bool
	refs     atomic.Int64
	closeErr error

	submitted   atomic.Int64
	written     atomic.Int64
	failed      atomic.Int64
	checkpoints atomic.Int64
}

// Writer is a handle to the background writer.
type Writer struct {
	s        *shared
	released atomic.Bool
}

// Start opens a dedicated connection with open and starts the worker.
//
// The worker also stops when ctx is cancelled.
func Start(ctx context.Context, open durable.Opener, optFns ...Option) (*Writer, error) {
	opts := Options{QueueSize: DefaultQueueSize}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	conn, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("writer: open connection: %w", err)
	}

	s := &shared{
		conn:   conn,
		reqs:   make(chan request, opts.QueueSize),
		done:   make(chan struct{}),
		logger: opts.Logger,
	}
	s.refs.Store(1)

	go s.run(ctx)

	return &Writer{s: s}, nil
}

func (s *shared) run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Error("writer connection close failed", "error", err)
			s.closeErr = err
		}
	}()

	for {
		select {
		case req, ok := <-s.reqs:
			if !ok {
				s.logger.Debug("writer stopped", "written", s.written.Load())
				return
			}
			req.reply <- s.apply(ctx, req)
		case <-ctx.Done():
			s.logger.Warn("writer stopped by context", "error", ctx.Err())
			return
		}
	}
}

func (s *shared) apply(ctx context.Context, req request) error {
	var err error
	switch req.op {
	case opInsert:
		err = s.conn.Insert(ctx, req.name, req.definition)
	case opDelete:
		err = s.conn.Delete(ctx, req.name)
	}
	if err != nil {
		s.failed.Add(1)
		s.logger.ErrorContext(ctx, "durable write failed", "op", req.op.String(), "view", req.name, "error", err)
		return err
	}

	// The row is committed at this point; a failed checkpoint only delays
	// folding the log into the main file.
	if cerr := s.conn.Checkpoint(ctx); cerr != nil {
		s.checkpoints.Add(1)
		s.logger.WarnContext(ctx, "checkpoint failed", "view", req.name, "error", cerr)
	}

	s.written.Add(1)
	s.logger.DebugContext(ctx, "durable write", "op", req.op.String(), "view", req.name)
	return nil
}

// PersistInsert durably stores a definition and waits for the commit.
func (w *Writer) PersistInsert(ctx context.Context, name, definition string) error {
	return w.submit(ctx, request{op: opInsert, name: name, definition: definition})
}

// PersistDelete durably removes a definition and waits for the commit.
func (w *Writer) PersistDelete(ctx context.Context, name string) error {
	return w.submit(ctx, request{op: opDelete, name: name})
}

// submit enqueues req and blocks for its reply. ctx is only consulted while
// waiting for queue space; an enqueued write always runs to completion.
func (w *Writer) submit(ctx context.Context, req request) error {
	if w.released.Load() {
		return ErrWriterGone
	}
	s := w.s
	req.reply = make(chan error, 1)

	if err := s.enqueue(ctx, req); err != nil {
		return err
	}
	s.submitted.Add(1)

	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		// The worker may have replied just before exiting.
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrWriterGone
		}
	}
}

func (s *shared) enqueue(ctx context.Context, req request) error {
	s.submitMu.RLock()
	defer s.submitMu.RUnlock()

	if s.closed.Load() {
		return ErrWriterGone
	}
	select {
	case <-s.done:
		return ErrWriterGone
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case s.reqs <- req:
		return nil
	case <-s.done:
		return ErrWriterGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clone returns a new handle to the same worker.
func (w *Writer) Clone() *Writer {
	w.s.refs.Add(1)
	return &Writer{s: w.s}
}

// Close releases this handle. Closing the last handle stops the worker
// after it has drained queued requests, and returns the error from closing
// its connection. Close is idempotent per handle.
func (w *Writer) Close() error {
	if !w.released.CompareAndSwap(false, true) {
		return nil
	}
	s := w.s
	if s.refs.Add(-1) > 0 {
		return nil
	}

	s.submitMu.Lock()
	s.closed.Store(true)
	close(s.reqs)
	s.submitMu.Unlock()

	<-s.done
	return s.closeErr
}

// Done is closed when the worker has exited.
func (w *Writer) Done() <-chan struct{} { return w.s.done }

// Stats returns the current counters.
func (w *Writer) Stats() Stats {
	s := w.s
	return Stats{
		Submitted:          s.submitted.Load(),
		Written:            s.written.Load(),
		Failed:             s.failed.Load(),
		CheckpointFailures: s.checkpoints.Load(),
		QueueDepth:         len(s.reqs),
	}
}
