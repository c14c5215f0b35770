package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
	ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

	// ErrQueryRejected is returned by TryAcquireQuery when no slot is free.
	ErrQueryRejected = errors.New("query admission rejected")
)

// Config holds resource limits. The zero value limits nothing.
type Config struct {
	// MaxConcurrentQueries bounds queries executing at once.
	// If 0, unlimited.
	MaxConcurrentQueries int64

	// QueriesPerSecond is the sustained query admission rate.
	// If 0, unlimited.
	QueriesPerSecond float64

	// QueryBurst is the number of queries admitted at once above the rate.
	// If 0, defaults to 1.
	QueryBurst int

	// MemoryLimitBytes bounds memory held by the parsed-definition cache.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum throughput for backup uploads.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages query admission, cache memory and backup IO.
type Controller struct {
	cfg Config

	// Queries
	querySem     *semaphore.Weighted // nil if unlimited
	queryLimiter *rate.Limiter       // nil if unlimited

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.QueryBurst <= 0 {
		cfg.QueryBurst = 1
	}

	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}
	if cfg.QueriesPerSecond > 0 {
		c.queryLimiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), cfg.QueryBurst)
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireQuery waits for the rate limiter and a concurrency slot.
// The returned release func must be called exactly once.
func (c *Controller) AcquireQuery(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, nil
	}
	if c.queryLimiter != nil {
		if err := c.queryLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	return c.releaseQuery, nil
}

// TryAcquireQuery admits a query only if it can run right now.
func (c *Controller) TryAcquireQuery() (func(), error) {
	if c == nil {
		return func() {}, nil
	}
	if c.querySem != nil && !c.querySem.TryAcquire(1) {
		return nil, ErrQueryRejected
	}
	if c.queryLimiter != nil && !c.queryLimiter.AllowN(time.Now(), 1) {
		c.releaseQuery()
		return nil, ErrQueryRejected
	}
	return c.releaseQuery, nil
}

func (c *Controller) releaseQuery() {
	if c.querySem != nil {
		c.querySem.Release(1)
	}
}

// AcquireMemory blocks until memory is available or ctx is done.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves memory without blocking.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireIO waits until the IO limit allows bytes. Requests larger than
// one second of budget are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
