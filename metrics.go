package semview

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordDefine is called after each define.
	RecordDefine(duration time.Duration, err error)

	// RecordDrop is called after each drop.
	RecordDrop(duration time.Duration, err error)

	// RecordExpand is called after each expansion, including the
	// expansions done by Query and Explain.
	RecordExpand(duration time.Duration, err error)

	// RecordQuery is called after each query has been admitted and
	// executed, or has failed.
	RecordQuery(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordDefine(time.Duration, error) {}
func (NoopMetricsCollector) RecordDrop(time.Duration, error)   {}
func (NoopMetricsCollector) RecordExpand(time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(time.Duration, error)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	DefineCount      atomic.Int64
	DefineErrors     atomic.Int64
	DefineTotalNanos atomic.Int64
	DropCount        atomic.Int64
	DropErrors       atomic.Int64
	ExpandCount      atomic.Int64
	ExpandErrors     atomic.Int64
	ExpandTotalNanos atomic.Int64
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryTotalNanos  atomic.Int64
}

// RecordDefine implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDefine(duration time.Duration, err error) {
	b.DefineCount.Add(1)
	b.DefineTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DefineErrors.Add(1)
	}
}

// RecordDrop implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDrop(_ time.Duration, err error) {
	b.DropCount.Add(1)
	if err != nil {
		b.DropErrors.Add(1)
	}
}

// RecordExpand implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExpand(duration time.Duration, err error) {
	b.ExpandCount.Add(1)
	b.ExpandTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ExpandErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		DefineCount:    b.DefineCount.Load(),
		DefineErrors:   b.DefineErrors.Load(),
		DefineAvgNanos: avg(b.DefineTotalNanos.Load(), b.DefineCount.Load()),
		DropCount:      b.DropCount.Load(),
		DropErrors:     b.DropErrors.Load(),
		ExpandCount:    b.ExpandCount.Load(),
		ExpandErrors:   b.ExpandErrors.Load(),
		ExpandAvgNanos: avg(b.ExpandTotalNanos.Load(), b.ExpandCount.Load()),
		QueryCount:     b.QueryCount.Load(),
		QueryErrors:    b.QueryErrors.Load(),
		QueryAvgNanos:  avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	DefineCount    int64
	DefineErrors   int64
	DefineAvgNanos int64
	DropCount      int64
	DropErrors     int64
	ExpandCount    int64
	ExpandErrors   int64
	ExpandAvgNanos int64
	QueryCount     int64
	QueryErrors    int64
	QueryAvgNanos  int64
}
