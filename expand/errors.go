package expand

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyMetrics is matched by *EmptyMetricsError.
	ErrEmptyMetrics = errors.New("at least one metric is required")
	// ErrUnknownDimension is matched by *UnknownDimensionError.
	ErrUnknownDimension = errors.New("unknown dimension")
	// ErrUnknownMetric is matched by *UnknownMetricError.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrDuplicateDimension is matched by *DuplicateDimensionError.
	ErrDuplicateDimension = errors.New("duplicate dimension")
	// ErrDuplicateMetric is matched by *DuplicateMetricError.
	ErrDuplicateMetric = errors.New("duplicate metric")
)

// EmptyMetricsError is returned when a request names no metrics.
type EmptyMetricsError struct {
	View string
}

func (e *EmptyMetricsError) Error() string {
	return fmt.Sprintf("semantic view '%s': at least one metric is required", e.View)
}

func (e *EmptyMetricsError) Is(target error) bool { return target == ErrEmptyMetrics }

// UnknownDimensionError is returned when a requested dimension is not declared.
type UnknownDimensionError struct {
	View       string
	Name       string
	Available  []string
	Suggestion string // empty when no declared name is close enough
}

func (e *UnknownDimensionError) Error() string {
	return unknownMessage(e.View, "dimension", e.Name, e.Available, e.Suggestion)
}

func (e *UnknownDimensionError) Is(target error) bool { return target == ErrUnknownDimension }

// UnknownMetricError is returned when a requested metric is not declared.
type UnknownMetricError struct {
	View       string
	Name       string
	Available  []string
	Suggestion string
}

func (e *UnknownMetricError) Error() string {
	return unknownMessage(e.View, "metric", e.Name, e.Available, e.Suggestion)
}

func (e *UnknownMetricError) Is(target error) bool { return target == ErrUnknownMetric }

// DuplicateDimensionError is returned when a request names a dimension twice.
type DuplicateDimensionError struct {
	View string
	Name string
}

func (e *DuplicateDimensionError) Error() string {
	return fmt.Sprintf("semantic view '%s': duplicate dimension '%s'", e.View, e.Name)
}

func (e *DuplicateDimensionError) Is(target error) bool { return target == ErrDuplicateDimension }

// DuplicateMetricError is returned when a request names a metric twice.
type DuplicateMetricError struct {
	View string
	Name string
}

func (e *DuplicateMetricError) Error() string {
	return fmt.Sprintf("semantic view '%s': duplicate metric '%s'", e.View, e.Name)
}

func (e *DuplicateMetricError) Is(target error) bool { return target == ErrDuplicateMetric }

func unknownMessage(view, kind, name string, available []string, suggestion string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "semantic view '%s': unknown %s '%s'. Available: [%s]",
		view, kind, name, strings.Join(available, ", "))
	if suggestion != "" {
		fmt.Fprintf(&sb, ". Did you mean '%s'?", suggestion)
	}
	return sb.String()
}
