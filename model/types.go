package model

// Dimension is a named grouping expression.
type Dimension struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
	// SourceTable names the joined table the expression reads from.
	// Empty means the base table.
	SourceTable string `json:"source_table,omitempty"`
}

// Metric is a named aggregate expression.
type Metric struct {
	Name        string `json:"name"`
	Expr        string `json:"expr"`
	SourceTable string `json:"source_table,omitempty"`
}

// Join declares a table that may be joined to the base table.
type Join struct {
	Table string `json:"table"`
	On    string `json:"on"`
}

// Definition is a parsed semantic view.
type Definition struct {
	BaseTable  string      `json:"base_table"`
	Dimensions []Dimension `json:"dimensions"`
	Metrics    []Metric    `json:"metrics"`
	Filters    []string    `json:"filters"`
	Joins      []Join      `json:"joins"`
}

// DimensionNames returns the declared dimension names in declaration order.
func (d *Definition) DimensionNames() []string {
	names := make([]string, len(d.Dimensions))
	for i, dim := range d.Dimensions {
		names[i] = dim.Name
	}
	return names
}

// MetricNames returns the declared metric names in declaration order.
func (d *Definition) MetricNames() []string {
	names := make([]string, len(d.Metrics))
	for i, m := range d.Metrics {
		names[i] = m.Name
	}
	return names
}

// QueryRequest selects dimensions and metrics of a view by name.
type QueryRequest struct {
	Dimensions []string `json:"dimensions"`
	Metrics    []string `json:"metrics"`
}

// IsEmpty reports whether the request names nothing at all.
func (r QueryRequest) IsEmpty() bool {
	return len(r.Dimensions) == 0 && len(r.Metrics) == 0
}
