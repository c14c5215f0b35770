package expand

import (
	"strings"

	"github.com/hupe1980/semview/model"
)

// BaseAlias is the name of the common table expression every expansion
// selects from.
const BaseAlias = "_base"

const indent = "    "

// QuoteIdent double-quotes a SQL identifier, doubling embedded quotes.
func QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Expand generates the SQL for req against the definition of view.
//
// Validation happens in this order: at least one metric, then each
// dimension (duplicate before lookup), then each metric. The first failure
// is returned. For identical inputs the output is byte-identical.
func Expand(view string, def *model.Definition, req model.QueryRequest) (string, error) {
	if len(req.Metrics) == 0 {
		return "", &EmptyMetricsError{View: view}
	}

	dims := make([]*model.Dimension, 0, len(req.Dimensions))
	seen := make(map[string]struct{}, len(req.Dimensions))
	for _, name := range req.Dimensions {
		key := lowerASCII(name)
		if _, dup := seen[key]; dup {
			return "", &DuplicateDimensionError{View: view, Name: name}
		}
		seen[key] = struct{}{}

		d := FindDimension(def, name)
		if d == nil {
			available := def.DimensionNames()
			suggestion, _ := SuggestClosest(name, available)
			return "", &UnknownDimensionError{View: view, Name: name, Available: available, Suggestion: suggestion}
		}
		dims = append(dims, d)
	}

	metrics := make([]*model.Metric, 0, len(req.Metrics))
	seen = make(map[string]struct{}, len(req.Metrics))
	for _, name := range req.Metrics {
		key := lowerASCII(name)
		if _, dup := seen[key]; dup {
			return "", &DuplicateMetricError{View: view, Name: name}
		}
		seen[key] = struct{}{}

		m := FindMetric(def, name)
		if m == nil {
			available := def.MetricNames()
			suggestion, _ := SuggestClosest(name, available)
			return "", &UnknownMetricError{View: view, Name: name, Available: available, Suggestion: suggestion}
		}
		metrics = append(metrics, m)
	}

	sources := make([]string, 0, len(dims)+len(metrics))
	for _, d := range dims {
		sources = append(sources, d.SourceTable)
	}
	for _, m := range metrics {
		sources = append(sources, m.SourceTable)
	}
	joins := ResolveJoins(def.Joins, sources)

	var sb strings.Builder
	sb.WriteString(`WITH "` + BaseAlias + "\" AS (\n")
	sb.WriteString(indent + "SELECT *\n")
	sb.WriteString(indent + "FROM " + QuoteIdent(def.BaseTable))
	for _, j := range joins {
		sb.WriteString("\n" + indent + "JOIN " + QuoteIdent(j.Table) + " ON " + j.On)
	}
	if len(def.Filters) > 0 {
		sb.WriteString("\n" + indent + "WHERE ")
		for i, f := range def.Filters {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			sb.WriteString("(" + f + ")")
		}
	}
	sb.WriteString("\n)")

	sb.WriteString("\nSELECT\n")
	first := true
	item := func(expr, name string) {
		if !first {
			sb.WriteString(",\n")
		}
		first = false
		sb.WriteString(indent + expr + " AS " + QuoteIdent(name))
	}
	for _, d := range dims {
		item(d.Expr, d.Name)
	}
	for _, m := range metrics {
		item(m.Expr, m.Name)
	}
	sb.WriteString("\nFROM " + QuoteIdent(BaseAlias))

	if len(dims) > 0 {
		sb.WriteString("\nGROUP BY\n")
		for i, d := range dims {
			if i > 0 {
				sb.WriteString(",\n")
			}
			sb.WriteString(indent + d.Expr)
		}
	}

	return sb.String(), nil
}
