// Package model defines semantic view definitions and query requests.
//
// # Definition Types
//
//   - Definition: base table, dimensions, metrics, filters and joins
//   - Dimension / Metric: named SQL expressions with an optional source table
//   - Join: a table plus its verbatim ON condition
//
// # Request Types
//
//   - QueryRequest: the dimension and metric names a caller wants to expand
//
// # Parsing
//
// Definitions arrive as JSON text and are validated strictly:
//
//	def, err := model.Parse("orders", []byte(`{
//	    "base_table": "orders",
//	    "dimensions": [{"name": "region", "expr": "region"}],
//	    "metrics": [{"name": "revenue", "expr": "sum(amount)"}]
//	}`))
//
// Unknown top-level fields, missing required fields and malformed JSON are
// rejected with a *ValidationError. Embedded SQL fragments are never inspected.
package model
