package model

import (
	"bytes"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

const (
	fieldBaseTable  = "base_table"
	fieldDimensions = "dimensions"
	fieldMetrics    = "metrics"
	fieldFilters    = "filters"
	fieldJoins      = "joins"
)

var knownFields = []string{fieldBaseTable, fieldDimensions, fieldMetrics, fieldFilters, fieldJoins}

// expression is the wire shape shared by dimensions and metrics. Pointers
// distinguish an absent or null field from an empty string.
type expression struct {
	Name        *string `json:"name"`
	Expr        *string `json:"expr"`
	SourceTable *string `json:"source_table"`
}

type joinSpec struct {
	Table *string `json:"table"`
	On    *string `json:"on"`
}

// Parse validates JSON text as the definition of the view called name.
//
// Unknown and repeated top-level fields are rejected. Unknown fields inside dimensions,
// metrics and joins are ignored. Filters and joins default to empty.
func Parse(name string, data []byte) (*Definition, error) {
	fields, err := RawFields(data)
	if err != nil {
		return nil, invalid(name, err, "%v", err)
	}
	if dup, ok := duplicateField(data); ok {
		return nil, invalid(name, nil, "duplicate field `%s`", dup)
	}

	unknown := make([]string, 0)
	for k := range fields {
		if !isKnownField(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, invalid(name, nil, "unknown field `%s`, expected one of `%s`",
			unknown[0], strings.Join(knownFields, "`, `"))
	}

	def := &Definition{
		Filters: []string{},
		Joins:   []Join{},
	}

	if err := decodeRequired(name, fields, fieldBaseTable, &def.BaseTable); err != nil {
		return nil, err
	}

	var dims []expression
	if err := decodeRequired(name, fields, fieldDimensions, &dims); err != nil {
		return nil, err
	}
	def.Dimensions = make([]Dimension, 0, len(dims))
	for i, e := range dims {
		if err := e.validate(name, fieldDimensions, i); err != nil {
			return nil, err
		}
		def.Dimensions = append(def.Dimensions, Dimension{Name: *e.Name, Expr: *e.Expr, SourceTable: deref(e.SourceTable)})
	}

	var metrics []expression
	if err := decodeRequired(name, fields, fieldMetrics, &metrics); err != nil {
		return nil, err
	}
	def.Metrics = make([]Metric, 0, len(metrics))
	for i, e := range metrics {
		if err := e.validate(name, fieldMetrics, i); err != nil {
			return nil, err
		}
		def.Metrics = append(def.Metrics, Metric{Name: *e.Name, Expr: *e.Expr, SourceTable: deref(e.SourceTable)})
	}

	if _, ok := fields[fieldFilters]; ok {
		if err := decodeRequired(name, fields, fieldFilters, &def.Filters); err != nil {
			return nil, err
		}
	}

	if _, ok := fields[fieldJoins]; ok {
		var joins []joinSpec
		if err := decodeRequired(name, fields, fieldJoins, &joins); err != nil {
			return nil, err
		}
		def.Joins = make([]Join, 0, len(joins))
		for i, j := range joins {
			if j.Table == nil {
				return nil, invalid(name, nil, "joins[%d]: missing field `table`", i)
			}
			if j.On == nil {
				return nil, invalid(name, nil, "joins[%d]: missing field `on`", i)
			}
			def.Joins = append(def.Joins, Join{Table: *j.Table, On: *j.On})
		}
	}

	return def, nil
}

// ParseString is Parse for string input.
func ParseString(name, data string) (*Definition, error) {
	return Parse(name, []byte(data))
}

// RawFields decodes the top level of a JSON object without interpreting
// its values. A JSON null or non-object document is an error.
func RawFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errNotObject
	}
	return fields, nil
}

// duplicateField reports the first top-level key that appears twice in a
// JSON object already known to be valid.
func duplicateField(data []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return "", false
	}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		key, ok := tok.(string)
		if !ok {
			return "", false
		}
		if _, dup := seen[key]; dup {
			return key, true
		}
		seen[key] = struct{}{}
		if err := skipValue(dec); err != nil {
			return "", false
		}
	}
	return "", false
}

func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
		if depth == 0 {
			return nil
		}
	}
}

// BaseTableOf extracts base_table from stored JSON, or "" when it cannot.
func BaseTableOf(data []byte) string {
	fields, err := RawFields(data)
	if err != nil {
		return ""
	}
	var table string
	if raw, ok := fields[fieldBaseTable]; ok {
		_ = json.Unmarshal(raw, &table)
	}
	return table
}

func decodeRequired(view string, fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok {
		return invalid(view, nil, "missing field `%s`", key)
	}
	if isNull(raw) {
		return invalid(view, nil, "field `%s` must not be null", key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalid(view, err, "%s: %v", key, err)
	}
	return nil
}

func (e expression) validate(view, field string, idx int) error {
	if e.Name == nil {
		return invalid(view, nil, "%s[%d]: missing field `name`", field, idx)
	}
	if e.Expr == nil {
		return invalid(view, nil, "%s[%d]: missing field `expr`", field, idx)
	}
	return nil
}

func isKnownField(k string) bool {
	for _, f := range knownFields {
		if f == k {
			return true
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
