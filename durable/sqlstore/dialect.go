package sqlstore

import (
	"errors"
	"strings"

	// Register the "duckdb" database/sql driver.
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/lib/pq"
)

// Dialect captures the SQL differences between supported engines.
type Dialect struct {
	// Name is the stable dialect name used in configuration.
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// TextType is the column type for names and definitions.
	TextType string
	// CheckpointSQL flushes the write-ahead log. Empty means no-op.
	CheckpointSQL string

	isConflict func(error) bool
}

// DuckDB is the dialect for github.com/duckdb/duckdb-go.
var DuckDB = Dialect{
	Name:          "duckdb",
	Driver:        "duckdb",
	TextType:      "VARCHAR",
	CheckpointSQL: "CHECKPOINT",
	isConflict: func(err error) bool {
		msg := err.Error()
		return strings.Contains(msg, "Duplicate key") || strings.Contains(msg, "PRIMARY KEY or UNIQUE constraint")
	},
}

// Postgres is the dialect for github.com/lib/pq.
var Postgres = Dialect{
	Name:     "postgres",
	Driver:   "postgres",
	TextType: "TEXT",
	isConflict: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	},
}

// DialectByName returns a built-in dialect by its stable name.
func DialectByName(name string) (Dialect, bool) {
	switch strings.ToLower(name) {
	case DuckDB.Name:
		return DuckDB, true
	case Postgres.Name, "postgresql":
		return Postgres, true
	default:
		return Dialect{}, false
	}
}

func (d Dialect) conflict(err error) bool {
	return err != nil && d.isConflict != nil && d.isConflict(err)
}
