// Package semview provides an embeddable semantic layer for SQL databases.
//
// A semantic view is a named JSON definition of a base table, the joins it
// may use, row filters, dimensions (grouping expressions) and metrics
// (aggregate expressions). Callers ask for a view by dimension and metric
// names; semview expands the request into deterministic aggregation SQL and
// optionally runs it on the host database.
//
// # Quick Start
//
//	sqlDB, _ := sql.Open("duckdb", "analytics.duckdb")
//	db, _ := semview.Open(ctx, sqlDB)
//	defer db.Close()
//
//	db.Define(ctx, "orders", `{
//	    "base_table": "orders",
//	    "dimensions": [{"name": "region", "expr": "region"}],
//	    "metrics": [{"name": "revenue", "expr": "sum(amount)"}]
//	}`)
//
//	rows, _ := db.Query(ctx, "orders", semview.QueryRequest{
//	    Dimensions: []string{"region"},
//	    Metrics:    []string{"revenue"},
//	})
//
// # Durability Model
//
// Definitions live in memory behind a read-write lock and are made durable
// before Define or Drop returns:
//
//   - DurabilityWriter: a background writer with its own connection inserts
//     into semantic_layer._definitions and checkpoints, in FIFO order.
//   - DurabilitySidecar: the whole catalog is written atomically to
//     <database>.semantic_views; the relation is resynchronized at Open.
//   - DurabilityNone: in-memory databases keep definitions in memory only.
//
// DurabilityAuto picks the writer for file-backed databases. Definitions can
// also live outside the host (WithCatalogStore), e.g. in DynamoDB.
//
// # Backups
//
// Backup writes a checksummed, compressed snapshot of the catalog to one or
// more blob stores (local directory, S3, MinIO); Restore defines the views
// from a snapshot that are not registered yet.
package semview
