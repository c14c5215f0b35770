package testutil

import (
	"context"
	"database/sql"
	"math/rand"
	"sync"

	"github.com/hupe1980/semview/model"
)

// Orders is a view over a single table.
const Orders = `{
  "base_table": "orders",
  "dimensions": [
    {"name": "region", "expr": "region"},
    {"name": "status", "expr": "status"}
  ],
  "metrics": [
    {"name": "revenue", "expr": "sum(amount)"},
    {"name": "order_count", "expr": "count(*)"}
  ],
  "filters": ["status <> 'cancelled'"]
}`

// Sales is a view with joined tables.
const Sales = `{
  "base_table": "orders",
  "dimensions": [
    {"name": "region", "expr": "region"},
    {"name": "customer_name", "expr": "customers.name", "source_table": "customers"},
    {"name": "category", "expr": "products.category", "source_table": "products"}
  ],
  "metrics": [
    {"name": "revenue", "expr": "sum(orders.amount)"},
    {"name": "units", "expr": "sum(order_items.quantity)", "source_table": "order_items"}
  ],
  "joins": [
    {"table": "customers", "on": "orders.customer_id = customers.id"},
    {"table": "order_items", "on": "orders.id = order_items.order_id"},
    {"table": "products", "on": "order_items.product_id = products.id"}
  ]
}`

// Schema creates and fills the tables the fixtures read from.
var Schema = []string{
	`CREATE TABLE customers (id INTEGER, name VARCHAR)`,
	`CREATE TABLE products (id INTEGER, category VARCHAR)`,
	`CREATE TABLE orders (id INTEGER, customer_id INTEGER, region VARCHAR, status VARCHAR, amount DOUBLE)`,
	`CREATE TABLE order_items (order_id INTEGER, product_id INTEGER, quantity INTEGER)`,
	`INSERT INTO customers VALUES (1, 'Ada'), (2, 'Grace')`,
	`INSERT INTO products VALUES (1, 'books'), (2, 'games')`,
	`INSERT INTO orders VALUES
		(1, 1, 'EU', 'shipped', 10.0),
		(2, 1, 'EU', 'shipped', 20.0),
		(3, 2, 'US', 'shipped', 5.0),
		(4, 2, 'US', 'cancelled', 100.0)`,
	`INSERT INTO order_items VALUES (1, 1, 2), (2, 2, 1), (3, 1, 4)`,
}

// CreateSchema runs Schema against db.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RNG generates reproducible random requests. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Subsequence returns a random subsequence of names, order preserved.
// The result has at least atLeast elements when len(names) >= atLeast.
func (r *RNG) Subsequence(names []string, atLeast int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		out := make([]string, 0, len(names))
		for _, n := range names {
			if r.rand.Intn(2) == 1 {
				out = append(out, n)
			}
		}
		if len(out) >= atLeast || len(names) < atLeast {
			return out
		}
	}
}

// Request returns a random valid request for def: any subsequence of the
// dimensions and a non-empty subsequence of the metrics.
func (r *RNG) Request(def *model.Definition) model.QueryRequest {
	return model.QueryRequest{
		Dimensions: r.Subsequence(def.DimensionNames(), 0),
		Metrics:    r.Subsequence(def.MetricNames(), 1),
	}
}
