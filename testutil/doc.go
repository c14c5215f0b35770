// Package testutil provides testing utilities for semview.
//
// This package is intended for use in tests only. It provides view
// definition fixtures, a small sales schema for DuckDB-backed tests, and a
// seeded generator of random query requests.
//
// # Random Requests
//
//	rng := testutil.NewRNG(seed)
//	req := rng.Request(def)   // random dimensions and at least one metric
package testutil
