// Package catalog holds the authoritative in-memory map of semantic view
// definitions and keeps it in step with a durable copy.
//
// Readers never block each other. Mutations validate first, check presence
// under the read lock, persist with no lock held, and only then take the
// write lock to apply the change. A failed persist leaves the map untouched.
package catalog
