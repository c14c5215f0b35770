// Package cache provides a size-bounded LRU and, on top of it, a cache of
// parsed view definitions.
//
// Definitions are keyed by view name and the CRC32-C of the stored JSON, so
// dropping and re-registering a view under the same name never serves a
// stale parse. Concurrent misses for the same key parse once.
package cache
