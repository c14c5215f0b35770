// Package blobstore stores catalog backups as named blobs.
//
// A BlobStore is a flat namespace of immutable objects. Names may contain
// "/" to group related backups. Implementations must be safe for concurrent
// use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local filesystem, atomic Put
//   - MemoryStore: in-process, for tests
//   - CachingStore: read-through cache in front of another store
//   - s3.Store: Amazon S3
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
