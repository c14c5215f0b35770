// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (write, sync, close, rename)
//
// # Helpers
//
//   - [WriteFileAtomic]: staging file, fsync, rename, directory fsync
//   - [Lock]: exclusive advisory lock shared across processes
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(fs.TempSuffix, fs.Fault{FailAfterBytes: -1, FailOnSync: true})
//	err := fs.WriteFileAtomic(ffs, path, data, 0o644) // previous content survives
//
// Operations take no context.Context: local filesystem calls are not
// interruptible at the syscall level.
package fs
