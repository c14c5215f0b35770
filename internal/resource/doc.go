// Package resource implements admission and budget control.
//
//   - Queries: a weighted semaphore bounds concurrent queries and a token
//     bucket bounds the admission rate.
//   - Memory: tracks bytes held by the parsed-definition cache, with an
//     optional hard limit.
//   - IO: a token bucket that throttles backup uploads.
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
