package catalog

import "context"

// Persister makes catalog mutations durable. Both methods block until the
// change is durable or has failed.
type Persister interface {
	PersistInsert(ctx context.Context, name, definition string) error
	PersistDelete(ctx context.Context, name string) error
}

// NoopPersister keeps nothing. It is used for databases without a backing
// file, where the in-memory map is the only copy.
type NoopPersister struct{}

func (NoopPersister) PersistInsert(context.Context, string, string) error { return nil }

func (NoopPersister) PersistDelete(context.Context, string) error { return nil }
