package blobstore

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/semview/internal/cache"
	"github.com/hupe1980/semview/internal/resource"
)

// DefaultCacheBytes is the cache capacity used when none is given.
const DefaultCacheBytes = 32 << 20

// CachingStore wraps a BlobStore and caches whole blobs in memory.
// Concurrent misses for one blob fetch it once.
type CachingStore struct {
	inner BlobStore
	cache *cache.LRU[string, []byte]
	group singleflight.Group
}

// NewCachingStore creates a new CachingStore holding up to capacity bytes.
// If rc is provided, cached bytes are charged to it.
func NewCachingStore(inner BlobStore, capacity int64, rc *resource.Controller) *CachingStore {
	if capacity <= 0 {
		capacity = DefaultCacheBytes
	}
	return &CachingStore{
		inner: inner,
		cache: cache.NewLRU[string, []byte](capacity, func(b []byte) int64 { return int64(len(b)) }, rc),
	}
}

// Get returns the cached blob or fetches it from the wrapped store.
// The returned slice is shared and must not be modified.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if data, ok := s.cache.Get(name); ok {
		return data, nil
	}
	v, err, _ := s.group.Do(name, func() (any, error) {
		data, err := s.inner.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		s.cache.Set(name, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Put writes through and invalidates the cached copy.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.Remove(name)
	return s.inner.Put(ctx, name, data)
}

// Delete removes the blob and its cached copy.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Remove(name)
	err := s.inner.Delete(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// List is passed through to the wrapped store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats returns cache hit and miss counts.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.cache.Stats()
}
