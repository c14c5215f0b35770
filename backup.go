package semview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/semview/blobstore"
	"github.com/hupe1980/semview/internal/snapshot"
)

// Compression selects how backups are compressed.
type Compression = snapshot.Compression

// Backup compression algorithms.
const (
	CompressionNone = snapshot.CompressionNone
	CompressionZstd = snapshot.CompressionZSTD
	CompressionLZ4  = snapshot.CompressionLZ4
)

// ParseCompression maps "none", "zstd" or "lz4" to a Compression.
func ParseCompression(name string) (Compression, error) {
	return snapshot.ParseCompression(name)
}

// RestoreResult reports what Restore did.
type RestoreResult struct {
	// CreatedAt is when the backup was taken.
	CreatedAt time.Time
	// Restored lists the views defined from the backup.
	Restored []string
	// Skipped lists the views that were already registered.
	Skipped []string
}

// Backup writes a snapshot of every registered view to name in each store.
// Uploads run concurrently; the first failure cancels the rest.
func (db *DB) Backup(ctx context.Context, name string, stores ...blobstore.BlobStore) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	if len(stores) == 0 {
		return errors.New("semview: backup needs at least one store")
	}

	views := db.catalog.Snapshot()
	data, err := snapshot.Encode(&snapshot.Snapshot{
		CreatedAt: time.Now().UTC(),
		Views:     views,
	}, db.backupCompression, db.codec)
	if err != nil {
		return fmt.Errorf("semview: encode backup: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, store := range stores {
		g.Go(func() error {
			if err := db.rc.AcquireIO(gctx, len(data)); err != nil {
				return err
			}
			return store.Put(gctx, name, data)
		})
	}
	err = g.Wait()
	if err != nil {
		err = fmt.Errorf("semview: backup %s: %w", name, err)
	}
	db.logger.LogBackup(ctx, "backup", name, len(views), err)
	return err
}

// Restore defines every view in the backup that is not registered yet.
// Views are restored in name order through the normal durable path; on
// failure the result lists what was restored before it.
func (db *DB) Restore(ctx context.Context, name string, store blobstore.BlobStore) (*RestoreResult, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	res, err := db.restore(ctx, name, store)
	n := 0
	if res != nil {
		n = len(res.Restored)
	}
	db.logger.LogBackup(ctx, "restore", name, n, err)
	return res, err
}

func (db *DB) restore(ctx context.Context, name string, store blobstore.BlobStore) (*RestoreResult, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: backup %s: %w", ErrNotFound, name, err)
		}
		return nil, fmt.Errorf("semview: read backup %s: %w", name, err)
	}
	if err := db.rc.AcquireIO(ctx, len(data)); err != nil {
		return nil, err
	}

	snap, err := snapshot.Decode(data, db.codec)
	if err != nil {
		return nil, fmt.Errorf("semview: decode backup %s: %w", name, err)
	}

	res := &RestoreResult{CreatedAt: snap.CreatedAt}
	names := make([]string, 0, len(snap.Views))
	for n := range snap.Views {
		names = append(names, n)
	}
	slices.Sort(names)

	for _, view := range names {
		if db.catalog.Contains(view) {
			res.Skipped = append(res.Skipped, view)
			continue
		}
		_, err := db.Define(ctx, view, snap.Views[view])
		switch {
		case errors.Is(err, ErrAlreadyExists):
			res.Skipped = append(res.Skipped, view)
		case err != nil:
			return res, fmt.Errorf("semview: restore %s: %w", view, err)
		default:
			res.Restored = append(res.Restored, view)
		}
	}
	return res, nil
}
