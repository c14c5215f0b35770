package semview_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/semview"
	"github.com/hupe1980/semview/blobstore"
	"github.com/hupe1980/semview/durable"
	"github.com/hupe1980/semview/internal/snapshot"
	"github.com/hupe1980/semview/testutil"
)

type failingStore struct {
	blobstore.BlobStore
}

func (failingStore) Put(context.Context, string, []byte) error {
	return errors.New("bucket unavailable")
}

func TestDB_BackupRestore(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	local := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "backups"))

	for _, comp := range []semview.Compression{
		semview.CompressionNone,
		semview.CompressionZstd,
		semview.CompressionLZ4,
	} {
		t.Run(comp.String(), func(t *testing.T) {
			src := openTable(t, durable.NewTable(), semview.WithBackupCompression(comp))
			_, err := src.Define(ctx, "orders", testutil.Orders)
			require.NoError(t, err)
			_, err = src.Define(ctx, "sales", testutil.Sales)
			require.NoError(t, err)

			name := "nightly/" + comp.String() + ".smvw"
			require.NoError(t, src.Backup(ctx, name, mem, local))

			for _, store := range []blobstore.BlobStore{mem, local} {
				data, err := store.Get(ctx, name)
				require.NoError(t, err)
				snap, err := snapshot.Decode(data, nil)
				require.NoError(t, err)
				assert.Len(t, snap.Views, 2)
			}

			dstTable := durable.NewTable()
			dst := openTable(t, dstTable)
			_, err = dst.Define(ctx, "orders", `{"base_table":"other","dimensions":[],"metrics":[]}`)
			require.NoError(t, err)

			res, err := dst.Restore(ctx, name, local)
			require.NoError(t, err)
			assert.Equal(t, []string{"sales"}, res.Restored)
			assert.Equal(t, []string{"orders"}, res.Skipped)
			assert.False(t, res.CreatedAt.IsZero())

			// Restored views are durable; existing ones are untouched.
			rows := dstTable.Rows()
			assert.Equal(t, testutil.Sales, rows["sales"])
			assert.Equal(t, `{"base_table":"other","dimensions":[],"metrics":[]}`, rows["orders"])
		})
	}
}

func TestDB_BackupErrors(t *testing.T) {
	ctx := context.Background()
	db := openTable(t, durable.NewTable())

	assert.Error(t, db.Backup(ctx, "x.smvw"))

	err := db.Backup(ctx, "x.smvw", blobstore.NewMemoryStore(), failingStore{})
	assert.ErrorContains(t, err, "bucket unavailable")

	_, err = db.Restore(ctx, "missing.smvw", blobstore.NewMemoryStore())
	assert.ErrorIs(t, err, semview.ErrNotFound)

	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "garbage.smvw", []byte("not a snapshot")))
	_, err = db.Restore(ctx, "garbage.smvw", store)
	assert.Error(t, err)
}

func TestDB_RestoreStopsOnInvalidView(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	data, err := snapshot.Encode(&snapshot.Snapshot{Views: map[string]string{
		"a_good": testutil.Orders,
		"b_bad":  `{"base_table":`,
		"c_good": testutil.Orders,
	}}, snapshot.CompressionNone, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "mixed.smvw", data))

	db := openTable(t, durable.NewTable())
	res, err := db.Restore(ctx, "mixed.smvw", store)
	assert.ErrorIs(t, err, semview.ErrInvalidDefinition)
	require.NotNil(t, res)
	assert.Equal(t, []string{"a_good"}, res.Restored)
}
