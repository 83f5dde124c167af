// Package dbtest holds a conformance suite run against every database.DB
// backend.
package dbtest

import (
	"context"
	"testing"

	"github.com/LeJamon/shalltest/internal/storage/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises db against the database.DB contract. db must be empty and is
// closed when Run returns.
func Run(t *testing.T, db database.DB) {
	t.Helper()
	ctx := context.Background()

	t.Run("Read Write Delete", func(t *testing.T) {
		_, err := db.Read(ctx, []byte("missing"))
		assert.ErrorIs(t, err, database.ErrKeyNotFound)

		require.NoError(t, db.Write(ctx, []byte("k1"), []byte("v1")))
		got, err := db.Read(ctx, []byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		require.NoError(t, db.Write(ctx, []byte("k1"), []byte("v2")))
		got, err = db.Read(ctx, []byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)

		require.NoError(t, db.Delete(ctx, []byte("k1")))
		_, err = db.Read(ctx, []byte("k1"))
		assert.ErrorIs(t, err, database.ErrKeyNotFound)
	})

	t.Run("Batch", func(t *testing.T) {
		require.NoError(t, db.Write(ctx, []byte("b/gone"), []byte("x")))

		err := db.Batch(ctx, []database.BatchOperation{
			database.Put([]byte("b/1"), []byte("one")),
			database.Put([]byte("b/2"), []byte("two")),
			database.Del([]byte("b/gone")),
		})
		require.NoError(t, err)

		got, err := db.Read(ctx, []byte("b/2"))
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
		_, err = db.Read(ctx, []byte("b/gone"))
		assert.ErrorIs(t, err, database.ErrKeyNotFound)

		err = db.Batch(ctx, []database.BatchOperation{{Type: database.BatchOpType(99), Key: []byte("b/3")}})
		assert.ErrorIs(t, err, database.ErrBatchOperationFailed)
	})

	t.Run("Iterator", func(t *testing.T) {
		for _, k := range []string{"p/c", "p/a", "p/b", "q/a", "o/z"} {
			require.NoError(t, db.Write(ctx, []byte(k), []byte("val-"+k)))
		}

		prefix := []byte("p/")
		it, err := db.Iterator(ctx, prefix, database.PrefixEnd(prefix))
		require.NoError(t, err)

		var keys []string
		for it.Next() {
			keys = append(keys, string(it.Key()))
			assert.Equal(t, "val-"+string(it.Key()), string(it.Value()))
		}
		require.NoError(t, it.Error())
		require.NoError(t, it.Close())

		assert.Equal(t, []string{"p/a", "p/b", "p/c"}, keys)
	})

	t.Run("Close", func(t *testing.T) {
		require.NoError(t, db.Close())
		_, err := db.Read(ctx, []byte("p/a"))
		assert.Error(t, err)
	})
}
