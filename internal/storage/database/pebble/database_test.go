package pebble

import (
	"context"
	"testing"

	"github.com/LeJamon/shalltest/internal/storage/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPebbleDB(t *testing.T) {
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	dbtest.Run(t, db)
}

func TestPebbleDB_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.Write(ctx, []byte("persisted"), []byte("yes")))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Read(ctx, []byte("persisted"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), got)
}
