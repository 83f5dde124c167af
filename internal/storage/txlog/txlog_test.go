package txlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(height uint64, payer string, failed bool) Record {
	rec := Record{
		ID:          fmt.Sprintf("tx-%03d", height),
		BlockHeight: height,
		Timestamp:   time.Date(2024, 1, 1, 0, 0, int(height), 0, time.UTC),
		Code:        "storage.save",
		Payer:       payer,
		Payload:     []byte(`{"status":"SEALED"}`),
	}
	if failed {
		rec.StatusCode = 1
		rec.ErrorMessage = "boom"
	}
	return rec
}

func runLogSuite(t *testing.T, log Log) {
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, record(2, "0x01", false)))
	require.NoError(t, log.Append(ctx, record(1, "0x02", true)))
	require.NoError(t, log.Append(ctx, record(3, "0x01", false)))

	t.Run("Get", func(t *testing.T) {
		got, err := log.Get(ctx, "tx-001")
		require.NoError(t, err)
		assert.Equal(t, record(1, "0x02", true), got)
		assert.True(t, got.Failed())

		_, err = log.Get(ctx, "tx-999")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Duplicate", func(t *testing.T) {
		err := log.Append(ctx, record(2, "0x01", false))
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("List", func(t *testing.T) {
		all, err := log.List(ctx, ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []uint64{1, 2, 3}, heights(all))

		byPayer, err := log.List(ctx, ListOptions{Payer: "0x01"})
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 3}, heights(byPayer))

		limited, err := log.List(ctx, ListOptions{FromHeight: 2, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []uint64{2}, heights(limited))
	})

	t.Run("Close", func(t *testing.T) {
		require.NoError(t, log.Close())
		_, err := log.Get(ctx, "tx-001")
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func heights(recs []Record) []uint64 {
	out := make([]uint64, len(recs))
	for i, r := range recs {
		out[i] = r.BlockHeight
	}
	return out
}

func TestMemoryLog(t *testing.T) {
	runLogSuite(t, NewMemory())
}

func TestSQLiteLog(t *testing.T) {
	log, err := Open(context.Background(), Config{
		Backend: BackendSQLite,
		DSN:     filepath.Join(t.TempDir(), "txlog.db"),
	})
	require.NoError(t, err)
	runLogSuite(t, log)
}

func TestPostgresLog(t *testing.T) {
	dsn := os.Getenv("SHALLTEST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SHALLTEST_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	log, err := OpenSQL(ctx, BackendPostgres, dsn)
	require.NoError(t, err)
	_, err = log.db.ExecContext(ctx, `DELETE FROM transactions`)
	require.NoError(t, err)
	runLogSuite(t, log)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "mongo"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(context.Background(), Config{Backend: BackendSQLite})
	assert.Error(t, err)
}

func TestSQL_Rebind(t *testing.T) {
	pg := &SQL{dialect: dialects[BackendPostgres]}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &SQL{dialect: dialects[BackendSQLite]}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
