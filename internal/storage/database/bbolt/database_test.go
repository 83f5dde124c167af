package bbolt

import (
	"path/filepath"
	"testing"

	"github.com/LeJamon/shalltest/internal/storage/database/dbtest"
	"github.com/stretchr/testify/require"
)

func TestBBoltDB(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	dbtest.Run(t, db)
}
