package memory

import (
	"testing"

	"github.com/LeJamon/shalltest/internal/storage/database/dbtest"
)

func TestMemoryDB(t *testing.T) {
	dbtest.Run(t, New())
}
