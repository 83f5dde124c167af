package shall_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/LeJamon/shalltest/internal/interaction"
	"github.com/LeJamon/shalltest/internal/shall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newToolingT(t *testing.T) *shall.ToolingT {
	return shall.NewToolingT(context.Background(), t.Name(), zaptest.NewLogger(t))
}

func TestToolingT_Pass(t *testing.T) {
	tt := newToolingT(t)
	passed := tt.Run(func(st shall.T) {
		shall.Pass(st, interaction.Resolved("ok"))
	})
	assert.True(t, passed)
	assert.Empty(t, tt.Errors())
}

func TestToolingT_FailNowStopsTheStep(t *testing.T) {
	tt := newToolingT(t)
	reached := false
	passed := tt.Run(func(st shall.T) {
		shall.Resolve(st, interaction.Rejected(errors.New("broken")))
		reached = true
	})
	assert.False(t, passed)
	assert.False(t, reached)
	require.Len(t, tt.Errors(), 1)
	assert.Equal(t, "shallResolve: assertion failed: expected interaction to resolve, but it failed: broken", tt.Errors()[0])
}

func TestToolingT_Panic(t *testing.T) {
	tt := newToolingT(t)
	passed := tt.Run(func(shall.T) { panic("oops") })
	assert.False(t, passed)
	assert.Equal(t, []string{"panic: oops"}, tt.Errors())
	assert.True(t, tt.Failed())
}

func TestResolveAs_WrongType(t *testing.T) {
	tt := newToolingT(t)
	passed := tt.Run(func(st shall.T) {
		shall.ResolveAs[string](st, interaction.Resolved(int64(1)))
	})
	assert.False(t, passed)
	require.Len(t, tt.Errors(), 1)
	assert.Contains(t, tt.Errors()[0], "resolved value 1 of type int64 is not a string")
}

func TestRevert_FailsOnPass(t *testing.T) {
	tt := newToolingT(t)
	passed := tt.Run(func(st shall.T) {
		shall.Revert(st, interaction.Resolved(1), "anything")
	})
	assert.False(t, passed)
}

func TestResolveAs_Numeric(t *testing.T) {
	resolve := func(t *testing.T, read func(st shall.T)) []string {
		tt := newToolingT(t)
		tt.Run(read)
		return tt.Errors()
	}

	t.Run("exact", func(t *testing.T) {
		var (
			i   int
			u8  uint8
			f   float64
			i32 int32
		)
		errs := resolve(t, func(st shall.T) {
			i = shall.ResolveAs[int](st, interaction.Resolved(int64(42)))
			u8 = shall.ResolveAs[uint8](st, interaction.Resolved(int64(255)))
			f = shall.ResolveAs[float64](st, interaction.Resolved(int64(3)))
			i32 = shall.ResolveAs[int32](st, interaction.Resolved(2.0))
		})
		assert.Empty(t, errs)
		assert.Equal(t, 42, i)
		assert.Equal(t, uint8(255), u8)
		assert.Equal(t, 3.0, f)
		assert.Equal(t, int32(2), i32)
	})

	lossy := []struct {
		name string
		read func(st shall.T)
		want string
	}{
		{
			name: "narrowing overflow",
			read: func(st shall.T) { shall.ResolveAs[uint8](st, interaction.Resolved(int64(300))) },
			want: "resolved value 300 of type int64 does not fit in a uint8",
		},
		{
			name: "fractional float to int",
			read: func(st shall.T) { shall.ResolveAs[int](st, interaction.Resolved(2.7)) },
			want: "resolved value 2.7 of type float64 does not fit in a int",
		},
		{
			name: "negative to unsigned",
			read: func(st shall.T) { shall.ResolveAs[uint64](st, interaction.Resolved(int64(-1))) },
			want: "resolved value -1 of type int64 does not fit in a uint64",
		},
		{
			name: "large unsigned to signed",
			read: func(st shall.T) { shall.ResolveAs[int64](st, interaction.Resolved(uint64(math.MaxUint64))) },
			want: "does not fit in a int64",
		},
		{
			name: "precision loss",
			read: func(st shall.T) { shall.ResolveAs[float64](st, interaction.Resolved(int64(1<<53+1))) },
			want: "does not fit in a float64",
		},
	}
	for _, tc := range lossy {
		t.Run(tc.name, func(t *testing.T) {
			errs := resolve(t, tc.read)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "shallResolve: assertion failed")
			assert.Contains(t, errs[0], tc.want)
		})
	}
}
