// Package emutest starts emulators scoped to a single test.
package emutest

import (
	"context"
	"testing"

	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// New starts an in-memory emulator with the default configuration and stops
// it when the test finishes. Emulator logs go to the test log.
func New(t testing.TB, opts ...emulator.Option) *emulator.Emulator {
	t.Helper()
	return NewWithConfig(t, emulator.DefaultConfig(), opts...)
}

// NewWithConfig is like New but uses cfg.
func NewWithConfig(t testing.TB, cfg emulator.Config, opts ...emulator.Option) *emulator.Emulator {
	t.Helper()

	opts = append([]emulator.Option{emulator.WithLogger(zaptest.NewLogger(t))}, opts...)
	emu, err := emulator.New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, emu.Start(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, emu.Stop())
	})
	return emu
}
