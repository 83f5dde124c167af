package emulator_test

import (
	"testing"

	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		in      string
		want    emulator.Path
		wantErr bool
	}{
		{in: "/storage/vault", want: emulator.Path{Domain: emulator.DomainStorage, Identifier: "vault"}},
		{in: "/public/receiver_1", want: emulator.Path{Domain: emulator.DomainPublic, Identifier: "receiver_1"}},
		{in: "/private/_x", want: emulator.Path{Domain: emulator.DomainPrivate, Identifier: "_x"}},
		{in: "storage/vault", wantErr: true},
		{in: "/storage", wantErr: true},
		{in: "/storage/", wantErr: true},
		{in: "/other/vault", wantErr: true},
		{in: "/storage/1vault", wantErr: true},
		{in: "/storage/a/b", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := emulator.ParsePath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, emulator.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestPathOrStorage(t *testing.T) {
	p, err := emulator.PathOrStorage("vault")
	require.NoError(t, err)
	assert.Equal(t, emulator.StoragePath("vault"), p)

	p, err = emulator.PathOrStorage("/public/vault")
	require.NoError(t, err)
	assert.Equal(t, emulator.PublicPath("vault"), p)

	_, err = emulator.PathOrStorage("not a name")
	assert.ErrorIs(t, err, emulator.ErrInvalidPath)
}

func TestMustParsePath(t *testing.T) {
	assert.Equal(t, "/storage/x", emulator.MustParsePath("/storage/x").String())
	assert.Panics(t, func() { emulator.MustParsePath("x") })
}
