package rpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
		name string
	}{
		{fmt.Errorf("%w: bob", emulator.ErrUnknownAccount), CodeUnknownAccount, "unknownAccount"},
		{fmt.Errorf("%w: /storage/x in 0x01", emulator.ErrPathNotFound), CodePathNotFound, "pathNotFound"},
		{emulator.ErrInvalidPath, CodeInvalidPath, "invalidPath"},
		{emulator.ErrNotRunning, CodeNotRunning, "notRunning"},
		{emulator.ErrMissingSignature, CodeMissingSignature, "missingSignature"},
		{errors.New("disk on fire"), CodeInternal, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := toError(tt.err)
			assert.Equal(t, tt.code, wire.Code)
			assert.Equal(t, tt.name, wire.Name)
			assert.Equal(t, tt.err.Error(), wire.Message)

			back := fromError(wire, "")
			assert.Equal(t, tt.err.Error(), back.Error())
			if tt.name != "internal" {
				assert.True(t, errors.Is(back, errors.Unwrap(tt.err)) || errors.Is(back, tt.err))
			}
		})
	}
}

func TestErrorMapping_Script(t *testing.T) {
	wire := toError(&emulator.ScriptError{Code: "math.sum", Err: errors.New("overflow")})
	assert.Equal(t, CodeScriptFailed, wire.Code)

	back := fromError(wire, "math.sum")
	var scriptErr *emulator.ScriptError
	require.ErrorAs(t, back, &scriptErr)
	assert.Equal(t, "math.sum", scriptErr.Code)
	assert.Equal(t, "overflow", back.Error())
}

func TestErrorMapping_PassThrough(t *testing.T) {
	e := errInvalidParams("bad %s", "thing")
	assert.Same(t, e, toError(fmt.Errorf("wrapped: %w", e)))
	assert.Equal(t, "bad thing", e.Error())
	assert.Equal(t, "unknown method: x", errMethodNotFound("x").Error())
}
