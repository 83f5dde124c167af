package rpc

import (
	"errors"
	"fmt"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/emulator"
)

// Error codes. The generic ones follow JSON-RPC 2.0.
const (
	CodeUnknown        = -1
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeParseError     = -32700

	CodeMissingCommand      = 2
	CodeSlowDown            = 7
	CodeNotRunning          = 11
	CodeUnknownAccount      = 19
	CodeTransactionNotFound = 24
	CodeInvalidPath         = 27
	CodePathNotFound        = 28
	CodeAccountExists       = 29
	CodeUnknownCode         = 42
	CodeInvalidArgument     = 43
	CodeInvalidTransaction  = 44
	CodeInvalidSignature    = 45
	CodeMissingSignature    = 46
	CodeAccountMalformed    = 50
	CodeScriptFailed        = 60
)

// Error is the error object carried in a response result.
type Error struct {
	Code    int    `json:"error_code"`
	Name    string `json:"error"`
	Message string `json:"error_message,omitempty"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Name
}

func newError(code int, name, format string, args ...any) *Error {
	return &Error{Code: code, Name: name, Message: fmt.Sprintf(format, args...)}
}

func errMethodNotFound(method string) *Error {
	return newError(CodeMethodNotFound, "unknownCmd", "unknown method: %s", method)
}

func errInvalidParams(format string, args ...any) *Error {
	return newError(CodeInvalidParams, "invalidParams", format, args...)
}

// sentinels maps emulator errors to their wire names. Order matters: the
// first match wins.
var sentinels = []struct {
	err  error
	code int
	name string
}{
	{emulator.ErrNotRunning, CodeNotRunning, "notRunning"},
	{emulator.ErrUnknownAccount, CodeUnknownAccount, "unknownAccount"},
	{emulator.ErrAccountExists, CodeAccountExists, "accountExists"},
	{emulator.ErrInvalidAccountName, CodeAccountMalformed, "accountMalformed"},
	{crypto.ErrInvalidAddress, CodeAccountMalformed, "accountMalformed"},
	{emulator.ErrInvalidPath, CodeInvalidPath, "invalidPath"},
	{emulator.ErrPathNotFound, CodePathNotFound, "pathNotFound"},
	{emulator.ErrUnknownCode, CodeUnknownCode, "unknownCode"},
	{emulator.ErrInvalidSignature, CodeInvalidSignature, "invalidSignature"},
	{emulator.ErrMissingSignature, CodeMissingSignature, "missingSignature"},
	{emulator.ErrInvalidTransaction, CodeInvalidTransaction, "invalidTransaction"},
	{emulator.ErrTransactionNotFound, CodeTransactionNotFound, "transactionNotFound"},
	{emulator.ErrInvalidArgument, CodeInvalidArgument, "invalidArgument"},
}

// toError converts an emulator error into a wire error.
func toError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var scriptErr *emulator.ScriptError
	if errors.As(err, &scriptErr) {
		return &Error{Code: CodeScriptFailed, Name: "scriptFailed", Message: scriptErr.Error()}
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return &Error{Code: s.code, Name: s.name, Message: err.Error()}
		}
	}
	return &Error{Code: CodeInternal, Name: "internal", Message: err.Error()}
}

// fromError converts a wire error back into an error matching the emulator
// sentinels, so callers can use errors.Is on either side of the connection.
func fromError(e *Error, scriptCode string) error {
	if e.Name == "scriptFailed" {
		return &emulator.ScriptError{Code: scriptCode, Err: errors.New(e.Message)}
	}
	for _, s := range sentinels {
		if s.name == e.Name {
			return &remoteError{wire: e, sentinel: s.err}
		}
	}
	return e
}

// remoteError is a wire error that unwraps to the matching sentinel.
type remoteError struct {
	wire     *Error
	sentinel error
}

func (e *remoteError) Error() string {
	return e.wire.Error()
}

func (e *remoteError) Unwrap() []error {
	return []error{e.wire, e.sentinel}
}
