package emulator

import (
	"errors"
	"fmt"
)

var (
	ErrNotRunning           = errors.New("emulator is not running")
	ErrAlreadyRunning       = errors.New("emulator is already running")
	ErrUnknownAccount       = errors.New("unknown account")
	ErrAccountExists        = errors.New("account already exists")
	ErrInvalidAccountName   = errors.New("invalid account name")
	ErrInvalidPath          = errors.New("invalid storage path")
	ErrPathNotFound         = errors.New("storage path not found")
	ErrUnknownCode          = errors.New("unknown code")
	ErrInvalidTransaction   = errors.New("invalid transaction")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrMissingSignature     = errors.New("missing signature")
	ErrNotAuthorized        = errors.New("account did not authorize the transaction")
	ErrComputeLimitExceeded = errors.New("compute limit exceeded")
	ErrReadOnly             = errors.New("scripts cannot modify storage")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrTransactionNotFound  = errors.New("transaction not found")
)

// TransactionError reports a transaction that was sealed with an error.
type TransactionError struct {
	Result *TransactionResult
}

func (e *TransactionError) Error() string {
	return e.Result.ErrorMessage
}

// ScriptError reports a script that failed during execution.
type ScriptError struct {
	Code string
	Err  error
}

func (e *ScriptError) Error() string {
	return e.Err.Error()
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// panicError carries a recovered handler panic. Its message is the panic
// value itself so that panic("x") reverts with message "x".
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	switch v := e.value.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

func (e *panicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}

// IsPanic reports whether err came from a recovered handler panic.
func IsPanic(err error) bool {
	var pe *panicError
	return errors.As(err, &pe)
}
