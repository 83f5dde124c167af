package interaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeJamon/shalltest/internal/emulator"
)

var errNilFailure = errors.New("interaction failed without an error")

// Outcome is the settled result of an Interaction: either a success carrying
// a value or a failure carrying an error, never both.
type Outcome struct {
	value any
	err   error
}

// Success returns a successful outcome holding v.
func Success(v any) Outcome {
	return Outcome{value: v}
}

// Failure returns a failed outcome holding err.
func Failure(err error) Outcome {
	if err == nil {
		err = errNilFailure
	}
	return Outcome{err: err}
}

// FromResult converts a (value, error) pair into an Outcome.
func FromResult(v any, err error) Outcome {
	if err != nil {
		return Failure(err)
	}
	return Success(v)
}

func (o Outcome) Ok() bool {
	return o.err == nil
}

func (o Outcome) Value() any {
	return o.value
}

func (o Outcome) Err() error {
	return o.err
}

// Message returns the failure message, or "" for a success.
func (o Outcome) Message() string {
	if o.err == nil {
		return ""
	}
	return o.err.Error()
}

// Unpack returns the outcome as a (result, error) pair.
func (o Outcome) Unpack() (any, error) {
	return o.value, o.err
}

// Result returns the transaction result behind the outcome, for successes
// and for sealed failures alike. It returns nil for scripts and for
// transactions that never executed.
func (o Outcome) Result() *emulator.TransactionResult {
	if res, ok := o.value.(*emulator.TransactionResult); ok {
		return res
	}
	var txErr *emulator.TransactionError
	if errors.As(o.err, &txErr) {
		return txErr.Result
	}
	return nil
}

// Canceled reports whether the failure came from the awaiting context rather
// than from execution.
func (o Outcome) Canceled() bool {
	return errors.Is(o.err, context.Canceled) || errors.Is(o.err, context.DeadlineExceeded)
}

func (o Outcome) String() string {
	if o.err != nil {
		return fmt.Sprintf("failure(%s)", o.err)
	}
	if res, ok := o.value.(*emulator.TransactionResult); ok {
		return fmt.Sprintf("success(transaction %s, %s)", res.ID, res.Status)
	}
	return fmt.Sprintf("success(%v)", o.value)
}
