package shall

import (
	"errors"
	"fmt"
)

// ErrUsage reports helpers called with invalid arguments.
var ErrUsage = errors.New("invalid assertion usage")

// AssertionError reports an expectation that did not hold. Err, when set, is
// the execution failure behind the mismatch.
type AssertionError struct {
	Op      string
	Message string
	Err     error
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: assertion failed: %s", e.Op, e.Message)
}

func (e *AssertionError) Unwrap() error {
	return e.Err
}

// IsAssertion reports whether err is, or wraps, an *AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

func assertionf(op string, cause error, format string, args ...any) *AssertionError {
	return &AssertionError{Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}
