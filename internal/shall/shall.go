// Package shall provides assertion helpers for transaction and script
// interactions: Pass, Revert and Resolve await an interaction and check its
// outcome, HavePath and HaveStorageValue inspect account storage.
//
// Each helper comes in two forms. The Expect* functions return an
// *AssertionError on mismatch and are usable anywhere. The short forms take
// a T, report the error and stop the calling goroutine with FailNow.
package shall

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/LeJamon/shalltest/internal/interaction"
)

// T is the subset of testing.TB the helpers need.
type T interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

func contextOf(t T) context.Context {
	if c, ok := t.(interface{ Context() context.Context }); ok {
		if ctx := c.Context(); ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

func check(t T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("%s", err)
		t.FailNow()
	}
}

// Pass fails t unless ix succeeds. It returns the outcome.
func Pass(t T, ix interaction.Interaction) interaction.Outcome {
	t.Helper()
	out, err := ExpectPass(contextOf(t), ix)
	check(t, err)
	return out
}

// Revert fails t unless ix fails, optionally with a message matching
// expect. See ExpectRevert.
func Revert(t T, ix interaction.Interaction, expect ...any) interaction.Outcome {
	t.Helper()
	out, err := ExpectRevert(contextOf(t), ix, expect...)
	check(t, err)
	return out
}

// Resolve fails t unless ix produces a value.
func Resolve(t T, ix interaction.Interaction) interaction.Outcome {
	t.Helper()
	out, err := ExpectResolve(contextOf(t), ix)
	check(t, err)
	return out
}

// ResolveAs is Resolve returning the value as a V. Numeric values are
// converted when V holds them exactly, so a script returning int64(42) can be
// read as an int but int64(300) cannot be read as a uint8.
func ResolveAs[V any](t T, ix interaction.Interaction) V {
	t.Helper()
	out := Resolve(t, ix)
	v, err := as[V](out.Value())
	check(t, err)
	return v
}

func as[V any](raw any) (V, error) {
	var zero V
	if v, ok := raw.(V); ok {
		return v, nil
	}
	want := reflect.TypeOf((*V)(nil)).Elem()
	rv := reflect.ValueOf(raw)
	if rv.IsValid() && isNumeric(rv.Kind()) && isNumeric(want.Kind()) {
		if cv, ok := convertExact(rv, want); ok {
			return cv.Interface().(V), nil
		}
		return zero, &AssertionError{
			Op:      OpResolve,
			Message: fmt.Sprintf("resolved value %v of type %T does not fit in a %s", raw, raw, want),
		}
	}
	return zero, &AssertionError{
		Op:      OpResolve,
		Message: fmt.Sprintf("resolved value %v of type %T is not a %s", raw, raw, want),
	}
}

// convertExact converts rv to want only if the result converts back to the
// same value.
func convertExact(rv reflect.Value, want reflect.Type) (reflect.Value, bool) {
	from := rv.Kind()
	switch {
	case isFloat(from) && !isFloat(want.Kind()):
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return reflect.Value{}, false
		}
	case isFloat(from) && math.IsNaN(rv.Float()):
		return rv.Convert(want), true
	case isSigned(from) && isUnsigned(want.Kind()) && rv.Int() < 0:
		return reflect.Value{}, false
	}

	cv := rv.Convert(want)
	switch {
	case isUnsigned(from) && isSigned(want.Kind()) && cv.Int() < 0:
		return reflect.Value{}, false
	case isFloat(want.Kind()) && math.IsInf(cv.Float(), 0) && !(isFloat(from) && math.IsInf(rv.Float(), 0)):
		return reflect.Value{}, false
	}
	if !cv.Convert(rv.Type()).Equal(rv) {
		return reflect.Value{}, false
	}
	return cv, true
}

func isNumeric(k reflect.Kind) bool {
	return isSigned(k) || isUnsigned(k) || isFloat(k)
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUnsigned(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// HavePath fails t unless account has a value stored at path.
func HavePath(t T, in interaction.Inspector, account, path string) {
	t.Helper()
	check(t, ExpectPath(contextOf(t), in, account, path))
}

// HaveStorageValue fails t unless the value selected by params deep-equals
// params.Expect.
func HaveStorageValue(t T, in interaction.Inspector, account string, params StorageParams) {
	t.Helper()
	check(t, ExpectStorageValue(contextOf(t), in, account, params))
}

// Assertions binds a T and a client so interactions can be built and
// asserted with less ceremony.
type Assertions struct {
	t      T
	client interaction.Client
}

// New returns Assertions reporting to t and running against client.
func New(t T, client interaction.Client) *Assertions {
	return &Assertions{t: t, client: client}
}

// Tx returns a deferred transaction interaction.
func (a *Assertions) Tx(cfg interaction.TxConfig) interaction.Func {
	return interaction.SendTransaction(a.client, cfg)
}

// Script returns a deferred script interaction.
func (a *Assertions) Script(cfg interaction.ScriptConfig) interaction.Func {
	return interaction.ExecuteScript(a.client, cfg)
}

func (a *Assertions) Pass(ix interaction.Interaction) interaction.Outcome {
	a.t.Helper()
	return Pass(a.t, ix)
}

func (a *Assertions) Revert(ix interaction.Interaction, expect ...any) interaction.Outcome {
	a.t.Helper()
	return Revert(a.t, ix, expect...)
}

func (a *Assertions) Resolve(ix interaction.Interaction) interaction.Outcome {
	a.t.Helper()
	return Resolve(a.t, ix)
}

func (a *Assertions) HavePath(account, path string) {
	a.t.Helper()
	HavePath(a.t, a.client, account, path)
}

func (a *Assertions) HaveStorageValue(account string, params StorageParams) {
	a.t.Helper()
	HaveStorageValue(a.t, a.client, account, params)
}
