// Package value defines the canonical form of values stored in account
// storage and returned by scripts, and the structural equality used to
// compare them.
//
// Canonical values are built from nil, bool, int64, uint64 (only above
// math.MaxInt64), float64, string, []byte, []any and map[string]any.
package value

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// Normalize converts v into its canonical form.
//
// Integers of every width become int64. Floats with an integral value that
// fits in an int64 become int64 as well, so 2 and 2.0 compare equal. Structs
// become maps keyed by their json field names. Values implementing
// encoding.TextMarshaler are replaced by their text.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	switch x := v.(type) {
	case bool, string:
		return x
	case []byte:
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return x.String()
	case encoding.TextMarshaler:
		text, err := x.MarshalText()
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(text)
	}
	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeReflect(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return u
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(rv.Float())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return []any{}
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), rv.Bytes()...)
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Struct:
		out := make(map[string]any)
		normalizeStruct(rv, out)
		return out
	default:
		return fmt.Sprint(rv.Interface())
	}
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.Type().Implements(textMarshalerType) {
		if text, err := k.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
			return string(text)
		}
	}
	return fmt.Sprint(Normalize(k.Interface()))
}

func normalizeStruct(rv reflect.Value, out map[string]any) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonName(field)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if field.Anonymous && name == "" && fv.Kind() == reflect.Struct {
			normalizeStruct(fv, out)
			continue
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		if name == "" {
			name = field.Name
		}
		out[name] = Normalize(fv.Interface())
	}
}

func jsonName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return "", false, false
	}
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return parts[0], omitEmpty, false
}

var cmpOptions = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmpopts.EquateNaNs(),
}

// Equal reports whether a and b are structurally equal once normalized.
// Nil and empty slices or maps of any type compare equal, but an untyped nil
// is the absence of a value and equals only nil.
func Equal(a, b any) bool {
	return cmp.Equal(Normalize(a), Normalize(b), cmpOptions...)
}

// Diff returns a human-readable report of the differences between want and
// got, or "" when they are equal.
func Diff(want, got any) string {
	return cmp.Diff(Normalize(want), Normalize(got), cmpOptions...)
}
