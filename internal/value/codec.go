package value

import (
	"fmt"
	"reflect"

	"github.com/ugorji/go/codec"
)

var cborHandle = newCborHandle()

func newCborHandle() *codec.CborHandle {
	h := new(codec.CborHandle)
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	h.SliceType = reflect.TypeOf([]interface{}(nil))
	h.SignedInteger = true
	h.Canonical = true
	return h
}

// Encode serializes the canonical form of v as CBOR. Map keys are written in
// sorted order, so equal values always encode to equal bytes.
func Encode(v any) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, cborHandle)
	if err := enc.Encode(Normalize(v)); err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return out, nil
}

// Decode parses CBOR produced by Encode back into a canonical value.
func Decode(data []byte) (any, error) {
	var v interface{}
	dec := codec.NewDecoderBytes(data, cborHandle)
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return Normalize(v), nil
}
