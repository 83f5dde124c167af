package value

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type point struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Label  string `json:"label,omitempty"`
	Hidden string `json:"-"`
	hidden string
}

type tagged string

func (t tagged) MarshalText() ([]byte, error) { return []byte("tag:" + string(t)), nil }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", 42, int64(42)},
		{"uint8", uint8(7), int64(7)},
		{"huge uint", uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{"integral float", 2.0, int64(2)},
		{"fractional float", 2.5, 2.5},
		{"json integer", json.Number("12"), int64(12)},
		{"json float", json.Number("1.25"), 1.25},
		{"string", "hello", "hello"},
		{"bytes", []byte{1, 2}, []byte{1, 2}},
		{"nil slice", []int(nil), []any{}},
		{"int slice", []int{1, 2}, []any{int64(1), int64(2)}},
		{"array", [2]string{"a", "b"}, []any{"a", "b"}},
		{"int keyed map", map[int]bool{1: true}, map[string]any{"1": true}},
		{"text marshaler", tagged("x"), "tag:x"},
		{"nil pointer", (*point)(nil), nil},
		{
			"struct",
			point{X: 1, Y: 2, Hidden: "h", hidden: "h"},
			map[string]any{"x": int64(1), "y": int64(2)},
		},
		{
			"struct pointer with omitempty set",
			&point{X: 1, Label: "p"},
			map[string]any{"x": int64(1), "y": int64(0), "label": "p"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(42, int64(42)))
	assert.True(t, Equal(42, 42.0))
	assert.True(t, Equal([]int{1, 2}, []any{1, int64(2)}))
	assert.True(t, Equal(map[string]int{"a": 1}, map[string]any{"a": 1.0}))
	assert.True(t, Equal([]string{}, []string(nil)))
	assert.True(t, Equal(point{X: 1, Y: 2}, map[string]any{"x": 1, "y": 2}))
	assert.True(t, Equal(math.NaN(), math.NaN()))

	assert.False(t, Equal(1, "1"))
	assert.False(t, Equal([]int{1, 2}, []int{2, 1}))
	assert.False(t, Equal(map[string]int{"a": 1}, map[string]int{"a": 1, "b": 2}))
	assert.False(t, Equal(nil, 0))
}

func TestEqual_NilAndEmpty(t *testing.T) {
	assert.True(t, Equal([]int(nil), []int{}))
	assert.True(t, Equal([]int(nil), []string{}))
	assert.True(t, Equal(map[string]int(nil), map[string]any{}))
	assert.True(t, Equal(nil, (*point)(nil)))
	assert.True(t, Equal(nil, nil))

	assert.False(t, Equal(nil, []int{}))
	assert.False(t, Equal(nil, []int(nil)))
	assert.False(t, Equal(map[string]any{}, nil))
	assert.NotEmpty(t, Diff(nil, []int{}))
}

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff(map[string]int{"a": 1}, map[string]any{"a": int64(1)}))

	d := Diff(map[string]int{"a": 1}, map[string]int{"a": 2})
	require.NotEmpty(t, d)
	assert.True(t, strings.Contains(d, `"a"`), d)
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"owner": "alice",
		"balances": []any{
			map[string]any{"token": "FLOW", "amount": 10},
			map[string]any{"token": "USD", "amount": 3},
		},
	}

	got, err := Lookup(doc, "")
	require.NoError(t, err)
	assert.True(t, Equal(doc, got))

	got, err = Lookup(doc, "owner")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	got, err = Lookup(doc, "balances.1.amount")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	_, err = Lookup(doc, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = Lookup(doc, "balances.2")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = Lookup(doc, "balances.first")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = Lookup(doc, "owner.name")
	assert.ErrorIs(t, err, ErrNotContainer)
}

func TestEncodeDecode(t *testing.T) {
	in := map[string]any{
		"n":     -5,
		"f":     0.5,
		"s":     "text",
		"b":     []byte{0xde, 0xad},
		"list":  []any{true, nil, "x"},
		"inner": map[string]any{"k": uint16(9)},
	}

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, Diff(in, out))

	again, err := Encode(out)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding must be canonical")

	_, err = Decode([]byte{0x82, 0x01})
	assert.Error(t, err)
}

func TestEncodeDecode_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		in := map[string]any{
			"int":    rapid.Int64().Draw(rt, "int"),
			"string": rapid.String().Draw(rt, "string"),
			"bool":   rapid.Bool().Draw(rt, "bool"),
			"list":   Normalize(rapid.SliceOf(rapid.Int()).Draw(rt, "list")),
		}

		data, err := Encode(in)
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		out, err := Decode(data)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if !Equal(in, out) {
			rt.Fatalf("round trip mismatch:\n%s", Diff(in, out))
		}
	})
}
