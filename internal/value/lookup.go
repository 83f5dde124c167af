package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrKeyNotFound is returned when a key does not exist in a value.
	ErrKeyNotFound = errors.New("key not found")
	// ErrNotContainer is returned when a key descends into a scalar.
	ErrNotContainer = errors.New("value is not a map or list")
)

// Lookup descends into v following key, a dot separated list of map keys
// and list indexes ("balances.0.amount"). An empty key returns v itself.
func Lookup(v any, key string) (any, error) {
	cur := Normalize(v)
	if key == "" {
		return cur, nil
	}

	segments := strings.Split(key, ".")
	for i, seg := range segments {
		at := strings.Join(segments[:i+1], ".")
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, at)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("%w: %q (list has %d items)", ErrKeyNotFound, at, len(node))
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("%w: %q has type %T", ErrNotContainer, strings.Join(segments[:i], "."), cur)
		}
	}
	return cur, nil
}
