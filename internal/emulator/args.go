package emulator

import (
	"fmt"

	"github.com/LeJamon/shalltest/internal/crypto"
)

// ExpectArgs fails unless exactly n arguments were passed.
func ExpectArgs(args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: expected %d arguments, got %d", ErrInvalidArgument, n, len(args))
	}
	return nil
}

func arg(args []any, i int) (any, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%w: missing argument %d", ErrInvalidArgument, i)
	}
	return args[i], nil
}

// ArgString returns argument i as a string.
func ArgString(args []any, i int) (string, error) {
	v, err := arg(args, i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d must be a string, got %T", ErrInvalidArgument, i, v)
	}
	return s, nil
}

// ArgInt returns argument i as an int64.
func ArgInt(args []any, i int) (int64, error) {
	v, err := arg(args, i)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: argument %d must be an integer, got %T", ErrInvalidArgument, i, v)
	}
	return n, nil
}

// ArgAddress returns argument i parsed as an address.
func ArgAddress(args []any, i int) (crypto.Address, error) {
	s, err := ArgString(args, i)
	if err != nil {
		return crypto.EmptyAddress, err
	}
	addr, err := crypto.ParseAddress(s)
	if err != nil {
		return crypto.EmptyAddress, fmt.Errorf("%w: argument %d: %v", ErrInvalidArgument, i, err)
	}
	return addr, nil
}

// ArgPath returns argument i as a storage path. A bare identifier is taken
// to be in the storage domain.
func ArgPath(args []any, i int) (Path, error) {
	s, err := ArgString(args, i)
	if err != nil {
		return Path{}, err
	}
	return PathOrStorage(s)
}

// PathOrStorage parses s as a full path, or as an identifier in the storage
// domain when it has no leading slash.
func PathOrStorage(s string) (Path, error) {
	if len(s) > 0 && s[0] == '/' {
		return ParsePath(s)
	}
	p := StoragePath(s)
	if err := p.Validate(); err != nil {
		return Path{}, err
	}
	return p, nil
}
