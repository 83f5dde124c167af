package storage

import (
	"errors"
	"fmt"

	"github.com/LeJamon/shalltest/internal/storage/compression"
)

// DefaultCompressionThreshold is the smallest payload Codec tries to compress.
const DefaultCompressionThreshold = 256

const (
	flagRaw        byte = 0
	flagCompressed byte = 1
)

// ErrCorruptValue is returned by Codec.Decode for malformed stored bytes.
var ErrCorruptValue = errors.New("corrupt stored value")

// Codec frames stored payloads with a one byte header recording whether the
// rest is compressed.
type Codec struct {
	compressor compression.Compressor
	threshold  int
}

// NewCodec returns a Codec using the named compressor. Payloads shorter than
// threshold are stored raw.
func NewCodec(compressor string, threshold int) (*Codec, error) {
	if compressor == "" {
		compressor = "none"
	}
	c, err := compression.Get(compressor)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DefaultCompressionThreshold
	}
	return &Codec{compressor: c, threshold: threshold}, nil
}

// Compressor returns the name of the configured compressor.
func (c *Codec) Compressor() string {
	return c.compressor.Name()
}

// Encode frames payload, compressing it when that saves space.
func (c *Codec) Encode(payload []byte) ([]byte, error) {
	if len(payload) >= c.threshold && c.compressor.Name() != "none" {
		compressed, err := c.compressor.Compress(payload)
		switch {
		case err == nil:
			return append([]byte{flagCompressed}, compressed...), nil
		case !errors.Is(err, compression.ErrIncompressible):
			return nil, err
		}
	}
	return append([]byte{flagRaw}, payload...), nil
}

// Decode reverses Encode.
func (c *Codec) Decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrCorruptValue)
	}
	switch stored[0] {
	case flagRaw:
		return stored[1:], nil
	case flagCompressed:
		out, err := c.compressor.Decompress(stored[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptValue, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown flag %d", ErrCorruptValue, stored[0])
	}
}
