package compression

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pierrec/lz4"
)

// NoCompressor implements a pass-through compressor that doesn't compress data.
type NoCompressor struct{}

func (c *NoCompressor) Name() string {
	return "none"
}

func (c *NoCompressor) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (c *NoCompressor) Decompress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// LZ4Compressor implements LZ4 block compression. The output is the
// uncompressed length as a uvarint followed by the LZ4 block.
// It is safe for concurrent use.
type LZ4Compressor struct{}

var hashTables = sync.Pool{
	New: func() any { return new([1 << 16]int) },
}

func (c *LZ4Compressor) Name() string {
	return "lz4"
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{0}, nil
	}

	out := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
	hdr := binary.PutUvarint(out, uint64(len(data)))

	ht := hashTables.Get().(*[1 << 16]int)
	*ht = [1 << 16]int{}
	n, err := lz4.CompressBlock(data, out[hdr:], ht[:])
	hashTables.Put(ht)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 || hdr+n >= len(data) {
		return nil, ErrIncompressible
	}
	return out[:hdr+n], nil
}

func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	size, hdr := binary.Uvarint(data)
	if hdr <= 0 {
		return nil, fmt.Errorf("lz4 decompression failed: bad length header")
	}
	if size == 0 {
		return []byte{}, nil
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[hdr:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	if uint64(n) != size {
		return nil, fmt.Errorf("lz4 decompression failed: got %d bytes, want %d", n, size)
	}
	return out, nil
}
