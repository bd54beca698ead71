package region

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Decompressor turns a blob's compressed bytes into exactly the number
// of raw bytes the blob declared. One Decompressor is shared across
// blob reads and is safe for concurrent use.
type Decompressor struct {
	zstdDecoder *zstd.Decoder

	// Mutex to protect decoder access
	mu sync.Mutex
}

// NewDecompressor creates a decompressor with an initialized codec.
func NewDecompressor() (*Decompressor, error) {
	zstdDecoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZSTD decoder: %w", err)
	}
	return &Decompressor{zstdDecoder: zstdDecoder}, nil
}

// Decompress decodes a zstd stream and enforces the declared size. The
// output is never silently truncated or padded.
func (d *Decompressor) Decompress(compressed []byte, expectedSize uint32) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.zstdDecoder == nil {
		return nil, fmt.Errorf("%w: decompressor is closed", ErrDecompression)
	}

	raw, err := d.zstdDecoder.DecodeAll(compressed, make([]byte, 0, expectedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	if uint32(len(raw)) != expectedSize {
		return nil, fmt.Errorf("%w: decompressed %d bytes, blob declared %d",
			ErrDecompression, len(raw), expectedSize)
	}
	return raw, nil
}

// DecompressBlob is a convenience wrapper over a RawBlob.
func (d *Decompressor) DecompressBlob(blob *RawBlob) ([]byte, error) {
	return d.Decompress(blob.Compressed, blob.SrcLength)
}

// Close releases the codec resources.
func (d *Decompressor) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.zstdDecoder != nil {
		d.zstdDecoder.Close()
		d.zstdDecoder = nil
	}
	return nil
}
