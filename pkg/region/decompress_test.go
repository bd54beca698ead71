package region

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func compressForTest(t *testing.T, raw []byte) []byte {
	t.Helper()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("Failed to create zstd encoder: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil)
}

func TestDecompressRoundtrip(t *testing.T) {
	raw := []byte("the raw bytes of a serialized chunk document")
	compressed := compressForTest(t, raw)

	d, err := NewDecompressor()
	if err != nil {
		t.Fatalf("Failed to create decompressor: %v", err)
	}
	defer d.Close()

	got, err := d.Decompress(compressed, uint32(len(raw)))
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Error("Decompressed bytes do not match original")
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	raw := []byte("some bytes")
	compressed := compressForTest(t, raw)

	d, err := NewDecompressor()
	if err != nil {
		t.Fatalf("Failed to create decompressor: %v", err)
	}
	defer d.Close()

	// Declared size disagrees with the actual stream; both directions
	// must fail.
	if _, err := d.Decompress(compressed, uint32(len(raw)+1)); !errors.Is(err, ErrDecompression) {
		t.Errorf("Expected ErrDecompression for oversized declaration, got %v", err)
	}
	if _, err := d.Decompress(compressed, uint32(len(raw)-1)); !errors.Is(err, ErrDecompression) {
		t.Errorf("Expected ErrDecompression for undersized declaration, got %v", err)
	}
}

func TestDecompressCorruptStream(t *testing.T) {
	d, err := NewDecompressor()
	if err != nil {
		t.Fatalf("Failed to create decompressor: %v", err)
	}
	defer d.Close()

	_, err = d.Decompress([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}, 16)
	if !errors.Is(err, ErrDecompression) {
		t.Errorf("Expected ErrDecompression for garbage stream, got %v", err)
	}
}

func TestDecompressEmptyPayload(t *testing.T) {
	compressed := compressForTest(t, nil)

	d, err := NewDecompressor()
	if err != nil {
		t.Fatalf("Failed to create decompressor: %v", err)
	}
	defer d.Close()

	got, err := d.Decompress(compressed, 0)
	if err != nil {
		t.Fatalf("Failed to decompress empty payload: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected 0 bytes, got %d", len(got))
	}
}

func TestDecompressBlob(t *testing.T) {
	raw := []byte("blob payload")
	blob := &RawBlob{
		SrcLength:  uint32(len(raw)),
		Compressed: compressForTest(t, raw),
	}

	d, err := NewDecompressor()
	if err != nil {
		t.Fatalf("Failed to create decompressor: %v", err)
	}
	defer d.Close()

	got, err := d.DecompressBlob(blob)
	if err != nil {
		t.Fatalf("Failed to decompress blob: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Error("Decompressed blob does not match original")
	}
}

func TestDecompressAfterClose(t *testing.T) {
	raw := []byte("payload")
	compressed := compressForTest(t, raw)

	d, err := NewDecompressor()
	if err != nil {
		t.Fatalf("Failed to create decompressor: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Failed to close decompressor: %v", err)
	}

	if _, err := d.Decompress(compressed, uint32(len(raw))); !errors.Is(err, ErrDecompression) {
		t.Errorf("Expected ErrDecompression after close, got %v", err)
	}

	// Close is idempotent.
	if err := d.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}
