// Package region reads Hytale IndexedStorage region files: a fixed
// header, a blob index table addressing up to blobCount chunk slots,
// and a segment-aligned storage area of zstd-compressed blobs.
//
// The reader is strictly read-only and uses positioned reads
// throughout, so concurrent blob reads through one reader are safe.
package region

// Magic is the 20-byte token at the start of every region file.
const Magic = "HytaleIndexedStorage"

// Fixed layout of the container. All multi-byte header and blob fields
// are big-endian.
const (
	// HeaderSize covers the magic plus version, blobCount, and
	// segmentSize.
	HeaderSize = 32

	// SupportedVersion is the only container version observed in the
	// wild. Anything else is rejected rather than misread.
	SupportedVersion = 1

	// DefaultBlobCount and DefaultSegmentSize are the values every
	// known producer writes.
	DefaultBlobCount   = 1024
	DefaultSegmentSize = 4096

	// GridSize is the fixed chunk grid edge; a region holds
	// GridSize x GridSize chunk columns.
	GridSize = 32

	// blobCount beyond this is treated as corruption, not a big world.
	maxBlobCount = 1 << 20

	// DefaultMaxSourceSize caps the declared decompressed size of one
	// blob. Real chunks are well under a megabyte.
	DefaultMaxSourceSize = 64 << 20
)

// Header holds the decoded fixed header fields of a region file.
type Header struct {
	Version     uint32
	BlobCount   uint32
	SegmentSize uint32
}

// RawBlob is one chunk's stored bytes as read from a segment: the
// declared decompressed size and the zstd-compressed body.
type RawBlob struct {
	SrcLength  uint32
	Compressed []byte
}

// Stat summarizes an open region file.
type Stat struct {
	Path     string
	FileSize int64
	Header   Header
	Occupied int
}

// ChunkCoords maps a slot to its local chunk coordinates on the fixed
// 32x32 grid.
func ChunkCoords(slot int) (localX, localZ int) {
	return slot % GridSize, slot / GridSize
}

// SlotFor maps local chunk coordinates back to a slot.
func SlotFor(localX, localZ int) int {
	return localZ*GridSize + localX
}
