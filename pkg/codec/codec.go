// Package codec decodes the packed binary payloads found inside Hytale
// chunk documents: palette-compressed voxel sections, heightmaps and
// tintmaps, and per-column environment data.
//
// Endianness is explicit everywhere. Palette sections and environment
// payloads are big-endian; heightmap and tintmap payloads are
// little-endian. The codecs never guess.
package codec

import "fmt"

// Section geometry. A section is a 32x32x32 voxel cube and a chunk
// column is 32x32 voxel columns.
const (
	// SectionSize is the edge length of a cubic section in voxels.
	SectionSize = 32
	// SectionVoxels is the number of voxels in one section.
	SectionVoxels = SectionSize * SectionSize * SectionSize
	// ColumnCount is the number of vertical columns in a chunk.
	ColumnCount = SectionSize * SectionSize

	halfByteArrayLen = SectionVoxels / 2
	byteArrayLen     = SectionVoxels
	shortArrayLen    = SectionVoxels * 2
	levelArrayLen    = SectionVoxels / 2
)

// VoxelCoords converts a linear voxel index into section-local x, y, z.
func VoxelCoords(i int) (x, y, z int) {
	return i & 0x1F, (i >> 10) & 0x1F, (i >> 5) & 0x1F
}

// VoxelIndex converts section-local x, y, z into a linear voxel index.
func VoxelIndex(x, y, z int) int {
	return x | z<<5 | y<<10
}

// NibbleOrder states which half of a byte holds the even-indexed value
// in a packed 4-bit array. The container format uses both conventions:
// voxel index arrays store the even value in the high nibble, level
// arrays store it in the low nibble. The order is always an explicit
// input; decoded values are never silently reinterpreted.
type NibbleOrder int

const (
	// EvenLow places even-indexed values in the low nibble.
	EvenLow NibbleOrder = iota
	// EvenHigh places even-indexed values in the high nibble.
	EvenHigh
)

// String returns the string representation of the nibble order
func (o NibbleOrder) String() string {
	switch o {
	case EvenLow:
		return "even-low"
	case EvenHigh:
		return "even-high"
	default:
		return fmt.Sprintf("NibbleOrder(%d)", o)
	}
}

// ParseNibbleOrder parses the string form produced by String.
func ParseNibbleOrder(name string) (NibbleOrder, error) {
	switch name {
	case "even-low":
		return EvenLow, nil
	case "even-high":
		return EvenHigh, nil
	default:
		return EvenLow, fmt.Errorf("unknown nibble order %q", name)
	}
}

// Flipped returns the opposite order.
func (o NibbleOrder) Flipped() NibbleOrder {
	if o == EvenLow {
		return EvenHigh
	}
	return EvenLow
}

// nibbles splits one byte into (even, odd) 4-bit values per the order.
func (o NibbleOrder) nibbles(b byte) (even, odd uint8) {
	if o == EvenLow {
		return b & 0x0F, b >> 4
	}
	return b >> 4, b & 0x0F
}

// WarningKind classifies non-fatal decode findings.
type WarningKind int

const (
	// WarnNibbleOrderAmbiguity means a packed 4-bit array holds at
	// least one byte with differing nibbles, so its decoded content
	// depends on the NibbleOrder choice and the payload alone cannot
	// confirm the producer's convention.
	WarnNibbleOrderAmbiguity WarningKind = iota
	// WarnPaletteRange means indices outside the palette were kept in
	// lenient mode.
	WarnPaletteRange
	// WarnEntryCountDrift means palette entry counts disagree with the
	// observed voxel frequencies.
	WarnEntryCountDrift
	// WarnUnknownEnvironment means a column referenced an environment
	// id with no mapping entry.
	WarnUnknownEnvironment
)

// String returns the string representation of the warning kind
func (k WarningKind) String() string {
	switch k {
	case WarnNibbleOrderAmbiguity:
		return "nibble-order-ambiguity"
	case WarnPaletteRange:
		return "palette-range"
	case WarnEntryCountDrift:
		return "entry-count-drift"
	case WarnUnknownEnvironment:
		return "unknown-environment"
	default:
		return fmt.Sprintf("WarningKind(%d)", k)
	}
}

// Warning is a non-fatal decode finding. Warnings accumulate on decoded
// values and never abort decoding.
type Warning struct {
	Kind   WarningKind
	Detail string
}

// String returns the string representation of the warning
func (w Warning) String() string {
	return w.Kind.String() + ": " + w.Detail
}
