package codec

import (
	"fmt"
	"math"
)

// Every column value in a heightmap or tintmap bitfield is 10 bits,
// packed LSB-first and crossing byte boundaries.
const (
	columnBits     = 10
	minBitfieldLen = (ColumnCount*columnBits + 7) / 8
)

// HeightUnknown is the sentinel stored for columns whose bitfield index
// was outside the palette in lenient mode.
const HeightUnknown = int16(math.MinInt16)

// TintUnknown is the lenient-mode sentinel for tintmap columns.
const TintUnknown = int32(math.MinInt32)

// Heightmap is the per-column surface height data of one chunk. All of
// its wire fields are little-endian, unlike the palette sections.
type Heightmap struct {
	NeedsPhysics bool
	Palette      []int16

	// Heights holds the resolved height per column, indexed z*32 + x.
	Heights [ColumnCount]int16

	RangeViolations int
}

// HeightAt returns the resolved surface height for a column.
func (h *Heightmap) HeightAt(x, z int) (int16, error) {
	if x < 0 || x >= SectionSize || z < 0 || z >= SectionSize {
		return 0, fmt.Errorf("column coordinates out of range: (%d, %d)", x, z)
	}
	return h.Heights[z*SectionSize+x], nil
}

// Tintmap is the per-column tint colour data that follows the heightmap
// in a BlockChunk payload. Same layout, 32-bit palette values.
type Tintmap struct {
	Palette []int32

	// Tints holds the resolved tint per column, indexed z*32 + x.
	Tints [ColumnCount]int32

	RangeViolations int
}

// TintAt returns the resolved tint value for a column.
func (t *Tintmap) TintAt(x, z int) (int32, error) {
	if x < 0 || x >= SectionSize || z < 0 || z >= SectionSize {
		return 0, fmt.Errorf("column coordinates out of range: (%d, %d)", x, z)
	}
	return t.Tints[z*SectionSize+x], nil
}

// BlockChunkData is the decoded BlockChunk payload: a heightmap and an
// optional tintmap.
type BlockChunkData struct {
	Heightmap *Heightmap
	Tintmap   *Tintmap

	BytesConsumed int
	Warnings      []Warning
}

// DecodeBlockChunk decodes a BlockChunk payload. A payload that ends
// cleanly after the heightmap yields a nil Tintmap.
func DecodeBlockChunk(data []byte, strict bool) (*BlockChunkData, error) {
	c := newCursor(data)
	out := &BlockChunkData{}

	hm, warns, err := decodeHeightmap(c, strict)
	if err != nil {
		return nil, err
	}
	out.Heightmap = hm
	out.Warnings = append(out.Warnings, warns...)

	if c.remaining() > 0 {
		tm, warns, err := decodeTintmap(c, strict)
		if err != nil {
			return nil, err
		}
		out.Tintmap = tm
		out.Warnings = append(out.Warnings, warns...)
	}

	out.BytesConsumed = c.off
	return out, nil
}

func decodeHeightmap(c *cursor, strict bool) (*Heightmap, []Warning, error) {
	needsPhysics, err := c.u8()
	if err != nil {
		return nil, nil, err
	}

	count, err := c.u16le()
	if err != nil {
		return nil, nil, err
	}
	hm := &Heightmap{
		NeedsPhysics: needsPhysics != 0,
		Palette:      make([]int16, count),
	}
	for i := range hm.Palette {
		if hm.Palette[i], err = c.i16le(); err != nil {
			return nil, nil, err
		}
	}

	bits, err := readBitfield(c)
	if err != nil {
		return nil, nil, err
	}

	var warns []Warning
	for col := 0; col < ColumnCount; col++ {
		idx := bitfieldValue(bits, col, columnBits)
		if int(idx) >= len(hm.Palette) {
			if strict {
				return nil, nil, fmt.Errorf("%w: heightmap column %d index %d >= palette size %d",
					ErrPaletteRange, col, idx, len(hm.Palette))
			}
			hm.Heights[col] = HeightUnknown
			hm.RangeViolations++
			continue
		}
		hm.Heights[col] = hm.Palette[idx]
	}
	if hm.RangeViolations > 0 {
		warns = append(warns, Warning{
			Kind:   WarnPaletteRange,
			Detail: fmt.Sprintf("heightmap: %d columns with index >= palette size %d", hm.RangeViolations, len(hm.Palette)),
		})
	}
	return hm, warns, nil
}

func decodeTintmap(c *cursor, strict bool) (*Tintmap, []Warning, error) {
	count, err := c.u16le()
	if err != nil {
		return nil, nil, err
	}
	tm := &Tintmap{Palette: make([]int32, count)}
	for i := range tm.Palette {
		if tm.Palette[i], err = c.i32le(); err != nil {
			return nil, nil, err
		}
	}

	bits, err := readBitfield(c)
	if err != nil {
		return nil, nil, err
	}

	var warns []Warning
	for col := 0; col < ColumnCount; col++ {
		idx := bitfieldValue(bits, col, columnBits)
		if int(idx) >= len(tm.Palette) {
			if strict {
				return nil, nil, fmt.Errorf("%w: tintmap column %d index %d >= palette size %d",
					ErrPaletteRange, col, idx, len(tm.Palette))
			}
			tm.Tints[col] = TintUnknown
			tm.RangeViolations++
			continue
		}
		tm.Tints[col] = tm.Palette[idx]
	}
	if tm.RangeViolations > 0 {
		warns = append(warns, Warning{
			Kind:   WarnPaletteRange,
			Detail: fmt.Sprintf("tintmap: %d columns with index >= palette size %d", tm.RangeViolations, len(tm.Palette)),
		})
	}
	return tm, warns, nil
}

// readBitfield consumes a little-endian u32 length prefix and the
// packed column bitfield it declares.
func readBitfield(c *cursor) ([]byte, error) {
	declared, err := c.u32le()
	if err != nil {
		return nil, err
	}
	if declared < minBitfieldLen {
		return nil, fmt.Errorf("%w: bitfield length %d < %d required for %d columns",
			ErrTruncated, declared, minBitfieldLen, ColumnCount)
	}
	if int(declared) > c.remaining() {
		return nil, fmt.Errorf("%w: bitfield declares %d bytes at offset %d, %d remain",
			ErrTruncated, declared, c.off, c.remaining())
	}
	return c.take(int(declared))
}

// bitfieldValue extracts the width-bit value at index from an LSB-first
// packed bit stream.
func bitfieldValue(bits []byte, index, width int) uint32 {
	off := index * width
	var v uint32
	for i := 0; i < width; i++ {
		if bits[(off+i)>>3]&(1<<uint((off+i)&7)) != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}
