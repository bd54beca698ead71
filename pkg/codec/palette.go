package codec

import "fmt"

// PaletteType is the storage width tag at the start of every palette
// section payload.
type PaletteType uint8

const (
	// PaletteEmpty means the whole section is palette entry zero.
	PaletteEmpty PaletteType = 0
	// PaletteHalfByte packs two 4-bit indices per byte.
	PaletteHalfByte PaletteType = 1
	// PaletteByte stores one index per byte.
	PaletteByte PaletteType = 2
	// PaletteShort stores one big-endian u16 index per voxel.
	PaletteShort PaletteType = 3
)

// String returns the string representation of the palette type
func (t PaletteType) String() string {
	switch t {
	case PaletteEmpty:
		return "EMPTY"
	case PaletteHalfByte:
		return "HALF_BYTE"
	case PaletteByte:
		return "BYTE"
	case PaletteShort:
		return "SHORT"
	default:
		return fmt.Sprintf("PaletteType(%d)", uint8(t))
	}
}

// PaletteEntry is one named entry in a section palette.
type PaletteEntry struct {
	InternalID uint8
	Name       string
	// Count is the use count declared by the writer. It is advisory and
	// only checked against observed frequencies in strict mode.
	Count uint16
}

// PaletteOptions control how a palette section payload is decoded.
type PaletteOptions struct {
	// VoxelOrder is the nibble order for HALF_BYTE voxel index arrays.
	VoxelOrder NibbleOrder
	// LevelOrder is the nibble order for packed level arrays.
	LevelOrder NibbleOrder
	// Strict makes out-of-range palette indices fatal instead of
	// counted warnings.
	Strict bool
}

// DefaultPaletteOptions returns the orders used by the known writer:
// voxel arrays even-high, level arrays even-low.
func DefaultPaletteOptions() PaletteOptions {
	return PaletteOptions{
		VoxelOrder: EvenHigh,
		LevelOrder: EvenLow,
	}
}

// PaletteSection is one decoded palette-compressed voxel section.
type PaletteSection struct {
	Type    PaletteType
	Entries []PaletteEntry

	// Voxels holds one palette index per voxel in linear order. Nil for
	// EMPTY sections.
	Voxels []uint16

	// Levels holds one 4-bit value per voxel. Nil unless HasLevels.
	Levels    []uint8
	HasLevels bool

	// Ambiguous is set when a packed 4-bit array in this section holds
	// at least one byte with differing nibbles, so the decoded grid
	// depends on the NibbleOrder choice and the payload itself cannot
	// confirm the producer's convention.
	Ambiguous bool

	// RangeViolations counts voxels whose index was outside the palette
	// and was kept (lenient mode only).
	RangeViolations int

	// LevelViolations counts level values outside the palette, tracked
	// separately because fluid producers store raw amounts in levels.
	LevelViolations int

	// BytesConsumed is how far into the payload the decoded sequence
	// reached. Trailing bytes beyond it belong to other per-section
	// data and are not an error.
	BytesConsumed int

	Warnings []Warning
}

// DecodePalette decodes one palette section payload. The payload may
// extend past the palette stream; BytesConsumed reports where decoding
// stopped.
func DecodePalette(data []byte, opts PaletteOptions) (*PaletteSection, error) {
	c := newCursor(data)

	tag, err := c.u8()
	if err != nil {
		return nil, err
	}
	if tag > uint8(PaletteShort) {
		return nil, fmt.Errorf("%w: unknown palette type %d at offset 0", ErrMalformedSection, tag)
	}

	s := &PaletteSection{Type: PaletteType(tag)}

	if s.Type == PaletteEmpty {
		// EMPTY sections end after the level flag. The known writer
		// never emits levels for them.
		hasLevels, err := c.u8()
		if err != nil {
			return nil, err
		}
		s.HasLevels = hasLevels != 0
		s.BytesConsumed = c.off
		return s, nil
	}

	entryCount, err := c.u16be()
	if err != nil {
		return nil, err
	}
	if entryCount == 0 {
		return nil, fmt.Errorf("%w: %s section with zero palette entries", ErrMalformedSection, s.Type)
	}

	s.Entries = make([]PaletteEntry, entryCount)
	for i := range s.Entries {
		id, err := c.u8()
		if err != nil {
			return nil, err
		}
		name, err := c.str()
		if err != nil {
			return nil, err
		}
		count, err := c.u16be()
		if err != nil {
			return nil, err
		}
		s.Entries[i] = PaletteEntry{InternalID: id, Name: name, Count: count}
	}

	var rawHalf []byte
	switch s.Type {
	case PaletteHalfByte:
		rawHalf, err = c.take(halfByteArrayLen)
		if err != nil {
			return nil, err
		}
		s.Voxels = widen(unpackNibbles(rawHalf, opts.VoxelOrder))
	case PaletteByte:
		raw, err := c.take(byteArrayLen)
		if err != nil {
			return nil, err
		}
		s.Voxels = make([]uint16, SectionVoxels)
		for i, b := range raw {
			s.Voxels[i] = uint16(b)
		}
	case PaletteShort:
		raw, err := c.take(shortArrayLen)
		if err != nil {
			return nil, err
		}
		s.Voxels = make([]uint16, SectionVoxels)
		for i := range s.Voxels {
			s.Voxels[i] = uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
		}
	}

	hasLevels, err := c.u8()
	if err != nil {
		return nil, err
	}
	var rawLevels []byte
	if hasLevels != 0 {
		rawLevels, err = c.take(levelArrayLen)
		if err != nil {
			return nil, err
		}
		s.HasLevels = true
		s.Levels = unpackNibbles(rawLevels, opts.LevelOrder)
	}
	s.BytesConsumed = c.off

	if err := s.checkVoxelRange(opts); err != nil {
		return nil, err
	}
	if err := s.checkLevelRange(opts); err != nil {
		return nil, err
	}
	s.checkOrderSensitivity(rawHalf, rawLevels, opts)
	if opts.Strict {
		s.checkEntryCounts()
	}
	return s, nil
}

// checkVoxelRange validates voxel indices against the palette size. In
// lenient mode violations are counted and kept; in strict mode the
// first violation is fatal.
func (s *PaletteSection) checkVoxelRange(opts PaletteOptions) error {
	limit := uint16(len(s.Entries))
	violations := 0
	first := -1
	for i, v := range s.Voxels {
		if v >= limit {
			violations++
			if first < 0 {
				first = i
			}
		}
	}
	if violations == 0 {
		return nil
	}
	if opts.Strict {
		return fmt.Errorf("%w: %d voxel indices >= palette size %d, first at voxel %d",
			ErrPaletteRange, violations, limit, first)
	}
	s.RangeViolations = violations
	s.Warnings = append(s.Warnings, Warning{
		Kind:   WarnPaletteRange,
		Detail: fmt.Sprintf("%d voxel indices >= palette size %d kept, first at voxel %d", violations, limit, first),
	})
	return nil
}

// checkLevelRange applies the palette bound to level values. Fluid
// producers store raw amounts in levels, so lenient mode only counts
// violations without warning.
func (s *PaletteSection) checkLevelRange(opts PaletteOptions) error {
	if s.Levels == nil {
		return nil
	}
	limit := len(s.Entries)
	violations := 0
	first := -1
	for i, v := range s.Levels {
		if int(v) >= limit {
			violations++
			if first < 0 {
				first = i
			}
		}
	}
	if violations == 0 {
		return nil
	}
	if opts.Strict {
		return fmt.Errorf("%w: %d level values >= palette size %d, first at voxel %d",
			ErrPaletteRange, violations, limit, first)
	}
	s.LevelViolations = violations
	return nil
}

// checkOrderSensitivity flags sections whose packed 4-bit arrays decode
// differently under the two nibble conventions. Range checks cannot
// tell the conventions apart because flipping only permutes values, so
// sensitivity is the only honest signal the payload offers.
func (s *PaletteSection) checkOrderSensitivity(rawHalf, rawLevels []byte, opts PaletteOptions) {
	sensVoxels := orderSensitive(rawHalf)
	sensLevels := orderSensitive(rawLevels)
	if !sensVoxels && !sensLevels {
		return
	}
	s.Ambiguous = true

	affected := "voxel array"
	order := opts.VoxelOrder
	switch {
	case sensVoxels && sensLevels:
		affected = "voxel and level arrays"
	case sensLevels:
		affected = "level array"
		order = opts.LevelOrder
	}
	s.Warnings = append(s.Warnings, Warning{
		Kind:   WarnNibbleOrderAmbiguity,
		Detail: fmt.Sprintf("%s decoded under order %s; content differs under %s", affected, order, order.Flipped()),
	})
}

// checkEntryCounts compares declared entry counts with observed voxel
// frequencies. Drift is a warning; the counts are advisory.
func (s *PaletteSection) checkEntryCounts() {
	observed := make([]int, len(s.Entries))
	for _, v := range s.Voxels {
		if int(v) < len(observed) {
			observed[v]++
		}
	}
	drift := 0
	for i, e := range s.Entries {
		if int(e.Count) != observed[i] {
			drift++
		}
	}
	if drift > 0 {
		s.Warnings = append(s.Warnings, Warning{
			Kind:   WarnEntryCountDrift,
			Detail: fmt.Sprintf("%d of %d palette entries declare counts that differ from observed use", drift, len(s.Entries)),
		})
	}
}

// VoxelAt returns the palette index at section-local coordinates.
// EMPTY sections resolve every voxel to entry zero.
func (s *PaletteSection) VoxelAt(x, y, z int) (uint16, error) {
	if !inSection(x, y, z) {
		return 0, fmt.Errorf("voxel coordinates out of range: (%d, %d, %d)", x, y, z)
	}
	if s.Type == PaletteEmpty {
		return 0, nil
	}
	return s.Voxels[VoxelIndex(x, y, z)], nil
}

// LevelAt returns the 4-bit level value at section-local coordinates.
func (s *PaletteSection) LevelAt(x, y, z int) (uint8, error) {
	if !inSection(x, y, z) {
		return 0, fmt.Errorf("voxel coordinates out of range: (%d, %d, %d)", x, y, z)
	}
	if s.Levels == nil {
		return 0, ErrNoLevels
	}
	return s.Levels[VoxelIndex(x, y, z)], nil
}

// EntryName resolves a palette index to its name.
func (s *PaletteSection) EntryName(index uint16) (string, bool) {
	if int(index) < len(s.Entries) {
		return s.Entries[index].Name, true
	}
	return "", false
}

// Counts returns observed voxel frequencies keyed by palette name.
// Out-of-range indices are keyed as "#<index>".
func (s *PaletteSection) Counts() map[string]int {
	counts := make(map[string]int)
	for _, v := range s.Voxels {
		if name, ok := s.EntryName(v); ok {
			counts[name]++
		} else {
			counts[fmt.Sprintf("#%d", v)]++
		}
	}
	return counts
}

func inSection(x, y, z int) bool {
	return x >= 0 && x < SectionSize &&
		y >= 0 && y < SectionSize &&
		z >= 0 && z < SectionSize
}

// unpackNibbles expands a packed 4-bit array into one value per index.
func unpackNibbles(raw []byte, order NibbleOrder) []uint8 {
	out := make([]uint8, len(raw)*2)
	for i, b := range raw {
		even, odd := order.nibbles(b)
		out[i*2] = even
		out[i*2+1] = odd
	}
	return out
}

// orderSensitive reports whether a packed 4-bit array decodes
// differently under the two nibble orders, true as soon as any byte
// holds two distinct values.
func orderSensitive(raw []byte) bool {
	for _, b := range raw {
		if b>>4 != b&0x0F {
			return true
		}
	}
	return false
}

func widen(vals []uint8) []uint16 {
	out := make([]uint16, len(vals))
	for i, v := range vals {
		out[i] = uint16(v)
	}
	return out
}
