package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/meintsot/regionlens/pkg/codec"
	"github.com/meintsot/regionlens/pkg/common/iterator"
	"github.com/meintsot/regionlens/pkg/region"
)

// writeRegion lays out a region file with zstd-compressed blobs keyed
// by slot, using the default geometry.
func writeRegion(t *testing.T, path string, blobs map[int][]byte) {
	t.Helper()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("Failed to create zstd encoder: %v", err)
	}
	defer enc.Close()

	slots := make([]int, 0, len(blobs))
	for slot := range blobs {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	index := make([]uint32, region.DefaultBlobCount)
	var segments []byte
	next := uint32(1)
	for _, slot := range slots {
		raw := blobs[slot]
		compressed := enc.EncodeAll(raw, nil)
		blob := make([]byte, 8+len(compressed))
		binary.BigEndian.PutUint32(blob[0:4], uint32(len(raw)))
		binary.BigEndian.PutUint32(blob[4:8], uint32(len(compressed)))
		copy(blob[8:], compressed)

		index[slot] = next
		segCount := (len(blob) + region.DefaultSegmentSize - 1) / region.DefaultSegmentSize
		padded := make([]byte, segCount*region.DefaultSegmentSize)
		copy(padded, blob)
		segments = append(segments, padded...)
		next += uint32(segCount)
	}

	var out bytes.Buffer
	out.WriteString(region.Magic)
	u32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		out.Write(b[:])
	}
	u32(region.SupportedVersion)
	u32(region.DefaultBlobCount)
	u32(region.DefaultSegmentSize)
	for _, seg := range index {
		u32(seg)
	}
	out.Write(segments)

	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write region fixture: %v", err)
	}
}

// openRegion writes a region holding the given blobs and opens it.
func openRegion(t *testing.T, blobs map[int][]byte) *region.Reader {
	t.Helper()

	path := filepath.Join(t.TempDir(), "0.0.region.bin")
	writeRegion(t, path, blobs)
	r, err := region.Open(path)
	if err != nil {
		t.Fatalf("Failed to open region fixture: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// paletteStream assembles a palette section payload. Voxel and level
// prefixes are copied into zero-filled arrays of the packed size for
// the type. Advisory entry counts stay zero.
func paletteStream(typ codec.PaletteType, names []string, voxels, levels []byte) []byte {
	if typ == codec.PaletteEmpty {
		return []byte{0x00, 0x00}
	}
	buf := []byte{byte(typ)}
	u16 := func(v uint16) {
		buf = append(buf, byte(v>>8), byte(v))
	}
	u16(uint16(len(names)))
	for i, name := range names {
		buf = append(buf, byte(i))
		u16(uint16(len(name)))
		buf = append(buf, name...)
		u16(0)
	}

	var packed int
	switch typ {
	case codec.PaletteHalfByte:
		packed = codec.SectionVoxels / 2
	case codec.PaletteByte:
		packed = codec.SectionVoxels
	case codec.PaletteShort:
		packed = codec.SectionVoxels * 2
	}
	arr := make([]byte, packed)
	copy(arr, voxels)
	buf = append(buf, arr...)

	if levels == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	lv := make([]byte, codec.SectionVoxels/2)
	copy(lv, levels)
	return append(buf, lv...)
}

// blockChunkPayload builds a heightmap payload and an optional tintmap
// after it. Columns not overridden stay at palette index 0.
func blockChunkPayload(heightPalette []int16, heightIdx map[int]int, tintPalette []int32, tintIdx map[int]int) []byte {
	var buf []byte
	u16 := func(v uint16) {
		buf = append(buf, byte(v), byte(v>>8))
	}
	u32 := func(v uint32) {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}

	buf = append(buf, 0)
	u16(uint16(len(heightPalette)))
	for _, h := range heightPalette {
		u16(uint16(h))
	}
	bits := packColumns(heightIdx)
	u32(uint32(len(bits)))
	buf = append(buf, bits...)

	if tintPalette == nil {
		return buf
	}
	u16(uint16(len(tintPalette)))
	for _, tint := range tintPalette {
		u32(uint32(tint))
	}
	bits = packColumns(tintIdx)
	u32(uint32(len(bits)))
	return append(buf, bits...)
}

// packColumns packs one 10-bit palette index per column, LSB-first.
func packColumns(idx map[int]int) []byte {
	bits := make([]byte, codec.ColumnCount*10/8)
	for col, v := range idx {
		off := col * 10
		for i := 0; i < 10; i++ {
			if v&(1<<i) != 0 {
				bits[(off+i)/8] |= 1 << uint((off+i)%8)
			}
		}
	}
	return bits
}

// environmentPayload builds an EnvironmentChunk payload where every
// column is a single band chosen by colEnv.
func environmentPayload(mappings []codec.EnvironmentMapping, colEnv func(col int) uint32) []byte {
	var buf []byte
	u32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}

	u32(uint32(len(mappings)))
	for _, m := range mappings {
		u32(m.SerialID)
		buf = append(buf, byte(len(m.Name)>>8), byte(len(m.Name)))
		buf = append(buf, m.Name...)
	}
	for col := 0; col < codec.ColumnCount; col++ {
		u32(0)
		u32(colEnv(col))
	}
	return buf
}

func TestGetChunkFullSnapshot(t *testing.T) {
	blockVoxels := make([]byte, 4)
	blockVoxels[0] = 1

	sections := bson.A{
		sectionHolder(true,
			blockComponent(6, 0, paletteStream(codec.PaletteByte, []string{"Empty", "Rock"}, blockVoxels, nil)),
			nil,
			[]byte{0xAA, 0xBB, 0xCC}),
		sectionHolder(true,
			nil,
			paletteStream(codec.PaletteHalfByte, []string{"Empty", "Water"}, []byte{0x11}, []byte{0x33}),
			nil),
	}
	heights := blockChunkPayload(
		[]int16{-64, 0, 64, 128}, map[int]int{0: 1},
		[]int32{0x00FF00}, nil)
	env := environmentPayload(
		[]codec.EnvironmentMapping{{SerialID: 3, Name: "Forest"}, {SerialID: 9, Name: "Cave"}},
		func(col int) uint32 {
			if col == 0 {
				return 9
			}
			return 3
		})
	entities := bson.A{
		bson.D{{Key: "Id", Value: int32(1)}},
		bson.D{{Key: "Id", Value: int32(2)}},
	}

	raw := marshalDoc(t, chunkDocument(sections, heights, env, entities))
	r := openRegion(t, map[int][]byte{33: raw})

	snap, err := GetChunk(r, 33, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to assemble chunk: %v", err)
	}

	if snap.Path != r.Path() {
		t.Errorf("Expected path %s, got %s", r.Path(), snap.Path)
	}
	if snap.Slot != 33 || snap.LocalX != 1 || snap.LocalZ != 1 {
		t.Errorf("Expected slot 33 at local (1, 1), got slot %d at (%d, %d)",
			snap.Slot, snap.LocalX, snap.LocalZ)
	}
	if snap.RawSize != len(raw) {
		t.Errorf("Expected raw size %d, got %d", len(raw), snap.RawSize)
	}
	if snap.CompressedSize <= 0 {
		t.Errorf("Expected a positive compressed size, got %d", snap.CompressedSize)
	}
	if !snap.HasMigration || snap.MigrationVersion != 0 {
		t.Errorf("Expected migration version 0 from the block section, got %d (present=%v)",
			snap.MigrationVersion, snap.HasMigration)
	}
	if snap.BlockChunkVersion != 3 {
		t.Errorf("Expected BlockChunk version 3, got %d", snap.BlockChunkVersion)
	}
	if len(snap.Warnings) != 0 {
		t.Errorf("Expected a clean decode, got warnings %v", snap.Warnings)
	}

	if len(snap.Sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(snap.Sections))
	}

	rock := snap.Sections[0]
	if !rock.HasMarker || rock.Block == nil || rock.Fluid != nil {
		t.Fatalf("Expected a block-only section with marker, got %+v", rock)
	}
	if rock.Block.Type != codec.PaletteByte {
		t.Errorf("Expected BYTE block palette, got %s", rock.Block.Type)
	}
	if rock.PhysicsSize != 3 {
		t.Errorf("Expected 3 physics bytes, got %d", rock.PhysicsSize)
	}
	if v, err := rock.Block.VoxelAt(0, 0, 0); err != nil || v != 1 {
		t.Errorf("Expected voxel (0,0,0) = 1, got %d (err=%v)", v, err)
	}
	if v, err := rock.Block.VoxelAt(2, 0, 0); err != nil || v != 0 {
		t.Errorf("Expected voxel (2,0,0) = 0, got %d (err=%v)", v, err)
	}

	water := snap.Sections[1]
	if water.Y != 1 || water.Block != nil || water.Fluid == nil {
		t.Fatalf("Expected a fluid-only section at y=1, got %+v", water)
	}
	// 0x11 holds voxel 1 in both nibbles regardless of order.
	if v, err := water.Fluid.VoxelAt(0, 0, 0); err != nil || v != 1 {
		t.Errorf("Expected fluid voxel (0,0,0) = 1, got %d (err=%v)", v, err)
	}
	if name, ok := water.Fluid.EntryName(1); !ok || name != "Water" {
		t.Errorf("Expected fluid entry 1 = Water, got %q", name)
	}
	if !water.Fluid.HasLevels {
		t.Fatalf("Expected fluid levels present")
	}
	if lv, err := water.Fluid.LevelAt(0, 0, 0); err != nil || lv != 3 {
		t.Errorf("Expected level 3 at (0,0,0), got %d (err=%v)", lv, err)
	}
	// Levels hold raw amounts; values past the palette are counted, not
	// warned about.
	if water.Fluid.LevelViolations != 2 {
		t.Errorf("Expected 2 level values past the palette, got %d", water.Fluid.LevelViolations)
	}

	if snap.Heightmap == nil {
		t.Fatal("Expected a heightmap")
	}
	if h, err := snap.Heightmap.HeightAt(0, 0); err != nil || h != 0 {
		t.Errorf("Expected height 0 at column (0,0), got %d (err=%v)", h, err)
	}
	if h, err := snap.Heightmap.HeightAt(1, 0); err != nil || h != -64 {
		t.Errorf("Expected height -64 at column (1,0), got %d (err=%v)", h, err)
	}
	if snap.Tintmap == nil {
		t.Fatal("Expected a tintmap after the heightmap")
	}
	if tint, err := snap.Tintmap.TintAt(5, 5); err != nil || tint != 0x00FF00 {
		t.Errorf("Expected tint 0x00FF00 at column (5,5), got %#x (err=%v)", tint, err)
	}

	if snap.Environment == nil {
		t.Fatal("Expected environment data")
	}
	if name, err := snap.Environment.EnvironmentAt(0, 0, 40); err != nil || name != "Cave" {
		t.Errorf("Expected environment Cave at column (0,0), got %q (err=%v)", name, err)
	}
	if name, err := snap.Environment.EnvironmentAt(1, 0, 40); err != nil || name != "Forest" {
		t.Errorf("Expected environment Forest at column (1,0), got %q (err=%v)", name, err)
	}

	if snap.EntityCount() != 2 {
		t.Fatalf("Expected 2 entities, got %d", snap.EntityCount())
	}
	entity, ok := snap.Entities[0].DocumentOK()
	if !ok {
		t.Fatalf("Expected first entity to stay a raw document")
	}
	if id, ok := entity.Lookup("Id").Int32OK(); !ok || id != 1 {
		t.Errorf("Expected first entity Id 1, got %d", id)
	}
}

func TestGetChunkEmptySlot(t *testing.T) {
	raw := marshalDoc(t, chunkDocument(nil, nil, nil, nil))
	r := openRegion(t, map[int][]byte{7: raw})

	_, err := GetChunk(r, 8, DefaultOptions())
	if !errors.Is(err, region.ErrSlotEmpty) {
		t.Errorf("Expected ErrSlotEmpty for an unoccupied slot, got %v", err)
	}
}

func TestGetChunkCorruptDocument(t *testing.T) {
	r := openRegion(t, map[int][]byte{12: {0xDE, 0xAD, 0xBE, 0xEF}})

	_, err := GetChunk(r, 12, DefaultOptions())
	if !errors.Is(err, ErrDocument) {
		t.Errorf("Expected ErrDocument for a non-BSON blob, got %v", err)
	}
}

// warningFixture builds a chunk whose payloads each carry one lenient
// finding: an order-sensitive fluid array with out-of-range indices, a
// heightmap index past its palette, and an unmapped environment id.
func warningFixture(t *testing.T) []byte {
	t.Helper()

	sections := bson.A{
		sectionHolder(true,
			nil,
			paletteStream(codec.PaletteHalfByte, []string{"Empty", "Water"}, []byte{0xA5}, nil),
			nil),
	}
	heights := blockChunkPayload([]int16{10, 20}, map[int]int{5: 900}, nil, nil)
	env := environmentPayload(
		[]codec.EnvironmentMapping{{SerialID: 1, Name: "Plains"}},
		func(col int) uint32 {
			if col == 3 {
				return 77
			}
			return 1
		})
	return marshalDoc(t, chunkDocument(sections, heights, env, nil))
}

func TestGetChunkAggregatesWarnings(t *testing.T) {
	r := openRegion(t, map[int][]byte{0: warningFixture(t)})

	snap, err := GetChunk(r, 0, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to assemble chunk in lenient mode: %v", err)
	}

	if !snap.Sections[0].Fluid.Ambiguous {
		t.Errorf("Expected the fluid section to be flagged order-sensitive")
	}

	prefixes := map[codec.WarningKind]string{
		codec.WarnNibbleOrderAmbiguity: "section 0 fluid: ",
		codec.WarnPaletteRange:         "",
		codec.WarnUnknownEnvironment:   "environment chunk: ",
	}
	seen := make(map[codec.WarningKind]int)
	for _, w := range snap.Warnings {
		seen[w.Kind]++
		if p := prefixes[w.Kind]; p != "" && !strings.HasPrefix(w.Detail, p) {
			t.Errorf("Expected %s warning tagged %q, got %q", w.Kind, p, w.Detail)
		}
	}
	if seen[codec.WarnNibbleOrderAmbiguity] != 1 {
		t.Errorf("Expected one ambiguity warning, got %d", seen[codec.WarnNibbleOrderAmbiguity])
	}
	// One from the fluid voxels, one from the heightmap.
	if seen[codec.WarnPaletteRange] != 2 {
		t.Errorf("Expected two palette range warnings, got %d", seen[codec.WarnPaletteRange])
	}
	if seen[codec.WarnUnknownEnvironment] != 1 {
		t.Errorf("Expected one unknown environment warning, got %d", seen[codec.WarnUnknownEnvironment])
	}

	if h, err := snap.Heightmap.HeightAt(5, 0); err != nil || h != codec.HeightUnknown {
		t.Errorf("Expected the bad column to carry the unknown height sentinel, got %d (err=%v)", h, err)
	}
}

func TestGetChunkStrict(t *testing.T) {
	r := openRegion(t, map[int][]byte{0: warningFixture(t)})

	opts := DefaultOptions()
	opts.Strict = true
	_, err := GetChunk(r, 0, opts)
	if !errors.Is(err, codec.ErrPaletteRange) {
		t.Errorf("Expected ErrPaletteRange in strict mode, got %v", err)
	}
}

func TestSnapshotDigest(t *testing.T) {
	blockVoxels := make([]byte, 8)
	blockVoxels[3] = 1
	build := func(voxels []byte) []byte {
		sections := bson.A{
			sectionHolder(true,
				blockComponent(6, 0, paletteStream(codec.PaletteByte, []string{"Empty", "Rock"}, voxels, nil)),
				nil, nil),
		}
		heights := blockChunkPayload([]int16{0, 32}, map[int]int{1: 1}, nil, nil)
		return marshalDoc(t, chunkDocument(sections, heights, nil, nil))
	}

	doc := build(blockVoxels)
	// The same content in different slots of different files.
	ra := openRegion(t, map[int][]byte{5: doc})
	rb := openRegion(t, map[int][]byte{900: doc})

	a, err := GetChunk(ra, 5, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to assemble chunk a: %v", err)
	}
	b, err := GetChunk(rb, 900, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to assemble chunk b: %v", err)
	}

	if a.Digest() != b.Digest() {
		t.Errorf("Expected equal digests for equal content, got %x and %x", a.Digest(), b.Digest())
	}
	if a.Digest() != a.Digest() {
		t.Errorf("Expected the digest to be stable across calls")
	}

	changed := make([]byte, 8)
	copy(changed, blockVoxels)
	changed[3] = 0
	rc := openRegion(t, map[int][]byte{5: build(changed)})
	c, err := GetChunk(rc, 5, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to assemble changed chunk: %v", err)
	}
	if a.Digest() == c.Digest() {
		t.Errorf("Expected different digests for different voxels")
	}
}

func TestListOccupiedSlots(t *testing.T) {
	raw := marshalDoc(t, chunkDocument(nil, nil, nil, nil))
	r := openRegion(t, map[int][]byte{3: raw, 64: raw, 1000: raw})

	var it iterator.SlotIterator = ListOccupiedSlots(r)

	var slots []int
	for it.SeekToFirst(); it.Valid(); it.Next() {
		slots = append(slots, it.Slot())
	}
	want := []int{3, 64, 1000}
	if len(slots) != len(want) {
		t.Fatalf("Expected %v, got %v", want, slots)
	}
	for i, slot := range want {
		if slots[i] != slot {
			t.Fatalf("Expected %v, got %v", want, slots)
		}
	}
}

func TestAssemblerReuse(t *testing.T) {
	raw := marshalDoc(t, chunkDocument(nil, nil, nil, nil))
	r := openRegion(t, map[int][]byte{1: raw, 2: raw})

	a, err := NewAssembler(DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to create assembler: %v", err)
	}

	for _, slot := range []int{1, 2} {
		if _, err := a.GetChunk(r, slot); err != nil {
			t.Fatalf("Failed to assemble slot %d: %v", slot, err)
		}
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Failed to close assembler: %v", err)
	}
	if _, err := a.GetChunk(r, 1); !errors.Is(err, region.ErrDecompression) {
		t.Errorf("Expected ErrDecompression after close, got %v", err)
	}
}
