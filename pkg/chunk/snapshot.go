package chunk

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/meintsot/regionlens/pkg/codec"
	"github.com/meintsot/regionlens/pkg/common/iterator"
	"github.com/meintsot/regionlens/pkg/region"
)

// Options control how chunk payloads are decoded during assembly.
type Options struct {
	// VoxelOrder is the nibble order for packed voxel index arrays.
	VoxelOrder codec.NibbleOrder
	// LevelOrder is the nibble order for packed level arrays.
	LevelOrder codec.NibbleOrder
	// Strict turns lenient-mode warnings into decode failures.
	Strict bool
}

// DefaultOptions returns the writer-proven nibble orders with strict
// mode off.
func DefaultOptions() Options {
	p := codec.DefaultPaletteOptions()
	return Options{VoxelOrder: p.VoxelOrder, LevelOrder: p.LevelOrder}
}

func (o Options) palette() codec.PaletteOptions {
	return codec.PaletteOptions{
		VoxelOrder: o.VoxelOrder,
		LevelOrder: o.LevelOrder,
		Strict:     o.Strict,
	}
}

// SectionSnapshot is one decoded 32x32x32 section of a chunk column.
type SectionSnapshot struct {
	Y int

	// HasMarker reports whether the section carried the ChunkSection
	// marker component.
	HasMarker bool

	// Block and Fluid are nil when the corresponding palette stream
	// was absent. Air sections carry neither.
	Block *codec.PaletteSection
	Fluid *codec.PaletteSection

	// PhysicsSize is the size in bytes of the opaque BlockPhysics
	// payload, zero when absent.
	PhysicsSize int
}

// Snapshot is one fully decoded chunk: every palette section, the
// heightmap and tintmap, the environment bands, and the raw entity
// documents, plus where the chunk came from.
type Snapshot struct {
	// Path is the region file the chunk was read from. RegionX and
	// RegionZ are parsed from the file name by the caller; the
	// container itself does not store them.
	Path    string
	RegionX int
	RegionZ int

	Slot   int
	LocalX int
	LocalZ int

	// Sections is in document order, bottom-up by y.
	Sections []SectionSnapshot

	// Heightmap and Tintmap come from the BlockChunk payload. Tintmap
	// is nil when the payload ends after the heightmap.
	Heightmap *codec.Heightmap
	Tintmap   *codec.Tintmap

	Environment *codec.EnvironmentData

	// Entities holds the raw entity documents, preserved without
	// further decoding.
	Entities []bson.RawValue

	// MigrationVersion is the data migration version stripped from the
	// first block section that carried one.
	MigrationVersion uint32
	HasMigration     bool

	BlockChunkVersion int32

	// CompressedSize and RawSize describe the stored blob.
	CompressedSize int
	RawSize        int

	// Warnings aggregates every non-fatal finding from the decoded
	// payloads, each tagged with the payload it came from.
	Warnings []codec.Warning

	digest    uint64
	hasDigest bool
}

// EntityCount returns the number of raw entity documents.
func (s *Snapshot) EntityCount() int {
	return len(s.Entities)
}

// ListOccupiedSlots returns an ascending iterator over the slots of r
// that hold a chunk. Advancing it consults only the in-memory blob
// index; no blob data is read.
func ListOccupiedSlots(r *region.Reader) iterator.SlotIterator {
	return r.OccupiedSlots()
}

// Assembler decodes occupied slots into snapshots, reusing one zstd
// decompressor across chunks.
type Assembler struct {
	opts Options
	dec  *region.Decompressor
}

// NewAssembler returns an assembler with the given decode options.
func NewAssembler(opts Options) (*Assembler, error) {
	dec, err := region.NewDecompressor()
	if err != nil {
		return nil, err
	}
	return &Assembler{opts: opts, dec: dec}, nil
}

// Close releases the decompressor. The assembler must not be used
// afterwards.
func (a *Assembler) Close() error {
	return a.dec.Close()
}

// GetChunk reads, decompresses, and decodes the chunk in one slot of
// an open region.
func (a *Assembler) GetChunk(r *region.Reader, slot int) (*Snapshot, error) {
	blob, err := r.ReadSlot(slot)
	if err != nil {
		return nil, err
	}
	raw, err := a.dec.DecompressBlob(blob)
	if err != nil {
		return nil, fmt.Errorf("slot %d in %s: %w", slot, r.Path(), err)
	}
	doc, err := DecodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("slot %d in %s: %w", slot, r.Path(), err)
	}

	localX, localZ := region.ChunkCoords(slot)
	snap := &Snapshot{
		Path:           r.Path(),
		Slot:           slot,
		LocalX:         localX,
		LocalZ:         localZ,
		CompressedSize: len(blob.Compressed),
		RawSize:        len(raw),
	}
	if err := a.assemble(snap, doc); err != nil {
		return nil, fmt.Errorf("slot %d in %s: %w", slot, r.Path(), err)
	}
	return snap, nil
}

// GetChunk assembles a single chunk with a one-shot assembler. Callers
// decoding many chunks should hold an Assembler and reuse it.
func GetChunk(r *region.Reader, slot int, opts Options) (*Snapshot, error) {
	a, err := NewAssembler(opts)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.GetChunk(r, slot)
}

func (a *Assembler) assemble(snap *Snapshot, doc *Document) error {
	popts := a.opts.palette()

	for _, sec := range doc.Sections {
		out := SectionSnapshot{
			Y:           sec.Y,
			HasMarker:   sec.HasMarker,
			PhysicsSize: len(sec.Physics),
		}
		if sec.HasMigration && !snap.HasMigration {
			snap.MigrationVersion = sec.MigrationVersion
			snap.HasMigration = true
		}
		if sec.Block != nil {
			block, err := codec.DecodePalette(sec.Block, popts)
			if err != nil {
				return fmt.Errorf("section %d block: %w", sec.Y, err)
			}
			out.Block = block
			snap.addWarnings(fmt.Sprintf("section %d block", sec.Y), block.Warnings)
		}
		if sec.Fluid != nil {
			fluid, err := codec.DecodePalette(sec.Fluid, popts)
			if err != nil {
				return fmt.Errorf("section %d fluid: %w", sec.Y, err)
			}
			out.Fluid = fluid
			snap.addWarnings(fmt.Sprintf("section %d fluid", sec.Y), fluid.Warnings)
		}
		snap.Sections = append(snap.Sections, out)
	}

	if doc.BlockChunk != nil {
		bc, err := codec.DecodeBlockChunk(doc.BlockChunk, a.opts.Strict)
		if err != nil {
			return fmt.Errorf("block chunk: %w", err)
		}
		snap.Heightmap = bc.Heightmap
		snap.Tintmap = bc.Tintmap
		snap.BlockChunkVersion = doc.BlockChunkVersion
		snap.addWarnings("block chunk", bc.Warnings)
	}

	if doc.Environment != nil {
		env, err := codec.DecodeEnvironment(doc.Environment, a.opts.Strict)
		if err != nil {
			return fmt.Errorf("environment chunk: %w", err)
		}
		snap.Environment = env
		snap.addWarnings("environment chunk", env.Warnings)
	}

	snap.Entities = doc.Entities
	return nil
}

// addWarnings copies payload warnings onto the snapshot with the
// payload named in the detail.
func (s *Snapshot) addWarnings(where string, warnings []codec.Warning) {
	for _, w := range warnings {
		s.Warnings = append(s.Warnings, codec.Warning{
			Kind:   w.Kind,
			Detail: where + ": " + w.Detail,
		})
	}
}
