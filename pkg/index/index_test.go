package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zstd"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/meintsot/regionlens/pkg/chunk"
	"github.com/meintsot/regionlens/pkg/codec"
	"github.com/meintsot/regionlens/pkg/region"
	"github.com/meintsot/regionlens/pkg/stats"
)

// writeRegionFile lays out a region file with zstd-compressed blobs
// keyed by slot, using the default geometry.
func writeRegionFile(t *testing.T, path string, blobs map[int][]byte) {
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

// chunkDoc marshals a minimal chunk document, optionally carrying an
// EnvironmentChunk payload.
func chunkDoc(t *testing.T, environment []byte) []byte {
	t.Helper()

	components := bson.D{{Key: "ChunkColumn", Value: bson.D{}}}
	if environment != nil {
		components = append(components, bson.E{
			Key:   "EnvironmentChunk",
			Value: bson.D{{Key: "Data", Value: primitive.Binary{Data: environment}}},
		})
	}

	data, err := bson.Marshal(bson.D{{Key: "Components", Value: components}})
	if err != nil {
		t.Fatalf("Failed to marshal chunk document: %v", err)
	}
	return data
}

// unmappedEnvironment builds an EnvironmentChunk payload with no
// mapping table and a single-band column referencing id 7 everywhere.
func unmappedEnvironment() []byte {
	var buf bytes.Buffer
	u32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	u32(0)
	for col := 0; col < codec.ColumnCount; col++ {
		u32(0)
		u32(7)
	}
	return buf.Bytes()
}

// openIndex creates a fresh index database under a temp directory.
func openIndex(t *testing.T, options ...Option) *DB {
	t.Helper()

	d, err := Open(filepath.Join(t.TempDir(), "index.db"), options...)
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenAppliesPragmas(t *testing.T) {
	d := openIndex(t)

	var mode string
	if err := d.sql.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected wal journal mode, got %q", mode)
	}

	var fk int
	if err := d.sql.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("Expected foreign keys on, got %d", fk)
	}
}

func TestBuildAndLookup(t *testing.T) {
	root := t.TempDir()
	writeRegionFile(t, filepath.Join(root, "0.0.region.bin"), map[int][]byte{
		0:  chunkDoc(t, nil),
		33: chunkDoc(t, unmappedEnvironment()),
	})

	d := openIndex(t)
	report, err := d.Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if report.Regions != 1 {
		t.Errorf("Expected 1 indexed region, got %d", report.Regions)
	}
	if report.ChunksIndexed != 2 {
		t.Errorf("Expected 2 indexed chunks, got %d", report.ChunksIndexed)
	}
	if report.ChunksFailed != 0 {
		t.Errorf("Expected no failed chunks, got %d", report.ChunksFailed)
	}

	entry, err := d.Lookup(context.Background(), 0, 0, 33)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if entry.LocalX != 1 || entry.LocalZ != 1 {
		t.Errorf("Expected local coordinates (1, 1), got (%d, %d)", entry.LocalX, entry.LocalZ)
	}
	if entry.SectionCount != 0 {
		t.Errorf("Expected 0 sections, got %d", entry.SectionCount)
	}
	if entry.EntityCount != 0 {
		t.Errorf("Expected 0 entities, got %d", entry.EntityCount)
	}
	if entry.HasHeightmap {
		t.Error("Expected no heightmap flag")
	}
	if entry.WarnCount != 1 {
		t.Errorf("Expected 1 warning recorded, got %d", entry.WarnCount)
	}

	// The stored digest matches a fresh decode of the same chunk.
	r, err := region.Open(filepath.Join(root, "0.0.region.bin"))
	if err != nil {
		t.Fatalf("Failed to open region: %v", err)
	}
	defer r.Close()
	snap, err := chunk.GetChunk(r, 33, chunk.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to assemble chunk: %v", err)
	}
	if entry.Digest != snap.Digest() {
		t.Errorf("Indexed digest %d disagrees with decoded digest %d", entry.Digest, snap.Digest())
	}
}

func TestLookupNotFound(t *testing.T) {
	d := openIndex(t)

	_, err := d.Lookup(context.Background(), 4, 4, 17)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBuildRebuildDropsVacatedSlots(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "0.0.region.bin")
	doc := chunkDoc(t, nil)
	writeRegionFile(t, path, map[int][]byte{0: doc, 1: doc})

	d := openIndex(t)
	if _, err := d.Build(context.Background(), root); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := d.Lookup(context.Background(), 0, 0, 1); err != nil {
		t.Fatalf("Expected slot 1 indexed, got %v", err)
	}

	// Rewrite the region without slot 1 and rebuild.
	writeRegionFile(t, path, map[int][]byte{0: doc})
	if _, err := d.Build(context.Background(), root); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if _, err := d.Lookup(context.Background(), 0, 0, 0); err != nil {
		t.Errorf("Expected slot 0 to survive the rebuild, got %v", err)
	}
	if _, err := d.Lookup(context.Background(), 0, 0, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected vacated slot 1 to be dropped, got %v", err)
	}
}

func TestRegionEntriesOrder(t *testing.T) {
	root := t.TempDir()
	doc := chunkDoc(t, nil)
	writeRegionFile(t, filepath.Join(root, "0.0.region.bin"), map[int][]byte{40: doc, 2: doc, 5: doc})

	d := openIndex(t)
	if _, err := d.Build(context.Background(), root); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	entries, err := d.RegionEntries(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("RegionEntries failed: %v", err)
	}

	slots := make([]int, len(entries))
	for i, e := range entries {
		slots[i] = e.Slot
	}
	want := []int{2, 5, 40}
	if len(slots) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(slots))
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("Expected slots %v, got %v", want, slots)
			break
		}
	}
}

func TestStale(t *testing.T) {
	root := t.TempDir()
	doc := chunkDoc(t, nil)
	driftPath := filepath.Join(root, "0.0.region.bin")
	gonePath := filepath.Join(root, "1.0.region.bin")
	writeRegionFile(t, driftPath, map[int][]byte{0: doc})
	writeRegionFile(t, gonePath, map[int][]byte{0: doc})

	d := openIndex(t)
	if _, err := d.Build(context.Background(), root); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	stale, err := d.Stale(context.Background(), root)
	if err != nil {
		t.Fatalf("Stale failed: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("Expected a current index right after build, got %v", stale)
	}

	// Grow one file, delete another, add a third.
	f, err := os.OpenFile(driftPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("Failed to open region for append: %v", err)
	}
	if _, err := f.Write([]byte{0}); err != nil {
		t.Fatalf("Failed to grow region file: %v", err)
	}
	f.Close()

	if err := os.Remove(gonePath); err != nil {
		t.Fatalf("Failed to remove region file: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "2.0.region.bin"), []byte("stub"), 0644); err != nil {
		t.Fatalf("Failed to write new region file: %v", err)
	}

	stale, err = d.Stale(context.Background(), root)
	if err != nil {
		t.Fatalf("Stale failed: %v", err)
	}

	want := []struct {
		x, z   int
		reason StaleReason
	}{
		{0, 0, StaleSizeDrift},
		{1, 0, StaleMissingFile},
		{2, 0, StaleUnindexed},
	}
	if len(stale) != len(want) {
		t.Fatalf("Expected %d stale regions, got %d: %v", len(want), len(stale), stale)
	}
	for i, w := range want {
		if stale[i].X != w.x || stale[i].Z != w.z || stale[i].Reason != w.reason {
			t.Errorf("stale[%d] = %+v, want (%d, %d) %s", i, stale[i], w.x, w.z, w.reason)
		}
	}
}

func TestBuildSkipsBadRegion(t *testing.T) {
	root := t.TempDir()
	writeRegionFile(t, filepath.Join(root, "0.0.region.bin"), map[int][]byte{0: chunkDoc(t, nil)})
	if err := os.WriteFile(filepath.Join(root, "1.1.region.bin"), bytes.Repeat([]byte{'x'}, 64), 0644); err != nil {
		t.Fatalf("Failed to write bad region: %v", err)
	}

	d := openIndex(t)
	report, err := d.Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if report.Regions != 1 {
		t.Errorf("Expected 1 indexed region, got %d", report.Regions)
	}
	if report.RegionsFailed != 1 {
		t.Errorf("Expected 1 failed region, got %d", report.RegionsFailed)
	}
}

func TestBuildContextCancelled(t *testing.T) {
	root := t.TempDir()
	writeRegionFile(t, filepath.Join(root, "0.0.region.bin"), map[int][]byte{0: chunkDoc(t, nil)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := openIndex(t)
	_, err := d.Build(ctx, root)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBuildTracksStats(t *testing.T) {
	root := t.TempDir()
	doc := chunkDoc(t, nil)
	writeRegionFile(t, filepath.Join(root, "0.0.region.bin"), map[int][]byte{0: doc, 1: doc})

	d := openIndex(t)
	report, err := d.Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := d.Stats().OperationCount(stats.OpIndexUpsert); got != uint64(report.ChunksIndexed) {
		t.Errorf("Expected %d index_upsert operations, got %d", report.ChunksIndexed, got)
	}

	if _, err := d.Lookup(context.Background(), 0, 0, 0); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got := d.Stats().OperationCount(stats.OpIndexLookup); got != 1 {
		t.Errorf("Expected 1 index_lookup operation, got %d", got)
	}
}
