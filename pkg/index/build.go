package index

import (
	"context"
	"fmt"
	"time"

	"github.com/meintsot/regionlens/pkg/chunk"
	"github.com/meintsot/regionlens/pkg/region"
	"github.com/meintsot/regionlens/pkg/stats"
	"github.com/meintsot/regionlens/pkg/world"
)

// BuildReport totals one Build call.
type BuildReport struct {
	// Regions counts region files indexed; RegionsFailed counts files
	// whose header could not be parsed.
	Regions       int
	RegionsFailed int

	// ChunksIndexed and ChunksFailed partition the occupied slots of
	// the indexed regions.
	ChunksIndexed int
	ChunksFailed  int

	// Stats is the collector the build recorded into.
	Stats *stats.AtomicCollector
}

// Build scans the region files under root and rebuilds their index
// rows, one transaction per region. Chunks that fail to decode are
// skipped and counted; a region whose header fails to parse is skipped
// whole. Regions in the index but gone from disk keep their rows; use
// Stale to find them.
func (d *DB) Build(ctx context.Context, root string) (*BuildReport, error) {
	refs, err := world.Discover(root)
	if err != nil {
		return nil, err
	}

	assembler, err := chunk.NewAssembler(d.opts)
	if err != nil {
		return nil, err
	}
	defer assembler.Close()

	report := &BuildReport{Stats: d.collector}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := d.buildRegion(ctx, assembler, ref, report); err != nil {
			return report, err
		}
	}

	d.logger.Info("indexed %s into %s: %d regions, %d chunks, %d chunk failures",
		root, d.path, report.Regions, report.ChunksIndexed, report.ChunksFailed)
	return report, nil
}

func (d *DB) buildRegion(ctx context.Context, assembler *chunk.Assembler, ref world.RegionRef, report *BuildReport) error {
	r, err := region.Open(ref.Path, region.WithLogger(d.logger))
	if err != nil {
		d.collector.TrackError("region_open")
		d.logger.Warn("skipping region %s: %v", ref.Path, err)
		report.RegionsFailed++
		return nil
	}
	defer r.Close()

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	header := r.Header()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO regions (x, z, path, file_size, blob_count, segment_size)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (x, z) DO UPDATE SET
			path = excluded.path,
			file_size = excluded.file_size,
			blob_count = excluded.blob_count,
			segment_size = excluded.segment_size`,
		ref.X, ref.Z, ref.Path, r.FileSize(), header.BlobCount, header.SegmentSize); err != nil {
		return fmt.Errorf("failed to upsert region row: %w", err)
	}

	// Rebuild the region's chunk rows from scratch so vacated slots do
	// not linger.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE region_x = ? AND region_z = ?`,
		ref.X, ref.Z); err != nil {
		return fmt.Errorf("failed to clear chunk rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (region_x, region_z, slot, local_x, local_z, digest,
		                    section_count, entity_count, has_heightmap, warn_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	it := r.OccupiedSlots()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, err := assembler.GetChunk(r, it.Slot())
		if err != nil {
			d.collector.TrackError("chunk_decode")
			d.logger.Warn("chunk slot %d in %s: %v", it.Slot(), ref.Path, err)
			report.ChunksFailed++
			continue
		}
		snap.RegionX, snap.RegionZ = ref.X, ref.Z

		start := time.Now()
		if _, err := stmt.ExecContext(ctx, snap.RegionX, snap.RegionZ, snap.Slot,
			snap.LocalX, snap.LocalZ, int64(snap.Digest()), len(snap.Sections),
			snap.EntityCount(), snap.Heightmap != nil, len(snap.Warnings)); err != nil {
			return fmt.Errorf("failed to insert chunk row: %w", err)
		}
		d.collector.TrackOperationWithLatency(stats.OpIndexUpsert, uint64(time.Since(start).Nanoseconds()))
		report.ChunksIndexed++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit region %s: %w", ref.Path, err)
	}
	report.Regions++
	return nil
}
