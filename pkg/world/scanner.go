package world

import (
	"context"
	"time"

	"github.com/meintsot/regionlens/pkg/chunk"
	"github.com/meintsot/regionlens/pkg/codec"
	"github.com/meintsot/regionlens/pkg/common/log"
	"github.com/meintsot/regionlens/pkg/region"
	"github.com/meintsot/regionlens/pkg/stats"
)

// ScanFunc receives each assembled chunk snapshot. Returning a non-nil
// error stops the scan and surfaces that error to the Scan caller.
type ScanFunc func(snap *chunk.Snapshot) error

// ChunkFailure records one chunk that could not be decoded.
type ChunkFailure struct {
	Path string
	Slot int
	Err  error
}

// RegionFailure records one region file that could not be opened.
type RegionFailure struct {
	Path string
	Err  error
}

// ScanReport totals one Scan call. Failures are recorded here rather
// than aborting the scan; only a ScanFunc error or context cancellation
// ends a scan early.
type ScanReport struct {
	// Regions counts region files opened successfully.
	Regions int

	// ChunksDecoded and ChunksFailed partition the occupied slots of
	// the opened regions.
	ChunksDecoded int
	ChunksFailed  int

	// BytesRead totals the compressed blob bytes of decoded chunks.
	BytesRead int64

	// Warnings tallies the non-fatal decode findings by kind.
	Warnings map[codec.WarningKind]int

	FailedChunks  []ChunkFailure
	FailedRegions []RegionFailure

	// Stats is the collector the scan recorded operation counters and
	// latencies into.
	Stats *stats.AtomicCollector
}

// Scanner walks a world directory and assembles every stored chunk.
type Scanner struct {
	opts      chunk.Options
	logger    log.Logger
	collector *stats.AtomicCollector
}

// ScannerOption configures a Scanner at construction.
type ScannerOption func(*Scanner)

// WithChunkOptions sets the decode options applied to every chunk.
func WithChunkOptions(opts chunk.Options) ScannerOption {
	return func(s *Scanner) {
		s.opts = opts
	}
}

// WithLogger sets the logger scan progress and skips are reported to.
func WithLogger(logger log.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithCollector sets the stats collector scans record into. By default
// each Scanner carries its own.
func WithCollector(collector *stats.AtomicCollector) ScannerOption {
	return func(s *Scanner) {
		s.collector = collector
	}
}

// NewScanner creates a scanner with default chunk options.
func NewScanner(options ...ScannerOption) *Scanner {
	s := &Scanner{
		opts:      chunk.DefaultOptions(),
		logger:    log.GetDefaultLogger(),
		collector: stats.NewAtomicCollector(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Stats returns the collector the scanner records into.
func (s *Scanner) Stats() *stats.AtomicCollector {
	return s.collector
}

// Scan discovers the region files under root and assembles every
// occupied slot, calling fn (when non-nil) with each snapshot. Chunk
// failures are isolated: a chunk that fails to decode is recorded on
// the report and the scan continues. A region whose header fails to
// parse is recorded and skipped whole.
//
// The returned report is non-nil whenever discovery succeeded, even if
// the scan ended early through fn or ctx.
func (s *Scanner) Scan(ctx context.Context, root string, fn ScanFunc) (*ScanReport, error) {
	refs, err := Discover(root)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{
		Warnings: make(map[codec.WarningKind]int),
		Stats:    s.collector,
	}

	assembler, err := chunk.NewAssembler(s.opts)
	if err != nil {
		return nil, err
	}
	defer assembler.Close()

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.scanRegion(ctx, assembler, ref, report, fn); err != nil {
			return report, err
		}
	}

	s.logger.Info("scanned %s: %d regions, %d chunks decoded, %d failed, %d bytes read",
		root, report.Regions, report.ChunksDecoded, report.ChunksFailed, report.BytesRead)
	return report, nil
}

func (s *Scanner) scanRegion(ctx context.Context, assembler *chunk.Assembler, ref RegionRef, report *ScanReport, fn ScanFunc) error {
	openStart := time.Now()
	r, err := region.Open(ref.Path, region.WithLogger(s.logger))
	if err != nil {
		s.collector.TrackError("region_open")
		s.logger.Warn("skipping region %s: %v", ref.Path, err)
		report.FailedRegions = append(report.FailedRegions, RegionFailure{Path: ref.Path, Err: err})
		return nil
	}
	defer r.Close()
	s.collector.TrackOperationWithLatency(stats.OpOpenRegion, uint64(time.Since(openStart).Nanoseconds()))

	report.Regions++

	it := r.OccupiedSlots()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		slot := it.Slot()
		chunkStart := time.Now()
		snap, err := assembler.GetChunk(r, slot)
		if err != nil {
			s.collector.TrackError("chunk_decode")
			report.ChunksFailed++
			report.FailedChunks = append(report.FailedChunks, ChunkFailure{Path: ref.Path, Slot: slot, Err: err})
			s.logger.Warn("chunk slot %d in %s: %v", slot, ref.Path, err)
			continue
		}
		s.collector.TrackOperationWithLatency(stats.OpAssembleChunk, uint64(time.Since(chunkStart).Nanoseconds()))
		s.collector.TrackBytesRead(uint64(snap.CompressedSize))

		snap.RegionX, snap.RegionZ = ref.X, ref.Z

		report.ChunksDecoded++
		report.BytesRead += int64(snap.CompressedSize)
		for _, w := range snap.Warnings {
			report.Warnings[w.Kind]++
		}

		if fn != nil {
			if err := fn(snap); err != nil {
				return err
			}
		}
	}
	return nil
}
