// Package index maintains a sqlite summary of scanned worlds, so
// repeated lookups do not have to re-decode chunk blobs.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meintsot/regionlens/pkg/chunk"
	"github.com/meintsot/regionlens/pkg/common/log"
	"github.com/meintsot/regionlens/pkg/stats"
	"github.com/meintsot/regionlens/pkg/world"
)

// ErrNotFound means the requested chunk has no index row.
var ErrNotFound = errors.New("chunk not indexed")

// initPragmas are applied to every opened index database.
var initPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

const schema = `
CREATE TABLE IF NOT EXISTS regions (
	x            INTEGER NOT NULL,
	z            INTEGER NOT NULL,
	path         TEXT    NOT NULL,
	file_size    INTEGER NOT NULL,
	blob_count   INTEGER NOT NULL,
	segment_size INTEGER NOT NULL,
	PRIMARY KEY (x, z)
);

CREATE TABLE IF NOT EXISTS chunks (
	region_x      INTEGER NOT NULL,
	region_z      INTEGER NOT NULL,
	slot          INTEGER NOT NULL,
	local_x       INTEGER NOT NULL,
	local_z       INTEGER NOT NULL,
	digest        INTEGER NOT NULL,
	section_count INTEGER NOT NULL,
	entity_count  INTEGER NOT NULL,
	has_heightmap INTEGER NOT NULL,
	warn_count    INTEGER NOT NULL,
	PRIMARY KEY (region_x, region_z, slot),
	FOREIGN KEY (region_x, region_z) REFERENCES regions (x, z) ON DELETE CASCADE
);
`

// Entry is one indexed chunk summary. Digest is the snapshot content
// digest; sqlite stores it as a signed integer, the conversion is
// lossless both ways.
type Entry struct {
	RegionX      int
	RegionZ      int
	Slot         int
	LocalX       int
	LocalZ       int
	Digest       uint64
	SectionCount int
	EntityCount  int
	HasHeightmap bool
	WarnCount    int
}

// DB is an open index database.
type DB struct {
	sql       *sql.DB
	path      string
	opts      chunk.Options
	logger    log.Logger
	collector *stats.AtomicCollector
}

// Option configures an index DB at open time.
type Option func(*DB)

// WithChunkOptions sets the decode options Build applies to every
// chunk.
func WithChunkOptions(opts chunk.Options) Option {
	return func(d *DB) {
		d.opts = opts
	}
}

// WithLogger sets the logger build progress and skips are reported to.
func WithLogger(logger log.Logger) Option {
	return func(d *DB) {
		d.logger = logger
	}
}

// WithCollector sets the stats collector index operations record into.
func WithCollector(collector *stats.AtomicCollector) Option {
	return func(d *DB) {
		d.collector = collector
	}
}

// Open opens the index database at path, creating it and its schema as
// needed, and applies the connection pragmas.
func Open(path string, options ...Option) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	d := &DB{
		sql:       sqlDB,
		path:      path,
		opts:      chunk.DefaultOptions(),
		logger:    log.GetDefaultLogger(),
		collector: stats.NewAtomicCollector(),
	}
	for _, option := range options {
		option(d)
	}

	if err := d.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) init() error {
	for _, pragma := range initPragmas {
		if _, err := d.sql.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}
	if _, err := d.sql.Exec(schema); err != nil {
		return fmt.Errorf("failed to create index schema: %w", err)
	}
	return nil
}

// Path returns the database file path the index was opened with.
func (d *DB) Path() string {
	return d.path
}

// Stats returns the collector index operations record into.
func (d *DB) Stats() *stats.AtomicCollector {
	return d.collector
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Lookup fetches the index row for one chunk. ErrNotFound means the
// chunk has no row, which covers both unindexed regions and empty
// slots.
func (d *DB) Lookup(ctx context.Context, x, z, slot int) (*Entry, error) {
	start := time.Now()
	row := d.sql.QueryRowContext(ctx, `
		SELECT region_x, region_z, slot, local_x, local_z, digest,
		       section_count, entity_count, has_heightmap, warn_count
		FROM chunks
		WHERE region_x = ? AND region_z = ? AND slot = ?`,
		x, z, slot)

	var e Entry
	var digest int64
	err := row.Scan(&e.RegionX, &e.RegionZ, &e.Slot, &e.LocalX, &e.LocalZ,
		&digest, &e.SectionCount, &e.EntityCount, &e.HasHeightmap, &e.WarnCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: region (%d, %d) slot %d", ErrNotFound, x, z, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk row: %w", err)
	}
	e.Digest = uint64(digest)

	d.collector.TrackOperationWithLatency(stats.OpIndexLookup, uint64(time.Since(start).Nanoseconds()))
	return &e, nil
}

// RegionEntries fetches the indexed chunk rows of one region in slot
// order.
func (d *DB) RegionEntries(ctx context.Context, x, z int) ([]Entry, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT region_x, region_z, slot, local_x, local_z, digest,
		       section_count, entity_count, has_heightmap, warn_count
		FROM chunks
		WHERE region_x = ? AND region_z = ?
		ORDER BY slot`,
		x, z)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk rows: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var digest int64
		if err := rows.Scan(&e.RegionX, &e.RegionZ, &e.Slot, &e.LocalX, &e.LocalZ,
			&digest, &e.SectionCount, &e.EntityCount, &e.HasHeightmap, &e.WarnCount); err != nil {
			return nil, fmt.Errorf("failed to read chunk row: %w", err)
		}
		e.Digest = uint64(digest)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk rows: %w", err)
	}
	return entries, nil
}

// StaleReason classifies why an index row disagrees with the files on
// disk.
type StaleReason int

const (
	// StaleSizeDrift means the region file's size changed since it was
	// indexed.
	StaleSizeDrift StaleReason = iota
	// StaleMissingFile means an indexed region's file is gone.
	StaleMissingFile
	// StaleUnindexed means a region file on disk has no index row.
	StaleUnindexed
)

// String returns the string representation of the stale reason
func (r StaleReason) String() string {
	switch r {
	case StaleSizeDrift:
		return "size-drift"
	case StaleMissingFile:
		return "missing-file"
	case StaleUnindexed:
		return "unindexed"
	default:
		return fmt.Sprintf("StaleReason(%d)", r)
	}
}

// StaleRegion is one region whose index row disagrees with disk.
type StaleRegion struct {
	X      int
	Z      int
	Path   string
	Reason StaleReason
}

// Stale compares the indexed regions against the region files under
// root and reports every disagreement: size drift, files gone, and
// files never indexed. An empty result means the index is current.
func (d *DB) Stale(ctx context.Context, root string) ([]StaleRegion, error) {
	type indexed struct {
		path string
		size int64
	}

	rows, err := d.sql.QueryContext(ctx, `SELECT x, z, path, file_size FROM regions`)
	if err != nil {
		return nil, fmt.Errorf("failed to read region rows: %w", err)
	}
	defer rows.Close()

	known := make(map[[2]int]indexed)
	for rows.Next() {
		var x, z int
		var row indexed
		if err := rows.Scan(&x, &z, &row.path, &row.size); err != nil {
			return nil, fmt.Errorf("failed to read region row: %w", err)
		}
		known[[2]int{x, z}] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read region rows: %w", err)
	}

	refs, err := world.Discover(root)
	if err != nil {
		return nil, err
	}

	var stale []StaleRegion
	seen := make(map[[2]int]bool, len(refs))
	for _, ref := range refs {
		key := [2]int{ref.X, ref.Z}
		seen[key] = true

		row, ok := known[key]
		if !ok {
			stale = append(stale, StaleRegion{X: ref.X, Z: ref.Z, Path: ref.Path, Reason: StaleUnindexed})
			continue
		}

		info, err := os.Stat(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", ref.Path, err)
		}
		if info.Size() != row.size {
			stale = append(stale, StaleRegion{X: ref.X, Z: ref.Z, Path: ref.Path, Reason: StaleSizeDrift})
		}
	}

	for key, row := range known {
		if !seen[key] {
			stale = append(stale, StaleRegion{X: key[0], Z: key[1], Path: row.path, Reason: StaleMissingFile})
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		if stale[i].X != stale[j].X {
			return stale[i].X < stale[j].X
		}
		return stale[i].Z < stale[j].Z
	})
	return stale, nil
}
