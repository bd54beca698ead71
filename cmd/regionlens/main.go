package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/meintsot/regionlens/pkg/chunk"
	"github.com/meintsot/regionlens/pkg/codec"
	"github.com/meintsot/regionlens/pkg/common/iterator"
	"github.com/meintsot/regionlens/pkg/common/iterator/composite"
	"github.com/meintsot/regionlens/pkg/common/log"
	"github.com/meintsot/regionlens/pkg/config"
	"github.com/meintsot/regionlens/pkg/index"
	"github.com/meintsot/regionlens/pkg/region"
	"github.com/meintsot/regionlens/pkg/stats"
	"github.com/meintsot/regionlens/pkg/world"
)

const version = "0.1.0"

// maxListedFailures caps the failure and warning lists printed by the
// reporting commands so a badly corrupted world does not flood the
// terminal.
const maxListedFailures = 10

func main() {
	cfg, args := parseFlags()

	level, err := cfg.Level()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	logger := log.NewStandardLogger(log.WithLevel(level))

	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "stat":
		err = runStat(rest, cfg, logger)
	case "scan":
		err = runScan(rest, cfg, logger)
	case "show":
		err = runShow(rest, cfg, logger)
	case "diff":
		err = runDiff(rest, cfg, logger)
	case "index":
		err = runIndex(rest, cfg, logger)
	case "shell":
		err = runShell(rest, cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// parseFlags parses the global flags, merges them over the optional
// configuration file, and returns the validated configuration along
// with the remaining arguments.
func parseFlags() (*config.Config, []string) {
	// Define custom usage message
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "regionlens - a read-only inspector for IndexedStorage region files\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: regionlens [options] <command> [arguments]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Commands:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  stat <file>                  - Print the header and occupancy map of a region file\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  scan <dir>                   - Decode every chunk under a world directory\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  show <file> <slot|x,z>       - Print one chunk in detail\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  diff <fileA> <fileB> [slot]  - Compare two region files\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  index <dir> [db]             - Build or refresh the sqlite chunk index\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  shell [dir]                  - Start the interactive shell\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nExplicitly set flags override values from the configuration file.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "For the interactive commands, start regionlens shell and type .help\n")
	}

	defaults := config.DefaultConfig()
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	strict := flag.Bool("strict", defaults.Strict, "Fail on malformed chunk payloads instead of degrading")
	voxelOrder := flag.String("voxel-order", defaults.VoxelOrder, "Nibble order of packed voxel arrays (even-low or even-high)")
	levelOrder := flag.String("level-order", defaults.LevelOrder, "Nibble order of packed fluid level arrays (even-low or even-high)")
	exemplars := flag.Int("exemplars", defaults.MaxExemplars, "Changed voxels kept per section in diff reports")
	indexPath := flag.String("index", defaults.IndexPath, "Path of the sqlite chunk index")
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level: debug, info, warn or error")

	flag.Parse()

	cfg := defaults
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %s\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Explicitly set flags win over file values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strict":
			cfg.Strict = *strict
		case "voxel-order":
			cfg.VoxelOrder = *voxelOrder
		case "level-order":
			cfg.LevelOrder = *levelOrder
		case "exemplars":
			cfg.MaxExemplars = *exemplars
		case "index":
			cfg.IndexPath = *indexPath
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	return cfg, flag.Args()
}

func runStat(args []string, cfg *config.Config, logger log.Logger) error {
	if len(args) != 1 {
		return errors.New("usage: regionlens stat <file>")
	}

	r, err := region.Open(args[0], region.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()

	st := r.Stat()
	fmt.Printf("Region file:    %s\n", st.Path)
	if x, z, ok := world.ParseRegionName(filepath.Base(st.Path)); ok {
		fmt.Printf("Region coords:  (%d, %d), world chunks x %d..%d, z %d..%d\n",
			x, z,
			x*region.GridSize, (x+1)*region.GridSize-1,
			z*region.GridSize, (z+1)*region.GridSize-1)
	}
	fmt.Printf("Format version: %d\n", st.Header.Version)
	fmt.Printf("Blob count:     %d\n", st.Header.BlobCount)
	fmt.Printf("Segment size:   %d bytes\n", st.Header.SegmentSize)
	fmt.Printf("File size:      %d bytes\n", st.FileSize)
	fmt.Printf("Occupied slots: %d of %d\n", st.Occupied, st.Header.BlobCount)

	occupied := r.Occupied()
	if st.Header.BlobCount == region.GridSize*region.GridSize {
		fmt.Println()
		printOccupancy(occupied)
	} else if len(occupied) > 0 {
		fmt.Printf("Occupied:       %v\n", occupied)
	}
	return nil
}

// printOccupancy draws the 32x32 slot grid, x across and z down.
func printOccupancy(occupied []int) {
	grid := make(map[int]bool, len(occupied))
	for _, slot := range occupied {
		grid[slot] = true
	}
	fmt.Println("Occupancy (x across, z down, '#' holds a chunk):")
	for z := 0; z < region.GridSize; z++ {
		var row strings.Builder
		for x := 0; x < region.GridSize; x++ {
			if grid[region.SlotFor(x, z)] {
				row.WriteByte('#')
			} else {
				row.WriteByte('.')
			}
		}
		fmt.Printf("  %s\n", row.String())
	}
}

func runScan(args []string, cfg *config.Config, logger log.Logger) error {
	if len(args) != 1 {
		return errors.New("usage: regionlens scan <dir>")
	}
	opts, err := cfg.ChunkOptions()
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	type regionRow struct {
		chunks int
		bytes  int64
		warns  int
	}
	rows := make(map[string]*regionRow)

	scanner := world.NewScanner(world.WithChunkOptions(opts), world.WithLogger(logger))
	report, scanErr := scanner.Scan(ctx, args[0], func(snap *chunk.Snapshot) error {
		row := rows[snap.Path]
		if row == nil {
			row = &regionRow{}
			rows[snap.Path] = row
		}
		row.chunks++
		row.bytes += int64(snap.CompressedSize)
		row.warns += len(snap.Warnings)
		return nil
	})
	if report == nil {
		return scanErr
	}

	failedByPath := make(map[string]int)
	for _, f := range report.FailedChunks {
		failedByPath[f.Path]++
	}

	paths := make([]string, 0, len(rows))
	for path := range rows {
		paths = append(paths, path)
	}
	for path := range failedByPath {
		if rows[path] == nil {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	if len(paths) > 0 {
		fmt.Printf("%-24s %8s %8s %12s %10s\n", "Region", "Chunks", "Failed", "Bytes", "Warnings")
		for _, path := range paths {
			row := rows[path]
			if row == nil {
				row = &regionRow{}
			}
			fmt.Printf("%-24s %8d %8d %12d %10d\n",
				filepath.Base(path), row.chunks, failedByPath[path], row.bytes, row.warns)
		}
		fmt.Println()
	}

	fmt.Printf("Regions:        %d", report.Regions)
	if len(report.FailedRegions) > 0 {
		fmt.Printf(" (%d unreadable)", len(report.FailedRegions))
	}
	fmt.Println()
	fmt.Printf("Chunks decoded: %d\n", report.ChunksDecoded)
	fmt.Printf("Chunks failed:  %d\n", report.ChunksFailed)
	fmt.Printf("Bytes read:     %d\n", report.BytesRead)

	if len(report.Warnings) > 0 {
		kinds := make([]codec.WarningKind, 0, len(report.Warnings))
		for kind := range report.Warnings {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		fmt.Println("\nWarnings:")
		for _, kind := range kinds {
			fmt.Printf("  %-26s %d\n", kind, report.Warnings[kind])
		}
	}

	if len(report.FailedRegions) > 0 {
		fmt.Println("\nUnreadable regions:")
		for _, f := range report.FailedRegions {
			fmt.Printf("  %s\n", f.Err)
		}
	}
	if len(report.FailedChunks) > 0 {
		fmt.Println("\nFailed chunks:")
		for i, f := range report.FailedChunks {
			if i == maxListedFailures {
				fmt.Printf("  ... and %d more\n", len(report.FailedChunks)-maxListedFailures)
				break
			}
			fmt.Printf("  %s\n", f.Err)
		}
	}
	return scanErr
}

func runShow(args []string, cfg *config.Config, logger log.Logger) error {
	if len(args) != 2 {
		return errors.New("usage: regionlens show <file> <slot|x,z>")
	}
	opts, err := cfg.ChunkOptions()
	if err != nil {
		return err
	}
	slot, err := parseSlot(args[1])
	if err != nil {
		return err
	}

	r, err := region.Open(args[0], region.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()

	snap, err := chunk.GetChunk(r, slot, opts)
	if err != nil {
		if errors.Is(err, region.ErrSlotEmpty) {
			fmt.Printf("Slot %d holds no chunk\n", slot)
			return nil
		}
		return err
	}
	printSnapshot(snap)
	return nil
}

func printSnapshot(snap *chunk.Snapshot) {
	fmt.Printf("Chunk slot %d, local (%d, %d)", snap.Slot, snap.LocalX, snap.LocalZ)
	if x, z, ok := world.ParseRegionName(filepath.Base(snap.Path)); ok {
		fmt.Printf(", world chunk (%d, %d)",
			x*region.GridSize+snap.LocalX, z*region.GridSize+snap.LocalZ)
	}
	fmt.Println()
	fmt.Printf("Source:      %s\n", snap.Path)
	fmt.Printf("Compressed:  %d bytes (raw %d)\n", snap.CompressedSize, snap.RawSize)
	fmt.Printf("Digest:      %016x\n", snap.Digest())
	if snap.BlockChunkVersion != 0 || snap.HasMigration {
		fmt.Printf("Block chunk: version %d", snap.BlockChunkVersion)
		if snap.HasMigration {
			fmt.Printf(", migration header %d", snap.MigrationVersion)
		}
		fmt.Println()
	}

	fmt.Printf("Sections (%d):\n", len(snap.Sections))
	for i := range snap.Sections {
		printSection(&snap.Sections[i])
	}

	printHeightmap(snap.Heightmap)
	printTintmap(snap.Tintmap)
	printEnvironment(snap.Environment)
	fmt.Printf("Entities:    %d\n", snap.EntityCount())

	if len(snap.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(snap.Warnings))
		for i, w := range snap.Warnings {
			if i == maxListedFailures {
				fmt.Printf("  ... and %d more\n", len(snap.Warnings)-maxListedFailures)
				break
			}
			fmt.Printf("  %s\n", w)
		}
	}
}

func printSection(sec *chunk.SectionSnapshot) {
	if sec.Block == nil && sec.Fluid == nil {
		fmt.Printf("  y=%-3d air\n", sec.Y)
		return
	}
	fmt.Printf("  y=%-3d block %s, fluid %s", sec.Y, paletteSummary(sec.Block), paletteSummary(sec.Fluid))
	if sec.PhysicsSize > 0 {
		fmt.Printf(", physics %d bytes", sec.PhysicsSize)
	}
	fmt.Println()
	printPaletteEntries("blocks", sec.Block)
	printPaletteEntries("fluids", sec.Fluid)
}

func paletteSummary(p *codec.PaletteSection) string {
	if p == nil {
		return "absent"
	}
	var b strings.Builder
	b.WriteString(p.Type.String())
	if p.Type != codec.PaletteEmpty {
		fmt.Fprintf(&b, " (%d entries)", len(p.Entries))
	}
	if p.HasLevels {
		b.WriteString(" +levels")
	}
	if p.Ambiguous {
		b.WriteString(" ambiguous")
	}
	return b.String()
}

// printPaletteEntries lists a section palette as name(count) pairs.
func printPaletteEntries(label string, p *codec.PaletteSection) {
	if p == nil || len(p.Entries) == 0 {
		return
	}
	parts := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		parts = append(parts, fmt.Sprintf("%s(%d)", e.Name, e.Count))
	}
	const maxEntries = 12
	if len(parts) > maxEntries {
		parts = append(parts[:maxEntries], fmt.Sprintf("+%d more", len(p.Entries)-maxEntries))
	}
	fmt.Printf("        %s: %s\n", label, strings.Join(parts, " "))
}

func printHeightmap(h *codec.Heightmap) {
	if h == nil {
		fmt.Printf("Heightmap:   absent\n")
		return
	}
	lo, hi := int16(0), int16(0)
	unknown, found := 0, false
	for _, height := range h.Heights {
		if height == codec.HeightUnknown {
			unknown++
			continue
		}
		if !found || height < lo {
			lo = height
		}
		if !found || height > hi {
			hi = height
		}
		found = true
	}
	fmt.Printf("Heightmap:   %d palette entries", len(h.Palette))
	if found {
		fmt.Printf(", heights %d..%d", lo, hi)
	}
	if unknown > 0 {
		fmt.Printf(", %d unknown columns", unknown)
	}
	if h.NeedsPhysics {
		fmt.Printf(", needs physics")
	}
	if h.RangeViolations > 0 {
		fmt.Printf(", %d out of range", h.RangeViolations)
	}
	fmt.Println()
}

func printTintmap(t *codec.Tintmap) {
	if t == nil {
		fmt.Printf("Tintmap:     absent\n")
		return
	}
	unknown := 0
	for _, tint := range t.Tints {
		if tint == codec.TintUnknown {
			unknown++
		}
	}
	fmt.Printf("Tintmap:     %d palette entries", len(t.Palette))
	if unknown > 0 {
		fmt.Printf(", %d unknown columns", unknown)
	}
	if t.RangeViolations > 0 {
		fmt.Printf(", %d out of range", t.RangeViolations)
	}
	fmt.Println()
}

func printEnvironment(e *codec.EnvironmentData) {
	if e == nil {
		fmt.Printf("Environment: absent\n")
		return
	}
	fmt.Printf("Environment: %d mappings", len(e.Mappings))
	if len(e.Mappings) > 0 {
		names := make([]string, 0, len(e.Mappings))
		for _, m := range e.Mappings {
			names = append(names, m.Name)
		}
		const maxNames = 8
		if len(names) > maxNames {
			names = append(names[:maxNames], fmt.Sprintf("+%d more", len(e.Mappings)-maxNames))
		}
		fmt.Printf(" (%s)", strings.Join(names, ", "))
	}
	if e.UnknownRefs > 0 {
		fmt.Printf(", %d unknown refs", e.UnknownRefs)
	}
	fmt.Println()
}

func runDiff(args []string, cfg *config.Config, logger log.Logger) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: regionlens diff <fileA> <fileB> [slot|x,z]")
	}
	opts, err := cfg.ChunkOptions()
	if err != nil {
		return err
	}

	ra, err := region.Open(args[0], region.WithLogger(logger))
	if err != nil {
		return err
	}
	defer ra.Close()
	rb, err := region.Open(args[1], region.WithLogger(logger))
	if err != nil {
		return err
	}
	defer rb.Close()

	asm, err := chunk.NewAssembler(opts)
	if err != nil {
		return err
	}
	defer asm.Close()

	if len(args) == 3 {
		slot, err := parseSlot(args[2])
		if err != nil {
			return err
		}
		sa, err := sideSnapshot(asm, ra, slot)
		if err != nil {
			return err
		}
		sb, err := sideSnapshot(asm, rb, slot)
		if err != nil {
			return err
		}
		report := chunk.Diff(sa, sb, cfg.DiffOptions())
		if report.Empty() {
			fmt.Printf("Slot %d: identical\n", slot)
			return nil
		}
		printDiff(slot, report)
		return nil
	}

	diffRegions(asm, ra, rb, cfg.DiffOptions(), nil)
	return nil
}

// diffRegions compares every slot occupied on either side and prints a
// report per differing slot. A nil collector skips stat tracking.
func diffRegions(asm *chunk.Assembler, ra, rb *region.Reader, opts chunk.DiffOptions, collector *stats.AtomicCollector) {
	merged := composite.NewMergedIterator([]iterator.SlotIterator{
		ra.OccupiedSlots(),
		rb.OccupiedSlots(),
	})

	var compared, differing, failed int
	for merged.SeekToFirst(); merged.Valid(); merged.Next() {
		slot := merged.Slot()
		start := time.Now()
		sa, errA := sideSnapshot(asm, ra, slot)
		sb, errB := sideSnapshot(asm, rb, slot)
		if errA != nil || errB != nil {
			if errA != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", errA)
			}
			if errB != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", errB)
			}
			if collector != nil {
				collector.TrackError("chunk_decode")
			}
			failed++
			continue
		}
		report := chunk.Diff(sa, sb, opts)
		if collector != nil {
			collector.TrackOperationWithLatency(stats.OpDiffChunk, uint64(time.Since(start).Nanoseconds()))
		}
		compared++
		if report.Empty() {
			continue
		}
		differing++
		printDiff(slot, report)
	}

	summary := fmt.Sprintf("%d slots compared: %d identical, %d differ", compared, compared-differing, differing)
	if failed > 0 {
		summary += fmt.Sprintf(", %d unreadable", failed)
	}
	fmt.Println(summary)
}

// sideSnapshot reads one side of a comparison, mapping empty slots to a
// nil snapshot.
func sideSnapshot(asm *chunk.Assembler, r *region.Reader, slot int) (*chunk.Snapshot, error) {
	snap, err := asm.GetChunk(r, slot)
	if errors.Is(err, region.ErrSlotEmpty) {
		return nil, nil
	}
	return snap, err
}

func printDiff(slot int, report *chunk.DiffReport) {
	x, z := region.ChunkCoords(slot)
	fmt.Printf("Slot %d (%d, %d):\n", slot, x, z)
	for _, sec := range report.Sections {
		switch {
		case sec.OnlyInA:
			fmt.Printf("  y=%-3d only in A\n", sec.Y)
		case sec.OnlyInB:
			fmt.Printf("  y=%-3d only in B\n", sec.Y)
		default:
			fmt.Printf("  y=%-3d blocks %d, fluids %d, levels %d\n",
				sec.Y, sec.BlockChanges, sec.FluidChanges, sec.LevelChanges)
			for _, ex := range sec.BlockExemplars {
				fmt.Printf("        block (%d, %d, %d): %s -> %s\n", ex.X, ex.Y, ex.Z, ex.From, ex.To)
			}
			for _, ex := range sec.FluidExemplars {
				fmt.Printf("        fluid (%d, %d, %d): %s -> %s\n", ex.X, ex.Y, ex.Z, ex.From, ex.To)
			}
		}
	}
	printNameDeltas("blocks", report.BlockNameDeltas)
	printNameDeltas("fluids", report.FluidNameDeltas)
	if report.HeightmapDelta > 0 {
		fmt.Printf("  heightmap: %d columns changed\n", report.HeightmapDelta)
	}
	if report.TintmapDelta > 0 {
		fmt.Printf("  tintmap: %d columns changed\n", report.TintmapDelta)
	}
	if report.EntityDelta != 0 {
		fmt.Printf("  entities: %+d\n", report.EntityDelta)
	}
	if report.EnvironmentColumnsChanged > 0 {
		fmt.Printf("  environment: %d columns changed\n", report.EnvironmentColumnsChanged)
	}
	if len(report.EnvironmentMappingsAdded) > 0 {
		fmt.Printf("  environments added: %s\n", strings.Join(report.EnvironmentMappingsAdded, ", "))
	}
	if len(report.EnvironmentMappingsRemoved) > 0 {
		fmt.Printf("  environments removed: %s\n", strings.Join(report.EnvironmentMappingsRemoved, ", "))
	}
}

// printNameDeltas lists palette name count changes sorted by name.
func printNameDeltas(label string, deltas map[string]int) {
	if len(deltas) == 0 {
		return
	}
	names := make([]string, 0, len(deltas))
	for name := range deltas {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %+d", name, deltas[name]))
	}
	fmt.Printf("  %s: %s\n", label, strings.Join(parts, ", "))
}

func runIndex(args []string, cfg *config.Config, logger log.Logger) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: regionlens index <dir> [db]")
	}
	root := args[0]
	dbPath := cfg.IndexPath
	if len(args) == 2 {
		dbPath = args[1]
	}
	opts, err := cfg.ChunkOptions()
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	db, err := index.Open(dbPath, index.WithChunkOptions(opts), index.WithLogger(logger))
	if err != nil {
		return err
	}
	defer db.Close()

	stale, err := db.Stale(ctx, root)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		fmt.Printf("Index %s is current\n", dbPath)
		return nil
	}

	fmt.Printf("%d regions stale:\n", len(stale))
	for i, s := range stale {
		if i == maxListedFailures {
			fmt.Printf("  ... and %d more\n", len(stale)-maxListedFailures)
			break
		}
		fmt.Printf("  (%d, %d) %s: %s\n", s.X, s.Z, s.Path, s.Reason)
	}
	fmt.Println()

	report, err := db.Build(ctx, root)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d regions (%d failed), %d chunks (%d failed) into %s\n",
		report.Regions, report.RegionsFailed, report.ChunksIndexed, report.ChunksFailed, dbPath)
	return nil
}

// parseSlot accepts a bare slot number or "x,z" chunk coordinates local
// to the region grid.
func parseSlot(arg string) (int, error) {
	if xs, zs, ok := strings.Cut(arg, ","); ok {
		x, errX := strconv.Atoi(strings.TrimSpace(xs))
		z, errZ := strconv.Atoi(strings.TrimSpace(zs))
		if errX != nil || errZ != nil {
			return 0, fmt.Errorf("invalid chunk coordinates %q", arg)
		}
		if x < 0 || x >= region.GridSize || z < 0 || z >= region.GridSize {
			return 0, fmt.Errorf("chunk coordinates (%d, %d) outside the %dx%d grid",
				x, z, region.GridSize, region.GridSize)
		}
		return region.SlotFor(x, z), nil
	}
	slot, err := strconv.Atoi(arg)
	if err != nil || slot < 0 {
		return 0, fmt.Errorf("invalid slot %q", arg)
	}
	return slot, nil
}

// interruptContext returns a context cancelled by SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
