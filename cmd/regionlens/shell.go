package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/chzyer/readline"

	"github.com/meintsot/regionlens/pkg/chunk"
	"github.com/meintsot/regionlens/pkg/common/iterator"
	"github.com/meintsot/regionlens/pkg/common/iterator/bounded"
	"github.com/meintsot/regionlens/pkg/common/iterator/filtered"
	"github.com/meintsot/regionlens/pkg/common/log"
	"github.com/meintsot/regionlens/pkg/config"
	"github.com/meintsot/regionlens/pkg/index"
	"github.com/meintsot/regionlens/pkg/region"
	"github.com/meintsot/regionlens/pkg/stats"
	"github.com/meintsot/regionlens/pkg/world"
)

// Command completer for readline
var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".close"),
	readline.PcItem(".regions"),
	readline.PcItem(".chunks",
		readline.PcItem("col"),
		readline.PcItem("row"),
	),
	readline.PcItem(".show"),
	readline.PcItem(".diff"),
	readline.PcItem(".lookup"),
	readline.PcItem(".stats"),
	readline.PcItem(".strict",
		readline.PcItem("on"),
		readline.PcItem("off"),
	),
	readline.PcItem(".exit"),
)

const shellHelpText = `
regionlens shell - interactive region file inspector.

Commands:
  .help                   - Show this help message
  .open PATH | X,Z        - Open a region file (X,Z names a region in the world directory)
  .close                  - Close the current region
  .regions                - List region files in the world directory
  .chunks [col X | row Z | FROM TO]
                          - List occupied slots, optionally narrowed to one chunk
                            column, one row, or the slot range [FROM, TO)
  .show SLOT | X,Z        - Decode and print one chunk
  .diff PATH [SLOT | X,Z] - Compare the open region against another file
  .lookup SLOT | X,Z      - Look the chunk up in the sqlite index
  .stats                  - Show session statistics
  .strict [on|off]        - Show or set strict decoding
  .exit                   - Exit the shell
`

// shell holds the state of one interactive session.
type shell struct {
	cfg       *config.Config
	logger    log.Logger
	collector *stats.AtomicCollector

	worldDir string
	r        *region.Reader
	regionX  int
	regionZ  int
	regionOK bool
	asm      *chunk.Assembler
	idx      *index.DB
}

// runShell starts the interactive CLI mode.
func runShell(args []string, cfg *config.Config, logger log.Logger) error {
	if len(args) > 1 {
		return errors.New("usage: regionlens shell [dir]")
	}

	opts, err := cfg.ChunkOptions()
	if err != nil {
		return err
	}
	asm, err := chunk.NewAssembler(opts)
	if err != nil {
		return err
	}

	sh := &shell{
		cfg:       cfg,
		logger:    logger,
		collector: stats.NewAtomicCollector(),
		asm:       asm,
	}
	defer sh.shutdown()

	fmt.Printf("regionlens version %s\n", version)
	fmt.Println("Enter .help for usage hints.")

	if len(args) == 1 {
		sh.worldDir = args[0]
		refs, err := world.Discover(sh.worldDir)
		if err != nil {
			return err
		}
		fmt.Printf("World %s: %d region files\n", sh.worldDir, len(refs))
	}

	// Setup readline with history support
	historyFile := filepath.Join(os.TempDir(), ".regionlens_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "regionlens> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    shellCompleter,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		// Update prompt based on current state
		if sh.r != nil {
			rl.SetPrompt(fmt.Sprintf("regionlens:%s> ", filepath.Base(sh.r.Path())))
		} else {
			rl.SetPrompt("regionlens> ")
		}

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if line == "" {
			continue
		}

		if !sh.dispatch(strings.Fields(line)) {
			break
		}
	}
	return nil
}

func (sh *shell) shutdown() {
	if sh.r != nil {
		sh.r.Close()
		sh.r = nil
	}
	if sh.asm != nil {
		sh.asm.Close()
		sh.asm = nil
	}
	if sh.idx != nil {
		sh.idx.Close()
		sh.idx = nil
	}
}

// dispatch runs one command line. It returns false when the session
// should end.
func (sh *shell) dispatch(parts []string) bool {
	switch strings.ToLower(parts[0]) {
	case ".help":
		fmt.Print(shellHelpText)

	case ".open":
		sh.cmdOpen(parts[1:])

	case ".close":
		sh.cmdClose()

	case ".regions":
		sh.cmdRegions()

	case ".chunks":
		sh.cmdChunks(parts[1:])

	case ".show":
		sh.cmdShow(parts[1:])

	case ".diff":
		sh.cmdDiff(parts[1:])

	case ".lookup":
		sh.cmdLookup(parts[1:])

	case ".stats":
		sh.cmdStats()

	case ".strict":
		sh.cmdStrict(parts[1:])

	case ".exit":
		fmt.Println("Goodbye!")
		return false

	default:
		fmt.Printf("Unknown command: %s (try .help)\n", parts[0])
	}
	return true
}

func (sh *shell) cmdOpen(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: .open <file | x,z>")
		return
	}

	path := args[0]
	if xs, zs, ok := strings.Cut(args[0], ","); ok {
		if sh.worldDir == "" {
			fmt.Println("No world directory; .open needs a file path (start the shell with: regionlens shell <dir>)")
			return
		}
		x, errX := strconv.Atoi(xs)
		z, errZ := strconv.Atoi(zs)
		if errX != nil || errZ != nil {
			fmt.Printf("Invalid region coordinates %q\n", args[0])
			return
		}
		path = filepath.Join(sh.worldDir, world.RegionFileName(x, z))
	}

	start := time.Now()
	r, err := region.Open(path, region.WithLogger(sh.logger))
	if err != nil {
		sh.collector.TrackError("region_open")
		fmt.Fprintf(os.Stderr, "Error opening region: %s\n", err)
		return
	}
	sh.collector.TrackOperationWithLatency(stats.OpOpenRegion, uint64(time.Since(start).Nanoseconds()))

	if sh.r != nil {
		sh.r.Close()
	}
	sh.r = r
	sh.regionX, sh.regionZ, sh.regionOK = 0, 0, false
	if x, z, ok := world.ParseRegionName(filepath.Base(path)); ok {
		sh.regionX, sh.regionZ, sh.regionOK = x, z, true
	}

	hdr := r.Header()
	fmt.Printf("Opened %s: version %d, %d of %d slots occupied\n",
		path, hdr.Version, len(r.Occupied()), hdr.BlobCount)
}

func (sh *shell) cmdClose() {
	if sh.r == nil {
		fmt.Println("No region open")
		return
	}
	path := sh.r.Path()
	if err := sh.r.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing region: %s\n", err)
	} else {
		fmt.Printf("Closed %s\n", path)
	}
	sh.r = nil
	sh.regionOK = false
}

func (sh *shell) cmdRegions() {
	if sh.worldDir == "" {
		fmt.Println("No world directory (start the shell with: regionlens shell <dir>)")
		return
	}
	refs, err := world.Discover(sh.worldDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	if len(refs) == 0 {
		fmt.Println("No region files found")
		return
	}
	for _, ref := range refs {
		marker := "  "
		if sh.r != nil && sh.r.Path() == ref.Path {
			marker = "* "
		}
		fmt.Printf("%s(%d, %d)  %s\n", marker, ref.X, ref.Z, ref.Path)
	}
}

func (sh *shell) cmdChunks(args []string) {
	if sh.r == nil {
		fmt.Println("No region open (use .open)")
		return
	}

	var it iterator.SlotIterator = sh.r.OccupiedSlots()
	switch {
	case len(args) == 0:
		// every occupied slot

	case len(args) == 2 && strings.EqualFold(args[0], "col"):
		x, err := strconv.Atoi(args[1])
		if err != nil || x < 0 || x >= region.GridSize {
			fmt.Printf("Invalid column %q\n", args[1])
			return
		}
		it = filtered.NewColumnIterator(it, x)

	case len(args) == 2 && strings.EqualFold(args[0], "row"):
		z, err := strconv.Atoi(args[1])
		if err != nil || z < 0 || z >= region.GridSize {
			fmt.Printf("Invalid row %q\n", args[1])
			return
		}
		it = filtered.NewRowIterator(it, z)

	case len(args) == 2:
		from, errF := strconv.Atoi(args[0])
		to, errT := strconv.Atoi(args[1])
		if errF != nil || errT != nil {
			fmt.Println("Usage: .chunks [col X | row Z | FROM TO]")
			return
		}
		it = bounded.NewBoundedIterator(it, from, to)

	default:
		fmt.Println("Usage: .chunks [col X | row Z | FROM TO]")
		return
	}

	n := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		slot := it.Slot()
		x, z := region.ChunkCoords(slot)
		fmt.Printf("  slot %4d  (%2d, %2d)  segment %d\n", slot, x, z, it.Segment())
		n++
	}
	fmt.Printf("%d chunks\n", n)
}

func (sh *shell) cmdShow(args []string) {
	if sh.r == nil {
		fmt.Println("No region open (use .open)")
		return
	}
	if len(args) != 1 {
		fmt.Println("Usage: .show <slot | x,z>")
		return
	}
	slot, err := parseSlot(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}

	start := time.Now()
	snap, err := sh.asm.GetChunk(sh.r, slot)
	if err != nil {
		if errors.Is(err, region.ErrSlotEmpty) {
			fmt.Printf("Slot %d holds no chunk\n", slot)
			return
		}
		sh.collector.TrackError("chunk_decode")
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	sh.collector.TrackOperationWithLatency(stats.OpAssembleChunk, uint64(time.Since(start).Nanoseconds()))
	sh.collector.TrackBytesRead(uint64(snap.CompressedSize))

	printSnapshot(snap)
}

func (sh *shell) cmdDiff(args []string) {
	if sh.r == nil {
		fmt.Println("No region open (use .open)")
		return
	}
	if len(args) < 1 || len(args) > 2 {
		fmt.Println("Usage: .diff <file> [slot | x,z]")
		return
	}

	other, err := region.Open(args[0], region.WithLogger(sh.logger))
	if err != nil {
		sh.collector.TrackError("region_open")
		fmt.Fprintf(os.Stderr, "Error opening region: %s\n", err)
		return
	}
	defer other.Close()

	if len(args) == 2 {
		slot, err := parseSlot(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		start := time.Now()
		sa, errA := sideSnapshot(sh.asm, sh.r, slot)
		sb, errB := sideSnapshot(sh.asm, other, slot)
		if errA != nil || errB != nil {
			if errA != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", errA)
			}
			if errB != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", errB)
			}
			sh.collector.TrackError("chunk_decode")
			return
		}
		report := chunk.Diff(sa, sb, sh.cfg.DiffOptions())
		sh.collector.TrackOperationWithLatency(stats.OpDiffChunk, uint64(time.Since(start).Nanoseconds()))
		if report.Empty() {
			fmt.Printf("Slot %d: identical\n", slot)
			return
		}
		printDiff(slot, report)
		return
	}

	diffRegions(sh.asm, sh.r, other, sh.cfg.DiffOptions(), sh.collector)
}

func (sh *shell) cmdLookup(args []string) {
	if sh.r == nil {
		fmt.Println("No region open (use .open)")
		return
	}
	if !sh.regionOK {
		fmt.Println("Region coordinates unknown (file name is not x.z.region.bin)")
		return
	}
	if len(args) != 1 {
		fmt.Println("Usage: .lookup <slot | x,z>")
		return
	}
	slot, err := parseSlot(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}

	if sh.idx == nil {
		if _, err := os.Stat(sh.cfg.IndexPath); err != nil {
			fmt.Printf("No index at %s (build one with: regionlens index <dir> %s)\n",
				sh.cfg.IndexPath, sh.cfg.IndexPath)
			return
		}
		idx, err := index.Open(sh.cfg.IndexPath,
			index.WithLogger(sh.logger),
			index.WithCollector(sh.collector))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening index: %s\n", err)
			return
		}
		sh.idx = idx
	}

	entry, err := sh.idx.Lookup(context.Background(), sh.regionX, sh.regionZ, slot)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			fmt.Printf("Not indexed: region (%d, %d) slot %d\n", sh.regionX, sh.regionZ, slot)
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}

	fmt.Printf("Indexed chunk (%d, %d) slot %d:\n", sh.regionX, sh.regionZ, entry.Slot)
	fmt.Printf("  local:     (%d, %d)\n", entry.LocalX, entry.LocalZ)
	fmt.Printf("  digest:    %016x\n", entry.Digest)
	fmt.Printf("  sections:  %d\n", entry.SectionCount)
	fmt.Printf("  entities:  %d\n", entry.EntityCount)
	fmt.Printf("  heightmap: %t\n", entry.HasHeightmap)
	fmt.Printf("  warnings:  %d\n", entry.WarnCount)
}

func (sh *shell) cmdStats() {
	st := sh.collector.GetStats()

	// Helper function to safely get a uint64 value with default
	getUint64 := func(m map[string]interface{}, key string, defaultVal uint64) uint64 {
		if val, ok := m[key]; ok {
			switch v := val.(type) {
			case uint64:
				return v
			case int64:
				return uint64(v)
			case int:
				return uint64(v)
			case float64:
				return uint64(v)
			default:
				return defaultVal
			}
		}
		return defaultVal
	}

	fmt.Println("📊 Operations:")
	fmt.Printf("  • Regions opened: %d\n", getUint64(st, "open_region_ops", 0))
	fmt.Printf("  • Chunks decoded: %d\n", getUint64(st, "assemble_chunk_ops", 0))
	fmt.Printf("  • Chunks diffed:  %d\n", getUint64(st, "diff_chunk_ops", 0))
	fmt.Printf("  • Index lookups:  %d\n", getUint64(st, "index_lookup_ops", 0))

	printLast := func(label, key string) {
		if ns, ok := st[key].(int64); ok && ns > 0 {
			fmt.Printf("  • %s: %s\n", label, time.Unix(0, ns).Format(time.RFC3339))
		} else {
			fmt.Printf("  • %s: Never\n", label)
		}
	}
	fmt.Println("\n⏱️ Last Operation Times:")
	printLast("Last open", "last_open_region_time")
	printLast("Last decode", "last_assemble_chunk_time")
	printLast("Last diff", "last_diff_chunk_time")
	printLast("Last lookup", "last_index_lookup_time")

	latencyRows := []struct {
		label string
		op    stats.OperationType
	}{
		{"Open", stats.OpOpenRegion},
		{"Decode", stats.OpAssembleChunk},
		{"Diff", stats.OpDiffChunk},
		{"Lookup", stats.OpIndexLookup},
	}
	headed := false
	for _, row := range latencyRows {
		count, avgNs, minNs, maxNs := sh.collector.LatencySummary(row.op)
		if count == 0 {
			continue
		}
		if !headed {
			fmt.Println("\n⚡ Latency:")
			headed = true
		}
		fmt.Printf("  • %s avg: %.2f ms (min %.2f, max %.2f)\n",
			row.label,
			float64(avgNs)/1000000.0,
			float64(minNs)/1000000.0,
			float64(maxNs)/1000000.0)
	}

	fmt.Println("\n💾 Storage:")
	fmt.Printf("  • Total Bytes Read: %d\n", getUint64(st, "total_bytes_read", 0))

	if errorsMap, ok := st["errors"].(map[string]uint64); ok && len(errorsMap) > 0 {
		fmt.Println("\n⚠️ Errors:")
		errTypes := make([]string, 0, len(errorsMap))
		for errType := range errorsMap {
			errTypes = append(errTypes, errType)
		}
		sort.Strings(errTypes)
		for _, errType := range errTypes {
			displayKey := toTitle(strings.Replace(errType, "_", " ", -1))
			fmt.Printf("  • %s: %d\n", displayKey, errorsMap[errType])
		}
	}
}

func (sh *shell) cmdStrict(args []string) {
	onOff := func(strict bool) string {
		if strict {
			return "on"
		}
		return "off"
	}

	if len(args) == 0 {
		fmt.Printf("Strict decoding is %s\n", onOff(sh.cfg.Strict))
		return
	}
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Println("Usage: .strict [on|off]")
		return
	}

	strict := args[0] == "on"
	if strict == sh.cfg.Strict {
		fmt.Printf("Strict decoding already %s\n", args[0])
		return
	}

	sh.cfg.Strict = strict
	opts, err := sh.cfg.ChunkOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	asm, err := chunk.NewAssembler(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	sh.asm.Close()
	sh.asm = asm
	fmt.Printf("Strict decoding %s\n", args[0])
}

// toTitle replaces strings.Title which is deprecated
// It converts the first character of each word to title case
func toTitle(s string) string {
	prev := ' '
	return strings.Map(
		func(r rune) rune {
			if unicode.IsSpace(prev) || unicode.IsPunct(prev) {
				prev = r
				return unicode.ToTitle(r)
			}
			prev = r
			return r
		},
		s)
}
