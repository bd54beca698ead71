// Package world discovers region files under a world directory and
// scans the chunks stored in them.
package world

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/meintsot/regionlens/pkg/region"
)

// regionSuffix is the fixed tail of every region file name.
const regionSuffix = ".region.bin"

// RegionRef names one region file found on disk, with the region
// coordinates parsed from its file name.
type RegionRef struct {
	X    int
	Z    int
	Path string
}

// ParseRegionName parses a region file name of the form
// {x}.{z}.region.bin with signed decimal coordinates. ok is false for
// any other name.
func ParseRegionName(name string) (x, z int, ok bool) {
	stem, found := strings.CutSuffix(name, regionSuffix)
	if !found {
		return 0, 0, false
	}

	dot := strings.IndexByte(stem, '.')
	if dot < 0 || strings.IndexByte(stem[dot+1:], '.') >= 0 {
		return 0, 0, false
	}

	x, err := strconv.Atoi(stem[:dot])
	if err != nil {
		return 0, 0, false
	}
	z, err = strconv.Atoi(stem[dot+1:])
	if err != nil {
		return 0, 0, false
	}
	return x, z, true
}

// RegionFileName formats the file name a region with the given
// coordinates is stored under.
func RegionFileName(x, z int) string {
	return fmt.Sprintf("%d.%d%s", x, z, regionSuffix)
}

// Discover lists the region files directly under root, sorted by
// (x, z). Entries that do not match the region naming scheme are
// ignored; subdirectories are not descended into.
func Discover(root string) ([]RegionRef, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", region.ErrIO, root, err)
	}

	refs := make([]RegionRef, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		x, z, ok := ParseRegionName(entry.Name())
		if !ok {
			continue
		}
		refs = append(refs, RegionRef{X: x, Z: z, Path: filepath.Join(root, entry.Name())})
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].X != refs[j].X {
			return refs[i].X < refs[j].X
		}
		return refs[i].Z < refs[j].Z
	})
	return refs, nil
}
