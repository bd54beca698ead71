package chunk

import (
	"fmt"
	"sort"

	"github.com/meintsot/regionlens/pkg/codec"
)

// emptyName is the palette name reported for voxels of EMPTY or absent
// sections. The known writer uses the same name for its explicit empty
// entries.
const emptyName = "Empty"

// DiffOptions bound the size of a diff report.
type DiffOptions struct {
	// MaxExemplars caps the changed-voxel coordinates retained per
	// section per array kind. Zero keeps no exemplars.
	MaxExemplars int
}

// DefaultDiffOptions returns the exemplar cap used by the inspection
// tools.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{MaxExemplars: 8}
}

// VoxelChange is one changed voxel with the resolved palette name on
// each side. Y is absolute: section base plus local y.
type VoxelChange struct {
	X, Y, Z int
	From    string
	To      string
}

// SectionDiff reports the changes within one y section.
type SectionDiff struct {
	Y int

	// OnlyInA and OnlyInB mark sections present on one side only. Such
	// sections are reported whole, with no per-voxel counts.
	OnlyInA bool
	OnlyInB bool

	// BlockChanges and FluidChanges count voxels whose resolved name
	// differs. LevelChanges counts voxels whose fluid level value
	// differs.
	BlockChanges int
	FluidChanges int
	LevelChanges int

	// BlockExemplars and FluidExemplars hold up to MaxExemplars changed
	// voxels each, in linear voxel order.
	BlockExemplars []VoxelChange
	FluidExemplars []VoxelChange
}

// DiffReport is the structural difference between two snapshots.
// Voxels are compared by resolved palette name, never by raw index, so
// two chunks whose palettes order the same names differently do not
// differ.
type DiffReport struct {
	Sections []SectionDiff

	// BlockNameDeltas and FluidNameDeltas map palette names to the
	// change in voxel count from a to b. Positive means more in b.
	// Names whose count did not change are absent.
	BlockNameDeltas map[string]int
	FluidNameDeltas map[string]int

	// HeightmapDelta and TintmapDelta count columns whose value
	// differs.
	HeightmapDelta int
	TintmapDelta   int

	// EntityDelta is the entity count change from a to b.
	EntityDelta int

	// EnvironmentColumnsChanged counts columns whose banded environment
	// assignment differs by resolved name. The mapping slices list
	// environment names present on one side only.
	EnvironmentColumnsChanged  int
	EnvironmentMappingsAdded   []string
	EnvironmentMappingsRemoved []string
}

// Empty reports whether the two snapshots compared equal.
func (r *DiffReport) Empty() bool {
	return len(r.Sections) == 0 &&
		len(r.BlockNameDeltas) == 0 &&
		len(r.FluidNameDeltas) == 0 &&
		r.HeightmapDelta == 0 &&
		r.TintmapDelta == 0 &&
		r.EntityDelta == 0 &&
		r.EnvironmentColumnsChanged == 0 &&
		len(r.EnvironmentMappingsAdded) == 0 &&
		len(r.EnvironmentMappingsRemoved) == 0
}

// Diff compares two snapshots of the same slot from different sources.
// Either side may be nil, meaning the slot holds no chunk there; the
// other side's content is then reported whole. Equal digests
// short-circuit the comparison.
func Diff(a, b *Snapshot, opts DiffOptions) *DiffReport {
	report := &DiffReport{
		BlockNameDeltas: make(map[string]int),
		FluidNameDeltas: make(map[string]int),
	}
	if a == nil && b == nil {
		return report
	}
	if a != nil && b != nil && a.Digest() == b.Digest() {
		return report
	}
	if a == nil {
		a = &Snapshot{}
	}
	if b == nil {
		b = &Snapshot{}
	}

	diffSections(report, a, b, opts)

	report.HeightmapDelta = heightmapDelta(a.Heightmap, b.Heightmap)
	report.TintmapDelta = tintmapDelta(a.Tintmap, b.Tintmap)
	report.EntityDelta = b.EntityCount() - a.EntityCount()
	diffEnvironment(report, a.Environment, b.Environment)

	prune(report.BlockNameDeltas)
	prune(report.FluidNameDeltas)
	return report
}

func diffSections(report *DiffReport, a, b *Snapshot, opts DiffOptions) {
	bySection := make(map[int][2]*SectionSnapshot)
	for i := range a.Sections {
		sec := &a.Sections[i]
		pair := bySection[sec.Y]
		pair[0] = sec
		bySection[sec.Y] = pair
	}
	for i := range b.Sections {
		sec := &b.Sections[i]
		pair := bySection[sec.Y]
		pair[1] = sec
		bySection[sec.Y] = pair
	}

	ys := make([]int, 0, len(bySection))
	for y := range bySection {
		ys = append(ys, y)
	}
	sort.Ints(ys)

	for _, y := range ys {
		pair := bySection[y]
		sa, sb := pair[0], pair[1]

		switch {
		case sb == nil:
			report.Sections = append(report.Sections, SectionDiff{Y: y, OnlyInA: true})
			tallyWhole(report, sa, -1)
		case sa == nil:
			report.Sections = append(report.Sections, SectionDiff{Y: y, OnlyInB: true})
			tallyWhole(report, sb, 1)
		default:
			if d := diffSection(report, sa, sb, y, opts); !d.isZero() {
				report.Sections = append(report.Sections, d)
			}
		}
	}
}

func (d SectionDiff) isZero() bool {
	return d.BlockChanges == 0 && d.FluidChanges == 0 && d.LevelChanges == 0
}

func diffSection(report *DiffReport, sa, sb *SectionSnapshot, y int, opts DiffOptions) SectionDiff {
	d := SectionDiff{Y: y}
	for i := 0; i < codec.SectionVoxels; i++ {
		an := voxelName(sa.Block, i)
		bn := voxelName(sb.Block, i)
		if an != bn {
			d.BlockChanges++
			report.BlockNameDeltas[an]--
			report.BlockNameDeltas[bn]++
			if len(d.BlockExemplars) < opts.MaxExemplars {
				d.BlockExemplars = append(d.BlockExemplars, exemplar(i, y, an, bn))
			}
		}

		an = voxelName(sa.Fluid, i)
		bn = voxelName(sb.Fluid, i)
		if an != bn {
			d.FluidChanges++
			report.FluidNameDeltas[an]--
			report.FluidNameDeltas[bn]++
			if len(d.FluidExemplars) < opts.MaxExemplars {
				d.FluidExemplars = append(d.FluidExemplars, exemplar(i, y, an, bn))
			}
		}

		if levelAt(sa.Fluid, i) != levelAt(sb.Fluid, i) {
			d.LevelChanges++
		}
	}
	return d
}

// tallyWhole folds a one-sided section into the name deltas with the
// given sign.
func tallyWhole(report *DiffReport, sec *SectionSnapshot, sign int) {
	for i := 0; i < codec.SectionVoxels; i++ {
		report.BlockNameDeltas[voxelName(sec.Block, i)] += sign
		report.FluidNameDeltas[voxelName(sec.Fluid, i)] += sign
	}
}

func exemplar(i, sectionY int, from, to string) VoxelChange {
	x, ly, z := codec.VoxelCoords(i)
	return VoxelChange{
		X:    x,
		Y:    sectionY*codec.SectionSize + ly,
		Z:    z,
		From: from,
		To:   to,
	}
}

// voxelName resolves the palette name at linear voxel index i. Absent
// and EMPTY sections resolve every voxel to the empty name;
// out-of-range indices kept by lenient decoding resolve to "#<index>".
func voxelName(p *codec.PaletteSection, i int) string {
	if p == nil || p.Type == codec.PaletteEmpty {
		return emptyName
	}
	v := p.Voxels[i]
	if name, ok := p.EntryName(v); ok {
		return name
	}
	return fmt.Sprintf("#%d", v)
}

// levelAt returns the fluid level at linear voxel index i, zero when
// the section carries no level array.
func levelAt(p *codec.PaletteSection, i int) uint8 {
	if p == nil || !p.HasLevels {
		return 0
	}
	return p.Levels[i]
}

func heightmapDelta(a, b *codec.Heightmap) int {
	if a == nil && b == nil {
		return 0
	}
	n := 0
	for i := 0; i < codec.ColumnCount; i++ {
		av, bv := codec.HeightUnknown, codec.HeightUnknown
		if a != nil {
			av = a.Heights[i]
		}
		if b != nil {
			bv = b.Heights[i]
		}
		if av != bv {
			n++
		}
	}
	return n
}

func tintmapDelta(a, b *codec.Tintmap) int {
	if a == nil && b == nil {
		return 0
	}
	n := 0
	for i := 0; i < codec.ColumnCount; i++ {
		av, bv := codec.TintUnknown, codec.TintUnknown
		if a != nil {
			av = a.Tints[i]
		}
		if b != nil {
			bv = b.Tints[i]
		}
		if av != bv {
			n++
		}
	}
	return n
}

func diffEnvironment(report *DiffReport, a, b *codec.EnvironmentData) {
	switch {
	case a == nil && b == nil:
		return
	case a == nil || b == nil:
		report.EnvironmentColumnsChanged = codec.ColumnCount
	default:
		for col := 0; col < codec.ColumnCount; col++ {
			if !envColumnEqual(a, b, col) {
				report.EnvironmentColumnsChanged++
			}
		}
	}

	an, bn := mappingNames(a), mappingNames(b)
	for name := range bn {
		if !an[name] {
			report.EnvironmentMappingsAdded = append(report.EnvironmentMappingsAdded, name)
		}
	}
	for name := range an {
		if !bn[name] {
			report.EnvironmentMappingsRemoved = append(report.EnvironmentMappingsRemoved, name)
		}
	}
	sort.Strings(report.EnvironmentMappingsAdded)
	sort.Strings(report.EnvironmentMappingsRemoved)
}

// envColumnEqual compares one column's bands by transition heights and
// resolved environment names, so renumbered serial ids do not count as
// changes.
func envColumnEqual(a, b *codec.EnvironmentData, col int) bool {
	ca, cb := a.Columns[col], b.Columns[col]
	if len(ca.MaxY) != len(cb.MaxY) {
		return false
	}
	for i := range ca.MaxY {
		if ca.MaxY[i] != cb.MaxY[i] {
			return false
		}
	}
	for i := range ca.Envs {
		if a.MappingName(ca.Envs[i]) != b.MappingName(cb.Envs[i]) {
			return false
		}
	}
	return true
}

func mappingNames(e *codec.EnvironmentData) map[string]bool {
	names := make(map[string]bool)
	if e == nil {
		return names
	}
	for _, m := range e.Mappings {
		names[m.Name] = true
	}
	return names
}

func prune(deltas map[string]int) {
	for name, d := range deltas {
		if d == 0 {
			delete(deltas, name)
		}
	}
}
