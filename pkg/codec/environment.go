package codec

import (
	"fmt"
	"sort"
)

// Sanity bounds for environment payloads. Real chunks carry a handful
// of mappings and a few transitions per column; anything near these
// caps is corrupt data, not a big world.
const (
	maxEnvMappings    = 1 << 16
	maxEnvTransitions = 1 << 12
)

// EnvironmentMapping binds an environment serial id to its name for the
// scope of one chunk.
type EnvironmentMapping struct {
	SerialID uint32
	Name     string
}

// EnvironmentColumn is the banded environment assignment of one voxel
// column. MaxY holds ascending transition heights; Envs has one more
// entry than MaxY, one environment id per band.
type EnvironmentColumn struct {
	MaxY []uint32
	Envs []uint32
}

// EnvironmentData is the decoded EnvironmentChunk payload. All of its
// wire fields are big-endian.
type EnvironmentData struct {
	Mappings []EnvironmentMapping

	// Columns is indexed z*32 + x.
	Columns [ColumnCount]EnvironmentColumn

	// UnknownRefs counts environment ids with no mapping entry that
	// were kept in lenient mode.
	UnknownRefs int

	BytesConsumed int
	Warnings      []Warning

	names map[uint32]string
}

// DecodeEnvironment decodes an EnvironmentChunk payload.
func DecodeEnvironment(data []byte, strict bool) (*EnvironmentData, error) {
	c := newCursor(data)

	mappingCount, err := c.u32be()
	if err != nil {
		return nil, err
	}
	if mappingCount > maxEnvMappings {
		return nil, fmt.Errorf("%w: implausible environment mapping count %d", ErrMalformedSection, mappingCount)
	}

	e := &EnvironmentData{
		Mappings: make([]EnvironmentMapping, mappingCount),
		names:    make(map[uint32]string, mappingCount),
	}
	for i := range e.Mappings {
		id, err := c.u32be()
		if err != nil {
			return nil, err
		}
		name, err := c.str()
		if err != nil {
			return nil, err
		}
		e.Mappings[i] = EnvironmentMapping{SerialID: id, Name: name}
		e.names[id] = name
	}

	for col := 0; col < ColumnCount; col++ {
		n, err := c.u32be()
		if err != nil {
			return nil, err
		}
		if n > maxEnvTransitions {
			return nil, fmt.Errorf("%w: column %d declares %d environment transitions", ErrMalformedSection, col, n)
		}

		column := EnvironmentColumn{
			MaxY: make([]uint32, n),
			Envs: make([]uint32, n+1),
		}
		for i := range column.MaxY {
			if column.MaxY[i], err = c.u32be(); err != nil {
				return nil, err
			}
		}
		for i := range column.Envs {
			if column.Envs[i], err = c.u32be(); err != nil {
				return nil, err
			}
			if _, ok := e.names[column.Envs[i]]; !ok {
				if strict {
					return nil, fmt.Errorf("%w: column %d references environment id %d with no mapping",
						ErrMalformedSection, col, column.Envs[i])
				}
				e.UnknownRefs++
			}
		}
		e.Columns[col] = column
	}

	if e.UnknownRefs > 0 {
		e.Warnings = append(e.Warnings, Warning{
			Kind:   WarnUnknownEnvironment,
			Detail: fmt.Sprintf("%d environment references with no mapping entry", e.UnknownRefs),
		})
	}
	e.BytesConsumed = c.off
	return e, nil
}

// MappingName resolves an environment id to its name. Ids with no
// mapping entry resolve to "#<id>".
func (e *EnvironmentData) MappingName(id uint32) string {
	if name, ok := e.names[id]; ok {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

// EnvironmentAt resolves the environment name for a position. Ids with
// no mapping entry resolve to "#<id>".
func (e *EnvironmentData) EnvironmentAt(x, z int, y uint32) (string, error) {
	if x < 0 || x >= SectionSize || z < 0 || z >= SectionSize {
		return "", fmt.Errorf("column coordinates out of range: (%d, %d)", x, z)
	}
	col := e.Columns[z*SectionSize+x]

	// Band i covers y <= MaxY[i]; the last band covers everything above
	// the final transition.
	band := sort.Search(len(col.MaxY), func(i int) bool {
		return y <= col.MaxY[i]
	})
	return e.MappingName(col.Envs[band]), nil
}
