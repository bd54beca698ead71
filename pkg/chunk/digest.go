package chunk

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/meintsot/regionlens/pkg/codec"
)

// Digest returns the xxhash64 of the snapshot's decoded content: the
// sections with their palettes, voxels and levels, the heightmap,
// tintmap, environment, and raw entities. It covers decoded values
// rather than stored bytes, so two chunks with the same content hash
// equal even when their container layout or compression differs.
// Provenance fields (path, region coordinates, slot) are excluded.
//
// The digest is computed once and cached.
func (s *Snapshot) Digest() uint64 {
	if !s.hasDigest {
		s.digest = s.computeDigest()
		s.hasDigest = true
	}
	return s.digest
}

func (s *Snapshot) computeDigest() uint64 {
	h := xxhash.New()
	var buf [4]byte

	u32 := func(v uint32) {
		binary.BigEndian.PutUint32(buf[:4], v)
		h.Write(buf[:4])
	}
	u16 := func(v uint16) {
		binary.BigEndian.PutUint16(buf[:2], v)
		h.Write(buf[:2])
	}
	str := func(v string) {
		u32(uint32(len(v)))
		h.WriteString(v)
	}
	section := func(tag byte, p *codec.PaletteSection) {
		if p == nil {
			h.Write([]byte{tag, 0})
			return
		}
		h.Write([]byte{tag, 1, byte(p.Type)})
		u16(uint16(len(p.Entries)))
		for _, e := range p.Entries {
			h.Write([]byte{e.InternalID})
			str(e.Name)
		}
		for _, v := range p.Voxels {
			u16(v)
		}
		if p.HasLevels {
			h.Write([]byte{1})
			h.Write(p.Levels)
		} else {
			h.Write([]byte{0})
		}
	}

	u32(uint32(len(s.Sections)))
	for _, sec := range s.Sections {
		u32(uint32(sec.Y))
		section('B', sec.Block)
		section('F', sec.Fluid)
		u32(uint32(sec.PhysicsSize))
	}

	if s.HasMigration {
		h.Write([]byte{1})
		u32(s.MigrationVersion)
	} else {
		h.Write([]byte{0})
	}

	if s.Heightmap != nil {
		h.Write([]byte{1})
		u32(uint32(s.BlockChunkVersion))
		for _, v := range s.Heightmap.Heights {
			u16(uint16(v))
		}
	} else {
		h.Write([]byte{0})
	}

	if s.Tintmap != nil {
		h.Write([]byte{1})
		for _, v := range s.Tintmap.Tints {
			u32(uint32(v))
		}
	} else {
		h.Write([]byte{0})
	}

	if s.Environment != nil {
		h.Write([]byte{1})
		u32(uint32(len(s.Environment.Mappings)))
		for _, m := range s.Environment.Mappings {
			u32(m.SerialID)
			str(m.Name)
		}
		for _, col := range s.Environment.Columns {
			u32(uint32(len(col.MaxY)))
			for _, y := range col.MaxY {
				u32(y)
			}
			for _, id := range col.Envs {
				u32(id)
			}
		}
	} else {
		h.Write([]byte{0})
	}

	u32(uint32(len(s.Entities)))
	for _, e := range s.Entities {
		h.Write([]byte{byte(e.Type)})
		h.Write(e.Value)
	}

	return h.Sum64()
}
