// Package chunk assembles decoded chunk snapshots from region blobs
// and compares them.
//
// A decompressed blob is a BSON document. The package pulls out only
// the component skeleton the inspector needs (sections, heightmap,
// entities, environment) and leaves every payload to the codec
// package; entities are carried through raw and never parsed.
package chunk

import (
	"encoding/binary"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Component and field names of the chunk document, as the game's
// module registry names them.
const (
	keyComponents       = "Components"
	keyChunkColumn      = "ChunkColumn"
	keySections         = "Sections"
	keyBlockChunk       = "BlockChunk"
	keyEntityChunk      = "EntityChunk"
	keyEntities         = "Entities"
	keyEnvironmentChunk = "EnvironmentChunk"
	keyChunkSection     = "ChunkSection"
	keyBlock            = "Block"
	keyFluid            = "Fluid"
	keyBlockPhysics     = "BlockPhysics"
	keyVersion          = "Version"
	keyData             = "Data"
)

// migrationHeaderVersion is the Block codec version that began writing
// a 4-byte migration version in front of the palette stream.
const migrationHeaderVersion = 6

// Document is the parsed skeleton of one chunk document. Payload
// fields hold raw bytes for the codec package; nil means the component
// was absent.
type Document struct {
	Sections []SectionDoc

	// BlockChunk is the heightmap/tintmap payload.
	BlockChunk        []byte
	BlockChunkVersion int32

	// Environment is the EnvironmentChunk payload.
	Environment []byte

	// Entities holds the raw BSON entity holders, never parsed.
	Entities []bson.RawValue
}

// SectionDoc is one section holder of the chunk column, bottom-up in y
// order.
type SectionDoc struct {
	Y int

	// HasMarker reports whether the ChunkSection marker component was
	// present.
	HasMarker bool

	// Block is the block palette stream with any migration header
	// already stripped. Nil for air sections.
	Block            []byte
	BlockVersion     int32
	MigrationVersion uint32
	HasMigration     bool

	// Fluid is the fluid palette stream. Fluid payloads carry no
	// version or migration header.
	Fluid []byte

	// Physics is the opaque BlockPhysics payload.
	Physics []byte
}

// DecodeDocument parses the component skeleton of one decompressed
// chunk blob.
func DecodeDocument(data []byte) (*Document, error) {
	raw := bson.Raw(data)
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocument, err)
	}

	components, ok, err := lookupDocument(raw, keyComponents)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no Components document", ErrDocument)
	}

	column, ok, err := lookupDocument(components, keyChunkColumn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no ChunkColumn component", ErrDocument)
	}

	doc := &Document{}

	// Sections may be absent or empty for an all-air column.
	if sectionsVal := column.Lookup(keySections); !sectionsVal.IsZero() {
		arr, ok := sectionsVal.ArrayOK()
		if !ok {
			return nil, fmt.Errorf("%w: Sections is %s, not an array", ErrDocument, sectionsVal.Type)
		}
		holders, err := arr.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: Sections array: %v", ErrDocument, err)
		}
		doc.Sections = make([]SectionDoc, 0, len(holders))
		for y, holderVal := range holders {
			holder, ok := holderVal.DocumentOK()
			if !ok {
				return nil, fmt.Errorf("%w: section %d is %s, not a document", ErrDocument, y, holderVal.Type)
			}
			section, err := decodeSection(holder, y)
			if err != nil {
				return nil, err
			}
			doc.Sections = append(doc.Sections, section)
		}
	}

	blockChunk, ok, err := lookupDocument(components, keyBlockChunk)
	if err != nil {
		return nil, err
	}
	if ok {
		if doc.BlockChunkVersion, _, err = lookupInt32(blockChunk, keyVersion); err != nil {
			return nil, err
		}
		if doc.BlockChunk, _, err = lookupBinary(blockChunk, keyData); err != nil {
			return nil, err
		}
	}

	envChunk, ok, err := lookupDocument(components, keyEnvironmentChunk)
	if err != nil {
		return nil, err
	}
	if ok {
		if doc.Environment, _, err = lookupBinary(envChunk, keyData); err != nil {
			return nil, err
		}
	}

	entityChunk, ok, err := lookupDocument(components, keyEntityChunk)
	if err != nil {
		return nil, err
	}
	if ok {
		if entitiesVal := entityChunk.Lookup(keyEntities); !entitiesVal.IsZero() {
			arr, ok := entitiesVal.ArrayOK()
			if !ok {
				return nil, fmt.Errorf("%w: Entities is %s, not an array", ErrDocument, entitiesVal.Type)
			}
			entities, err := arr.Values()
			if err != nil {
				return nil, fmt.Errorf("%w: Entities array: %v", ErrDocument, err)
			}
			doc.Entities = entities
		}
	}

	return doc, nil
}

func decodeSection(holder bson.Raw, y int) (SectionDoc, error) {
	section := SectionDoc{Y: y}

	components, ok, err := lookupDocument(holder, keyComponents)
	if err != nil {
		return section, fmt.Errorf("section %d: %w", y, err)
	}
	if !ok {
		// A bare holder is an air section.
		return section, nil
	}

	section.HasMarker = !components.Lookup(keyChunkSection).IsZero()

	blockDoc, ok, err := lookupDocument(components, keyBlock)
	if err != nil {
		return section, fmt.Errorf("section %d: %w", y, err)
	}
	if ok {
		if section.BlockVersion, _, err = lookupInt32(blockDoc, keyVersion); err != nil {
			return section, fmt.Errorf("section %d: %w", y, err)
		}
		data, present, err := lookupBinary(blockDoc, keyData)
		if err != nil {
			return section, fmt.Errorf("section %d: %w", y, err)
		}
		if present && section.BlockVersion >= migrationHeaderVersion {
			if len(data) < 4 {
				return section, fmt.Errorf("%w: section %d Block data shorter than its migration header", ErrDocument, y)
			}
			section.MigrationVersion = binary.BigEndian.Uint32(data)
			section.HasMigration = true
			data = data[4:]
		}
		section.Block = data
	}

	fluidDoc, ok, err := lookupDocument(components, keyFluid)
	if err != nil {
		return section, fmt.Errorf("section %d: %w", y, err)
	}
	if ok {
		if section.Fluid, _, err = lookupBinary(fluidDoc, keyData); err != nil {
			return section, fmt.Errorf("section %d: %w", y, err)
		}
	}

	physicsDoc, ok, err := lookupDocument(components, keyBlockPhysics)
	if err != nil {
		return section, fmt.Errorf("section %d: %w", y, err)
	}
	if ok {
		if section.Physics, _, err = lookupBinary(physicsDoc, keyData); err != nil {
			return section, fmt.Errorf("section %d: %w", y, err)
		}
	}

	return section, nil
}

// lookupDocument resolves a subdocument. Absent keys are not an error;
// mistyped values are.
func lookupDocument(r bson.Raw, key string) (bson.Raw, bool, error) {
	v := r.Lookup(key)
	if v.IsZero() {
		return nil, false, nil
	}
	doc, ok := v.DocumentOK()
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is %s, not a document", ErrDocument, key, v.Type)
	}
	return doc, true, nil
}

func lookupBinary(r bson.Raw, key string) ([]byte, bool, error) {
	v := r.Lookup(key)
	if v.IsZero() {
		return nil, false, nil
	}
	_, data, ok := v.BinaryOK()
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is %s, not binary", ErrDocument, key, v.Type)
	}
	return data, true, nil
}

func lookupInt32(r bson.Raw, key string) (int32, bool, error) {
	v := r.Lookup(key)
	if v.IsZero() {
		return 0, false, nil
	}
	n, ok := v.Int32OK()
	if !ok {
		return 0, false, fmt.Errorf("%w: %s is %s, not an int32", ErrDocument, key, v.Type)
	}
	return n, true, nil
}
