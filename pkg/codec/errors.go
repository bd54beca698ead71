package codec

import "errors"

var (
	// ErrMalformedSection indicates a payload that cannot be decoded as
	// declared, such as a read past the end of the buffer or an invalid
	// type tag.
	ErrMalformedSection = errors.New("malformed section data")

	// ErrPaletteRange indicates a voxel or column index that is outside
	// the decoded palette, reported in strict mode.
	ErrPaletteRange = errors.New("index outside palette range")

	// ErrTruncated indicates a declared extent that exceeds the bytes
	// actually present.
	ErrTruncated = errors.New("truncated payload")

	// ErrNoLevels indicates a level lookup on a section that carries no
	// level array.
	ErrNoLevels = errors.New("section has no level data")
)
