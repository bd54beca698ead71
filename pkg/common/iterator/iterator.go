package iterator

// SlotIterator defines the interface for iterating over occupied chunk
// slots. This is used across the reader and scanner components to
// provide a consistent way to traverse a region's index without
// touching blob storage.
type SlotIterator interface {
	// SeekToFirst positions the iterator at the first occupied slot
	SeekToFirst()

	// SeekToLast positions the iterator at the last occupied slot
	SeekToLast()

	// Seek positions the iterator at the first occupied slot >= target
	Seek(target int) bool

	// Next advances the iterator to the next occupied slot
	Next() bool

	// Slot returns the current slot number
	Slot() int

	// Segment returns the current slot's 1-based segment number
	Segment() uint32

	// Valid returns true if the iterator is positioned at an occupied slot
	Valid() bool
}
