package bounded

import (
	"github.com/meintsot/regionlens/pkg/common/iterator"
)

// Unbounded disables one side of a slot range.
const Unbounded = -1

// BoundedIterator wraps a slot iterator and limits it to a slot range.
// The start bound is inclusive, the end bound exclusive.
type BoundedIterator struct {
	iterator.SlotIterator
	start int
	end   int
}

// NewBoundedIterator creates a new bounded iterator. Pass Unbounded to
// leave a side open.
func NewBoundedIterator(iter iterator.SlotIterator, start, end int) *BoundedIterator {
	return &BoundedIterator{
		SlotIterator: iter,
		start:        start,
		end:          end,
	}
}

// SetBounds sets the start and end bounds for the iterator
func (b *BoundedIterator) SetBounds(start, end int) {
	b.start = start
	b.end = end

	// If we already have a valid position, check if it's still in bounds
	if b.SlotIterator.Valid() {
		b.checkBounds()
	}
}

// SeekToFirst positions at the first occupied slot in the bounded range
func (b *BoundedIterator) SeekToFirst() {
	if b.start != Unbounded {
		// If we have a start bound, seek to it
		b.SlotIterator.Seek(b.start)
	} else {
		// Otherwise seek to the first occupied slot
		b.SlotIterator.SeekToFirst()
	}
	b.checkBounds()
}

// SeekToLast positions at the last occupied slot in the bounded range
func (b *BoundedIterator) SeekToLast() {
	if b.end == Unbounded {
		b.SlotIterator.SeekToLast()
		b.checkBounds()
		return
	}

	// Scan forward for the last occupied slot before the end bound.
	// This is inefficient but correct for the index sizes a region can
	// hold.
	last := Unbounded
	for b.SeekToFirst(); b.Valid(); b.SlotIterator.Next() {
		if b.SlotIterator.Slot() >= b.end {
			break
		}
		last = b.SlotIterator.Slot()
	}
	if last != Unbounded {
		b.SlotIterator.Seek(last)
		return
	}

	// No occupied slots before the end bound; exhaust the iterator
	b.SlotIterator.Seek(int(^uint(0) >> 1))
}

// Seek positions at the first occupied slot >= target within bounds
func (b *BoundedIterator) Seek(target int) bool {
	// If target is before the start bound, use the start bound instead
	if b.start != Unbounded && target < b.start {
		target = b.start
	}

	// If target is at or after the end bound, the seek will fail
	if b.end != Unbounded && target >= b.end {
		return false
	}

	if b.SlotIterator.Seek(target) {
		return b.checkBounds()
	}
	return false
}

// Next advances to the next occupied slot within bounds
func (b *BoundedIterator) Next() bool {
	// First check if we're already at or beyond the end boundary
	if !b.checkBounds() {
		return false
	}

	// Then try to advance
	if !b.SlotIterator.Next() {
		return false
	}

	// Check if the new position is within bounds
	return b.checkBounds()
}

// Valid returns true if the iterator is positioned at an occupied slot
// within bounds
func (b *BoundedIterator) Valid() bool {
	return b.SlotIterator.Valid() && b.checkBounds()
}

// Slot returns the current slot if within bounds
func (b *BoundedIterator) Slot() int {
	if !b.Valid() {
		return -1
	}
	return b.SlotIterator.Slot()
}

// Segment returns the current slot's segment number if within bounds
func (b *BoundedIterator) Segment() uint32 {
	if !b.Valid() {
		return 0
	}
	return b.SlotIterator.Segment()
}

// checkBounds verifies that the current position is within the bounds.
// Returns true if the position is valid and within bounds
func (b *BoundedIterator) checkBounds() bool {
	if !b.SlotIterator.Valid() {
		return false
	}

	// Check if the current slot is before the start bound
	if b.start != Unbounded && b.SlotIterator.Slot() < b.start {
		return false
	}

	// Check if the current slot is beyond the end bound
	if b.end != Unbounded && b.SlotIterator.Slot() >= b.end {
		return false
	}

	return true
}
