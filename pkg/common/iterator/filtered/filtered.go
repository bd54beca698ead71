// Package filtered provides iterators that filter slots based on different criteria
package filtered

import (
	"github.com/meintsot/regionlens/pkg/common/iterator"
)

// gridWidth is the number of chunk columns along one edge of a region grid.
const gridWidth = 32

// SlotFilterFunc is a function type for filtering slots
type SlotFilterFunc func(slot int) bool

// FilteredIterator wraps a slot iterator and applies a slot filter
type FilteredIterator struct {
	iter       iterator.SlotIterator
	slotFilter SlotFilterFunc
}

// NewFilteredIterator creates a new iterator with a slot filter
func NewFilteredIterator(iter iterator.SlotIterator, filter SlotFilterFunc) *FilteredIterator {
	return &FilteredIterator{
		iter:       iter,
		slotFilter: filter,
	}
}

// Next advances to the next slot that passes the filter
func (fi *FilteredIterator) Next() bool {
	for fi.iter.Next() {
		if fi.slotFilter(fi.iter.Slot()) {
			return true
		}
	}
	return false
}

// Slot returns the current slot
func (fi *FilteredIterator) Slot() int {
	if !fi.Valid() {
		return -1
	}
	return fi.iter.Slot()
}

// Segment returns the current slot's segment number
func (fi *FilteredIterator) Segment() uint32 {
	if !fi.Valid() {
		return 0
	}
	return fi.iter.Segment()
}

// Valid returns true if the iterator is at a valid position
func (fi *FilteredIterator) Valid() bool {
	return fi.iter.Valid() && fi.slotFilter(fi.iter.Slot())
}

// SeekToFirst positions at the first slot that passes the filter
func (fi *FilteredIterator) SeekToFirst() {
	fi.iter.SeekToFirst()

	// Advance to the first slot that passes the filter
	if fi.iter.Valid() && !fi.slotFilter(fi.iter.Slot()) {
		fi.Next()
	}
}

// SeekToLast positions at the last slot that passes the filter
func (fi *FilteredIterator) SeekToLast() {
	fi.iter.SeekToLast()

	// If we're at a valid position but it doesn't pass the filter,
	// we need to find the last slot that does
	if fi.iter.Valid() && !fi.slotFilter(fi.iter.Slot()) {
		// Inefficient but correct - scan from beginning to find last valid slot
		lastValidSlot := -1
		fi.iter.SeekToFirst()

		for fi.iter.Valid() {
			if fi.slotFilter(fi.iter.Slot()) {
				lastValidSlot = fi.iter.Slot()
			}
			fi.iter.Next()
		}

		// If we found a valid slot, seek to it
		if lastValidSlot >= 0 {
			fi.iter.Seek(lastValidSlot)
		} else {
			// No valid slots found
			fi.iter.SeekToFirst()
			// This will be invalid after the filter is applied
		}
	}
}

// Seek positions at the first slot >= target that passes the filter
func (fi *FilteredIterator) Seek(target int) bool {
	if !fi.iter.Seek(target) {
		return false
	}

	// If the current position doesn't pass the filter, find the next one that does
	if !fi.slotFilter(fi.iter.Slot()) {
		return fi.Next()
	}

	return true
}

// ColumnFilterFunc creates a filter function for slots in one local X column
func ColumnFilterFunc(localX int) SlotFilterFunc {
	return func(slot int) bool {
		return slot%gridWidth == localX
	}
}

// RowFilterFunc creates a filter function for slots in one local Z row
func RowFilterFunc(localZ int) SlotFilterFunc {
	return func(slot int) bool {
		return slot/gridWidth == localZ
	}
}

// NewColumnIterator returns an iterator that filters slots by local X column
func NewColumnIterator(iter iterator.SlotIterator, localX int) *FilteredIterator {
	return NewFilteredIterator(iter, ColumnFilterFunc(localX))
}

// NewRowIterator returns an iterator that filters slots by local Z row
func NewRowIterator(iter iterator.SlotIterator, localZ int) *FilteredIterator {
	return NewFilteredIterator(iter, RowFilterFunc(localZ))
}
