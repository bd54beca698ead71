package composite

import (
	"sync"

	"github.com/meintsot/regionlens/pkg/common/iterator"
)

// MergedIterator implements an iterator over the union of multiple slot
// iterators, visiting each distinct slot once in ascending order.
// When multiple sources contain the same slot, the segment from the source
// earliest in the sources slice is used.
type MergedIterator struct {
	// Iterators in precedence order
	iterators []iterator.SlotIterator

	// Current slot and segment
	slot    int
	segment uint32

	// Current valid state
	valid bool

	// Mutex for thread safety
	mu sync.RWMutex
}

// NewMergedIterator creates a new merged iterator
// Sources must be provided in precedence order
func NewMergedIterator(iterators []iterator.SlotIterator) *MergedIterator {
	return &MergedIterator{
		iterators: iterators,
	}
}

// SeekToFirst positions the iterator at the first slot
func (m *MergedIterator) SeekToFirst() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Position all iterators at their first slot
	for _, iter := range m.iterators {
		iter.SeekToFirst()
	}

	// Find the first slot across all iterators
	m.findNextUniqueSlot(-1)
}

// SeekToLast positions the iterator at the last slot
func (m *MergedIterator) SeekToLast() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Position all iterators at their last slot
	for _, iter := range m.iterators {
		iter.SeekToLast()
	}

	// Find the last slot by taking the maximum slot
	maxSlot := -1
	var maxSegment uint32

	for _, iter := range m.iterators {
		if !iter.Valid() {
			continue
		}

		if iter.Slot() > maxSlot {
			maxSlot = iter.Slot()
			maxSegment = iter.Segment()
		}
	}

	if maxSlot >= 0 {
		m.slot = maxSlot
		m.segment = maxSegment
		m.valid = true
	} else {
		m.valid = false
	}
}

// Seek positions the iterator at the first slot >= target
func (m *MergedIterator) Seek(target int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Seek all iterators to the target
	for _, iter := range m.iterators {
		iter.Seek(target)
	}

	// For seek, we need to find the smallest slot >= target
	bestSlot := -1
	var bestSegment uint32
	bestIterIdx := -1
	m.valid = false

	// First pass: find the smallest slot >= target
	for i, iter := range m.iterators {
		if !iter.Valid() {
			continue
		}

		slot := iter.Slot()

		// Skip slots < target (Seek should return slots >= target)
		if slot < target {
			continue
		}

		// If we haven't found a valid slot yet, or this slot is smaller than the current best slot
		if bestIterIdx == -1 || slot < bestSlot {
			bestSlot = slot
			bestSegment = iter.Segment()
			bestIterIdx = i
		}
	}

	// Now we need to check if any earlier iterators have the same slot
	if bestIterIdx != -1 {
		for i := 0; i < bestIterIdx; i++ {
			iter := m.iterators[i]
			if !iter.Valid() {
				continue
			}

			// If an earlier iterator has the same slot, use its segment
			if iter.Slot() == bestSlot {
				bestSegment = iter.Segment()
				break // Sources are in precedence order, stop at the first match
			}
		}

		// Set the found slot/segment
		m.slot = bestSlot
		m.segment = bestSegment
		m.valid = true
		return true
	}

	return false
}

// Next advances the iterator to the next slot
func (m *MergedIterator) Next() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.valid {
		return false
	}

	// Remember current slot to skip duplicates
	currentSlot := m.slot

	// Find the next unique slot after the current slot
	return m.findNextUniqueSlot(currentSlot)
}

// Slot returns the current slot
func (m *MergedIterator) Slot() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.valid {
		return -1
	}
	return m.slot
}

// Segment returns the current slot's segment number
func (m *MergedIterator) Segment() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.valid {
		return 0
	}
	return m.segment
}

// Valid returns true if the iterator is positioned at a valid slot
func (m *MergedIterator) Valid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.valid
}

// NumSources returns the number of source iterators
func (m *MergedIterator) NumSources() int {
	return len(m.iterators)
}

// GetSourceIterators returns the underlying source iterators
func (m *MergedIterator) GetSourceIterators() []iterator.SlotIterator {
	return m.iterators
}

// findNextUniqueSlot finds the next slot after the given slot
// If prevSlot is -1, finds the first slot
// Returns true if a valid slot was found
func (m *MergedIterator) findNextUniqueSlot(prevSlot int) bool {
	// Find the smallest slot among all iterators that is > prevSlot
	bestSlot := -1
	var bestSegment uint32
	bestIterIdx := -1
	m.valid = false

	// First pass: advance all iterators past prevSlot and find the smallest next slot
	for i, iter := range m.iterators {
		// Skip invalid iterators
		if !iter.Valid() {
			continue
		}

		// Advance to find a slot > prevSlot
		for iter.Valid() && iter.Slot() <= prevSlot {
			if !iter.Next() {
				break
			}
		}

		// If we couldn't find a slot > prevSlot, skip this iterator
		if !iter.Valid() {
			continue
		}

		slot := iter.Slot()

		// If we haven't found a valid slot yet, or this slot is smaller than the current best slot
		if bestIterIdx == -1 || slot < bestSlot {
			bestSlot = slot
			bestSegment = iter.Segment()
			bestIterIdx = i
		}
	}

	// Now we need to check if any earlier iterators have the same slot
	if bestIterIdx != -1 {
		for i := 0; i < bestIterIdx; i++ {
			iter := m.iterators[i]
			if !iter.Valid() {
				continue
			}

			// If an earlier iterator has the same slot, use its segment
			if iter.Slot() == bestSlot {
				bestSegment = iter.Segment()
				break // Sources are in precedence order, stop at the first match
			}
		}

		// Set the found slot/segment
		m.slot = bestSlot
		m.segment = bestSegment
		m.valid = true
		return true
	}

	return false
}
