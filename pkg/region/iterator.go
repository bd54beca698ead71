package region

// SlotIterator walks a reader's blob index in ascending slot order. It
// consults only the in-memory index loaded at open time and never reads
// blob bodies, so iteration is pure and restartable.
type SlotIterator struct {
	index []uint32
	pos   int
}

// OccupiedSlots returns an iterator over the slots with non-zero index
// entries. The iterator starts unpositioned; call SeekToFirst or Next.
func (r *Reader) OccupiedSlots() *SlotIterator {
	return &SlotIterator{index: r.index, pos: -1}
}

// SeekToFirst positions the iterator at the first occupied slot
func (it *SlotIterator) SeekToFirst() {
	it.pos = it.scanFrom(0)
}

// SeekToLast positions the iterator at the last occupied slot
func (it *SlotIterator) SeekToLast() {
	for i := len(it.index) - 1; i >= 0; i-- {
		if it.index[i] != 0 {
			it.pos = i
			return
		}
	}
	it.pos = len(it.index)
}

// Seek positions the iterator at the first occupied slot >= target
func (it *SlotIterator) Seek(target int) bool {
	if target < 0 {
		target = 0
	}
	it.pos = it.scanFrom(target)
	return it.Valid()
}

// Next advances the iterator to the next occupied slot
func (it *SlotIterator) Next() bool {
	if it.pos >= len(it.index) {
		return false
	}
	it.pos = it.scanFrom(it.pos + 1)
	return it.Valid()
}

// Slot returns the current slot number
func (it *SlotIterator) Slot() int {
	if !it.Valid() {
		return -1
	}
	return it.pos
}

// Segment returns the current slot's 1-based segment number
func (it *SlotIterator) Segment() uint32 {
	if !it.Valid() {
		return 0
	}
	return it.index[it.pos]
}

// Valid returns true if the iterator is positioned at an occupied slot
func (it *SlotIterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.index)
}

func (it *SlotIterator) scanFrom(start int) int {
	for i := start; i < len(it.index); i++ {
		if it.index[i] != 0 {
			return i
		}
	}
	return len(it.index)
}
