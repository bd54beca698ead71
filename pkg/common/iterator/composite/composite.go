// Package composite provides iterators that combine several slot
// iterators into one logical view, such as the union of two region
// files' occupied slots.
package composite

import (
	"github.com/meintsot/regionlens/pkg/common/iterator"
)

// CompositeIterator is a SlotIterator backed by multiple sources.
type CompositeIterator interface {
	iterator.SlotIterator

	// NumSources returns the number of source iterators.
	NumSources() int

	// GetSourceIterators returns the underlying source iterators.
	GetSourceIterators() []iterator.SlotIterator
}

var _ CompositeIterator = (*MergedIterator)(nil)
