package segmentation

import "sort"

// Notifier is told which slices of a segmentation an operation modified.
// It is the only channel from the engine to the rendering layer.
type Notifier interface {
	SegmentationDataModified(segmentationID string, slices []int)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(segmentationID string, slices []int)

// SegmentationDataModified calls f
func (f NotifierFunc) SegmentationDataModified(segmentationID string, slices []int) {
	f(segmentationID, slices)
}

// SliceSet is a set of slice indices
type SliceSet map[int]struct{}

// NewSliceSet returns a set holding the given slices
func NewSliceSet(slices ...int) SliceSet {
	s := make(SliceSet, len(slices))
	for _, z := range slices {
		s.Add(z)
	}
	return s
}

// Add inserts z
func (s SliceSet) Add(z int) {
	s[z] = struct{}{}
}

// Has reports whether z is in the set
func (s SliceSet) Has(z int) bool {
	_, ok := s[z]
	return ok
}

// Len returns the number of slices
func (s SliceSet) Len() int {
	return len(s)
}

// Merge adds every slice of other
func (s SliceSet) Merge(other SliceSet) {
	for z := range other {
		s.Add(z)
	}
}

// Sorted returns the slices in ascending order
func (s SliceSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for z := range s {
		out = append(out, z)
	}
	sort.Ints(out)
	return out
}
