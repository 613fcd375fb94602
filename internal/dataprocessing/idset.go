package dataprocessing

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// signBit flips int64 ids into an order-preserving uint64 key space so
// negative ids still iterate before positive ones.
const signBit = uint64(1) << 63

// IDSet is a compressed set of parent pixel ids.
type IDSet struct {
	bitmap *roaring64.Bitmap
}

// NewIDSet creates a set holding the given ids
func NewIDSet(ids ...int64) *IDSet {
	s := &IDSet{bitmap: roaring64.New()}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts an id
func (s *IDSet) Add(id int64) {
	s.bitmap.Add(uint64(id) ^ signBit)
}

// Contains reports whether the id is in the set
func (s *IDSet) Contains(id int64) bool {
	return s.bitmap.Contains(uint64(id) ^ signBit)
}

// Len returns the number of distinct ids
func (s *IDSet) Len() int {
	return int(s.bitmap.GetCardinality())
}

// Slice returns the ids in ascending order
func (s *IDSet) Slice() []int64 {
	ids := make([]int64, 0, s.Len())
	it := s.bitmap.Iterator()
	for it.HasNext() {
		ids = append(ids, int64(it.Next()^signBit))
	}
	return ids
}

// Bounds returns the smallest and largest id. ok is false for an empty set.
func (s *IDSet) Bounds() (lo, hi int64, ok bool) {
	if s.bitmap.IsEmpty() {
		return 0, 0, false
	}
	return int64(s.bitmap.Minimum() ^ signBit), int64(s.bitmap.Maximum() ^ signBit), true
}
