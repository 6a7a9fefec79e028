package interval

import (
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/errors"
)

// PosType is the coordinate type used throughout this package.  int32 is
// wide enough, since that's what BAM files are limited to.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// Interval is a closed span [Start, End] on a single chromosome.
type Interval struct {
	Start PosType
	End   PosType
}

// Contains returns true iff q lies entirely within iv.
func (iv Interval) Contains(q Interval) bool {
	return iv.Start <= q.Start && q.End <= iv.End
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d, %d]", iv.Start, iv.End)
}

func minPos(a, b PosType) PosType {
	if a < b {
		return a
	}
	return b
}

func maxPos(a, b PosType) PosType {
	if a > b {
		return a
	}
	return b
}

// RegionSet is the ordered interval list for one chromosome.  Intervals are
// sorted by Start, and Insert merges a new interval into the first existing
// interval it touches.
//
// Insert does not cascade: if the merged interval now reaches into the
// following interval(s), they are left alone.  For example, inserting [1,5],
// [10,15], then [4,12] yields {[1,12], [10,15]}.  Call Collapse afterwards
// when a fully disjoint set is required.
type RegionSet struct {
	ivs []Interval
}

// NewRegionSet returns a RegionSet built by inserting ivs in order.
func NewRegionSet(ivs ...Interval) *RegionSet {
	s := &RegionSet{}
	for _, iv := range ivs {
		s.Insert(iv)
	}
	return s
}

// Insert places iv before the first interval it ends strictly before, or
// merges it into the first interval whose end it does not exceed at its
// start; otherwise iv is appended.  This is a linear scan.
func (s *RegionSet) Insert(iv Interval) {
	for i, cur := range s.ivs {
		if iv.End < cur.Start {
			s.ivs = append(s.ivs, Interval{})
			copy(s.ivs[i+1:], s.ivs[i:])
			s.ivs[i] = iv
			return
		}
		if iv.Start <= cur.End {
			s.ivs[i] = Interval{Start: minPos(iv.Start, cur.Start), End: maxPos(iv.End, cur.End)}
			return
		}
	}
	s.ivs = append(s.ivs, iv)
}

// appendRaw adds iv at the end without any merging.  Used when reading back
// an already-merged file.
func (s *RegionSet) appendRaw(iv Interval) {
	s.ivs = append(s.ivs, iv)
}

// Collapse sorts the set and merges every pair of intervals with
// next.Start <= cur.End, leaving a fully disjoint set.
func (s *RegionSet) Collapse() {
	if len(s.ivs) < 2 {
		return
	}
	sort.SliceStable(s.ivs, func(i, j int) bool { return s.ivs[i].Start < s.ivs[j].Start })
	out := s.ivs[:1]
	for _, iv := range s.ivs[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			last.End = maxPos(last.End, iv.End)
			continue
		}
		out = append(out, iv)
	}
	s.ivs = out
}

// Find returns the interval containing q.  It is a consistency check, not a
// general-purpose query: a miss means the merge went wrong.
func (s *RegionSet) Find(q Interval) (Interval, error) {
	for _, iv := range s.ivs {
		if iv.Contains(q) {
			return iv, nil
		}
	}
	return Interval{}, errors.E(errors.Invalid, fmt.Sprintf("bug in interval manipulation: place not found for %v", q))
}

// Intervals returns the set's intervals in order.  The slice must not be
// modified.
func (s *RegionSet) Intervals() []Interval {
	if s == nil {
		return nil
	}
	return s.ivs
}

// Len returns the number of intervals in the set.
func (s *RegionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ivs)
}

// Equal returns true iff both sets hold the same intervals in the same order.
func (s *RegionSet) Equal(o *RegionSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i, iv := range s.Intervals() {
		if o.ivs[i] != iv {
			return false
		}
	}
	return true
}

// Union inserts the intervals of every set, in order, into a new set.
func Union(sets ...*RegionSet) *RegionSet {
	out := &RegionSet{}
	for _, s := range sets {
		for _, iv := range s.Intervals() {
			out.Insert(iv)
		}
	}
	return out
}
