package index

import (
	"sort"

	"github.com/inodb/tfsage/internal/genome"
)

// SortedIndex provides O(log n + k) overlap queries using a sorted-slice approach.
// Regions are loaded once and never modified after build.
type SortedIndex struct {
	set    *genome.RegionSet
	chroms map[string]*sortedChrom
}

type sortedChrom struct {
	intervals []span
	maxEnd    []int64 // maxEnd[i] = max(end) for intervals[:i+1]
}

type span struct {
	start int64
	end   int64
	pos   int
}

// BuildSorted creates a sorted-slice index over set. An empty set yields an
// index that matches nothing.
func BuildSorted(set *genome.RegionSet) *SortedIndex {
	idx := &SortedIndex{set: set, chroms: make(map[string]*sortedChrom)}

	for chrom, positions := range groupByChrom(set) {
		intervals := make([]span, len(positions))
		for i, p := range positions {
			r := set.At(p)
			intervals[i] = span{start: r.Start, end: r.End, pos: p}
		}

		sort.SliceStable(intervals, func(i, j int) bool {
			return intervals[i].start < intervals[j].start
		})

		// Prefix-max array is non-decreasing, so the first candidate for a
		// query can be found by binary search.
		maxEnd := make([]int64, len(intervals))
		maxEnd[0] = intervals[0].end
		for i := 1; i < len(intervals); i++ {
			maxEnd[i] = intervals[i].end
			if maxEnd[i-1] > maxEnd[i] {
				maxEnd[i] = maxEnd[i-1]
			}
		}

		idx.chroms[chrom] = &sortedChrom{intervals: intervals, maxEnd: maxEnd}
	}

	return idx
}

// Overlapping calls fn for every region on chrom overlapping [start, end).
func (idx *SortedIndex) Overlapping(chrom string, start, end int64, fn func(i int, r genome.Region)) {
	c, ok := idx.chroms[chrom]
	if !ok || start >= end {
		return
	}

	// Candidates have start < end; hi is the first index past them.
	hi := sort.Search(len(c.intervals), func(i int) bool {
		return c.intervals[i].start >= end
	})
	// No interval before lo can reach past start.
	lo := sort.Search(hi, func(i int) bool {
		return c.maxEnd[i] > start
	})

	for i := lo; i < hi; i++ {
		if c.intervals[i].end > start {
			p := c.intervals[i].pos
			fn(p, idx.set.At(p))
		}
	}
}

// Len returns the number of indexed regions.
func (idx *SortedIndex) Len() int {
	return idx.set.Len()
}
