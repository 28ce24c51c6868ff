package index

import (
	"fmt"

	"github.com/biogo/store/interval"

	"github.com/inodb/tfsage/internal/genome"
)

// TreeIndex answers overlap queries with one biogo interval tree per chromosome.
type TreeIndex struct {
	set   *genome.RegionSet
	trees map[string]*interval.IntTree
}

// treeInterval is a half-open region stored in an IntTree.
type treeInterval struct {
	start, end int
	pos        int
}

func (i treeInterval) Overlap(b interval.IntRange) bool {
	return i.start < b.End && b.Start < i.end
}
func (i treeInterval) ID() uintptr { return uintptr(i.pos) }
func (i treeInterval) Range() interval.IntRange {
	return interval.IntRange{Start: i.start, End: i.end}
}

// treeQuery is a half-open query range.
type treeQuery struct {
	start, end int
}

func (q treeQuery) Overlap(b interval.IntRange) bool {
	return q.start < b.End && b.Start < q.end
}

// BuildTree creates a tree-backed index over set. Unlike the sorted backend
// it refuses empty sets.
func BuildTree(set *genome.RegionSet) (*TreeIndex, error) {
	if set.Len() == 0 {
		return nil, ErrEmptySet
	}

	idx := &TreeIndex{set: set, trees: make(map[string]*interval.IntTree)}
	for chrom, positions := range groupByChrom(set) {
		tree := &interval.IntTree{}
		for _, p := range positions {
			r := set.At(p)
			iv := treeInterval{start: int(r.Start), end: int(r.End), pos: p}
			if err := tree.Insert(iv, true); err != nil {
				return nil, fmt.Errorf("index region %s: %w", r, err)
			}
		}
		tree.AdjustRanges()
		idx.trees[chrom] = tree
	}
	return idx, nil
}

// Overlapping calls fn for every region on chrom overlapping [start, end).
func (idx *TreeIndex) Overlapping(chrom string, start, end int64, fn func(i int, r genome.Region)) {
	tree, ok := idx.trees[chrom]
	if !ok || start >= end {
		return
	}
	tree.DoMatching(func(e interval.IntInterface) bool {
		p := e.(treeInterval).pos
		fn(p, idx.set.At(p))
		return false
	}, treeQuery{start: int(start), end: int(end)})
}

// Len returns the number of indexed regions.
func (idx *TreeIndex) Len() int {
	return idx.set.Len()
}
