// Package index provides overlap queries over a genome.RegionSet.
//
// Two backends are available: a sorted-slice index with a prefix-max end
// array, and an augmented interval tree from github.com/biogo/store/interval.
// Both report matches in region-set order.
package index

import (
	"errors"
	"fmt"
	"strings"

	"github.com/inodb/tfsage/internal/genome"
)

// ErrEmptySet is returned by backends that cannot index an empty region set.
var ErrEmptySet = errors.New("index: empty region set")

// Index answers overlap queries over an immutable region set.
type Index interface {
	// Overlapping calls fn for every indexed region on chrom that overlaps
	// the half-open range [start, end). i is the region's position in the
	// indexed set.
	Overlapping(chrom string, start, end int64, fn func(i int, r genome.Region))

	// Len returns the number of indexed regions.
	Len() int
}

// Backend selects an index implementation.
type Backend string

// Available backends.
const (
	Sorted Backend = "sorted"
	Tree   Backend = "tree"
)

// DefaultBackend is used when no backend is configured.
const DefaultBackend = Sorted

// ParseBackend converts a configuration string into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(s)) {
	case "", Sorted:
		return Sorted, nil
	case Tree:
		return Tree, nil
	}
	return "", fmt.Errorf("unknown index backend %q (want %q or %q)", s, Sorted, Tree)
}

// Build creates an index over set using the given backend.
func Build(set *genome.RegionSet, backend Backend) (Index, error) {
	switch backend {
	case "", Sorted:
		return BuildSorted(set), nil
	case Tree:
		return BuildTree(set)
	}
	return nil, fmt.Errorf("unknown index backend %q", backend)
}

// groupByChrom splits the positions of set by chromosome, preserving order.
func groupByChrom(set *genome.RegionSet) map[string][]int {
	groups := make(map[string][]int)
	for i, r := range set.Regions() {
		groups[r.Chrom] = append(groups[r.Chrom], i)
	}
	return groups
}
