package genome

import (
	"fmt"
	"sort"
)

// RegionSet is an ordered collection of regions sharing one genome.
// Regions are sorted by chromosome rank, start and end at construction;
// chromosomes unknown to the genome sort after known ones, by name.
type RegionSet struct {
	genome  *Genome
	regions []Region
}

// NewRegionSet sorts regions and builds a set. The slice is taken over by the
// set and must not be modified by the caller afterwards.
func NewRegionSet(regions []Region, g *Genome) (*RegionSet, error) {
	if g == nil {
		return nil, fmt.Errorf("region set: nil genome")
	}
	for _, r := range regions {
		if err := g.CheckRegion(r); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i], regions[j]
		if a.Chrom != b.Chrom {
			ra, rb := g.Rank(a.Chrom), g.Rank(b.Chrom)
			switch {
			case ra >= 0 && rb >= 0:
				return ra < rb
			case ra >= 0:
				return true
			case rb >= 0:
				return false
			}
			return a.Chrom < b.Chrom
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})

	return &RegionSet{genome: g, regions: regions}, nil
}

// Genome returns the coordinate system of the set.
func (s *RegionSet) Genome() *Genome {
	return s.genome
}

// Len returns the number of regions.
func (s *RegionSet) Len() int {
	return len(s.regions)
}

// At returns the i-th region.
func (s *RegionSet) At(i int) Region {
	return s.regions[i]
}

// Regions returns the regions in set order. The slice must not be modified.
func (s *RegionSet) Regions() []Region {
	return s.regions
}

// Names returns the label of every region in set order.
func (s *RegionSet) Names() []string {
	names := make([]string, len(s.regions))
	for i, r := range s.regions {
		names[i] = r.Label()
	}
	return names
}
