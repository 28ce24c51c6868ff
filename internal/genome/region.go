package genome

import "fmt"

// Region is a 0-based half-open genomic interval with an optional name.
type Region struct {
	Chrom string
	Start int64
	End   int64
	Name  string
}

// String returns the region in chrom:start-end form.
func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// Label returns the region name, falling back to chrom:start-end.
func (r Region) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.String()
}

// Midpoint returns the integer center of the region.
func (r Region) Midpoint() int64 {
	return (r.Start + r.End) / 2
}

// Overlaps reports whether r and o share at least one base.
func (r Region) Overlaps(o Region) bool {
	return r.Chrom == o.Chrom && r.Start < o.End && o.Start < r.End
}

// Slop pads the region by d bases on both sides. The start is clamped at 0;
// the end is not clamped to the chromosome length.
func (r Region) Slop(d int64) Region {
	start := r.Start - d
	if start < 0 {
		start = 0
	}
	return Region{Chrom: r.Chrom, Start: start, End: r.End + d, Name: r.Name}
}

// Distance returns 0 for overlapping regions and the absolute midpoint
// distance otherwise. Regions must be on the same chromosome.
func (r Region) Distance(o Region) int64 {
	if r.Start < o.End && o.Start < r.End {
		return 0
	}
	d := r.Midpoint() - o.Midpoint()
	if d < 0 {
		return -d
	}
	return d
}
