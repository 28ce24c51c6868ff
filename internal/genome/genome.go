// Package genome provides the coordinate system, region and region set types
// used for regulatory potential scoring, plus BED and chromosome-length readers.
package genome

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrEmptyReference is returned when a reference region set has no regions.
var ErrEmptyReference = errors.New("reference region set is empty")

// Genome is an ordered mapping from chromosome name to chromosome length.
// It is immutable once built.
type Genome struct {
	names   []string
	lengths map[string]int64
	rank    map[string]int

	// Validate enables region bounds checking. It is off by default so that
	// out-of-range regions and unknown chromosomes are tolerated as-is.
	Validate bool
}

// New creates a genome from parallel slices of chromosome names and lengths.
func New(names []string, lengths []int64) (*Genome, error) {
	if len(names) != len(lengths) {
		return nil, fmt.Errorf("genome: %d names but %d lengths", len(names), len(lengths))
	}

	g := &Genome{
		names:   make([]string, 0, len(names)),
		lengths: make(map[string]int64, len(names)),
		rank:    make(map[string]int, len(names)),
	}
	for i, name := range names {
		if _, dup := g.rank[name]; dup {
			return nil, fmt.Errorf("genome: duplicate chromosome %q", name)
		}
		if lengths[i] <= 0 {
			return nil, fmt.Errorf("genome: chromosome %q has non-positive length %d", name, lengths[i])
		}
		g.rank[name] = len(g.names)
		g.names = append(g.names, name)
		g.lengths[name] = lengths[i]
	}
	return g, nil
}

// ReadGenomeFile reads a two-column chromosome length file (e.g. hg38.len or
// a UCSC chrom.sizes file).
func ReadGenomeFile(path string) (*Genome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genome file: %w", err)
	}
	defer f.Close()

	return ReadGenome(f)
}

// ReadGenome parses tab-separated chromosome name and length columns.
// Additional columns are ignored.
func ReadGenome(r io.Reader) (*Genome, error) {
	var (
		names   []string
		lengths []int64
	)

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, &ParseError{Line: lineNumber, Message: fmt.Sprintf("expected 2 columns, found %d", len(fields))}
		}
		length, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: lineNumber, Message: fmt.Sprintf("invalid chromosome length: %s", fields[1])}
		}
		names = append(names, fields[0])
		lengths = append(lengths, length)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read genome: %w", err)
	}

	return New(names, lengths)
}

// Chromosomes returns chromosome names in genome order.
func (g *Genome) Chromosomes() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Length returns the length of a chromosome and whether it is known.
func (g *Genome) Length(chrom string) (int64, bool) {
	l, ok := g.lengths[chrom]
	return l, ok
}

// Rank returns the position of chrom in genome order, or -1 if unknown.
func (g *Genome) Rank(chrom string) int {
	if r, ok := g.rank[chrom]; ok {
		return r
	}
	return -1
}

// CheckRegion returns an error if validation is enabled and r lies outside
// the genome. With validation disabled it always returns nil.
func (g *Genome) CheckRegion(r Region) error {
	if !g.Validate {
		return nil
	}
	length, ok := g.lengths[r.Chrom]
	if !ok {
		return &RangeError{Region: r, Reason: "unknown chromosome"}
	}
	if r.Start < 0 || r.Start >= r.End || r.End > length {
		return &RangeError{Region: r, Reason: fmt.Sprintf("outside chromosome bounds [0, %d)", length)}
	}
	return nil
}

// RangeError reports a region rejected by genome validation.
type RangeError struct {
	Region Region
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("region %s: %s", e.Region, e.Reason)
}
