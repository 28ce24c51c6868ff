// Package rp computes regulatory potential scores: decay-weighted proximity
// sums between a query region set (peaks) and a reference region set (loci).
package rp

import (
	"errors"
	"math"

	"github.com/inodb/tfsage/internal/feature"
	"github.com/inodb/tfsage/internal/genome"
	"github.com/inodb/tfsage/internal/index"
)

// DefaultDecay is the decay constant in bases used when none is configured.
const DefaultDecay = 10_000

// WindowFactor scales the decay constant into the search window around each
// reference region. Query regions beyond the window contribute nothing.
const WindowFactor = 5

// MaxDecay bounds the decay constant so that padded windows stay within int64.
const MaxDecay = math.MaxInt64 / (2 * WindowFactor)

// ErrInvalidDecay is returned for decay constants outside (0, MaxDecay].
var ErrInvalidDecay = errors.New("decay must be positive and at most 9.2e17")

// Weight returns the proximity weight for a distance in bases.
func Weight(distance int64, decay float64) float64 {
	return math.Exp(-float64(distance) / decay)
}

// Window returns the padding applied to each reference region.
func Window(decay float64) int64 {
	return int64(math.Ceil(WindowFactor * decay))
}

// ValidateDecay checks that decay can be used for scoring.
func ValidateDecay(decay float64) error {
	if decay <= 0 || math.IsNaN(decay) || decay > MaxDecay {
		return ErrInvalidDecay
	}
	return nil
}

// Score computes one RP score per reference region, in reference order.
// An empty query yields a zero vector without touching the index.
func Score(query index.Index, ref *genome.RegionSet, decay float64) (feature.Vector, error) {
	if err := ValidateDecay(decay); err != nil {
		return nil, err
	}

	scores := feature.Zeros(ref.Len())
	if query == nil || query.Len() == 0 {
		return scores, nil
	}

	err := Pairs(query, ref, decay, func(row, _ int, w float64) {
		scores[row] += w
	})
	return scores, err
}

// ScoreSet indexes query with the given backend and scores it against ref.
func ScoreSet(query *genome.RegionSet, ref *genome.RegionSet, decay float64, backend index.Backend) (feature.Vector, error) {
	if err := ValidateDecay(decay); err != nil {
		return nil, err
	}
	if query.Len() == 0 {
		return feature.Zeros(ref.Len()), nil
	}

	idx, err := index.Build(query, backend)
	if err != nil {
		return nil, err
	}
	return Score(idx, ref, decay)
}

// Pairs visits every (reference, query) pair within the decay window along
// with its weight. row is the reference position and col the query position.
// Summing weights per row yields Score.
func Pairs(query index.Index, ref *genome.RegionSet, decay float64, fn func(row, col int, w float64)) error {
	if err := ValidateDecay(decay); err != nil {
		return err
	}

	pad := Window(decay)
	for row, r := range ref.Regions() {
		w := r.Slop(pad)
		query.Overlapping(r.Chrom, w.Start, w.End, func(col int, q genome.Region) {
			fn(row, col, Weight(r.Distance(q), decay))
		})
	}
	return nil
}
