package rp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/tfsage/internal/genome"
	"github.com/inodb/tfsage/internal/index"
)

func testGenome(t *testing.T) *genome.Genome {
	t.Helper()
	g, err := genome.New([]string{"chr1", "chr2"}, []int64{10_000_000, 10_000_000})
	require.NoError(t, err)
	return g
}

func regionSet(t *testing.T, g *genome.Genome, regions ...genome.Region) *genome.RegionSet {
	t.Helper()
	set, err := genome.NewRegionSet(regions, g)
	require.NoError(t, err)
	return set
}

func twoGenes(t *testing.T, g *genome.Genome) *genome.RegionSet {
	return regionSet(t, g,
		genome.Region{Chrom: "chr1", Start: 1000, End: 1001, Name: "gene1"},
		genome.Region{Chrom: "chr1", Start: 5000, End: 5001, Name: "gene2"},
	)
}

func TestWeight(t *testing.T) {
	assert.Equal(t, 1.0, Weight(0, 1000))
	assert.InDelta(t, math.Exp(-1), Weight(1000, 1000), 1e-15, "decay is the e-folding distance")
	assert.Greater(t, Weight(10, 1000), Weight(20, 1000))
	assert.Equal(t, int64(50_000), Window(10_000))
}

func TestScore_RegressionFixture(t *testing.T) {
	g := testGenome(t)
	ref := twoGenes(t, g)
	query := regionSet(t, g,
		genome.Region{Chrom: "chr1", Start: 1000, End: 1100},
		genome.Region{Chrom: "chr1", Start: 3000, End: 3100},
	)

	for _, backend := range []index.Backend{index.Sorted, index.Tree} {
		t.Run(string(backend), func(t *testing.T) {
			scores, err := ScoreSet(query, ref, 1000, backend)
			require.NoError(t, err)
			require.Len(t, scores, 2)

			// gene1: overlapping peak (weight 1) + peak at midpoint distance 2050.
			assert.InDelta(t, 1.1287349035878043, scores[0], 1e-12)
			assert.InDelta(t, 1+math.Exp(-2.05), scores[0], 1e-12)
			// gene2: peaks at midpoint distances 1950 and 3950.
			assert.InDelta(t, 0.16152877336190052, scores[1], 1e-12)
		})
	}
}

func TestScore_EmptyQuery(t *testing.T) {
	g := testGenome(t)
	ref := twoGenes(t, g)

	scores, err := ScoreSet(regionSet(t, g), ref, 1000, index.Tree)
	require.NoError(t, err, "empty query must not reach the tree backend")
	assert.Equal(t, []float64{0, 0}, []float64(scores))

	scores, err = Score(nil, ref, 1000)
	require.NoError(t, err)
	assert.Len(t, scores, 2)
}

func TestScore_DistantPeaksContributeNothing(t *testing.T) {
	g := testGenome(t)
	ref := twoGenes(t, g)
	decay := 1000.0
	query := regionSet(t, g,
		genome.Region{Chrom: "chr1", Start: 5001 + 5*1000 + 10, End: 5001 + 5*1000 + 20},
		genome.Region{Chrom: "chr1", Start: 100_000, End: 100_100},
		genome.Region{Chrom: "chr2", Start: 1000, End: 1001},
	)

	scores, err := ScoreSet(query, ref, decay, index.Sorted)
	require.NoError(t, err)
	assert.InDelta(t, 0, scores[0], 1e-12)
	assert.InDelta(t, 0, scores[1], 1e-12)
}

func TestScore_OverlapIsMaximalAndDecayIndependent(t *testing.T) {
	g := testGenome(t)
	ref := regionSet(t, g, genome.Region{Chrom: "chr1", Start: 50_000, End: 50_001})
	query := regionSet(t, g,
		genome.Region{Chrom: "chr1", Start: 49_000, End: 51_000},
		genome.Region{Chrom: "chr1", Start: 50_000, End: 50_001},
		genome.Region{Chrom: "chr1", Start: 49_990, End: 50_010},
	)

	for _, decay := range []float64{1, 100, 10_000, 1e6} {
		scores, err := ScoreSet(query, ref, decay, index.Sorted)
		require.NoError(t, err)
		assert.Equal(t, 3.0, scores[0], "decay=%v", decay)
	}
}

func TestScore_InvalidDecay(t *testing.T) {
	g := testGenome(t)
	ref := twoGenes(t, g)
	query := regionSet(t, g, genome.Region{Chrom: "chr1", Start: 1, End: 2})

	for _, decay := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1), 1e18, math.MaxFloat64} {
		_, err := ScoreSet(query, ref, decay, index.Sorted)
		assert.ErrorIs(t, err, ErrInvalidDecay, "decay=%v", decay)
	}
}

func TestWindow_LargeDecay(t *testing.T) {
	require.NoError(t, ValidateDecay(MaxDecay))
	pad := Window(MaxDecay)
	assert.Positive(t, pad)

	r := genome.Region{Chrom: "chr1", Start: 1000, End: 1001}
	w := r.Slop(pad)
	assert.Equal(t, int64(0), w.Start)
	assert.Greater(t, w.End, r.End)
}

func TestScore_MatchesBruteForce(t *testing.T) {
	g := testGenome(t)
	rng := rand.New(rand.NewSource(7))
	decay := 2000.0

	var refRegions, queryRegions []genome.Region
	for range 300 {
		s := rng.Int63n(1_000_000)
		refRegions = append(refRegions, genome.Region{Chrom: "chr1", Start: s, End: s + 1})
	}
	for range 2000 {
		s := rng.Int63n(1_000_000)
		queryRegions = append(queryRegions, genome.Region{Chrom: "chr1", Start: s, End: s + 1 + rng.Int63n(2000)})
	}
	ref := regionSet(t, g, refRegions...)
	query := regionSet(t, g, queryRegions...)

	window := Window(decay)
	expected := make([]float64, ref.Len())
	for i, r := range ref.Regions() {
		w := r.Slop(window)
		for _, q := range query.Regions() {
			if q.Start < w.End && w.Start < q.End {
				expected[i] += Weight(r.Distance(q), decay)
			}
		}
	}

	for _, backend := range []index.Backend{index.Sorted, index.Tree} {
		scores, err := ScoreSet(query, ref, decay, backend)
		require.NoError(t, err)
		assert.InDeltaSlice(t, expected, []float64(scores), 1e-9, "backend=%s", backend)
	}
}

func TestPairs_RowSumsEqualScore(t *testing.T) {
	g := testGenome(t)
	ref := twoGenes(t, g)
	query := regionSet(t, g,
		genome.Region{Chrom: "chr1", Start: 1000, End: 1100},
		genome.Region{Chrom: "chr1", Start: 3000, End: 3100},
	)
	idx := index.BuildSorted(query)

	sums := make([]float64, ref.Len())
	var pairs int
	require.NoError(t, Pairs(idx, ref, 1000, func(row, col int, w float64) {
		assert.Less(t, col, query.Len())
		sums[row] += w
		pairs++
	}))
	assert.Equal(t, 4, pairs)

	scores, err := Score(idx, ref, 1000)
	require.NoError(t, err)
	assert.Equal(t, []float64(scores), sums)
}
