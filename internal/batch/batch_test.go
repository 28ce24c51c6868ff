package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/tfsage/internal/extract"
	"github.com/inodb/tfsage/internal/feature"
	"github.com/inodb/tfsage/internal/genome"
)

func testExtractor(t *testing.T) *extract.Extractor {
	t.Helper()
	g, err := genome.New([]string{"chr1"}, []int64{1_000_000})
	require.NoError(t, err)
	ref, err := genome.NewRegionSet([]genome.Region{
		{Chrom: "chr1", Start: 1000, End: 1001, Name: "gene1"},
		{Chrom: "chr1", Start: 5000, End: 5001, Name: "gene2"},
	}, g)
	require.NoError(t, err)
	e, err := extract.NewExtractor(ref, 1000)
	require.NoError(t, err)
	return e
}

func writeBED(t *testing.T, dir, name string, starts ...int) string {
	t.Helper()
	var sb strings.Builder
	for _, s := range starts {
		fmt.Fprintf(&sb, "chr1\t%d\t%d\n", s, s+100)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

// constTask returns a vector filled with the input's first byte, sleeping
// per input so that completion order differs from input order.
func constTask(delays map[string]time.Duration) TaskFunc {
	return func(ctx context.Context, w *Worker, input string) (feature.Vector, error) {
		time.Sleep(delays[input])
		v := feature.Zeros(w.Reference.Len())
		for i := range v {
			v[i] = float64(input[0])
		}
		return v, nil
	}
}

func TestRun_ColumnsFollowInputOrder(t *testing.T) {
	r := NewRunner(testExtractor(t))
	r.SetWorkers(3)

	delays := map[string]time.Duration{
		"A": 30 * time.Millisecond,
		"B": 10 * time.Millisecond,
		"C": 0,
	}

	m, err := r.Run(context.Background(), []string{"A", "B", "C"}, []string{"A", "B", "C"}, constTask(delays))
	require.NoError(t, err)
	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []string{"gene1", "gene2"}, m.RowNames())
	assert.Equal(t, []string{"A", "B", "C"}, m.ColNames())

	for j, want := range []byte("ABC") {
		assert.Equal(t, float64(want), m.At(0, j))
	}
}

func TestRun_PermutedInputsPermuteColumns(t *testing.T) {
	dir := t.TempDir()
	a := writeBED(t, dir, "a.bed", 1000)
	b := writeBED(t, dir, "b.bed", 3000)
	c := writeBED(t, dir, "c.bed", 4950, 1000)

	r := NewRunner(testExtractor(t))
	r.SetWorkers(2)

	m1, err := r.RunFiles(context.Background(), []string{a, b, c})
	require.NoError(t, err)
	m2, err := r.RunFiles(context.Background(), []string{c, a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, m1.ColNames())
	assert.Equal(t, []string{"c", "a", "b"}, m2.ColNames())
	assert.Equal(t, m1.Column(0), m2.Column(1))
	assert.Equal(t, m1.Column(1), m2.Column(2))
	assert.Equal(t, m1.Column(2), m2.Column(0))
}

func TestRun_MatchesSequential(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := range 20 {
		paths = append(paths, writeBED(t, dir, fmt.Sprintf("p%02d.bed", i), 1000+i*250, 6000-i*100))
	}

	e := testExtractor(t)
	r := NewRunner(e)
	r.SetWorkers(8)
	m, err := r.RunFiles(context.Background(), paths)
	require.NoError(t, err)

	for j, p := range paths {
		v, err := e.ExtractFile(p)
		require.NoError(t, err)
		assert.Equal(t, v, m.Column(j), "column %d", j)
	}
}

func TestRun_FailFast(t *testing.T) {
	r := NewRunner(testExtractor(t))
	r.SetWorkers(2)

	var started atomic.Int32
	boom := errors.New("boom")
	task := func(ctx context.Context, w *Worker, input string) (feature.Vector, error) {
		started.Add(1)
		if input == "bad" {
			return nil, boom
		}
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
		}
		return feature.Zeros(w.Reference.Len()), nil
	}

	inputs := []string{"bad"}
	for i := range 200 {
		inputs = append(inputs, fmt.Sprintf("ok%d", i))
	}

	m, err := r.Run(context.Background(), inputs, inputs, task)
	assert.Nil(t, m)
	require.Error(t, err)

	var te *TaskError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 0, te.Index)
	assert.Equal(t, "bad", te.Input)
	assert.ErrorIs(t, err, boom)
	assert.Less(t, int(started.Load()), len(inputs), "no new tasks after the failure")
}

func TestRun_MalformedFileFailsBatch(t *testing.T) {
	dir := t.TempDir()
	good := writeBED(t, dir, "good.bed", 1000)
	bad := filepath.Join(dir, "bad.bed")
	require.NoError(t, os.WriteFile(bad, []byte("chr1\tx\t10\n"), 0644))

	r := NewRunner(testExtractor(t))
	m, err := r.RunFiles(context.Background(), []string{good, bad})
	assert.Nil(t, m)

	var te *TaskError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 1, te.Index)
	assert.Equal(t, bad, te.Input)

	var me *extract.MalformedInputError
	assert.True(t, errors.As(err, &me))
}

func TestRun_Empty(t *testing.T) {
	r := NewRunner(testExtractor(t))
	called := false
	task := func(context.Context, *Worker, string) (feature.Vector, error) {
		called = true
		return nil, nil
	}

	m, err := r.Run(context.Background(), nil, nil, task)
	require.NoError(t, err)
	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 0, cols)
	assert.False(t, called)
}

func TestRun_LabelMismatch(t *testing.T) {
	r := NewRunner(testExtractor(t))
	_, err := r.Run(context.Background(), []string{"a"}, nil, constTask(nil))
	assert.Error(t, err)
}

func TestRun_Progress(t *testing.T) {
	r := NewRunner(testExtractor(t))
	r.SetWorkers(4)

	var mu sync.Mutex
	var calls [][2]int
	r.SetProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, [2]int{done, total})
	})

	inputs := []string{"a", "b", "c", "d", "e"}
	_, err := r.Run(context.Background(), inputs, inputs, constTask(nil))
	require.NoError(t, err)

	require.Len(t, calls, 5)
	for i, c := range calls {
		assert.Equal(t, [2]int{i + 1, 5}, c)
	}
}

func TestRun_WorkerContext(t *testing.T) {
	e := testExtractor(t)
	r := NewRunner(e)
	r.SetWorkers(3)

	var mu sync.Mutex
	seen := map[*Worker]int{}
	task := func(_ context.Context, w *Worker, _ string) (feature.Vector, error) {
		mu.Lock()
		seen[w] = w.ID
		mu.Unlock()
		assert.Same(t, e, w.Extractor)
		assert.Same(t, e.Reference(), w.Reference)
		time.Sleep(time.Millisecond)
		return feature.Zeros(w.Reference.Len()), nil
	}

	inputs := make([]string, 30)
	for i := range inputs {
		inputs[i] = fmt.Sprint(i)
	}
	_, err := r.Run(context.Background(), inputs, inputs, task)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(seen), 3)
	for w, id := range seen {
		assert.Equal(t, w.ID, id)
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, 3)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	r := NewRunner(testExtractor(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := []string{"a", "b"}
	m, err := r.Run(ctx, inputs, inputs, constTask(nil))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunNamed(t *testing.T) {
	dir := t.TempDir()

	// SRX1..SRX10 are requested; only the odd ones are in the merged file.
	// SRX11 is not requested and shares a prefix with SRX1.
	names := make([]string, 10)
	subsets := make(map[string]*strings.Builder)
	var merged strings.Builder
	add := func(name string, start int) {
		line := fmt.Sprintf("chr1\t%d\t%d\t%s\n", start, start+100, name)
		merged.WriteString(line)
		if subsets[name] == nil {
			subsets[name] = &strings.Builder{}
		}
		subsets[name].WriteString(line)
	}
	for i := range names {
		names[i] = fmt.Sprintf("SRX%d", i+1)
	}
	for k := 0; k < 2; k++ {
		for i := 0; i < len(names); i += 2 {
			add(names[i], 800+i*450+k*1700)
			add("SRX11", 950+k*300)
		}
	}
	mergedPath := filepath.Join(dir, "merged.bed")
	require.NoError(t, os.WriteFile(mergedPath, []byte(merged.String()), 0644))

	e := testExtractor(t)
	presplit := filepath.Join(dir, "presplit")
	require.NoError(t, os.MkdirAll(presplit, 0755))
	want := make(map[string]feature.Vector)
	for i := 0; i < len(names); i += 2 {
		path := filepath.Join(presplit, names[i]+".bed")
		require.NoError(t, os.WriteFile(path, []byte(subsets[names[i]].String()), 0644))
		v, err := e.ExtractFile(path)
		require.NoError(t, err)
		require.False(t, v.IsZero(), names[i])
		want[names[i]] = v
	}

	for _, cacheDir := range []string{"", filepath.Join(dir, "cache")} {
		t.Run(fmt.Sprintf("cache=%q", cacheDir), func(t *testing.T) {
			e := testExtractor(t)
			e.SetCacheDir(cacheDir)
			r := NewRunner(e)
			r.SetWorkers(4)

			m, err := r.RunNamed(context.Background(), mergedPath, names)
			require.NoError(t, err)
			assert.Equal(t, names, m.ColNames())

			for j, name := range names {
				if v, ok := want[name]; ok {
					assert.Equal(t, v, m.Column(j), "column %s", name)
				} else {
					assert.True(t, m.Column(j).IsZero(), "column %s", name)
				}
			}

			if cacheDir == "" {
				return
			}
			entries, err := os.ReadDir(cacheDir)
			require.NoError(t, err)
			assert.Len(t, entries, 10)

			// A second run reuses the cache and gives identical results.
			m2, err := r.RunNamed(context.Background(), mergedPath, names)
			require.NoError(t, err)
			assert.Equal(t, m.RowMajor(), m2.RowMajor())
		})
	}
}

func TestRunNamed_InvalidName(t *testing.T) {
	r := NewRunner(testExtractor(t))
	_, err := r.RunNamed(context.Background(), "merged.bed", []string{"ok", "../bad"})
	assert.ErrorIs(t, err, extract.ErrInvalidName)
}

func TestFileLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/peaks/SRX1.bed", "SRX1"},
		{"SRX2.bed.gz", "SRX2"},
		{"dir/sample.narrowPeak", "sample.narrowPeak"},
		{".bed", ".bed"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FileLabel(tt.path))
		})
	}
}

func TestSetWorkers(t *testing.T) {
	r := NewRunner(testExtractor(t))
	r.SetWorkers(5)
	assert.Equal(t, 5, r.Workers())
	r.SetWorkers(0)
	assert.Greater(t, r.Workers(), 0)
}
