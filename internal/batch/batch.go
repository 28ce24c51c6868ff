// Package batch runs feature extraction over many query inputs on a pool of
// workers and assembles the results into one feature matrix.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/tfsage/internal/extract"
	"github.com/inodb/tfsage/internal/feature"
	"github.com/inodb/tfsage/internal/genome"
)

// Worker is the per-goroutine context handed to every task. It is created
// once per worker and never shared between goroutines.
type Worker struct {
	ID        int
	Reference *genome.RegionSet
	Extractor *extract.Extractor
}

// TaskFunc computes the feature vector for one input.
type TaskFunc func(ctx context.Context, w *Worker, input string) (feature.Vector, error)

// ProgressFunc is called after each completed task with the number of
// completed tasks and the total.
type ProgressFunc func(done, total int)

// TaskError reports the first task that failed in a batch.
type TaskError struct {
	Index int
	Input string
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (%s): %v", e.Index, e.Input, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Runner fans inputs out to a pool of workers sharing one extractor.
type Runner struct {
	extractor *extract.Extractor
	workers   int
	progress  ProgressFunc
	logger    *zap.Logger
}

// NewRunner creates a runner using runtime.NumCPU() workers.
func NewRunner(e *extract.Extractor) *Runner {
	return &Runner{
		extractor: e,
		workers:   runtime.NumCPU(),
		logger:    zap.NewNop(),
	}
}

// SetWorkers sets the pool size. Values <= 0 select runtime.NumCPU().
func (r *Runner) SetWorkers(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	r.workers = n
}

// Workers returns the pool size.
func (r *Runner) Workers() int {
	return r.workers
}

// SetProgress registers a progress callback. It is called from a single
// goroutine.
func (r *Runner) SetProgress(fn ProgressFunc) {
	r.progress = fn
}

// SetLogger sets the logger for debug and info messages.
func (r *Runner) SetLogger(l *zap.Logger) {
	r.logger = l
}

type workItem struct {
	seq   int
	input string
}

type workResult struct {
	seq    int
	vector feature.Vector
}

// Run executes task once per input and returns a matrix whose rows are the
// reference regions and whose column i holds the result of inputs[i],
// labelled labels[i]. The first failing task cancels the batch: no new tasks
// start, in-flight tasks finish, and Run returns a *TaskError and no matrix.
func (r *Runner) Run(ctx context.Context, inputs, labels []string, task TaskFunc) (*feature.Matrix, error) {
	if len(labels) != len(inputs) {
		return nil, fmt.Errorf("batch: %d labels for %d inputs", len(labels), len(inputs))
	}

	ref := r.extractor.Reference()
	m := feature.NewMatrix(ref.Names(), labels)
	total := len(inputs)
	if total == 0 {
		return m, nil
	}

	workers := min(r.workers, total)
	start := time.Now()
	r.logger.Info("batch started", zap.Int("tasks", total), zap.Int("workers", workers))

	g, gctx := errgroup.WithContext(ctx)
	items := make(chan workItem)
	results := make(chan workResult, 2*workers)

	g.Go(func() error {
		defer close(items)
		for i, input := range inputs {
			select {
			case items <- workItem{seq: i, input: input}:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(workers)
	for id := range workers {
		w := &Worker{ID: id, Reference: ref, Extractor: r.extractor}
		g.Go(func() error {
			defer wg.Done()
			for item := range items {
				if gctx.Err() != nil {
					return nil
				}
				v, err := task(gctx, w, item.input)
				if err != nil {
					return &TaskError{Index: item.seq, Input: item.input, Err: err}
				}
				select {
				case results <- workResult{seq: item.seq, vector: v}:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// The collector owns the matrix.
	g.Go(func() error {
		done := 0
		for res := range results {
			if err := m.SetColumn(res.seq, res.vector); err != nil {
				return &TaskError{Index: res.seq, Input: inputs[res.seq], Err: err}
			}
			done++
			if r.progress != nil {
				r.progress(done, total)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		r.logger.Info("batch failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.logger.Info("batch finished", zap.Int("tasks", total), zap.Duration("elapsed", time.Since(start)))
	return m, nil
}

// RunFiles extracts one column per BED file. Columns are labelled with the
// file base name without its .bed or .bed.gz extension.
func (r *Runner) RunFiles(ctx context.Context, paths []string) (*feature.Matrix, error) {
	labels := make([]string, len(paths))
	for i, p := range paths {
		labels[i] = FileLabel(p)
	}
	return r.Run(ctx, paths, labels, ExtractFileTask)
}

// RunNamed extracts one column per named subset of a merged BED file.
// Columns are labelled with the names.
func (r *Runner) RunNamed(ctx context.Context, mergedPath string, names []string) (*feature.Matrix, error) {
	for _, name := range names {
		if err := extract.ValidateName(name); err != nil {
			return nil, err
		}
	}
	return r.Run(ctx, names, names, NamedTask(mergedPath))
}

// ExtractFileTask treats each input as a BED file path.
func ExtractFileTask(_ context.Context, w *Worker, path string) (feature.Vector, error) {
	return w.Extractor.ExtractFile(path)
}

// NamedTask treats each input as a subset name of mergedPath.
func NamedTask(mergedPath string) TaskFunc {
	return func(_ context.Context, w *Worker, name string) (feature.Vector, error) {
		return w.Extractor.ExtractNamed(mergedPath, name)
	}
}

// FileLabel derives a column label from a peak file path.
func FileLabel(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".bed.gz", ".bed"} {
		if strings.HasSuffix(base, ext) && len(base) > len(ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}
