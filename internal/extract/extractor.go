// Package extract turns peak files, or named subsets of a merged peak file,
// into regulatory potential feature vectors against a fixed reference set.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/tfsage/internal/feature"
	"github.com/inodb/tfsage/internal/genome"
	"github.com/inodb/tfsage/internal/index"
	"github.com/inodb/tfsage/internal/rp"
)

// Extractor scores query peak sets against one reference region set.
// It is safe for concurrent use once configured.
type Extractor struct {
	ref      *genome.RegionSet
	decay    float64
	backend  index.Backend
	matcher  NameMatcher
	cacheDir string
	logger   *zap.Logger
}

// NewExtractor creates an extractor for the given reference set and decay.
func NewExtractor(ref *genome.RegionSet, decay float64) (*Extractor, error) {
	if ref == nil || ref.Len() == 0 {
		return nil, genome.ErrEmptyReference
	}
	if err := rp.ValidateDecay(decay); err != nil {
		return nil, err
	}
	return &Extractor{
		ref:     ref,
		decay:   decay,
		backend: index.DefaultBackend,
		matcher: DefaultMatcher,
		logger:  zap.NewNop(),
	}, nil
}

// SetBackend selects the index implementation used for query sets.
func (e *Extractor) SetBackend(b index.Backend) {
	e.backend = b
}

// SetMatcher configures how named subsets are located in merged files.
func (e *Extractor) SetMatcher(m NameMatcher) {
	e.matcher = m
}

// SetCacheDir enables on-disk caching of named subsets. Empty disables it.
func (e *Extractor) SetCacheDir(dir string) {
	e.cacheDir = dir
}

// SetLogger sets the logger for debug and info messages.
func (e *Extractor) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Reference returns the reference region set.
func (e *Extractor) Reference() *genome.RegionSet {
	return e.ref
}

// Decay returns the decay constant.
func (e *Extractor) Decay() float64 {
	return e.decay
}

// CacheDir returns the configured cache directory, if any.
func (e *Extractor) CacheDir() string {
	return e.cacheDir
}

// Extract computes the feature vector of one query source.
func (e *Extractor) Extract(src Source) (feature.Vector, error) {
	idx, err := e.normalize(src)
	if err != nil {
		return nil, err
	}
	return rp.Score(idx, e.ref, e.decay)
}

// normalize turns any source into an index, or nil for an empty query.
func (e *Extractor) normalize(src Source) (index.Index, error) {
	switch s := src.(type) {
	case FilePath:
		set, err := e.readQuery(string(s))
		if err != nil || set == nil {
			return nil, err
		}
		return e.buildIndex(set)
	case Regions:
		if s.Set == nil {
			return nil, nil
		}
		return e.buildIndex(s.Set)
	case Prebuilt:
		return s.Index, nil
	case nil:
		return nil, fmt.Errorf("extract: nil source")
	}
	return nil, fmt.Errorf("extract: unsupported source %T", src)
}

func (e *Extractor) buildIndex(set *genome.RegionSet) (index.Index, error) {
	if set.Len() == 0 {
		return nil, nil
	}
	return index.Build(set, e.backend)
}

// readQuery reads a peak file onto the reference genome. Zero-byte files
// return a nil set without being parsed.
func (e *Extractor) readQuery(path string) (*genome.RegionSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat peak file: %w", err)
	}
	if info.Size() == 0 {
		e.logger.Debug("empty peak file", zap.String("path", path))
		return nil, nil
	}

	set, err := genome.ReadBEDFile(path, e.ref.Genome())
	if err != nil {
		var pe *genome.ParseError
		var re *genome.RangeError
		if errors.As(err, &pe) || errors.As(err, &re) {
			return nil, &MalformedInputError{Path: path, Err: err}
		}
		return nil, err
	}
	e.logger.Debug("read peak file", zap.String("path", path), zap.Int("regions", set.Len()))
	return set, nil
}

// ExtractFile computes the feature vector of one BED file.
// An empty file yields a zero vector.
func (e *Extractor) ExtractFile(path string) (feature.Vector, error) {
	return e.Extract(FilePath(path))
}

// ExtractSeries computes the feature vector of one BED file labelled with
// reference region names.
func (e *Extractor) ExtractSeries(path string) (*feature.Series, error) {
	v, err := e.ExtractFile(path)
	if err != nil {
		return nil, err
	}
	return &feature.Series{Index: e.ref.Names(), Values: v}, nil
}

// ExtractNamed computes the feature vector of the subset of a merged BED file
// belonging to name.
//
// With a cache directory configured, {cacheDir}/{name}.bed is reused if it
// exists and written otherwise. The cache is keyed by name only. Without a
// cache directory the subset goes to a scratch file removed afterwards.
// A name with no matching lines yields a zero vector.
func (e *Extractor) ExtractNamed(mergedPath, name string) (feature.Vector, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	if e.cacheDir == "" {
		return e.extractScratch(mergedPath, name)
	}

	cached := e.CachePath(name)
	if _, err := os.Stat(cached); err == nil {
		e.logger.Debug("using cached subset", zap.String("name", name), zap.String("path", cached))
		return e.ExtractFile(cached)
	}

	if err := e.materialize(mergedPath, name, cached); err != nil {
		return nil, err
	}
	return e.ExtractFile(cached)
}

// CachePath returns the cache file for name. It is only meaningful when a
// cache directory is configured.
func (e *Extractor) CachePath(name string) string {
	return filepath.Join(e.cacheDir, name+".bed")
}

// materialize filters the merged file into dest through a temporary file in
// the same directory, so concurrent readers never observe a partial file.
func (e *Extractor) materialize(mergedPath, name, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), name+".bed.tmp-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := e.filterInto(mergedPath, name, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close cache file: %w", cerr)
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}

	e.logger.Debug("cached subset", zap.String("name", name), zap.Int("lines", n), zap.String("path", dest))
	return nil
}

func (e *Extractor) extractScratch(mergedPath, name string) (feature.Vector, error) {
	tmp, err := os.CreateTemp("", "tfsage-subset-*.bed")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = e.filterInto(mergedPath, name, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close scratch file: %w", cerr)
	}
	if err != nil {
		return nil, err
	}

	v, err := e.ExtractFile(tmp.Name())
	if err != nil {
		// The scratch file is gone once we return.
		label := fmt.Sprintf("%s[%s]", mergedPath, name)
		var me *MalformedInputError
		if errors.As(err, &me) {
			me.Path = label
		}
		var pe *genome.ParseError
		if errors.As(err, &pe) {
			pe.Path = label
		}
	}
	return v, err
}

func (e *Extractor) filterInto(mergedPath, name string, w *os.File) (int, error) {
	r, err := genome.Open(mergedPath)
	if err != nil {
		return 0, fmt.Errorf("open merged file: %w", err)
	}
	defer r.Close()

	n, err := e.matcher.Filter(r, name, w)
	if err != nil {
		return n, fmt.Errorf("filter %s for %q: %w", mergedPath, name, err)
	}
	if n == 0 {
		e.logger.Debug("name not found in merged file", zap.String("name", name), zap.String("path", mergedPath))
	}
	return n, nil
}

// ValidateName rejects names that are empty or would escape the cache directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
