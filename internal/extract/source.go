package extract

import (
	"github.com/inodb/tfsage/internal/genome"
	"github.com/inodb/tfsage/internal/index"
)

// Source is a query peak set in one of its accepted forms:
// FilePath, Regions or Prebuilt.
type Source interface {
	source()
}

// FilePath is a BED file on disk (plain or gzipped).
type FilePath string

// Regions is an in-memory region set.
type Regions struct {
	Set *genome.RegionSet
}

// Prebuilt is an already indexed region set.
type Prebuilt struct {
	Index index.Index
}

func (FilePath) source() {}
func (Regions) source()  {}
func (Prebuilt) source() {}
