// Package assets locates the bundled genome and reference region files.
//
// The layout under an assets directory is:
//
//	{dir}/{genome}/{genome}.len              (chromosome names and lengths)
//	{dir}/{genome}/{genome}_refseq_TSS.bed   (reference regions, one per TSS)
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/inodb/tfsage/internal/genome"
)

// Supported lists the genomes with bundled assets.
var Supported = []string{"hg38", "mm10"}

// ErrUnsupportedGenome is returned for genomes without bundled assets.
var ErrUnsupportedGenome = errors.New("unsupported genome")

// Paths holds the files describing one reference.
type Paths struct {
	GenomeFile  string
	RegionsFile string
}

// DefaultDir returns the default assets directory (~/.tfsage/assets).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tfsage", "assets")
}

// Resolve returns the asset paths for a supported genome under dir.
// Both files must exist.
func Resolve(dir, name string) (Paths, error) {
	name = strings.ToLower(name)
	if !slices.Contains(Supported, name) {
		return Paths{}, fmt.Errorf("%w %q (supported: %s)", ErrUnsupportedGenome, name, strings.Join(Supported, ", "))
	}
	if dir == "" {
		return Paths{}, fmt.Errorf("no assets directory configured")
	}

	p := Paths{
		GenomeFile:  filepath.Join(dir, name, name+".len"),
		RegionsFile: filepath.Join(dir, name, name+"_refseq_TSS.bed"),
	}
	for _, f := range []string{p.GenomeFile, p.RegionsFile} {
		if _, err := os.Stat(f); err != nil {
			return Paths{}, fmt.Errorf("asset for %s: %w", name, err)
		}
	}
	return p, nil
}

// Load reads the genome and reference region set described by p.
// With validate set, every reference region is checked against the genome.
func Load(p Paths, validate bool) (*genome.RegionSet, error) {
	g, err := genome.ReadGenomeFile(p.GenomeFile)
	if err != nil {
		return nil, fmt.Errorf("read genome: %w", err)
	}
	g.Validate = validate

	ref, err := genome.ReadBEDFile(p.RegionsFile, g)
	if err != nil {
		return nil, fmt.Errorf("read reference regions: %w", err)
	}
	if ref.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", p.RegionsFile, genome.ErrEmptyReference)
	}
	return ref, nil
}
