package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/tfsage/internal/genome"
)

func writeAssets(t *testing.T, dir, name, lenContent, bedContent string) {
	t.Helper()
	gdir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(gdir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(gdir, name+".len"), []byte(lenContent), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(gdir, name+"_refseq_TSS.bed"), []byte(bedContent), 0644))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writeAssets(t, dir, "hg38", "chr1\t248956422\n", "chr1\t11873\t11874\tDDX11L1\n")

	p, err := Resolve(dir, "HG38")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hg38", "hg38.len"), p.GenomeFile)
	assert.Equal(t, filepath.Join(dir, "hg38", "hg38_refseq_TSS.bed"), p.RegionsFile)
}

func TestResolve_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Resolve(dir, "dm6")
	assert.ErrorIs(t, err, ErrUnsupportedGenome)

	_, err = Resolve(dir, "mm10")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Resolve("", "mm10")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeAssets(t, dir, "mm10",
		"chr1\t195471971\nchr2\t182113224\n",
		"chr2\t100\t101\tB\nchr1\t500\t501\tA\n")

	p, err := Resolve(dir, "mm10")
	require.NoError(t, err)
	ref, err := Load(p, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ref.Names())
	assert.True(t, ref.Genome().Validate)
}

func TestLoad_EmptyReference(t *testing.T) {
	dir := t.TempDir()
	writeAssets(t, dir, "hg38", "chr1\t1000\n", "")

	p, err := Resolve(dir, "hg38")
	require.NoError(t, err)
	_, err = Load(p, false)
	assert.ErrorIs(t, err, genome.ErrEmptyReference)
}

func TestLoad_Validation(t *testing.T) {
	dir := t.TempDir()
	writeAssets(t, dir, "hg38", "chr1\t1000\n", "chr1\t900\t2000\tX\n")

	p, err := Resolve(dir, "hg38")
	require.NoError(t, err)

	_, err = Load(p, true)
	var re *genome.RangeError
	assert.ErrorAs(t, err, &re)

	ref, err := Load(p, false)
	require.NoError(t, err)
	assert.Equal(t, 1, ref.Len())
}
