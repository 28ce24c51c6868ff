package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/tfsage/internal/assets"
	"github.com/inodb/tfsage/internal/extract"
	"github.com/inodb/tfsage/internal/feature"
	"github.com/inodb/tfsage/internal/genome"
	"github.com/inodb/tfsage/internal/index"
	"github.com/inodb/tfsage/internal/rp"
	"github.com/inodb/tfsage/internal/store"
)

// Output formats
const (
	formatTSV = "tsv"
	formatNPY = "npy"
)

// flagKeys maps config keys to the flag names that set them.
var flagKeys = map[string]string{
	"genome":     "genome",
	"assets_dir": "assets-dir",
	"validate":   "validate",
	"decay":      "decay",
	"workers":    "workers",
	"index":      "index",
	"cache_dir":  "cache-dir",
	"matcher":    "matcher",
	"name.field": "name-field",
	"name.key":   "name-key",
	"name.sep":   "name-sep",
	"db":         "db",
}

// setDefaults registers defaults for keys with no flag, env or file value.
func setDefaults() {
	viper.SetDefault("genome", "hg38")
	viper.SetDefault("assets_dir", assets.DefaultDir())
	viper.SetDefault("decay", rp.DefaultDecay)
	viper.SetDefault("index", string(index.DefaultBackend))
	viper.SetDefault("matcher", "default")
	viper.SetDefault("name.field", -1)
}

// bindFlags binds the flags cmd defines to their config keys. It runs when
// cmd executes so that commands sharing a key do not override each other.
func bindFlags(cmd *cobra.Command) error {
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func addReferenceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("genome", "hg38", "Bundled reference: hg38 or mm10")
	f.String("assets-dir", assets.DefaultDir(), "Directory holding bundled references")
	f.String("genome-file", "", "Chromosome lengths file (overrides --genome)")
	f.String("regions", "", "Reference regions BED file (overrides --genome)")
	f.Bool("validate", false, "Reject regions outside the genome")
}

func addExtractFlags(cmd *cobra.Command) {
	addReferenceFlags(cmd)
	f := cmd.Flags()
	f.Float64("decay", rp.DefaultDecay, "Decay constant in base pairs")
	f.String("index", string(index.DefaultBackend), "Index backend: sorted or tree")
}

func addBatchFlags(cmd *cobra.Command) {
	addExtractFlags(cmd)
	f := cmd.Flags()
	f.IntP("workers", "j", 0, "Number of workers (default: number of CPUs)")
	f.StringP("output", "o", "", "Output file, or prefix for npy (default: stdout)")
	f.StringP("format", "f", formatTSV, "Output format: tsv, npy")
	f.String("db", "", "Also store the matrix in this DuckDB database")
	f.Bool("progress", false, "Print progress to stderr")
}

// loadReference reads the reference region set from --regions/--genome-file
// or from the bundled assets of --genome. It returns the set and a label
// identifying it.
func loadReference(cmd *cobra.Command) (*genome.RegionSet, string, error) {
	regionsFile, _ := cmd.Flags().GetString("regions")
	genomeFile, _ := cmd.Flags().GetString("genome-file")
	validate := viper.GetBool("validate")

	if regionsFile != "" || genomeFile != "" {
		if regionsFile == "" || genomeFile == "" {
			return nil, "", usagef("--regions and --genome-file must be given together")
		}
		ref, err := assets.Load(assets.Paths{GenomeFile: genomeFile, RegionsFile: regionsFile}, validate)
		return ref, regionsFile, err
	}

	name := viper.GetString("genome")
	p, err := assets.Resolve(viper.GetString("assets_dir"), name)
	if err != nil {
		return nil, "", err
	}
	ref, err := assets.Load(p, validate)
	return ref, name, err
}

// newExtractor configures an extractor from flags and config.
func newExtractor(ref *genome.RegionSet, logger *zap.Logger) (*extract.Extractor, error) {
	backend, err := index.ParseBackend(viper.GetString("index"))
	if err != nil {
		return nil, &usageError{err: err}
	}
	e, err := extract.NewExtractor(ref, viper.GetFloat64("decay"))
	if err != nil {
		return nil, &usageError{err: err}
	}
	e.SetBackend(backend)
	e.SetLogger(logger)

	m, err := nameMatcher()
	if err != nil {
		return nil, err
	}
	e.SetMatcher(m)
	e.SetCacheDir(viper.GetString("cache_dir"))
	return e, nil
}

// nameMatcher builds the subset matcher from the matcher preset and any
// name.* overrides.
func nameMatcher() (extract.NameMatcher, error) {
	var m extract.NameMatcher
	switch strings.ToLower(viper.GetString("matcher")) {
	case "", "default", "bed":
		m = extract.DefaultMatcher
	case "chip-atlas", "chipatlas":
		m = extract.ChIPAtlasMatcher
	default:
		return m, usagef("unknown matcher %q (use default or chip-atlas)", viper.GetString("matcher"))
	}

	if field := viper.GetInt("name.field"); field >= 0 {
		m.Field = field
	}
	if viper.IsSet("name.key") {
		m.Key = viper.GetString("name.key")
	}
	if viper.IsSet("name.sep") {
		m.Sep = viper.GetString("name.sep")
	}
	return m, nil
}

// writeMatrix writes m to output in the requested format. TSV goes to
// stdout when output is empty or "-"; npy needs an output prefix.
func writeMatrix(m *feature.Matrix, output, format string) error {
	if err := checkFormat(output, format); err != nil {
		return err
	}
	if strings.ToLower(format) == formatNPY {
		return feature.SaveNPY(strings.TrimSuffix(output, ".npy"), m)
	}

	if output == "" || output == "-" {
		return writeTab(os.Stdout, m)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := writeTab(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeTab(w io.Writer, m *feature.Matrix) error {
	tw := feature.NewTabWriter(w)
	if err := tw.Write(m); err != nil {
		return fmt.Errorf("write features: %w", err)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write features: %w", err)
	}
	return nil
}

// checkFormat validates the output options before any work is done.
func checkFormat(output, format string) error {
	switch strings.ToLower(format) {
	case formatTSV:
		return nil
	case formatNPY:
		if output == "" || output == "-" {
			return usagef("npy output needs --output PREFIX")
		}
		return nil
	}
	return usagef("unknown output format %q (use tsv or npy)", format)
}

// saveRun stores m in the DuckDB database configured by --db, if any.
func saveRun(logger *zap.Logger, m *feature.Matrix, run store.Run) error {
	path := viper.GetString("db")
	if path == "" {
		return nil
	}
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	run, err = s.WriteMatrix(run, m)
	if err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	logger.Info("stored run", zap.String("run_id", run.ID), zap.String("db", path))
	return nil
}
