package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/tfsage/internal/batch"
	"github.com/inodb/tfsage/internal/extract"
	"github.com/inodb/tfsage/internal/feature"
	"github.com/inodb/tfsage/internal/store"
)

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [flags] <peaks.bed>...",
		Short: "Build a feature matrix from peak files",
		Long: `Score every peak file against the reference regions and write a matrix
with one row per reference region and one column per file, in argument order.
Files may be gzip-compressed. Empty files give all-zero columns.`,
		Example: `  tfsage extract --genome hg38 a.bed b.bed.gz > features.tsv
  tfsage extract --regions tss.bed --genome-file hg38.len -f npy -o features a.bed`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error { return bindFlags(cmd) },
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, func(ctx context.Context, r *batch.Runner) (*feature.Matrix, store.Run, error) {
				m, err := r.RunFiles(ctx, args)
				return m, store.Run{}, err
			})
		},
	}
	addBatchFlags(cmd)
	return cmd
}

func newExtractNamedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract-named [flags] <merged.bed> <name>...",
		Short: "Build a feature matrix from named subsets of a merged peak file",
		Long: `Select the lines of a merged peak file that belong to each name and score
them as one peak set per name. Names match exact tokens of the name column
(--matcher default) or the ID=<name> attribute of ChIP-Atlas files
(--matcher chip-atlas). A name with no lines gives an all-zero column.

With --cache-dir, each subset is kept as {cache-dir}/{name}.bed and reused on
later runs. The cache is keyed by name only and is never invalidated.`,
		Example: `  tfsage extract-named --genome hg38 merged.bed SRX1 SRX2
  tfsage extract-named --matcher chip-atlas --cache-dir ~/.tfsage/subsets \
      Oth.ALL.05.AllAg.AllCell.bed SRX502813`,
		Args:    cobra.MinimumNArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error { return bindFlags(cmd) },
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, names := args[0], args[1:]
			for _, name := range names {
				if err := extract.ValidateName(name); err != nil {
					return &usageError{err: err}
				}
			}
			if _, err := os.Stat(merged); err != nil {
				return err
			}
			return runBatch(cmd, func(ctx context.Context, r *batch.Runner) (*feature.Matrix, store.Run, error) {
				m, err := r.RunNamed(ctx, merged, names)
				if err != nil {
					return nil, store.Run{}, err
				}
				fp, err := store.StatFile(merged)
				return m, store.Run{Source: fp}, err
			})
		},
	}
	addBatchFlags(cmd)
	f := cmd.Flags()
	f.String("cache-dir", "", "Directory caching extracted subsets (default: none)")
	f.String("matcher", "default", "Name matching: default or chip-atlas")
	f.Int("name-field", -1, "0-based column holding names (default: from --matcher)")
	f.String("name-key", "", "Require key=name tokens")
	f.String("name-sep", "", "Separator between tokens within the name column")
	return cmd
}

type batchFunc func(ctx context.Context, r *batch.Runner) (*feature.Matrix, store.Run, error)

// runBatch loads the reference, runs fn on a configured runner and writes
// the resulting matrix.
func runBatch(cmd *cobra.Command, fn batchFunc) error {
	output, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(output, format); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ref, refLabel, err := loadReference(cmd)
	if err != nil {
		return err
	}
	logger.Info("loaded reference", zap.String("reference", refLabel), zap.Int("regions", ref.Len()))

	e, err := newExtractor(ref, logger)
	if err != nil {
		return err
	}

	r := batch.NewRunner(e)
	r.SetWorkers(viper.GetInt("workers"))
	r.SetLogger(logger)
	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		r.SetProgress(newProgressPrinter(os.Stderr).Update)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	m, run, err := fn(ctx, r)
	if err != nil {
		return err
	}

	if err := writeMatrix(m, output, format); err != nil {
		return err
	}

	run.Decay = e.Decay()
	run.Reference = refLabel
	return saveRun(logger, m, run)
}
