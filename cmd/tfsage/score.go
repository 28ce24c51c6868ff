package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [flags] <peaks.bed>",
		Short: "Print the feature vector of one peak file",
		Long: `Score a single peak file and print one line per reference region:
the region label and its regulatory potential.`,
		Example: `  tfsage score --genome mm10 peaks.bed
  tfsage score --nonzero --decay 1000 peaks.bed.gz`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error { return bindFlags(cmd) },
		RunE: func(cmd *cobra.Command, args []string) error {
			nonZero, _ := cmd.Flags().GetBool("nonzero")
			return runScore(cmd, args[0], nonZero)
		},
	}
	addExtractFlags(cmd)
	cmd.Flags().Bool("nonzero", false, "Only print regions with a non-zero score")
	return cmd
}

func runScore(cmd *cobra.Command, path string, nonZero bool) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ref, refLabel, err := loadReference(cmd)
	if err != nil {
		return err
	}
	logger.Debug("loaded reference", zap.String("reference", refLabel), zap.Int("regions", ref.Len()))

	e, err := newExtractor(ref, logger)
	if err != nil {
		return err
	}

	s, err := e.ExtractSeries(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	for i, label := range s.Index {
		v := s.Values[i]
		if nonZero && v == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", label, strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return w.Flush()
}
