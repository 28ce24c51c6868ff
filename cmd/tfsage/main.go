// Package main provides the tfsage command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError marks errors caused by invalid invocation.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	stopProfile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ue *usageError
		if errors.As(err, &ue) || isFlagError(err) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// isFlagError recognizes cobra's argument and flag validation errors.
func isFlagError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "accepts ", "requires at least", "invalid argument", "flag needs an argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

var (
	cfgFile    string
	cpuProfile string
	stopper    interface{ Stop() }
)

// stopProfile flushes a running CPU profile. cobra skips post-run hooks
// when a command fails, so run calls this after Execute returns.
func stopProfile() {
	if stopper != nil {
		stopper.Stop()
		stopper = nil
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tfsage",
		Short: "Regulatory potential feature extraction",
		Long: `tfsage turns peak files into regulatory potential (RP) feature vectors
against a fixed set of reference regions, such as gene transcription start sites.`,
		Example: `  # Score three peak files against the bundled hg38 TSS set
  tfsage extract --genome hg38 -o features.tsv a.bed b.bed c.bed

  # Extract experiments out of a merged ChIP-Atlas file, caching the subsets
  tfsage extract-named --genome hg38 --matcher chip-atlas --cache-dir subsets \
      merged.bed.gz SRX502813 SRX502814

  # Store the matrix in DuckDB and list stored runs
  tfsage extract --genome hg38 --db runs.duckdb a.bed b.bed
  tfsage runs list --db runs.duckdb`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return err
			}
			if cpuProfile != "" {
				stopper = profile.Start(profile.CPUProfile, profile.ProfilePath(cpuProfile), profile.Quiet)
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("tfsage version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.tfsage.yaml)")
	pf.StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile to this directory")
	pf.BoolP("verbose", "v", false, "Verbose (debug) logging")
	viper.BindPFlag("verbose", pf.Lookup("verbose"))

	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newExtractNamedCmd())
	cmd.AddCommand(newScoreCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// initConfig reads ~/.tfsage.yaml (or --config) and TFSAGE_* environment
// variables. A missing config file is not an error.
func initConfig() error {
	setDefaults()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".tfsage")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TFSAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(cfgFile == "" && os.IsNotExist(err)) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// newLogger builds the CLI logger on stderr.
func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tfsage version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// defaultConfigPath returns ~/.tfsage.yaml.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".tfsage.yaml"), nil
}
