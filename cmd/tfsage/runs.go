package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/tfsage/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage feature matrices stored in DuckDB",
		Long:  "List, export, or delete runs written with --db.",
		Example: `  tfsage runs list --db runs.duckdb
  tfsage runs export --db runs.duckdb -o features.tsv <run-id>
  tfsage runs delete --db runs.duckdb <run-id>`,
	}
	cmd.PersistentFlags().String("db", "", "DuckDB database (default: config key db)")
	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if err := c.Root().PersistentPreRunE(c, args); err != nil {
			return err
		}
		if err := viper.BindPFlag("db", cmd.PersistentFlags().Lookup("db")); err != nil {
			return err
		}
		if viper.GetString("db") == "" {
			return usagef("no database: use --db or set db in the config")
		}
		return nil
	}

	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsExportCmd())
	cmd.AddCommand(newRunsDeleteCmd())
	return cmd
}

func openStore() (*store.Store, error) {
	path := viper.GetString("db")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store.Open(path)
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tDECAY\tREFERENCE\tREGIONS\tINPUTS\tSOURCE")
			for _, r := range runs {
				source := "-"
				if !r.Source.IsZero() {
					source = r.Source.Path
					if !r.Source.Matches() {
						source += " (changed)"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%d\t%d\t%s\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Decay, r.Reference,
					r.Regions, r.Inputs, source)
			}
			return tw.Flush()
		},
	}
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [flags] <run-id>",
		Short: "Write a stored run as TSV or npy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			format, _ := cmd.Flags().GetString("format")
			if err := checkFormat(output, format); err != nil {
				return err
			}

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := s.LoadMatrix(args[0])
			if err != nil {
				return err
			}
			return writeMatrix(m, output, format)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file, or prefix for npy (default: stdout)")
	cmd.Flags().StringP("format", "f", formatTSV, "Output format: tsv, npy")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete stored runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			for _, id := range args {
				if err := s.DeleteRun(id); err != nil {
					return err
				}
				fmt.Printf("Deleted run %s\n", id)
			}
			return nil
		},
	}
}
