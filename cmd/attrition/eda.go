package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/attrition/eda"
	"github.com/YuminosukeSato/attrition/internal/pipeline"
)

func newEDACmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eda",
		Short: "Summarize the dataset and write distribution plots",
		Long: `Prints the table shape, missing value counts, the attrition class balance
and per-class statistics of JobSatisfaction and MonthlyIncome, and writes
the matching count and box plots.`,
		Args: cobra.NoArgs,
		RunE: a.runEDA,
	}

	f := cmd.Flags()
	f.String("data", "", "table to summarize, CSV or XLSX")
	f.String("encoding", "", "CSV charset, e.g. shift_jis (default UTF-8)")
	f.String("out-dir", "", "directory for the plots (default reports)")
	f.StringSlice("compare", eda.DefaultBoxColumns, "numeric columns compared across attrition classes")
	return cmd
}

func (a *app) runEDA(cmd *cobra.Command, _ []string) error {
	compare, _ := cmd.Flags().GetStringSlice("compare")

	tbl, err := pipeline.LoadTable(a.cfg.DataPath, a.cfg.DataEncoding)
	if err != nil {
		return err
	}
	summary, err := eda.Summarize(tbl, compare...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if err := summary.WriteText(w); err != nil {
		return err
	}
	paths, err := summary.SavePlots(a.cfg.OutDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	for _, p := range paths {
		fmt.Fprintf(w, "wrote %s\n", p)
	}
	return nil
}
