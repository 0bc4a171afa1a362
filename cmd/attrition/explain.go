package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/attrition/explain"
	"github.com/YuminosukeSato/attrition/internal/pipeline"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
)

const (
	// backgroundRows bounds the reference set the SHAP base value is averaged over.
	backgroundRows = 100
	maxDisplay     = 20

	shapBarFile     = "shap_importance.png"
	shapSummaryFile = "shap_summary.png"
)

// explainSummary is the machine readable result of `attrition explain`.
type explainSummary struct {
	Rows      int                         `json:"rows" yaml:"rows"`
	BaseValue float64                     `json:"base_value" yaml:"base_value"`
	Ranking   []explain.FeatureImportance `json:"ranking" yaml:"ranking"`
	Plots     []string                    `json:"plots" yaml:"plots"`
}

func newExplainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Write the SHAP feature attribution report",
		Long: `Attributes the predicted probability of leaving to each encoded feature
with permutation SHAP over a sample of the data, then writes a global
importance bar plot and a per-feature summary plot.`,
		Args: cobra.NoArgs,
		RunE: a.runExplain,
	}

	f := cmd.Flags()
	f.String("data", "", "table to explain, CSV or XLSX")
	f.String("encoding", "", "CSV charset, e.g. shift_jis (default UTF-8)")
	f.String("model", "", "artifact path")
	f.Int("sample", 0, "rows to explain (default 300)")
	f.Uint64("seed", 0, "sampling seed")
	f.String("out-dir", "", "directory for the plots (default reports)")
	f.String("output", outputText, "output format: text, json or yaml")
	return cmd
}

func (a *app) runExplain(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")
	logger := log.GetLoggerWithName("cmd.explain")

	scorer, err := a.loadScorer()
	if err != nil {
		return err
	}
	tbl, err := pipeline.LoadTable(a.cfg.DataPath, a.cfg.DataEncoding)
	if err != nil {
		return err
	}
	X, err := scorer.Encode(tbl)
	if err != nil {
		return err
	}

	background := explain.Sample(X, backgroundRows, a.cfg.Seed+1)
	explainer, err := explain.NewPermutationExplainer(scorer.PredictProba, background,
		explain.WithRandomState(a.cfg.Seed))
	if err != nil {
		return err
	}

	sample := explain.Sample(X, a.cfg.ShapSample, a.cfg.Seed)
	rows, _ := sample.Dims()
	logger.Info("explaining sample", log.SamplesKey, rows, log.StageKey, log.StageExplain)
	ex, err := explainer.Explain(cmd.Context(), sample, scorer.Artifact().FeatureNames())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(a.cfg.OutDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", a.cfg.OutDir)
	}
	bar := filepath.Join(a.cfg.OutDir, shapBarFile)
	summaryPlot := filepath.Join(a.cfg.OutDir, shapSummaryFile)
	if err := ex.SavePlots(bar, summaryPlot, maxDisplay); err != nil {
		return err
	}

	out := explainSummary{
		Rows:      rows,
		BaseValue: ex.BaseValue,
		Ranking:   ex.Ranking(),
		Plots:     []string{bar, summaryPlot},
	}
	return writeOutput(cmd.OutOrStdout(), format, out, out.writeText)
}

func (s explainSummary) writeText(w io.Writer) error {
	fmt.Fprintf(w, "explained %d rows, base value %.4f\n\n", s.Rows, s.BaseValue)
	fmt.Fprintln(w, "mean |SHAP| (class 1):")
	for i, fi := range s.Ranking {
		if i == maxDisplay {
			break
		}
		fmt.Fprintf(w, "  %-26s %.4f\n", fi.Feature, fi.MeanAbsSHAP)
	}
	fmt.Fprintln(w)
	for _, p := range s.Plots {
		fmt.Fprintf(w, "wrote %s\n", p)
	}
	return nil
}
