package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/YuminosukeSato/attrition/internal/pipeline"
	"github.com/YuminosukeSato/attrition/internal/report"
	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// idColumn is shown in the text ranking when the table has it.
const idColumn = "EmployeeNumber"

type scoredRow struct {
	Rank      int               `json:"rank" yaml:"rank"`
	Index     int               `json:"index" yaml:"index"`
	RiskScore float64           `json:"risk_score" yaml:"risk_score"`
	Record    map[string]string `json:"record" yaml:"record"`
}

// scoreSummary is the machine readable result of `attrition score`.
type scoreSummary struct {
	Rows int               `json:"rows" yaml:"rows"`
	Top  []scoredRow       `json:"top" yaml:"top"`
	ROI  report.ROISummary `json:"roi" yaml:"roi"`

	printer *message.Printer
}

func newScoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rank employees by attrition risk and project retention savings",
		Long: `Encodes a table with the vocabulary stored in the artifact, ranks every
row by predicted probability of leaving and summarizes the ROI of a
retention programme for employees scoring above 0.7.

Examples:
  attrition score --input employees.csv --top 20
  attrition score --input employees.xlsx --avg-cost 50000 --retention-rate 20 --output yaml`,
		Args: cobra.NoArgs,
		RunE: a.runScore,
	}

	f := cmd.Flags()
	f.String("input", "", "table to score, CSV or XLSX (required)")
	f.String("encoding", "", "CSV charset, e.g. shift_jis (default UTF-8)")
	f.String("model", "", "artifact path")
	f.Int("top", 0, "ranked rows to print (default 10)")
	f.Float64("avg-cost", 0, "average cost of one leaver")
	f.Float64("retention-rate", 0, "expected retention success rate in percent")
	f.String("unknown-category", "", "override the trained unseen-category policy: error or code")
	f.String("lang", "en", "language tag for number formatting in text output")
	f.String("output", outputText, "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runScore(cmd *cobra.Command, _ []string) error {
	input, _ := cmd.Flags().GetString("input")
	format, _ := cmd.Flags().GetString("output")
	lang, _ := cmd.Flags().GetString("lang")

	tag, err := language.Parse(lang)
	if err != nil {
		return errors.NewValidationError("lang", "must be a BCP 47 language tag", lang)
	}

	scorer, err := a.loadScorer()
	if err != nil {
		return err
	}
	tbl, err := pipeline.LoadTable(input, a.cfg.DataEncoding)
	if err != nil {
		return err
	}
	records, err := scorer.Score(tbl)
	if err != nil {
		return err
	}
	roi, err := report.NewROISummary(pipeline.Scores(records), a.cfg.AvgCost, a.cfg.RetentionRate)
	if err != nil {
		return err
	}

	summary := scoreSummary{Rows: len(records), ROI: roi, printer: message.NewPrinter(tag)}
	for _, rec := range pipeline.Top(records, a.cfg.TopN) {
		summary.Top = append(summary.Top, scoredRow{
			Rank:      rec.Rank,
			Index:     rec.Index,
			RiskScore: rec.RiskScore,
			Record:    tbl.Record(rec.Index),
		})
	}
	return writeOutput(cmd.OutOrStdout(), format, summary, summary.writeText)
}

func (s scoreSummary) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tROW\t"+idColumn+"\tRISK")
	for _, r := range s.Top {
		id := r.Record[idColumn]
		if id == "" {
			id = "-"
		}
		// Row numbers are 1-based data rows, matching error messages.
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.3f\n", r.Rank, r.Index+1, id, r.RiskScore)
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "write ranking")
	}
	fmt.Fprintf(w, "\n%d rows scored\n", s.Rows)
	return s.ROI.Format(w, s.printer)
}
