package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/attrition/internal/pipeline"
)

// trainSummary is the machine readable result of `attrition train`.
type trainSummary struct {
	RunID               string               `json:"run_id" yaml:"run_id"`
	ArtifactPath        string               `json:"artifact_path" yaml:"artifact_path"`
	CardPath            string               `json:"card_path,omitempty" yaml:"card_path,omitempty"`
	Features            []string             `json:"features" yaml:"features"`
	TrainCounts         map[int]int          `json:"train_counts" yaml:"train_counts"`
	BalancedTrainCounts map[int]int          `json:"balanced_train_counts" yaml:"balanced_train_counts"`
	TestCounts          map[int]int          `json:"test_counts" yaml:"test_counts"`
	Evaluation          *pipeline.Evaluation `json:"evaluation" yaml:"evaluation"`
}

func newTrainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the attrition model and write the artifact",
		Long: `Loads the HR table, encodes it, splits 80/20 stratified, balances the
training split with SMOTE, fits the random forest, evaluates it on the
untouched test split and writes a single gob artifact.

Examples:
  attrition train --data WA_Fn-UseC_-HR-Employee-Attrition.csv
  attrition train --data hr.xlsx --model models/rf.gob --output json --card`,
		Args: cobra.NoArgs,
		RunE: a.runTrain,
	}

	f := cmd.Flags()
	f.String("data", "", "training table, CSV or XLSX")
	f.String("encoding", "", "CSV charset, e.g. shift_jis (default UTF-8)")
	f.String("model", "", "artifact path to write")
	f.Float64("test-size", 0, "test fraction (default 0.2)")
	f.Uint64("seed", 0, "random seed for split, SMOTE and forest (default 42)")
	f.Int("n-estimators", 0, "number of trees (default 200)")
	f.Int("max-depth", 0, "maximum tree depth (default 10)")
	f.String("max-features", "", "features per split: sqrt, log2, all or a number")
	f.Int("n-jobs", 0, "parallel workers, -1 for all CPUs")
	f.Int("k-neighbors", 0, "SMOTE neighbours (default 5)")
	f.String("unknown-category", "", "unseen categories at scoring, stored in the model: error or code")
	f.String("output", outputText, "output format: text, json or yaml")
	f.Bool("card", false, "also write a JSON model card next to the artifact")
	return cmd
}

func (a *app) runTrain(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")
	writeCard, _ := cmd.Flags().GetBool("card")

	res, err := pipeline.NewTrainer(a.cfg).Run(cmd.Context())
	if err != nil {
		return err
	}

	summary := trainSummary{
		RunID:               res.RunID,
		ArtifactPath:        res.ArtifactPath,
		Features:            res.Artifact.FeatureNames(),
		TrainCounts:         res.TrainCounts,
		BalancedTrainCounts: res.BalancedTrainCounts,
		TestCounts:          res.TestCounts,
		Evaluation:          res.Evaluation,
	}
	if writeCard {
		summary.CardPath = cardPath(res.ArtifactPath)
		if err := res.Artifact.Card().WriteFile(summary.CardPath); err != nil {
			return err
		}
	}

	return writeOutput(cmd.OutOrStdout(), format, summary, summary.writeText)
}

// cardPath turns models/rf.gob into models/rf.card.json.
func cardPath(artifact string) string {
	return strings.TrimSuffix(artifact, filepath.Ext(artifact)) + ".card.json"
}

func (s trainSummary) writeText(w io.Writer) error {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	fmt.Fprintf(w, "artifact: %s\n", s.ArtifactPath)
	if s.CardPath != "" {
		fmt.Fprintf(w, "model card: %s\n", s.CardPath)
	}
	fmt.Fprintf(w, "train class counts: stay=%d leave=%d\n", s.TrainCounts[0], s.TrainCounts[1])
	fmt.Fprintf(w, "after SMOTE:        stay=%d leave=%d\n", s.BalancedTrainCounts[0], s.BalancedTrainCounts[1])
	fmt.Fprintf(w, "test class counts:  stay=%d leave=%d\n\n", s.TestCounts[0], s.TestCounts[1])

	e := s.Evaluation
	fmt.Fprintf(w, "accuracy: %.4f\n", e.Accuracy)
	fmt.Fprintf(w, "ROC-AUC:  %.4f\n", e.AUC)
	fmt.Fprintf(w, "log loss: %.4f\n\n", e.LogLoss)
	if e.Report != nil {
		_, err := fmt.Fprintln(w, e.Report.String())
		return err
	}
	return nil
}
