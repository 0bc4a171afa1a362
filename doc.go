// Package attrition predicts which employees are likely to leave and
// estimates what a retention programme aimed at them would save.
//
// The pipeline trains a random forest on an HR table. Categorical columns are
// label encoded with a vocabulary that is persisted next to the model, the
// data is split 80/20 stratified on the target, and the minority class of the
// training split is oversampled with SMOTE. The test split is never touched
// by resampling. Training writes one gob artifact holding both the encoder
// and the forest, so scoring encodes exactly as training did.
//
// # Installation
//
//	go install github.com/YuminosukeSato/attrition/cmd/attrition@latest
//
// # Quick Start
//
//	attrition eda   --data WA_Fn-UseC_-HR-Employee-Attrition.csv
//	attrition train --data WA_Fn-UseC_-HR-Employee-Attrition.csv --model models/rf.gob
//	attrition score --input employees.csv --model models/rf.gob --avg-cost 50000 --retention-rate 20
//	attrition explain --data WA_Fn-UseC_-HR-Employee-Attrition.csv --sample 300
//	attrition serve --model models/rf.gob --addr :8501
//
// Employees whose risk score is strictly above 0.7 count as high risk. The
// projected saving is high-risk count × average cost × retention rate / 100.
//
// # Packages
//
//   - dataset: CSV (any charset) and XLSX tables
//   - preprocessing: target and categorical encoding with a persisted vocabulary
//   - sklearn/model_selection: stratified train/test split
//   - sklearn/imbalance: SMOTE oversampling
//   - sklearn/tree, sklearn/ensemble: CART trees and the random forest
//   - sklearn/drift: ADWIN drift detection over the scored risk stream
//   - metrics: ROC-AUC, log loss and the classification report
//   - explain: permutation SHAP and its plots
//   - eda: dataset summary and distribution plots
//   - internal/pipeline: Trainer, Artifact and Scorer
//   - internal/report: ROI summary
//   - internal/server: dashboard HTTP API
//   - internal/config: koanf configuration (defaults, YAML, ATTRITION_* env)
//   - core/model, core/parallel: fitted state, persistence, worker pools
//   - pkg/errors, pkg/log: structured errors and logging
//
// # Library use
//
//	res, err := pipeline.NewTrainer(config.New()).Run(ctx)
//	if err != nil {
//	    log.Fatalf("training failed in stage %s: %v", errors.StageOf(err), err)
//	}
//	scorer, _ := pipeline.NewScorer(res.Artifact)
//	ranked, err := scorer.Score(table)
//
// See examples/ for complete programs.
package attrition
