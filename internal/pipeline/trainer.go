// Package pipeline wires the attrition stages together: training produces an
// Artifact, scoring consumes one.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/dataset"
	"github.com/YuminosukeSato/attrition/internal/config"
	"github.com/YuminosukeSato/attrition/metrics"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
	"github.com/YuminosukeSato/attrition/preprocessing"
	"github.com/YuminosukeSato/attrition/sklearn/ensemble"
	"github.com/YuminosukeSato/attrition/sklearn/imbalance"
	"github.com/YuminosukeSato/attrition/sklearn/model_selection"
)

// TrainResult is everything a training run produced.
type TrainResult struct {
	RunID        string
	Artifact     *Artifact
	ArtifactPath string // empty when Train was called directly
	Evaluation   *Evaluation

	// Class counts of the train split before and after SMOTE, and of the test split.
	TrainCounts         map[int]int
	BalancedTrainCounts map[int]int
	TestCounts          map[int]int

	// The untouched test split, in the encoded feature space.
	TestX       *mat.Dense
	TestY       *mat.VecDense
	TestIndices []int
}

// Trainer runs Load → Preprocess → Split → Balance → Fit → Evaluate → Persist.
type Trainer struct {
	cfg    *config.Config
	logger log.Logger
	now    func() time.Time
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithLogger replaces the trainer's logger.
func WithLogger(l log.Logger) TrainerOption {
	return func(t *Trainer) { t.logger = l }
}

// WithClock overrides time.Now for the artifact timestamp.
func WithClock(now func() time.Time) TrainerOption {
	return func(t *Trainer) { t.now = now }
}

// NewTrainer returns a Trainer for cfg. cfg is not copied; do not mutate it during a run.
func NewTrainer(cfg *config.Config, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		cfg:    cfg,
		logger: log.GetLoggerWithName("pipeline.trainer"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run loads cfg.DataPath, trains and persists the artifact to cfg.ModelPath.
// Nothing is written when any stage fails.
func (t *Trainer) Run(ctx context.Context) (*TrainResult, error) {
	tbl, err := LoadTable(t.cfg.DataPath, t.cfg.DataEncoding)
	if err != nil {
		return nil, errors.InStage(errors.StageLoad, err)
	}
	t.logger.Info("training data loaded",
		log.StageKey, log.StageLoad,
		log.SourceKey, t.cfg.DataPath,
		log.SamplesKey, tbl.NumRows(),
	)

	res, err := t.Train(ctx, tbl)
	if err != nil {
		return nil, err
	}

	if err := res.Artifact.Save(t.cfg.ModelPath); err != nil {
		return nil, errors.InStage(errors.StagePersist, err)
	}
	res.ArtifactPath = t.cfg.ModelPath
	t.logger.Info("artifact saved",
		log.StageKey, log.StagePersist,
		log.RunIDKey, res.RunID,
		log.ArtifactKey, t.cfg.ModelPath,
	)
	return res, nil
}

// Train runs every stage except Load and Persist on an in-memory table.
func (t *Trainer) Train(ctx context.Context, tbl *dataset.Table) (*TrainResult, error) {
	cfg := t.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger := t.logger.With(log.RunIDKey, runID)
	start := time.Now()

	// Preprocess
	policy, err := preprocessing.ParseUnknownPolicy(cfg.UnknownCategory)
	if err != nil {
		return nil, errors.InStage(errors.StagePreprocess, err)
	}
	pre := preprocessing.NewAttritionPreprocessor(preprocessing.WithUnknownPolicy(policy))
	X, y, err := pre.FitTransform(tbl)
	if err != nil {
		return nil, errors.InStage(errors.StagePreprocess, err)
	}
	if y == nil {
		return nil, errors.InStage(errors.StagePreprocess, errors.NewSchemaMismatchError(
			errors.StagePreprocess, preprocessing.TargetColumn, "training table has no target column", nil, nil))
	}
	_, nFeatures := X.Dims()
	logger.Info("features encoded",
		log.StageKey, log.StagePreprocess,
		log.SamplesKey, tbl.NumRows(),
		log.FeaturesKey, nFeatures,
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Split
	split, err := model_selection.TrainTestSplit(X, y, cfg.TestSize, cfg.Seed, true)
	if err != nil {
		return nil, errors.InStage(errors.StageSplit, err)
	}
	trainCounts := model_selection.ClassCounts(split.YTrain)
	testCounts := model_selection.ClassCounts(split.YTest)
	logger.Info("class counts before SMOTE",
		log.StageKey, log.StageSplit,
		log.PositiveKey, trainCounts[1],
		log.NegativeKey, trainCounts[0],
		log.TestSizeKey, len(split.TestIndices),
	)

	// Balance (train split only)
	smote := imbalance.NewSMOTE(
		imbalance.WithKNeighbors(cfg.KNeighbors),
		imbalance.WithRandomState(cfg.Seed),
		imbalance.WithSamplingRatio(cfg.SamplingRatio),
	)
	XBal, yBal, err := smote.FitResample(split.XTrain, split.YTrain)
	if err != nil {
		return nil, errors.InStage(errors.StageBalance, err)
	}
	balancedCounts := model_selection.ClassCounts(yBal)
	logger.Info("class counts after SMOTE",
		log.StageKey, log.StageBalance,
		log.PositiveKey, balancedCounts[1],
		log.NegativeKey, balancedCounts[0],
		log.KNeighborsKey, smote.KUsed,
	)

	// Fit
	forest := ensemble.NewRandomForestClassifier(
		ensemble.WithNEstimators(cfg.NEstimators),
		ensemble.WithMaxDepth(cfg.MaxDepth),
		ensemble.WithMaxFeatures(cfg.MaxFeatures),
		ensemble.WithMinSamplesSplit(cfg.MinSamplesSplit),
		ensemble.WithMinSamplesLeaf(cfg.MinSamplesLeaf),
		ensemble.WithCriterion(cfg.Criterion),
		ensemble.WithRandomState(cfg.Seed),
		ensemble.WithNJobs(cfg.NJobs),
	)
	yCol := mat.NewDense(yBal.Len(), 1, yBal.RawVector().Data)
	if err := forest.FitContext(ctx, XBal, yCol); err != nil {
		return nil, errors.InStage(errors.StageFit, err)
	}

	// Evaluate
	eval, err := Evaluate(forest, split.XTest, split.YTest)
	if err != nil {
		return nil, errors.InStage(errors.StageEvaluate, err)
	}
	logger.Info("model evaluated",
		log.StageKey, log.StageEvaluate,
		log.AccuracyKey, eval.Accuracy,
		log.AUCKey, eval.AUC,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	artifact := &Artifact{
		Version:      FormatVersion,
		RunID:        runID,
		CreatedAt:    t.now().UTC(),
		Preprocessor: pre,
		Model:        forest,
		Config:       *cfg,
		Evaluation:   eval,
	}
	return &TrainResult{
		RunID:               runID,
		Artifact:            artifact,
		Evaluation:          eval,
		TrainCounts:         trainCounts,
		BalancedTrainCounts: balancedCounts,
		TestCounts:          testCounts,
		TestX:               split.XTest,
		TestY:               split.YTest,
		TestIndices:         split.TestIndices,
	}, nil
}

// Evaluate scores a fitted forest on a held-out split.
func Evaluate(forest *ensemble.RandomForestClassifier, X *mat.Dense, y *mat.VecDense) (*Evaluation, error) {
	pred, err := forest.Predict(X)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	yPred := mat.NewVecDense(n, mat.Col(nil, 0, pred))

	report, err := metrics.ClassificationReport(y, yPred)
	if err != nil {
		return nil, err
	}

	scores, err := forest.PositiveProba(X)
	if err != nil {
		return nil, err
	}
	proba := mat.NewVecDense(n, scores)
	auc, err := metrics.AUC(y, proba)
	if err != nil {
		return nil, err
	}
	logLoss, err := metrics.BinaryLogLoss(y, proba)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Accuracy:    report.Accuracy,
		AUC:         auc,
		LogLoss:     logLoss,
		TestSamples: n,
		Report:      report,
	}, nil
}

// LoadTable reads CSV (optionally in charset) or XLSX by extension.
func LoadTable(path, charset string) (*dataset.Table, error) {
	if charset == "" || dataset.IsXLSX(path) {
		return dataset.Load(path)
	}
	return dataset.ReadCSVFileCharset(path, charset)
}
