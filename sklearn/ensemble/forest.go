// Package ensemble はバギングによる決定木のアンサンブルを提供します。
package ensemble

import (
	"bytes"
	"context"
	"encoding/gob"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/core/model"
	"github.com/YuminosukeSato/attrition/core/parallel"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
	"github.com/YuminosukeSato/attrition/sklearn/tree"
)

var (
	_ model.Classifier         = (*RandomForestClassifier)(nil)
	_ model.ParameterGetter    = (*RandomForestClassifier)(nil)
	_ model.ParameterSetter    = (*RandomForestClassifier)(nil)
	_ model.FeatureImportancer = (*RandomForestClassifier)(nil)
)

// RandomForestClassifier は scikit-learn 互換のランダムフォレスト分類器
//
// 各木はブートストラップサンプル（出現回数をサンプル重みとして渡す）と
// 分割ごとの特徴量サブサンプリングで学習する。木ごとのシードは学習開始前に
// マスターシードから順番に導出するため、NJobs に関係なく同じフォレストになる。
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "sqrt", "log2", "all" または整数
	bootstrap       bool
	randomState     uint64
	nJobs           int

	// Model parameters
	estimators_         []*tree.DecisionTreeClassifier
	classes_            []float64
	nFeatures_          int
	featureImportances_ []float64
}

// Option は RandomForestClassifier の設定関数
type Option func(*RandomForestClassifier)

// WithNEstimators は木の本数を設定する（デフォルト 200）
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion は分割基準を設定する（デフォルト "gini"）
func WithCriterion(criterion string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = criterion }
}

// WithMaxDepth は各木の最大深さを設定する（デフォルト 10、0 以下は無制限）
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures は分割ごとに調べる特徴量数を設定する ("sqrt", "log2", "all", "5" など)
func WithMaxFeatures(mf string) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = mf }
}

// WithBootstrap はブートストラップサンプリングの有無を設定する
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithRandomState は乱数シードを設定する（デフォルト 42）
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs は並列数を設定する。-1 は全 CPU
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// NewRandomForestClassifier は新しいランダムフォレスト分類器を作成する
//
// 使用例:
//
//	rf := ensemble.NewRandomForestClassifier(
//		ensemble.WithNEstimators(200),
//		ensemble.WithMaxDepth(10),
//		ensemble.WithRandomState(42),
//	)
//	err := rf.Fit(X, y)
//	proba, err := rf.PredictProba(XTest)
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     200,
		criterion:       "gini",
		maxDepth:        10,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		randomState:     42,
		nJobs:           -1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Fit はフォレストを学習する。y は n_samples x 1 のクラスラベル。
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext は ctx がキャンセルされた場合、未着手の木の学習を打ち切る
func (rf *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", rf.nEstimators)
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return errors.NewDimensionError("RandomForestClassifier.Fit", nSamples, yRows, 0)
	}
	if err := errors.CheckMatrix("RandomForestClassifier.Fit", X); err != nil {
		return err
	}
	maxFeatures, err := resolveMaxFeatures(rf.maxFeatures, nFeatures)
	if err != nil {
		return err
	}

	// 並列実行前に全ての木のシードを決める
	master := rand.New(rand.NewPCG(rf.randomState, rf.randomState))
	seeds := make([]uint64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	Xd := mat.DenseCopyOf(X)
	yd := mat.DenseCopyOf(y)
	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	workers := parallel.Workers(rf.nJobs, rf.nEstimators)

	logger := log.GetLoggerWithName("ensemble.forest")
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range estimators {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dt := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(rf.criterion),
				tree.WithMaxDepth(rf.maxDepth),
				tree.WithMinSamplesSplit(rf.minSamplesSplit),
				tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
				tree.WithMaxFeatures(maxFeatures),
				tree.WithRandomState(seeds[i]),
			)
			var weights []float64
			if rf.bootstrap {
				weights = bootstrapWeights(nSamples, seeds[i])
			}
			// 1本の木のpanicでプロセスを落とさない
			err := errors.SafeExecute("RandomForestClassifier.fitTree", func() error {
				return dt.FitWeighted(Xd, yd, weights)
			})
			if err != nil {
				return errors.Wrapf(err, "fit tree %d", i)
			}
			estimators[i] = dt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.estimators_ = estimators
	rf.classes_ = estimators[0].Classes()
	rf.nFeatures_ = nFeatures
	rf.featureImportances_ = meanImportances(estimators, nFeatures)
	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()

	logger.Info("random forest fitted",
		log.OperationKey, log.OperationFit,
		log.EstimatorsKey, rf.nEstimators,
		log.MaxDepthKey, rf.maxDepth,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.WorkersKey, workers,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// bootstrapWeights は n 回の復元抽出で各サンプルが選ばれた回数を返す
func bootstrapWeights(n int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, ^seed))
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[r.IntN(n)]++
	}
	return w
}

func resolveMaxFeatures(mf string, nFeatures int) (int, error) {
	var k int
	switch strings.ToLower(mf) {
	case "sqrt", "auto":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	case "", "all", "none":
		k = nFeatures
	default:
		v, err := cast.ToIntE(mf)
		if err != nil || v < 1 {
			return 0, errors.NewValidationError("max_features", "must be sqrt, log2, all or a positive integer", mf)
		}
		k = v
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k, nil
}

func meanImportances(estimators []*tree.DecisionTreeClassifier, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, est := range estimators {
		for j, v := range est.GetFeatureImportances() {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// PredictProba は全ての木のクラス確率の平均を返す（n_samples x n_classes）
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	n, d := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestClassifier.PredictProba", d); err != nil {
		return nil, err
	}

	nClasses := len(rf.classes_)
	out := mat.NewDense(n, nClasses, nil)
	scale := 1 / float64(len(rf.estimators_))

	parallel.ParallelizeN(n, rf.nJobs, func(start, end int) {
		x := make([]float64, d)
		acc := make([]float64, nClasses)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			for c := range acc {
				acc[c] = 0
			}
			for _, est := range rf.estimators_ {
				for c, p := range est.Leaf(x).Value {
					acc[c] += p
				}
			}
			for c := range acc {
				acc[c] *= scale
			}
			out.SetRow(i, acc)
		}
	})
	return out, nil
}

// PositiveProba はクラス 1 の確率を返す。二値分類でクラス 1 がない場合はエラー。
func (rf *RandomForestClassifier) PositiveProba(X mat.Matrix) ([]float64, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	col := sort.SearchFloat64s(rf.classes_, 1)
	if col >= len(rf.classes_) || rf.classes_[col] != 1 {
		return nil, errors.NewValueError("RandomForestClassifier.PositiveProba", "class 1 was not seen during fit")
	}
	return mat.Col(nil, col, proba), nil
}

// Predict は確率が最大のクラスラベルを返す（n_samples x 1）
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, nClasses := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < nClasses; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, rf.classes_[best])
	}
	return out, nil
}

// Score は正解率を返す
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := pred.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// Classes は学習時のクラスラベル（昇順）を返す
func (rf *RandomForestClassifier) Classes() []float64 {
	return append([]float64(nil), rf.classes_...)
}

// NFeatures は学習時の特徴量数を返す
func (rf *RandomForestClassifier) NFeatures() int { return rf.nFeatures_ }

// Estimators は学習済みの木を返す
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return rf.estimators_
}

// GetFeatureImportances は木の特徴量重要度の平均（合計 1）を返す
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), rf.featureImportances_...)
}

// IsFitted returns whether the forest has been fitted.
func (rf *RandomForestClassifier) IsFitted() bool { return rf.state.IsFitted() }

// GetParams returns the model hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams sets the model hyperparameters
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			rf.nEstimators, err = cast.ToIntE(value)
		case "criterion":
			rf.criterion, err = cast.ToStringE(value)
		case "max_depth":
			rf.maxDepth, err = cast.ToIntE(value)
		case "min_samples_split":
			rf.minSamplesSplit, err = cast.ToIntE(value)
		case "min_samples_leaf":
			rf.minSamplesLeaf, err = cast.ToIntE(value)
		case "max_features":
			rf.maxFeatures, err = cast.ToStringE(value)
		case "bootstrap":
			rf.bootstrap, err = cast.ToBoolE(value)
		case "random_state":
			rf.randomState, err = cast.ToUint64E(value)
		case "n_jobs":
			rf.nJobs, err = cast.ToIntE(value)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return errors.NewValidationError(key, err.Error(), value)
		}
	}
	return nil
}

type gobForest struct {
	Params             map[string]string
	Estimators         []*tree.DecisionTreeClassifier
	Classes            []float64
	NFeatures          int
	FeatureImportances []float64
	Fitted             bool
}

// GobEncode implements gob.GobEncoder.
func (rf *RandomForestClassifier) GobEncode() ([]byte, error) {
	params := make(map[string]string)
	for k, v := range rf.GetParams() {
		params[k] = cast.ToString(v)
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(gobForest{
		Params:             params,
		Estimators:         rf.estimators_,
		Classes:            rf.classes_,
		NFeatures:          rf.nFeatures_,
		FeatureImportances: rf.featureImportances_,
		Fitted:             rf.state.IsFitted(),
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (rf *RandomForestClassifier) GobDecode(data []byte) error {
	var g gobForest
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	restored := NewRandomForestClassifier()
	params := make(map[string]interface{}, len(g.Params))
	for k, v := range g.Params {
		params[k] = v
	}
	if err := restored.SetParams(params); err != nil {
		return err
	}
	restored.estimators_ = g.Estimators
	restored.classes_ = g.Classes
	restored.nFeatures_ = g.NFeatures
	restored.featureImportances_ = g.FeatureImportances
	if g.Fitted {
		if len(g.Estimators) == 0 {
			return errors.New("random forest: fitted forest without estimators")
		}
		restored.state.SetDimensions(g.NFeatures, 0)
		restored.state.SetFitted()
	}
	*rf = *restored
	return nil
}
