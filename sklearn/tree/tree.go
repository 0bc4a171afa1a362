// Package tree は CART 決定木分類器を提供します。
//
// ランダムフォレストの基本学習器として使うため、サンプル重み（ブートストラップの
// 出現回数）と分割ごとの特徴量サブサンプリングに対応している。
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/core/model"
	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// Node は木のノード。Feature が -1 のノードは葉。
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Value はノードに到達した学習サンプルのクラス確率
	Value    []float64
	Impurity float64
	// WeightedSamples はノードに到達したサンプル重みの合計
	WeightedSamples float64
	Depth           int
}

// IsLeaf reports whether n is a leaf.
func (n *Node) IsLeaf() bool { return n.Feature < 0 }

var _ model.Classifier = (*DecisionTreeClassifier)(nil)

// DecisionTreeClassifier は scikit-learn 互換の決定木分類器
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 分割ごとに調べる特徴量数。<= 0 なら全特徴量
	randomState     uint64

	// Model parameters
	nodes               []Node
	classes_            []float64
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	depth_              int
	nLeaves_            int
}

// Option は DecisionTreeClassifier の設定関数
type Option func(*DecisionTreeClassifier)

// WithCriterion は分割基準 ("gini" / "entropy") を設定する
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth は木の最大深さを設定する。0 以下は無制限
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures は分割ごとに調べる特徴量数を設定する
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithRandomState は特徴量サブサンプリングの乱数シードを設定する
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier は新しい決定木分類器を作成する
//
// 使用例:
//
//	dt := tree.NewDecisionTreeClassifier(tree.WithMaxDepth(10))
//	err := dt.Fit(X, y)
//	proba, err := dt.PredictProba(X)
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit は決定木を学習する。y は n_samples x 1 のクラスラベル。
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted はサンプル重み付きで学習する。重み 0 のサンプルは分割に使われないが、
// クラス一覧には含まれる（フォレストの各木でクラス列を揃えるため）。
// sampleWeight が nil の場合は全て 1。
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	impurity, ok := impurityFor(dt.criterion)
	if !ok {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}

	classes, yIdx := encodeClasses(y, nSamples)
	b := &builder{
		dt:         dt,
		cols:       columns(X),
		y:          yIdx,
		nClasses:   len(classes),
		impurity:   impurity,
		rng:        rand.New(rand.NewPCG(dt.randomState, dt.randomState^0x9e3779b97f4a7c15)),
		importance: make([]float64, nFeatures),
		weight:     make([]float64, nSamples),
	}

	samples := make([]int, 0, nSamples)
	for i := 0; i < nSamples; i++ {
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		if w < 0 || math.IsNaN(w) {
			return errors.NewValidationError("sample_weight", "must be non-negative", w)
		}
		b.weight[i] = w
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "all sample weights are zero")
	}

	b.build(samples, 0)

	total := 0.0
	for _, v := range b.importance {
		total += v
	}
	if total > 0 {
		for j := range b.importance {
			b.importance[j] /= total
		}
	}

	dt.nodes = b.nodes
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = nFeatures
	dt.featureImportances_ = b.importance
	dt.depth_ = b.maxDepth
	dt.nLeaves_ = b.nLeaves
	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

func columns(X mat.Matrix) [][]float64 {
	_, d := X.Dims()
	cols := make([][]float64, d)
	for j := 0; j < d; j++ {
		cols[j] = mat.Col(nil, j, X)
	}
	return cols
}

// encodeClasses はラベルを昇順のクラス一覧と各サンプルのクラス番号に変換する
func encodeClasses(y mat.Matrix, n int) ([]float64, []int) {
	seen := make(map[float64]struct{})
	for i := 0; i < n; i++ {
		seen[y.At(i, 0)] = struct{}{}
	}
	classes := make([]float64, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Float64s(classes)

	idx := make([]int, n)
	for i := 0; i < n; i++ {
		idx[i] = sort.SearchFloat64s(classes, y.At(i, 0))
	}
	return classes, idx
}

// PredictProba は各クラスの確率を返す（n_samples x n_classes、列は Classes() 順）
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	n, d := X.Dims()
	if d != dt.nFeatures_ {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.PredictProba", dt.nFeatures_, d, 1)
	}
	out := mat.NewDense(n, dt.nClasses_, nil)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, dt.Leaf(row).Value)
	}
	return out, nil
}

// Predict はクラスラベルを返す（n_samples x 1）
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, dt.classes_[argmax(mat.Row(nil, i, proba))])
	}
	return out, nil
}

// Leaf は x が到達する葉を返す。x の長さは学習時の特徴量数と同じであること。
func (dt *DecisionTreeClassifier) Leaf(x []float64) *Node {
	node := &dt.nodes[0]
	for !node.IsLeaf() {
		if x[node.Feature] <= node.Threshold {
			node = &dt.nodes[node.Left]
		} else {
			node = &dt.nodes[node.Right]
		}
	}
	return node
}

// Score は正解率を返す
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
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
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes_...)
}

// GetFeatureImportances は不純度減少に基づく特徴量重要度（合計 1）を返す
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth は葉の最大深さを返す（根は 0）
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth_ }

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.nLeaves_ }

// NodeCount はノード数を返す
func (dt *DecisionTreeClassifier) NodeCount() int { return len(dt.nodes) }

// IsFitted returns whether the tree has been fitted.
func (dt *DecisionTreeClassifier) IsFitted() bool { return dt.state.IsFitted() }

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			dt.criterion, err = cast.ToStringE(value)
		case "max_depth":
			dt.maxDepth, err = cast.ToIntE(value)
		case "min_samples_split":
			dt.minSamplesSplit, err = cast.ToIntE(value)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = cast.ToIntE(value)
		case "max_features":
			dt.maxFeatures, err = cast.ToIntE(value)
		case "random_state":
			dt.randomState, err = cast.ToUint64E(value)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return errors.NewValidationError(key, err.Error(), value)
		}
	}
	return nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// gobTree は gob 用の公開表現
type gobTree struct {
	Criterion          string
	MaxDepth           int
	MinSamplesSplit    int
	MinSamplesLeaf     int
	MaxFeatures        int
	RandomState        uint64
	Nodes              []Node
	Classes            []float64
	NFeatures          int
	FeatureImportances []float64
	Depth              int
	NLeaves            int
	Fitted             bool
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(gobTree{
		Criterion:          dt.criterion,
		MaxDepth:           dt.maxDepth,
		MinSamplesSplit:    dt.minSamplesSplit,
		MinSamplesLeaf:     dt.minSamplesLeaf,
		MaxFeatures:        dt.maxFeatures,
		RandomState:        dt.randomState,
		Nodes:              dt.nodes,
		Classes:            dt.classes_,
		NFeatures:          dt.nFeatures_,
		FeatureImportances: dt.featureImportances_,
		Depth:              dt.depth_,
		NLeaves:            dt.nLeaves_,
		Fitted:             dt.state.IsFitted(),
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var g gobTree
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	if g.Fitted && len(g.Nodes) == 0 {
		return fmt.Errorf("decision tree: fitted tree without nodes")
	}
	*dt = DecisionTreeClassifier{
		state:               model.NewStateManager(),
		criterion:           g.Criterion,
		maxDepth:            g.MaxDepth,
		minSamplesSplit:     g.MinSamplesSplit,
		minSamplesLeaf:      g.MinSamplesLeaf,
		maxFeatures:         g.MaxFeatures,
		randomState:         g.RandomState,
		nodes:               g.Nodes,
		classes_:            g.Classes,
		nClasses_:           len(g.Classes),
		nFeatures_:          g.NFeatures,
		featureImportances_: g.FeatureImportances,
		depth_:              g.Depth,
		nLeaves_:            g.NLeaves,
	}
	if g.Fitted {
		dt.state.SetDimensions(g.NFeatures, 0)
		dt.state.SetFitted()
	}
	return nil
}
