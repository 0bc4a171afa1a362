// Package explain computes model-agnostic SHAP attributions.
//
// The explainer only sees a ProbabilityFunc, so any classifier that can map
// encoded feature rows to per-class probabilities can be explained.
package explain

import (
	"context"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
)

// ProbabilityFunc maps encoded feature rows (n x d) to per-class probabilities
// (n x classes). It must be pure: the same rows always give the same output.
type ProbabilityFunc func(X mat.Matrix) (mat.Matrix, error)

// PermutationExplainer estimates Shapley values by averaging marginal
// contributions over random feature orderings. Each ordering is also walked
// in reverse (antithetic sampling), and absent features take their values
// from a background sample.
type PermutationExplainer struct {
	fn            ProbabilityFunc
	background    *mat.Dense
	class         int
	nPermutations int
	randomState   uint64
}

// Option configures a PermutationExplainer.
type Option func(*PermutationExplainer)

// WithClass selects the probability column to explain (default 1).
func WithClass(c int) Option {
	return func(e *PermutationExplainer) { e.class = c }
}

// WithPermutations sets the number of antithetic permutation pairs per row (default 3).
func WithPermutations(n int) Option {
	return func(e *PermutationExplainer) { e.nPermutations = n }
}

// WithRandomState sets the permutation seed (default 42).
func WithRandomState(seed uint64) Option {
	return func(e *PermutationExplainer) { e.randomState = seed }
}

// NewPermutationExplainer returns an explainer for fn using background rows
// to stand in for masked features.
func NewPermutationExplainer(fn ProbabilityFunc, background mat.Matrix, opts ...Option) (*PermutationExplainer, error) {
	if fn == nil {
		return nil, errors.NewValidationError("fn", "must not be nil", nil)
	}
	if background == nil {
		return nil, errors.NewValidationError("background", "must not be empty", nil)
	}
	if r, c := background.Dims(); r == 0 || c == 0 {
		return nil, errors.NewValidationError("background", "must not be empty", r)
	}
	e := &PermutationExplainer{
		fn:            fn,
		background:    mat.DenseCopyOf(background),
		class:         1,
		nPermutations: 3,
		randomState:   42,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.nPermutations < 1 {
		return nil, errors.NewValidationError("n_permutations", "must be positive", e.nPermutations)
	}
	if e.class < 0 {
		return nil, errors.NewValidationError("class", "must not be negative", e.class)
	}
	return e, nil
}

// Explanation holds SHAP values for a set of rows.
type Explanation struct {
	Features  []string
	Values    *mat.Dense // n x d attributions
	Data      *mat.Dense // the explained rows
	BaseValue float64    // expected probability over the background
}

// FeatureImportance is a feature's mean absolute SHAP value.
type FeatureImportance struct {
	Feature     string  `json:"feature" yaml:"feature"`
	MeanAbsSHAP float64 `json:"mean_abs_shap" yaml:"mean_abs_shap"`
}

// Explain attributes fn's class probability for every row of X. features names
// the columns of X. The attributions of a row sum to f(x) - BaseValue.
func (e *PermutationExplainer) Explain(ctx context.Context, X mat.Matrix, features []string) (*Explanation, error) {
	n, d := X.Dims()
	_, bd := e.background.Dims()
	if d != bd {
		return nil, errors.NewDimensionError("PermutationExplainer.Explain", bd, d, 1)
	}
	if len(features) != d {
		return nil, errors.NewDimensionError("PermutationExplainer.Explain", d, len(features), 1)
	}

	base, err := e.meanProba(e.background)
	if err != nil {
		return nil, errors.InStage(errors.StageExplain, err)
	}

	logger := log.GetLoggerWithName("explain")
	values := mat.NewDense(n, d, nil)
	r := rand.New(rand.NewPCG(e.randomState, e.randomState))
	x := make([]float64, d)
	phi := make([]float64, d)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mat.Row(x, i, X)
		for j := range phi {
			phi[j] = 0
		}
		for p := 0; p < e.nPermutations; p++ {
			order := r.Perm(d)
			if err := e.walk(x, order, base, phi); err != nil {
				return nil, errors.InStage(errors.StageExplain, err)
			}
			reverse(order)
			if err := e.walk(x, order, base, phi); err != nil {
				return nil, errors.InStage(errors.StageExplain, err)
			}
		}
		scale := 1 / float64(2*e.nPermutations)
		for j := range phi {
			values.Set(i, j, phi[j]*scale)
		}
		if (i+1)%50 == 0 {
			logger.Debug("explained rows", log.SamplesKey, i+1)
		}
	}

	return &Explanation{
		Features:  append([]string(nil), features...),
		Values:    values,
		Data:      mat.DenseCopyOf(X),
		BaseValue: base,
	}, nil
}

// walk switches features on one at a time in order and adds each marginal
// change of the mean class probability to phi. All d steps are evaluated in
// one call to fn.
func (e *PermutationExplainer) walk(x []float64, order []int, base float64, phi []float64) error {
	m, d := e.background.Dims()
	batch := mat.NewDense(m*d, d, nil)
	z := mat.DenseCopyOf(e.background)
	for step, feature := range order {
		for b := 0; b < m; b++ {
			z.Set(b, feature, x[feature])
		}
		batch.Slice(step*m, (step+1)*m, 0, d).(*mat.Dense).Copy(z)
	}

	proba, err := e.fn(batch)
	if err != nil {
		return err
	}
	if _, c := proba.Dims(); e.class >= c {
		return errors.NewValueError("PermutationExplainer", "class index out of range")
	}

	prev := base
	for step, feature := range order {
		sum := 0.0
		for b := 0; b < m; b++ {
			sum += proba.At(step*m+b, e.class)
		}
		cur := sum / float64(m)
		phi[feature] += cur - prev
		prev = cur
	}
	return nil
}

func (e *PermutationExplainer) meanProba(X *mat.Dense) (float64, error) {
	proba, err := e.fn(X)
	if err != nil {
		return 0, err
	}
	r, c := proba.Dims()
	if e.class >= c {
		return 0, errors.NewValueError("PermutationExplainer", "class index out of range")
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		sum += proba.At(i, e.class)
	}
	return sum / float64(r), nil
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// MeanAbs returns the mean absolute SHAP value of every feature, in column order.
func (ex *Explanation) MeanAbs() []float64 {
	n, d := ex.Values.Dims()
	out := make([]float64, d)
	if n == 0 {
		return out
	}
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			v := ex.Values.At(i, j)
			if v < 0 {
				v = -v
			}
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(n)
	}
	return out
}

// Ranking orders features by mean absolute SHAP value, largest first.
func (ex *Explanation) Ranking() []FeatureImportance {
	meanAbs := ex.MeanAbs()
	out := make([]FeatureImportance, len(meanAbs))
	for j, v := range meanAbs {
		out[j] = FeatureImportance{Feature: ex.Features[j], MeanAbsSHAP: v}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].MeanAbsSHAP > out[b].MeanAbsSHAP })
	return out
}

// Sample draws up to k rows of X without replacement, keeping their original order.
func Sample(X mat.Matrix, k int, seed uint64) *mat.Dense {
	n, d := X.Dims()
	if k >= n || k <= 0 {
		return mat.DenseCopyOf(X)
	}
	r := rand.New(rand.NewPCG(seed, seed))
	idx := r.Perm(n)[:k]
	sort.Ints(idx)
	out := mat.NewDense(k, d, nil)
	for i, row := range idx {
		out.SetRow(i, mat.Row(nil, row, X))
	}
	return out
}
