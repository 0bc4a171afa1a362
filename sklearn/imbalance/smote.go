// Package imbalance は不均衡データのオーバーサンプリングを提供します。
package imbalance

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/core/model"
	"github.com/YuminosukeSato/attrition/core/parallel"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
)

var (
	_ model.Resampler       = (*SMOTE)(nil)
	_ model.ParameterGetter = (*SMOTE)(nil)
)

// SMOTE は Synthetic Minority Over-sampling Technique の実装
//
// 少数クラスの各サンプルについて、少数クラス内の k 近傍（ユークリッド距離）との
// 線分上に合成サンプルを生成する。二値ラベル (0/1) のみ対応。
type SMOTE struct {
	State *model.StateManager

	kNeighbors    int
	randomState   uint64
	samplingRatio float64

	// 直近の FitResample の結果
	KUsed         int
	NSynthetic    int
	MinorityClass float64
}

// Option は SMOTE の設定関数
type Option func(*SMOTE)

// WithKNeighbors は近傍数を設定する（デフォルト 5）
func WithKNeighbors(k int) Option {
	return func(s *SMOTE) { s.kNeighbors = k }
}

// WithRandomState は乱数シードを設定する（デフォルト 42）
func WithRandomState(seed uint64) Option {
	return func(s *SMOTE) { s.randomState = seed }
}

// WithSamplingRatio はリサンプリング後の 少数/多数 の比率を設定する（デフォルト 1.0）
func WithSamplingRatio(r float64) Option {
	return func(s *SMOTE) { s.samplingRatio = r }
}

// NewSMOTE は新しいSMOTEを作成する
//
// 使用例:
//
//	sm := imbalance.NewSMOTE(imbalance.WithRandomState(42))
//	XRes, yRes, err := sm.FitResample(XTrain, yTrain)
func NewSMOTE(opts ...Option) *SMOTE {
	s := &SMOTE{
		State:         model.NewStateManager(),
		kNeighbors:    5,
		randomState:   42,
		samplingRatio: 1.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetParams returns the sampler's hyperparameters.
func (s *SMOTE) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"k_neighbors":    s.kNeighbors,
		"random_state":   s.randomState,
		"sampling_ratio": s.samplingRatio,
	}
}

// FitResample は少数クラスの合成サンプルを追加したデータを返す
//
// 戻り値の先頭 n 行は入力と同じ順序・同じ値で、その後に合成サンプルが続く。
// 入力は変更しない。
//
// エラー:
//   - ValidationError: k_neighbors < 1 または sampling_ratio が (0, 1] の外
//   - DegenerateDataError: 単一クラス、または少数クラスが 2 件未満
//   - ValueError: ラベルが 0/1 以外
func (s *SMOTE) FitResample(X mat.Matrix, y mat.Vector) (*mat.Dense, *mat.VecDense, error) {
	if s.kNeighbors < 1 {
		return nil, nil, errors.NewValidationError("k_neighbors", "must be positive", s.kNeighbors)
	}
	if !(s.samplingRatio > 0 && s.samplingRatio <= 1) {
		return nil, nil, errors.NewValidationError("sampling_ratio", "must be in (0, 1]", s.samplingRatio)
	}

	n, d := X.Dims()
	if n == 0 {
		return nil, nil, errors.NewModelError("SMOTE.FitResample", "empty data", errors.ErrEmptyData)
	}
	if y.Len() != n {
		return nil, nil, errors.NewDimensionError("SMOTE.FitResample", n, y.Len(), 0)
	}

	var byClass [2][]int
	for i := 0; i < n; i++ {
		switch y.AtVec(i) {
		case 0:
			byClass[0] = append(byClass[0], i)
		case 1:
			byClass[1] = append(byClass[1], i)
		default:
			return nil, nil, errors.NewValueError("SMOTE.FitResample",
				fmt.Sprintf("label %v at row %d is not binary", y.AtVec(i), i))
		}
	}
	if len(byClass[0]) == 0 || len(byClass[1]) == 0 {
		return nil, nil, errors.NewDegenerateDataError(errors.StageBalance, "training labels contain a single class")
	}

	minority := 1
	if len(byClass[1]) > len(byClass[0]) {
		minority = 0
	}
	minIdx := byClass[minority]
	nMin, nMaj := len(minIdx), len(byClass[1-minority])
	if nMin < 2 {
		return nil, nil, errors.NewDegenerateDataError(errors.StageBalance,
			fmt.Sprintf("minority class has %d sample, SMOTE needs at least 2", nMin))
	}

	k := s.kNeighbors
	if nMin-1 < k {
		errors.Warn(errors.NewResamplingWarning("SMOTE", "k_neighbors", k, nMin-1,
			fmt.Sprintf("only %d minority samples", nMin)))
		k = nMin - 1
	}

	nSynthetic := int(math.Round(s.samplingRatio*float64(nMaj))) - nMin
	if nSynthetic < 0 {
		nSynthetic = 0
	}

	out := mat.NewDense(n+nSynthetic, d, nil)
	labels := mat.NewVecDense(n+nSynthetic, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			out.Set(i, j, X.At(i, j))
		}
		labels.SetVec(i, y.AtVec(i))
	}

	if nSynthetic > 0 {
		points := make([][]float64, nMin)
		for m, idx := range minIdx {
			points[m] = mat.Row(nil, idx, out)
		}
		neighbors := kNearest(points, k)

		r := rand.New(rand.NewPCG(s.randomState, s.randomState))
		row := make([]float64, d)
		for i := 0; i < nSynthetic; i++ {
			base := r.IntN(nMin)
			nn := points[neighbors[base][r.IntN(k)]]
			gap := r.Float64()

			// row = x + gap * (nn - x)
			copy(row, nn)
			floats.Sub(row, points[base])
			floats.Scale(gap, row)
			floats.Add(row, points[base])

			out.SetRow(n+i, row)
			labels.SetVec(n+i, float64(minority))
		}
	}

	s.KUsed = k
	s.NSynthetic = nSynthetic
	s.MinorityClass = float64(minority)
	s.State.SetDimensions(d, n)
	s.State.SetFitted()

	log.GetLoggerWithName("imbalance.smote").Debug("resampled",
		log.OperationKey, log.OperationResample,
		log.KNeighborsKey, k,
		"synthetic", nSynthetic,
		log.SamplesKey, n+nSynthetic,
	)
	return out, labels, nil
}

// kNearest は各点について自分以外の k 近傍の添字を距離の昇順で返す。
// 距離が等しい場合は添字の小さい方を優先する。
func kNearest(points [][]float64, k int) [][]int {
	m := len(points)
	result := make([][]int, m)
	type cand struct {
		idx  int
		dist float64
	}
	parallel.ParallelizeWithThreshold(m, 256, func(start, end int) {
		cands := make([]cand, 0, m-1)
		for i := start; i < end; i++ {
			cands = cands[:0]
			for j := 0; j < m; j++ {
				if j == i {
					continue
				}
				cands = append(cands, cand{idx: j, dist: floats.Distance(points[i], points[j], 2)})
			}
			sort.SliceStable(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
			nn := make([]int, k)
			for t := 0; t < k; t++ {
				nn[t] = cands[t].idx
			}
			result[i] = nn
		}
	})
	return result
}
