// Package model_selection はデータ分割を提供します。
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// Split は TrainTestSplit の結果
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.VecDense

	// 元の行番号（昇順）
	TrainIndices, TestIndices []int
}

// TrainTestSplit はデータを学習用とテスト用に分割する
//
// パラメータ:
//   - X: 特徴量 (n_samples x n_features)
//   - y: ラベル (n_samples)
//   - testSize: テストデータの割合 (0, 1)
//   - seed: 乱数シード
//   - stratify: true の場合、クラスごとに同じ割合でテストデータを取る
//
// stratify の場合、各クラスから round(testSize*n_class) 行をテストに回す。
// 2 行以上あるクラスは学習・テストの両方に最低 1 行ずつ入る。
func TrainTestSplit(X mat.Matrix, y mat.Vector, testSize float64, seed uint64, stratify bool) (*Split, error) {
	n, _ := X.Dims()
	if y.Len() != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, y.Len(), 0)
	}
	train, test, err := SplitIndices(y, testSize, seed, stratify)
	if err != nil {
		return nil, err
	}

	s := &Split{TrainIndices: train, TestIndices: test}
	s.XTrain, s.YTrain = Take(X, y, train)
	s.XTest, s.YTest = Take(X, y, test)
	return s, nil
}

// SplitIndices は TrainTestSplit の行番号だけを返す
func SplitIndices(y mat.Vector, testSize float64, seed uint64, stratify bool) (train, test []int, err error) {
	n := y.Len()
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	if n < 2 {
		return nil, nil, errors.NewValueError("TrainTestSplit", fmt.Sprintf("need at least 2 samples, got %d", n))
	}

	r := rand.New(rand.NewPCG(seed, seed))

	if !stratify {
		perm := r.Perm(n)
		nTest := clampTest(int(math.Round(testSize*float64(n))), n)
		test = append(test, perm[:nTest]...)
		train = append(train, perm[nTest:]...)
	} else {
		// クラスごとに行番号をまとめる。map の順序に依存しないようラベル順に処理する
		byClass := make(map[float64][]int)
		for i := 0; i < n; i++ {
			label := y.AtVec(i)
			byClass[label] = append(byClass[label], i)
		}
		labels := make([]float64, 0, len(byClass))
		for label := range byClass {
			labels = append(labels, label)
		}
		sort.Float64s(labels)

		for _, label := range labels {
			indices := byClass[label]
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
			nTest := clampTest(int(math.Round(testSize*float64(len(indices)))), len(indices))
			test = append(test, indices[:nTest]...)
			train = append(train, indices[nTest:]...)
		}
	}

	if len(train) == 0 || len(test) == 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("test_size=%g leaves an empty split for %d samples", testSize, n))
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

func clampTest(nTest, nClass int) int {
	if nClass < 2 {
		return 0
	}
	if nTest < 1 {
		nTest = 1
	}
	if nTest > nClass-1 {
		nTest = nClass - 1
	}
	return nTest
}

// Take は指定した行を新しい行列・ベクトルにコピーする
func Take(X mat.Matrix, y mat.Vector, indices []int) (*mat.Dense, *mat.VecDense) {
	_, cols := X.Dims()
	xs := mat.NewDense(len(indices), cols, nil)
	ys := mat.NewVecDense(len(indices), nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			xs.Set(i, j, X.At(idx, j))
		}
		ys.SetVec(i, y.AtVec(idx))
	}
	return xs, ys
}

// ClassCounts はラベルごとの件数を返す
func ClassCounts(y mat.Vector) map[int]int {
	counts := make(map[int]int)
	for i := 0; i < y.Len(); i++ {
		counts[int(y.AtVec(i))]++
	}
	return counts
}
