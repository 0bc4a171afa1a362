// Package metrics は分類モデルの評価指標を提供する
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// logLossEpsilon は log(0) を避けるためのクリッピング幅
const logLossEpsilon = 1e-15

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewModelError(op, fmt.Sprintf("label %v at index %d", v, i), errors.ErrNotBinary)
		}
	}
	return nil
}

// AUC は ROC 曲線下面積を計算する
//
// 同順位のスコアは平均順位で扱う（Mann-Whitney U 統計量）。
// 片方のクラスしか存在しない場合は定義できないため 0.5 を返し、警告を出す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b]) })

	// 平均順位
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg, rankSum float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// AUCMatrix は行列入力に対して AUC を計算する。複数列の場合は先頭列を使う。
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewModelError("AUCMatrix", "empty data", errors.ErrEmptyData)
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 || rPred == 0 || cPred == 0 {
		return 0, errors.NewModelError("AUCMatrix", "empty data", errors.ErrEmptyData)
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}
	return AUC(firstColumn(yTrue), firstColumn(yPred))
}

func firstColumn(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	return mat.NewVecDense(r, mat.Col(nil, 0, m))
}

// BinaryLogLoss は二値分類の交差エントロピーを計算する。予測値は [eps, 1-eps] にクリップする。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), logLossEpsilon, 1-logLossEpsilon)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// ClassificationError は誤分類率を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := accuracy("ClassificationError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	return accuracy("Accuracy", yTrue, yPred)
}

func accuracy(op string, yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair(op, yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ConfusionMatrix は混同行列。Matrix[i][j] は真のクラス Labels[i] を Labels[j] と予測した件数
type ConfusionMatrix struct {
	Labels []float64 `json:"labels" yaml:"labels"`
	Matrix [][]int   `json:"matrix" yaml:"matrix"`
}

// NewConfusionMatrix は yTrue と yPred に現れるラベル（昇順）で混同行列を作る
func NewConfusionMatrix(yTrue, yPred *mat.VecDense) (*ConfusionMatrix, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	seen := make(map[float64]struct{})
	for i := 0; i < n; i++ {
		seen[yTrue.AtVec(i)] = struct{}{}
		seen[yPred.AtVec(i)] = struct{}{}
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	pos := make(map[float64]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	m := make([][]int, len(labels))
	for i := range m {
		m[i] = make([]int, len(labels))
	}
	for i := 0; i < n; i++ {
		m[pos[yTrue.AtVec(i)]][pos[yPred.AtVec(i)]]++
	}
	return &ConfusionMatrix{Labels: labels, Matrix: m}, nil
}

// ClassMetrics はクラスごとの適合率・再現率・F1
type ClassMetrics struct {
	Label     float64 `json:"label" yaml:"label"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	Support   int     `json:"support" yaml:"support"`
}

// Report は scikit-learn の classification_report に相当する評価結果
type Report struct {
	Accuracy        float64          `json:"accuracy" yaml:"accuracy"`
	Classes         []ClassMetrics   `json:"classes" yaml:"classes"`
	MacroAvg        ClassMetrics     `json:"macro_avg" yaml:"macro_avg"`
	WeightedAvg     ClassMetrics     `json:"weighted_avg" yaml:"weighted_avg"`
	ConfusionMatrix *ConfusionMatrix `json:"confusion_matrix" yaml:"confusion_matrix"`
	Support         int              `json:"support" yaml:"support"`
}

// ClassificationReport はクラスごとの指標と平均を計算する
//
// 予測が 1 件もないクラスの precision は 0 とし、UndefinedMetricWarning を出す。
func ClassificationReport(yTrue, yPred *mat.VecDense) (*Report, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	k := len(cm.Labels)
	total, correct := 0, 0
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			total += cm.Matrix[i][j]
		}
		correct += cm.Matrix[i][i]
	}

	report := &Report{
		Accuracy:        float64(correct) / float64(total),
		Classes:         make([]ClassMetrics, k),
		ConfusionMatrix: cm,
		Support:         total,
	}
	for c := 0; c < k; c++ {
		tp := cm.Matrix[c][c]
		predicted, support := 0, 0
		for i := 0; i < k; i++ {
			predicted += cm.Matrix[i][c]
			support += cm.Matrix[c][i]
		}
		if predicted == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision",
				fmt.Sprintf("no predicted samples for label %v", cm.Labels[c]), 0))
		}
		p := errors.SafeDivide(float64(tp), float64(predicted))
		r := errors.SafeDivide(float64(tp), float64(support))
		report.Classes[c] = ClassMetrics{
			Label:     cm.Labels[c],
			Precision: p,
			Recall:    r,
			F1:        errors.SafeDivide(2*p*r, p+r),
			Support:   support,
		}
	}

	for _, m := range report.Classes {
		w := float64(m.Support) / float64(total)
		report.MacroAvg.Precision += m.Precision / float64(k)
		report.MacroAvg.Recall += m.Recall / float64(k)
		report.MacroAvg.F1 += m.F1 / float64(k)
		report.WeightedAvg.Precision += m.Precision * w
		report.WeightedAvg.Recall += m.Recall * w
		report.WeightedAvg.F1 += m.F1 * w
	}
	report.MacroAvg.Support = total
	report.WeightedAvg.Support = total
	return report, nil
}

// String は classification_report と同じ体裁のテキストを返す
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, m := range r.Classes {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", fmt.Sprint(m.Label), m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(&b, "\n%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.Support)
	fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", "macro avg", r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.MacroAvg.Support)
	fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", "weighted avg", r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.WeightedAvg.Support)
	return b.String()
}

// String は混同行列を表形式で返す
func (cm *ConfusionMatrix) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%8s", "")
	for _, l := range cm.Labels {
		fmt.Fprintf(&b, " %8s", "pred "+fmt.Sprint(l))
	}
	b.WriteString("\n")
	for i, row := range cm.Matrix {
		fmt.Fprintf(&b, "%8s", "true "+fmt.Sprint(cm.Labels[i]))
		for _, v := range row {
			fmt.Fprintf(&b, " %8d", v)
		}
		b.WriteString("\n")
	}
	return b.String()
}
