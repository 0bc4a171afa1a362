// Package preprocessing は HR テーブルを学習・推論用の数値行列に変換します。
//
// 学習時に Fit した語彙（カテゴリ値とコードの対応）はモデルと一緒に保存され、
// 推論時はそのまま再利用される。推論データから語彙を作り直すことはない。
package preprocessing

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/core/model"
	"github.com/YuminosukeSato/attrition/dataset"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
)

// TargetColumn は目的変数の列名
const TargetColumn = "Attrition"

// UnknownCategoryCode は UnknownCode ポリシーで未知のカテゴリに割り当てるコード
const UnknownCategoryCode = -1

// DefaultDroppedColumns は特徴量にしない識別子・定数列
var DefaultDroppedColumns = []string{"EmployeeCount", "EmployeeNumber", "Over18", "StandardHours"}

// UnknownPolicy は学習時に存在しなかったカテゴリ値の扱い
type UnknownPolicy int

const (
	// UnknownError はスキーマ不一致エラーを返す（デフォルト）
	UnknownError UnknownPolicy = iota
	// UnknownCode は UnknownCategoryCode にエンコードする
	UnknownCode
)

func (p UnknownPolicy) String() string {
	if p == UnknownCode {
		return "code"
	}
	return "error"
}

// ParseUnknownPolicy は設定値 "error" / "code" を UnknownPolicy に変換する
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch strings.ToLower(s) {
	case "", "error":
		return UnknownError, nil
	case "code":
		return UnknownCode, nil
	}
	return UnknownError, errors.NewValidationError("unknown_category", "must be error or code", s)
}

// Vocabulary はカテゴリ列ごとの学習時の値（昇順）です。値の位置がコードになる。
type Vocabulary map[string][]string

// Code は column の value のコードを返す。未知の値なら false。
func (v Vocabulary) Code(column, value string) (int, bool) {
	values := v[column]
	i := sort.SearchStrings(values, value)
	if i < len(values) && values[i] == value {
		return i, true
	}
	return UnknownCategoryCode, false
}

// AttritionPreprocessor は識別子列の削除、目的変数の 0/1 変換、
// カテゴリ列の整数コード化を行う。
//
// フィールドは gob で保存するため公開している。
type AttritionPreprocessor struct {
	State *model.StateManager

	// Features は学習時の特徴量列（テーブルの列順）
	Features []string
	// Numeric は Features と同じ順で、数値列なら true
	Numeric []bool
	Vocab   Vocabulary

	Target  string
	Dropped []string
	Policy  UnknownPolicy
}

// Option は AttritionPreprocessor の設定関数
type Option func(*AttritionPreprocessor)

// WithUnknownPolicy は未知カテゴリの扱いを設定する
func WithUnknownPolicy(p UnknownPolicy) Option {
	return func(a *AttritionPreprocessor) { a.Policy = p }
}

// WithDroppedColumns は削除する列を置き換える
func WithDroppedColumns(cols ...string) Option {
	return func(a *AttritionPreprocessor) { a.Dropped = append([]string(nil), cols...) }
}

// WithTargetColumn は目的変数の列名を設定する
func WithTargetColumn(name string) Option {
	return func(a *AttritionPreprocessor) { a.Target = name }
}

// NewAttritionPreprocessor は新しい AttritionPreprocessor を作成する
//
// 使用例:
//
//	pre := preprocessing.NewAttritionPreprocessor()
//	X, y, err := pre.FitTransform(table)
func NewAttritionPreprocessor(opts ...Option) *AttritionPreprocessor {
	a := &AttritionPreprocessor{
		State:   model.NewStateManager(),
		Target:  TargetColumn,
		Dropped: append([]string(nil), DefaultDroppedColumns...),
		Policy:  UnknownError,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fit は特徴量列、数値列かどうか、カテゴリ列の語彙を学習する
//
// 数値列は空でない全セルが数値として解釈できる列。それ以外はカテゴリ列で、
// 語彙は出現値の昇順（pandas の category コードと同じ順序）。
func (a *AttritionPreprocessor) Fit(t *dataset.Table) error {
	if t == nil || t.NumRows() == 0 {
		return errors.InStage(errors.StagePreprocess,
			errors.NewModelError("AttritionPreprocessor.Fit", "empty data", errors.ErrEmptyData))
	}

	dropped := make(map[string]struct{}, len(a.Dropped)+1)
	for _, c := range a.Dropped {
		dropped[c] = struct{}{}
	}
	dropped[a.Target] = struct{}{}

	features := make([]string, 0, t.NumCols())
	numeric := make([]bool, 0, t.NumCols())
	vocab := make(Vocabulary)

	for j, name := range t.Header {
		if _, skip := dropped[name]; skip {
			continue
		}
		isNum, nonEmpty := true, 0
		distinct := make(map[string]struct{})
		for _, row := range t.Rows {
			cell := row[j]
			distinct[cell] = struct{}{}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			nonEmpty++
			if _, ok := dataset.ParseNumber(cell); !ok {
				isNum = false
			}
		}
		isNum = isNum && nonEmpty > 0

		features = append(features, name)
		numeric = append(numeric, isNum)
		if !isNum {
			values := make([]string, 0, len(distinct))
			for v := range distinct {
				values = append(values, v)
			}
			sort.Strings(values)
			vocab[name] = values
		}
	}

	if len(features) == 0 {
		return errors.NewDataFormatError(errors.StagePreprocess, 0, "", "no feature columns left after dropping identifiers and target")
	}

	a.Features = features
	a.Numeric = numeric
	a.Vocab = vocab
	a.State.SetDimensions(len(features), t.NumRows())
	a.State.SetFitted()

	log.GetLoggerWithName("preprocessing").Debug("preprocessor fitted",
		log.OperationKey, log.OperationFit,
		log.FeaturesKey, len(features),
		"categorical", len(vocab),
		log.SamplesKey, t.NumRows(),
	)
	return nil
}

// Transform はテーブルを特徴量行列と目的変数ベクトルに変換する
//
// 戻り値:
//   - *mat.Dense: n_samples x len(Features)
//   - *mat.VecDense: 目的変数（0/1）。目的変数列がない場合は nil
//   - error: 列の欠落・未知カテゴリ（スキーマ不一致）、不正なセル（データ形式）
//
// 目的変数は Yes/No 以外を拒否する。推論では TransformFeatures を使う。
// 入力テーブルは変更しない。
func (a *AttritionPreprocessor) Transform(t *dataset.Table) (*mat.Dense, *mat.VecDense, error) {
	X, err := a.TransformFeatures(t)
	if err != nil {
		return nil, nil, err
	}

	targetIdx := t.ColumnIndex(a.Target)
	if targetIdx < 0 {
		return X, nil, nil
	}
	n := t.NumRows()
	y := mat.NewVecDense(n, nil)
	for i, row := range t.Rows {
		label, ok := EncodeTarget(row[targetIdx])
		if !ok {
			return nil, nil, errors.NewDataFormatError(errors.StagePreprocess, i+1, a.Target,
				fmt.Sprintf("unexpected target value %q (want Yes or No)", row[targetIdx]))
		}
		y.SetVec(i, label)
	}
	return X, y, nil
}

// TransformFeatures は特徴量行列だけを作る。目的変数列があっても値は見ない。
func (a *AttritionPreprocessor) TransformFeatures(t *dataset.Table) (*mat.Dense, error) {
	return a.TransformFeaturesWithPolicy(t, a.Policy)
}

// TransformFeaturesWithPolicy は未知カテゴリの扱いだけ policy に差し替えて
// TransformFeatures を行う。保存済みの Policy は変更しない。
func (a *AttritionPreprocessor) TransformFeaturesWithPolicy(t *dataset.Table, policy UnknownPolicy) (*mat.Dense, error) {
	if err := a.State.RequireFitted("AttritionPreprocessor", "Transform"); err != nil {
		return nil, err
	}
	if t == nil || t.NumRows() == 0 {
		return nil, errors.InStage(errors.StagePreprocess,
			errors.NewModelError("AttritionPreprocessor.Transform", "empty data", errors.ErrEmptyData))
	}

	cols := make([]int, len(a.Features))
	for k, name := range a.Features {
		j := t.ColumnIndex(name)
		if j < 0 {
			return nil, errors.NewSchemaMismatchError(errors.StagePreprocess, name,
				"missing feature column", nil, nil)
		}
		cols[k] = j
	}
	a.warnExtraColumns(t)

	X := mat.NewDense(t.NumRows(), len(a.Features), nil)
	for i, row := range t.Rows {
		for k, j := range cols {
			v, err := a.encodeCell(k, row[j], i+1, policy)
			if err != nil {
				return nil, err
			}
			X.Set(i, k, v)
		}
	}
	return X, nil
}

// FitTransform はFitとTransformを同時に実行する
func (a *AttritionPreprocessor) FitTransform(t *dataset.Table) (*mat.Dense, *mat.VecDense, error) {
	if err := a.Fit(t); err != nil {
		return nil, nil, err
	}
	return a.Transform(t)
}

func (a *AttritionPreprocessor) encodeCell(k int, cell string, row int, policy UnknownPolicy) (float64, error) {
	name := a.Features[k]
	if a.Numeric[k] {
		v, ok := dataset.ParseNumber(cell)
		if !ok {
			return 0, errors.NewDataFormatError(errors.StagePreprocess, row, name,
				fmt.Sprintf("expected a number, got %q", cell))
		}
		return v, nil
	}

	code, ok := a.Vocab.Code(name, cell)
	if ok {
		return float64(code), nil
	}
	if policy == UnknownCode {
		return UnknownCategoryCode, nil
	}
	return 0, errors.NewSchemaMismatchError(errors.StagePreprocess, name,
		fmt.Sprintf("unseen category %q at row %d", cell, row),
		fmt.Sprintf("one of %d known values", len(a.Vocab[name])), cell)
}

func (a *AttritionPreprocessor) warnExtraColumns(t *dataset.Table) {
	known := make(map[string]struct{}, len(a.Features)+len(a.Dropped)+1)
	for _, c := range a.Features {
		known[c] = struct{}{}
	}
	for _, c := range a.Dropped {
		known[c] = struct{}{}
	}
	known[a.Target] = struct{}{}

	var extra []string
	for _, h := range t.Header {
		if _, ok := known[h]; !ok {
			extra = append(extra, h)
		}
	}
	if len(extra) > 0 {
		log.GetLoggerWithName("preprocessing").Warn("ignoring columns unknown at fit time",
			log.ColumnKey, strings.Join(extra, ","))
	}
}

// EncodeTarget は "Yes" を 1、"No" を 0 に変換する
func EncodeTarget(v string) (float64, bool) {
	switch strings.TrimSpace(v) {
	case "Yes":
		return 1, true
	case "No":
		return 0, true
	}
	return 0, false
}

// FeatureNames は学習時の特徴量列名のコピーを返す
func (a *AttritionPreprocessor) FeatureNames() []string {
	return append([]string(nil), a.Features...)
}

// IsCategorical は name がカテゴリ列として学習されたかを返す
func (a *AttritionPreprocessor) IsCategorical(name string) bool {
	_, ok := a.Vocab[name]
	return ok
}

// Decode はカテゴリ列のコードを元の値に戻す。範囲外なら false。
func (a *AttritionPreprocessor) Decode(column string, code int) (string, bool) {
	values, ok := a.Vocab[column]
	if !ok || code < 0 || code >= len(values) {
		return "", false
	}
	return values[code], true
}
