// Package model は推定器が共有するインターフェース、学習状態の管理、永続化を提供します。
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対するクラスラベルを返す（n_samples x 1）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbabilityPredictor はクラス確率を返すモデルのインターフェース
type ProbabilityPredictor interface {
	// PredictProba は各クラスの確率を返す（n_samples x n_classes）。
	// 列は Classes() の順に並ぶ。
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Classifier は分類器の組み合わせインターフェース
type Classifier interface {
	Fitter
	Predictor
	ProbabilityPredictor

	// Classes は学習時に観測したクラスラベルを昇順で返す
	Classes() []float64
}

// Resampler は不均衡データのリサンプリングを行うインターフェース
type Resampler interface {
	// FitResample は X, y から新しい X, y を生成する。入力は変更しない。
	FitResample(X mat.Matrix, y mat.Vector) (*mat.Dense, *mat.VecDense, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// FeatureImportancer は特徴量重要度を持つモデルのインターフェース
type FeatureImportancer interface {
	GetFeatureImportances() []float64
}
