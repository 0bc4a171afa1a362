package model

import (
	"encoding/json"
	"os"
	"time"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// ModelCard は保存済みモデルの人間が読めるメタデータです。
// gob のアーティファクトと並べて JSON で保存し、ダッシュボードの /api/v1/model で返す。
type ModelCard struct {
	// ModelType はモデルの種類（RandomForestClassifier 等）
	ModelType string `json:"model_type"`

	// Version はアーティファクト形式のバージョン
	Version int `json:"version"`

	RunID     string    `json:"run_id"`
	TrainedAt time.Time `json:"trained_at"`

	// Features は学習時の特徴量名（列順）
	Features []string `json:"features"`

	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metrics はテストデータでの評価値
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// ToJSON はModelCardをJSON形式にシリアライズ
func (mc *ModelCard) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mc, "", "  ")
}

// Validate はModelCardの妥当性を検証
func (mc *ModelCard) Validate() error {
	if mc.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mc.ModelType)
	}
	if mc.Version <= 0 {
		return errors.NewValidationError("version", "must be positive", mc.Version)
	}
	if len(mc.Features) == 0 {
		return errors.NewValidationError("features", "must not be empty", mc.Features)
	}
	return nil
}

// WriteFile は ModelCard を path に書き込む
func (mc *ModelCard) WriteFile(path string) error {
	data, err := mc.ToJSON()
	if err != nil {
		return errors.NewArtifactError("save", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewArtifactError("save", path, err)
	}
	return nil
}
