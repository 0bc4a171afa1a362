// Package config defines the pipeline configuration and how it is layered.
//
// Every stage receives the values it needs from Config explicitly; nothing
// reads the environment after Load returns.
package config

import (
	"strings"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// Config contains process configuration.
type Config struct {
	// DataPath is the training table (CSV or XLSX).
	DataPath string `koanf:"data_path" json:"data_path" yaml:"data_path"`

	// DataEncoding is the charset of CSV input, e.g. "shift_jis". Empty means UTF-8.
	DataEncoding string `koanf:"data_encoding" json:"data_encoding,omitempty" yaml:"data_encoding,omitempty"`

	// ModelPath is where the artifact is written by train and read by score/serve.
	ModelPath string `koanf:"model_path" json:"model_path" yaml:"model_path"`

	// Split
	TestSize float64 `koanf:"test_size" json:"test_size" yaml:"test_size"`
	Seed     uint64  `koanf:"seed" json:"seed" yaml:"seed"`

	// SMOTE
	KNeighbors    int     `koanf:"k_neighbors" json:"k_neighbors" yaml:"k_neighbors"`
	SamplingRatio float64 `koanf:"sampling_ratio" json:"sampling_ratio" yaml:"sampling_ratio"`

	// Random forest
	NEstimators     int    `koanf:"n_estimators" json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int    `koanf:"max_depth" json:"max_depth" yaml:"max_depth"`
	MaxFeatures     string `koanf:"max_features" json:"max_features" yaml:"max_features"`
	MinSamplesSplit int    `koanf:"min_samples_split" json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int    `koanf:"min_samples_leaf" json:"min_samples_leaf" yaml:"min_samples_leaf"`
	Criterion       string `koanf:"criterion" json:"criterion" yaml:"criterion"`
	NJobs           int    `koanf:"n_jobs" json:"n_jobs" yaml:"n_jobs"`

	// UnknownCategory is "error" or "code" (encode unseen categories as -1).
	// Training stores it in the artifact; empty means "error" there. For
	// score and serve a non-empty value overrides the stored policy.
	UnknownCategory string `koanf:"unknown_category" json:"unknown_category" yaml:"unknown_category"`

	// ROI defaults used when a request does not supply them.
	AvgCost       float64 `koanf:"avg_cost" json:"avg_cost" yaml:"avg_cost"`
	RetentionRate float64 `koanf:"retention_rate" json:"retention_rate" yaml:"retention_rate"`
	TopN          int     `koanf:"top_n" json:"top_n" yaml:"top_n"`

	// Explain / EDA
	ShapSample int    `koanf:"shap_sample" json:"shap_sample" yaml:"shap_sample"`
	OutDir     string `koanf:"out_dir" json:"out_dir" yaml:"out_dir"`

	// Dashboard
	Addr          string `koanf:"addr" json:"addr" yaml:"addr"`
	CORSOrigins   string `koanf:"cors_origins" json:"cors_origins" yaml:"cors_origins"` // comma separated
	MaxUploadMB   int    `koanf:"max_upload_mb" json:"max_upload_mb" yaml:"max_upload_mb"`
	ShutdownGrace int    `koanf:"shutdown_grace_s" json:"shutdown_grace_s" yaml:"shutdown_grace_s"`

	// ScoreRPS limits POST /api/v1/score requests per second; 0 disables the limit.
	ScoreRPS   float64 `koanf:"score_rps" json:"score_rps" yaml:"score_rps"`
	ScoreBurst int     `koanf:"score_burst" json:"score_burst" yaml:"score_burst"`

	// DriftDelta is the ADWIN confidence for the risk score drift monitor.
	DriftDelta float64 `koanf:"drift_delta" json:"drift_delta" yaml:"drift_delta"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" json:"log_level" yaml:"log_level"`
	// LogFormat is "json" or "console".
	LogFormat string `koanf:"log_format" json:"log_format" yaml:"log_format"`
}

// New returns a Config holding the documented defaults.
func New() *Config {
	return &Config{
		DataPath:        "data/ibm_hr.csv",
		ModelPath:       "models/attrition_rf.gob",
		TestSize:        0.2,
		Seed:            42,
		KNeighbors:      5,
		SamplingRatio:   1.0,
		NEstimators:     200,
		MaxDepth:        10,
		MaxFeatures:     "sqrt",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Criterion:       "gini",
		NJobs:           -1,
		AvgCost:         1_000_000,
		RetentionRate:   20,
		TopN:            10,
		ShapSample:      300,
		OutDir:          "reports",
		Addr:            ":8501",
		CORSOrigins:     "*",
		MaxUploadMB:     32,
		ShutdownGrace:   10,
		ScoreBurst:      5,
		DriftDelta:      0.002,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.TestSize <= 0 || c.TestSize >= 1:
		return errors.NewValidationError("test_size", "must be within (0, 1)", c.TestSize)
	case c.KNeighbors < 1:
		return errors.NewValidationError("k_neighbors", "must be positive", c.KNeighbors)
	case c.SamplingRatio <= 0 || c.SamplingRatio > 1:
		return errors.NewValidationError("sampling_ratio", "must be within (0, 1]", c.SamplingRatio)
	case c.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be positive", c.NEstimators)
	case c.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", c.MinSamplesSplit)
	case c.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be positive", c.MinSamplesLeaf)
	case c.Criterion != "gini" && c.Criterion != "entropy":
		return errors.NewValidationError("criterion", "must be gini or entropy", c.Criterion)
	case c.UnknownCategory != "" && c.UnknownCategory != "error" && c.UnknownCategory != "code":
		return errors.NewValidationError("unknown_category", "must be error or code", c.UnknownCategory)
	case c.AvgCost < 0:
		return errors.NewValidationError("avg_cost", "must not be negative", c.AvgCost)
	case c.RetentionRate < 0 || c.RetentionRate > 100:
		return errors.NewValidationError("retention_rate", "must be within [0, 100]", c.RetentionRate)
	case c.TopN < 1:
		return errors.NewValidationError("top_n", "must be positive", c.TopN)
	case c.ShapSample < 1:
		return errors.NewValidationError("shap_sample", "must be positive", c.ShapSample)
	case c.Addr == "":
		return errors.NewValidationError("addr", "must not be empty", c.Addr)
	case c.MaxUploadMB < 1:
		return errors.NewValidationError("max_upload_mb", "must be positive", c.MaxUploadMB)
	case c.ScoreRPS < 0:
		return errors.NewValidationError("score_rps", "must not be negative", c.ScoreRPS)
	case c.ScoreRPS > 0 && c.ScoreBurst < 1:
		return errors.NewValidationError("score_burst", "must be positive when score_rps is set", c.ScoreBurst)
	case c.DriftDelta <= 0 || c.DriftDelta >= 1:
		return errors.NewValidationError("drift_delta", "must be within (0, 1)", c.DriftDelta)
	case c.LogFormat != "json" && c.LogFormat != "console":
		return errors.NewValidationError("log_format", "must be json or console", c.LogFormat)
	}
	return nil
}

// Origins splits CORSOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
