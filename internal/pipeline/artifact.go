package pipeline

import (
	"time"

	"github.com/YuminosukeSato/attrition/core/model"
	"github.com/YuminosukeSato/attrition/internal/config"
	"github.com/YuminosukeSato/attrition/metrics"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/preprocessing"
	"github.com/YuminosukeSato/attrition/sklearn/ensemble"
)

// FormatVersion is the artifact layout written by Save. LoadArtifact rejects others.
const FormatVersion = 1

// Artifact is the single persisted output of training: the fitted vocabulary
// and the forest travel together so inference encodes exactly as training did.
type Artifact struct {
	Version   int
	RunID     string
	CreatedAt time.Time

	Preprocessor *preprocessing.AttritionPreprocessor
	Model        *ensemble.RandomForestClassifier

	Config     config.Config
	Evaluation *Evaluation
}

// Evaluation holds the test split metrics.
type Evaluation struct {
	Accuracy    float64         `json:"accuracy" yaml:"accuracy"`
	AUC         float64         `json:"roc_auc" yaml:"roc_auc"`
	LogLoss     float64         `json:"log_loss" yaml:"log_loss"`
	TestSamples int             `json:"test_samples" yaml:"test_samples"`
	Report      *metrics.Report `json:"report" yaml:"report"`
}

// FeatureNames returns the encoded column order the model expects.
func (a *Artifact) FeatureNames() []string {
	return a.Preprocessor.FeatureNames()
}

// Save writes the artifact atomically, replacing any previous file at path.
func (a *Artifact) Save(path string) error {
	if err := a.validate(); err != nil {
		return errors.NewArtifactError("save", path, err)
	}
	return model.SaveModel(a, path)
}

// LoadArtifact reads and validates an artifact written by Save.
func LoadArtifact(path string) (*Artifact, error) {
	var a Artifact
	if err := model.LoadModel(&a, path); err != nil {
		return nil, err
	}
	if a.Version != FormatVersion {
		return nil, errors.NewArtifactError("load", path,
			errors.Newf("unsupported format version %d (want %d)", a.Version, FormatVersion))
	}
	if err := a.validate(); err != nil {
		return nil, errors.NewArtifactError("load", path, err)
	}
	return &a, nil
}

func (a *Artifact) validate() error {
	switch {
	case a.Preprocessor == nil || !a.Preprocessor.State.IsFitted():
		return errors.New("preprocessor is missing or not fitted")
	case a.Model == nil || !a.Model.IsFitted():
		return errors.New("model is missing or not fitted")
	case len(a.Preprocessor.FeatureNames()) != a.Model.NFeatures():
		return errors.Newf("preprocessor yields %d features but model expects %d",
			len(a.Preprocessor.FeatureNames()), a.Model.NFeatures())
	}
	return nil
}

// Card summarizes the artifact for humans and the dashboard.
func (a *Artifact) Card() *model.ModelCard {
	card := &model.ModelCard{
		ModelType:       "RandomForestClassifier",
		Version:         a.Version,
		RunID:           a.RunID,
		TrainedAt:       a.CreatedAt,
		Features:        a.FeatureNames(),
		Hyperparameters: a.Model.GetParams(),
	}
	if e := a.Evaluation; e != nil {
		card.Metrics = map[string]float64{
			"accuracy": e.Accuracy,
			"roc_auc":  e.AUC,
			"log_loss": e.LogLoss,
		}
		if e.Report != nil {
			card.Metrics["f1_macro"] = e.Report.MacroAvg.F1
			for _, c := range e.Report.Classes {
				if c.Label == 1 {
					card.Metrics["recall_attrition"] = c.Recall
					card.Metrics["precision_attrition"] = c.Precision
				}
			}
		}
	}
	return card
}
