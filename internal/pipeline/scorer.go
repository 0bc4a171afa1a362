package pipeline

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/attrition/dataset"
	"github.com/YuminosukeSato/attrition/internal/config"
	"github.com/YuminosukeSato/attrition/preprocessing"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
)

// ScoredRecord is one input row with its attrition risk.
type ScoredRecord struct {
	Rank      int      `json:"rank" yaml:"rank"`   // 1-based, highest risk first
	Index     int      `json:"index" yaml:"index"` // 0-based row in the input table
	RiskScore float64  `json:"risk_score" yaml:"risk_score"`
	Values    []string `json:"values" yaml:"values"`
}

// Scorer applies a loaded Artifact to new tables. It is read-only after
// construction and safe for concurrent use.
type Scorer struct {
	artifact *Artifact
	policy   preprocessing.UnknownPolicy
	logger   log.Logger
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithUnknownCategory overrides the unseen-category policy stored in the
// artifact for this scorer only.
func WithUnknownCategory(p preprocessing.UnknownPolicy) ScorerOption {
	return func(s *Scorer) { s.policy = p }
}

// ScorerOptions maps scoring-time settings of cfg to options. An empty
// UnknownCategory keeps the policy the artifact was trained with.
func ScorerOptions(cfg *config.Config) ([]ScorerOption, error) {
	if cfg.UnknownCategory == "" {
		return nil, nil
	}
	p, err := preprocessing.ParseUnknownPolicy(cfg.UnknownCategory)
	if err != nil {
		return nil, err
	}
	return []ScorerOption{WithUnknownCategory(p)}, nil
}

// LoadScorer loads the artifact at path.
func LoadScorer(path string, opts ...ScorerOption) (*Scorer, error) {
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, errors.InStage(errors.StageLoad, err)
	}
	return NewScorer(a, opts...)
}

// NewScorer wraps an in-memory artifact.
func NewScorer(a *Artifact, opts ...ScorerOption) (*Scorer, error) {
	if a == nil {
		return nil, errors.NewArtifactError("load", "", errors.New("nil artifact"))
	}
	if err := a.validate(); err != nil {
		return nil, errors.NewArtifactError("load", "", err)
	}
	s := &Scorer{
		artifact: a,
		policy:   a.Preprocessor.Policy,
		logger:   log.GetLoggerWithName("pipeline.scorer").With(log.RunIDKey, a.RunID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Artifact returns the underlying artifact. Callers must not modify it.
func (s *Scorer) Artifact() *Artifact { return s.artifact }

// Encode preprocesses t with the training vocabulary. A target column, if
// present, is ignored whatever it holds.
func (s *Scorer) Encode(t *dataset.Table) (*mat.Dense, error) {
	X, err := s.artifact.Preprocessor.TransformFeaturesWithPolicy(t, s.policy)
	if err != nil {
		return nil, errors.InStage(errors.StagePreprocess, err)
	}
	return X, nil
}

// Score returns every row of t ranked by descending risk. Ties keep input order.
func (s *Scorer) Score(t *dataset.Table) (out []ScoredRecord, err error) {
	defer errors.Recover(&err, "Scorer.Score")

	X, err := s.Encode(t)
	if err != nil {
		return nil, err
	}
	scores, err := s.ScoreMatrix(X)
	if err != nil {
		return nil, err
	}

	out = make([]ScoredRecord, len(scores))
	for i, p := range scores {
		out[i] = ScoredRecord{Index: i, RiskScore: p, Values: t.Rows[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].RiskScore > out[b].RiskScore })
	for i := range out {
		out[i].Rank = i + 1
	}

	s.logger.Info("table scored",
		log.StageKey, log.StageScore,
		log.OperationKey, log.OperationScore,
		log.SamplesKey, len(out),
	)
	return out, nil
}

// ScoreMatrix returns class-1 probabilities for already encoded features, in row order.
func (s *Scorer) ScoreMatrix(X mat.Matrix) ([]float64, error) {
	_, d := X.Dims()
	if want := s.artifact.Model.NFeatures(); d != want {
		return nil, errors.InStage(errors.StageScore, errors.NewSchemaMismatchError(
			errors.StageScore, "", "feature count differs from the trained model", want, d))
	}
	scores, err := errors.SafeValue("Scorer.ScoreMatrix", func() ([]float64, error) {
		return s.artifact.Model.PositiveProba(X)
	})
	if err != nil {
		return nil, errors.InStage(errors.StageScore, err)
	}
	return scores, nil
}

// PredictProba exposes the per-class probabilities (columns ordered by class label)
// as a pure function of encoded features.
func (s *Scorer) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return s.artifact.Model.PredictProba(X)
}

// Scores extracts the risk scores of records in their current order.
func Scores(records []ScoredRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.RiskScore
	}
	return out
}

// Top returns at most n records from a ranked slice.
func Top(records []ScoredRecord, n int) []ScoredRecord {
	if n < 0 || n >= len(records) {
		return records
	}
	return records[:n]
}
