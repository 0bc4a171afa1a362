package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

type storedModel struct {
	Name    string
	Weights []float64
	State   *StateManager
}

func TestSaveLoadModelRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "model.gob")

	state := NewStateManager()
	state.SetDimensions(3, 10)
	state.SetFitted()
	in := storedModel{Name: "forest", Weights: []float64{0.1, 0.2, 0.7}, State: state}

	require.NoError(t, SaveModel(&in, path))

	var out storedModel
	require.NoError(t, LoadModel(&out, path))
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Weights, out.Weights)
	assert.True(t, out.State.IsFitted())
	nf, ns := out.State.GetDimensions()
	assert.Equal(t, 3, nf)
	assert.Equal(t, 10, ns)

	// 一時ファイルが残っていないこと
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadModelMissingFile(t *testing.T) {
	var out storedModel
	err := LoadModel(&out, filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)

	var artErr *errors.ArtifactError
	require.True(t, errors.As(err, &artErr))
	assert.Equal(t, "load", artErr.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadModelCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.gob")
	require.NoError(t, os.WriteFile(path, []byte("not a gob stream"), 0o644))

	var out storedModel
	err := LoadModel(&out, path)
	var artErr *errors.ArtifactError
	assert.True(t, errors.As(err, &artErr))
}

func TestStateManagerRequireFitted(t *testing.T) {
	s := NewStateManager()
	err := s.RequireFitted("RandomForestClassifier", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	s.SetDimensions(4, 20)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("RandomForestClassifier", "Predict"))
	assert.NoError(t, s.RequireFeatures("Predict", 4))
	assert.Error(t, s.RequireFeatures("Predict", 5))

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestModelCard(t *testing.T) {
	card := &ModelCard{
		ModelType:       "RandomForestClassifier",
		Version:         1,
		Features:        []string{"Age", "Department"},
		Hyperparameters: map[string]interface{}{"n_estimators": 200},
		Metrics:         map[string]float64{"accuracy": 0.86},
	}
	require.NoError(t, card.Validate())

	path := filepath.Join(t.TempDir(), "card.json")
	require.NoError(t, card.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var back ModelCard
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, card.Features, back.Features)
	assert.Equal(t, 0.86, back.Metrics["accuracy"])

	assert.Error(t, (&ModelCard{Version: 1, Features: []string{"a"}}).Validate())
}
