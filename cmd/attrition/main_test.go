package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/attrition/internal/config"
	"github.com/YuminosukeSato/attrition/internal/pipeline"
	"github.com/YuminosukeSato/attrition/internal/testutil"
	"github.com/YuminosukeSato/attrition/pkg/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// workspace writes a synthetic HR CSV and returns its path and a model path.
func workspace(t *testing.T) (data, model, dir string) {
	t.Helper()
	dir = t.TempDir()
	data = filepath.Join(dir, "hr.csv")
	f, err := os.Create(data)
	require.NoError(t, err)
	require.NoError(t, testutil.SyntheticHR(150, 8).WriteCSV(f))
	require.NoError(t, f.Close())
	return data, filepath.Join(dir, "models", "rf.gob"), dir
}

func train(t *testing.T, data, model string, extra ...string) string {
	t.Helper()
	args := append([]string{"train",
		"--data", data, "--model", model,
		"--n-estimators", "10", "--max-depth", "5", "--n-jobs", "2",
	}, extra...)
	out, err := execute(t, args...)
	require.NoError(t, err)
	return out
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"train", "score", "serve", "explain", "eda"} {
		assert.True(t, names[name], "expected subcommand %q", name)
	}
	assert.Equal(t, "attrition", root.Use)
	assert.NotEmpty(t, root.Long)
}

func TestCommandFlags(t *testing.T) {
	root := newRootCmd()
	want := map[string][]string{
		"train":   {"data", "model", "test-size", "seed", "n-estimators", "max-depth", "n-jobs", "k-neighbors", "unknown-category", "output", "card"},
		"score":   {"input", "model", "top", "avg-cost", "retention-rate", "output", "lang", "unknown-category"},
		"serve":   {"addr", "model", "unknown-category"},
		"explain": {"data", "model", "sample", "out-dir"},
		"eda":     {"data", "out-dir", "compare"},
	}
	for name, flags := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		for _, f := range flags {
			assert.NotNil(t, cmd.Flags().Lookup(f), "%s should have --%s", name, f)
		}
	}
	for _, f := range []string{"config", "env-file", "log-level", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(f))
	}
}

func TestApplyFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("n-estimators", 0, "")
	fs.Uint64("seed", 0, "")
	fs.Float64("avg-cost", 0, "")
	fs.String("model", "", "")
	fs.Int("max-depth", 0, "")
	require.NoError(t, fs.Parse([]string{"--n-estimators", "50", "--seed", "7", "--avg-cost", "1234.5", "--model", "m.gob"}))

	cfg := config.New()
	require.NoError(t, applyFlags(fs, cfg))
	assert.Equal(t, 50, cfg.NEstimators)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 1234.5, cfg.AvgCost)
	assert.Equal(t, "m.gob", cfg.ModelPath)
	assert.Equal(t, 10, cfg.MaxDepth, "unset flags keep the configured value")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("ATTRITION_N_ESTIMATORS", "7")
	t.Setenv("ATTRITION_MAX_DEPTH", "3")
	data, model, _ := workspace(t)

	_, err := execute(t, "train", "--data", data, "--model", model, "--n-estimators", "5")
	require.NoError(t, err)

	a, err := pipeline.LoadArtifact(model)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Config.NEstimators, "flag wins over environment")
	assert.Equal(t, 3, a.Config.MaxDepth, "environment wins over defaults")
	assert.Len(t, a.Model.Estimators(), 5)

	out, err := execute(t, "score", "--input", data, "--model", model, "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"rows": 150`)
}

func TestWriteOutput(t *testing.T) {
	v := map[string]int{"a": 1}
	text := func(w io.Writer) error {
		_, err := io.WriteString(w, "plain\n")
		return err
	}

	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "", v, text))
	assert.Equal(t, "plain\n", buf.String())

	buf.Reset()
	require.NoError(t, writeOutput(&buf, outputJSON, v, text))
	assert.JSONEq(t, `{"a":1}`, buf.String())

	buf.Reset()
	require.NoError(t, writeOutput(&buf, outputYAML, v, text))
	assert.Equal(t, "a: 1\n", buf.String())

	err := writeOutput(&buf, "xml", v, text)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestTrainAndScore(t *testing.T) {
	data, model, _ := workspace(t)

	out := train(t, data, model, "--output", "json", "--card")
	var s trainSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, model, s.ArtifactPath)
	assert.FileExists(t, model)
	assert.FileExists(t, cardPath(model))
	assert.Equal(t, s.BalancedTrainCounts[0], s.BalancedTrainCounts[1], "SMOTE balances the train split")
	assert.Equal(t, s.TrainCounts[0], s.BalancedTrainCounts[0])
	require.NotNil(t, s.Evaluation)
	assert.Equal(t, s.TestCounts[0]+s.TestCounts[1], s.Evaluation.TestSamples)

	out, err := execute(t, "score", "--input", data, "--model", model,
		"--top", "3", "--avg-cost", "1000", "--retention-rate", "50", "--output", "yaml")
	require.NoError(t, err)
	var sc scoreSummary
	require.NoError(t, yaml.Unmarshal([]byte(out), &sc))
	assert.Equal(t, 150, sc.Rows)
	require.Len(t, sc.Top, 3)
	assert.Equal(t, 1, sc.Top[0].Rank)
	assert.GreaterOrEqual(t, sc.Top[0].RiskScore, sc.Top[2].RiskScore)
	assert.InDelta(t, float64(sc.ROI.HighRiskCount)*500, sc.ROI.EstimatedSavings, 1e-9)

	out, err = execute(t, "score", "--input", data, "--model", model)
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "EmployeeNumber")
	assert.Contains(t, out, "Estimated savings")
}

func TestTrainTextOutput(t *testing.T) {
	data, model, _ := workspace(t)
	out := train(t, data, model)
	assert.Contains(t, out, "after SMOTE")
	assert.Contains(t, out, "ROC-AUC")
}

func TestCommandErrors(t *testing.T) {
	data, model, _ := workspace(t)

	_, err := execute(t, "score", "--model", model)
	assert.Error(t, err, "--input is required")

	_, err = execute(t, "score", "--input", data, "--model", filepath.Join(t.TempDir(), "missing.gob"))
	var ae *errors.ArtifactError
	assert.True(t, errors.As(err, &ae))

	_, err = execute(t, "train", "--data", data, "--model", model, "--test-size", "1.5")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = execute(t, "train", "--data", filepath.Join(t.TempDir(), "none.csv"), "--model", model)
	assert.Equal(t, errors.StageLoad, errors.StageOf(err))
	assert.NoFileExists(t, model)

	_, err = execute(t, "train", "--data", data, "--model", model, "--log-format", "xml")
	assert.Error(t, err)
}

func TestEDA(t *testing.T) {
	data, _, dir := workspace(t)
	outDir := filepath.Join(dir, "reports")

	out, err := execute(t, "eda", "--data", data, "--out-dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Attrition distribution")
	assert.FileExists(t, filepath.Join(outDir, "attrition_distribution.png"))
	assert.FileExists(t, filepath.Join(outDir, "monthlyincome_vs_attrition.png"))
	assert.FileExists(t, filepath.Join(outDir, "jobsatisfaction_vs_attrition.png"))
}

func TestExplain(t *testing.T) {
	data, model, dir := workspace(t)
	train(t, data, model)
	outDir := filepath.Join(dir, "shap")

	out, err := execute(t, "explain", "--data", data, "--model", model,
		"--sample", "5", "--out-dir", outDir, "--output", "json")
	require.NoError(t, err)

	var s explainSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 5, s.Rows)
	assert.NotEmpty(t, s.Ranking)
	for i := 1; i < len(s.Ranking); i++ {
		assert.GreaterOrEqual(t, s.Ranking[i-1].MeanAbsSHAP, s.Ranking[i].MeanAbsSHAP)
	}
	assert.FileExists(t, filepath.Join(outDir, shapBarFile))
	assert.FileExists(t, filepath.Join(outDir, shapSummaryFile))
}
