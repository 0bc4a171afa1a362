package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/YuminosukeSato/attrition/internal/config"
	"github.com/YuminosukeSato/attrition/internal/pipeline"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
)

// app carries the resolved configuration to every subcommand.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "attrition",
		Short: "Employee attrition prediction pipeline",
		Long: `Trains a random forest on an HR table (SMOTE-balanced, stratified split),
ranks employees by attrition risk, projects retention savings, and produces
EDA and SHAP reports.

Configuration is layered: defaults, then --config (or ATTRITION_CONFIG),
then ATTRITION_* environment variables, then command line flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("env-file", ".env", "dotenv file loaded before reading the environment (ignored if missing)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json or console")

	root.AddCommand(
		newTrainCmd(a),
		newScoreCmd(a),
		newServeCmd(a),
		newExplainCmd(a),
		newEDACmd(a),
	)
	return root
}

// setup loads .env, the layered config and flag overrides, then installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "load %s", envFile)
		}
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	return log.SetupLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
}

// flagTargets maps flag names to the config field they override.
func flagTargets(c *config.Config) map[string]any {
	return map[string]any{
		"log-level":        &c.LogLevel,
		"log-format":       &c.LogFormat,
		"data":             &c.DataPath,
		"encoding":         &c.DataEncoding,
		"model":            &c.ModelPath,
		"test-size":        &c.TestSize,
		"seed":             &c.Seed,
		"k-neighbors":      &c.KNeighbors,
		"n-estimators":     &c.NEstimators,
		"max-depth":        &c.MaxDepth,
		"max-features":     &c.MaxFeatures,
		"n-jobs":           &c.NJobs,
		"unknown-category": &c.UnknownCategory,
		"avg-cost":         &c.AvgCost,
		"retention-rate":   &c.RetentionRate,
		"top":              &c.TopN,
		"sample":           &c.ShapSample,
		"out-dir":          &c.OutDir,
		"addr":             &c.Addr,
		"cors-origins":     &c.CORSOrigins,
		"score-rps":        &c.ScoreRPS,
	}
}

// applyFlags copies every explicitly set flag onto c, so unset flags never
// mask values from the file or the environment.
func applyFlags(fs *pflag.FlagSet, c *config.Config) error {
	targets := flagTargets(c)
	var firstErr error
	fs.Visit(func(f *pflag.Flag) {
		target, ok := targets[f.Name]
		if !ok || firstErr != nil {
			return
		}
		if err := setValue(target, f.Value.String()); err != nil {
			firstErr = errors.NewValidationError(f.Name, err.Error(), f.Value.String())
		}
	})
	return firstErr
}

// loadScorer loads the configured artifact. unknown_category, when set,
// overrides the policy the model was trained with.
func (a *app) loadScorer() (*pipeline.Scorer, error) {
	opts, err := pipeline.ScorerOptions(a.cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.LoadScorer(a.cfg.ModelPath, opts...)
}
