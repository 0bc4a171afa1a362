package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/YuminosukeSato/attrition/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load("")

			convey.Convey("Then it should load the documented defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.TestSize, convey.ShouldEqual, 0.2)
				convey.So(cfg.Seed, convey.ShouldEqual, uint64(42))
				convey.So(cfg.NEstimators, convey.ShouldEqual, 200)
				convey.So(cfg.MaxDepth, convey.ShouldEqual, 10)
				convey.So(cfg.KNeighbors, convey.ShouldEqual, 5)
				convey.So(cfg.ModelPath, convey.ShouldEqual, "models/attrition_rf.gob")
				convey.So(cfg.Addr, convey.ShouldEqual, ":8501")
				convey.So(cfg.AvgCost, convey.ShouldEqual, 1_000_000.0)
				convey.So(cfg.RetentionRate, convey.ShouldEqual, 20.0)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ATTRITION_N_ESTIMATORS", "50")
			_ = os.Setenv("ATTRITION_SEED", "7")
			_ = os.Setenv("ATTRITION_TEST_SIZE", "0.3")
			_ = os.Setenv("ATTRITION_MODEL_PATH", "/tmp/m.gob")
			defer clearConfigEnvVars()

			cfg, err := config.Load("")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.NEstimators, convey.ShouldEqual, 50)
				convey.So(cfg.Seed, convey.ShouldEqual, uint64(7))
				convey.So(cfg.TestSize, convey.ShouldEqual, 0.3)
				convey.So(cfg.ModelPath, convey.ShouldEqual, "/tmp/m.gob")
				convey.So(cfg.MaxDepth, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
n_estimators: 120
max_depth: 6
addr: ":9090"
`)
			_ = os.Setenv("ATTRITION_CONFIG", tmpFile)
			_ = os.Setenv("ATTRITION_MAX_DEPTH", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load("")

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.NEstimators, convey.ShouldEqual, 120) // From file
				convey.So(cfg.MaxDepth, convey.ShouldEqual, 8)      // Overridden by env
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")    // From file
				convey.So(cfg.KNeighbors, convey.ShouldEqual, 5)    // From defaults
			})
		})

		convey.Convey("When an explicit path is given", func() {
			tmpFile := createTempConfigFile(t, "top_n: 25\n")
			clearConfigEnvVars()

			cfg, err := config.Load(tmpFile)

			convey.Convey("Then it is used without ATTRITION_CONFIG", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.TopN, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("ATTRITION_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load("")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ATTRITION_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load("")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a value fails validation", func() {
			_ = os.Setenv("ATTRITION_TEST_SIZE", "1.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load("")

			convey.Convey("Then it should return a validation error naming the key", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "test_size")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, k := range []string{
		"ATTRITION_CONFIG",
		"ATTRITION_N_ESTIMATORS",
		"ATTRITION_SEED",
		"ATTRITION_TEST_SIZE",
		"ATTRITION_MODEL_PATH",
		"ATTRITION_MAX_DEPTH",
	} {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
