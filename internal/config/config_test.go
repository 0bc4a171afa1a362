package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"defaults", func(*Config) {}, ""},
		{"test size zero", func(c *Config) { c.TestSize = 0 }, "test_size"},
		{"k neighbors", func(c *Config) { c.KNeighbors = 0 }, "k_neighbors"},
		{"sampling ratio", func(c *Config) { c.SamplingRatio = 1.5 }, "sampling_ratio"},
		{"estimators", func(c *Config) { c.NEstimators = 0 }, "n_estimators"},
		{"criterion", func(c *Config) { c.Criterion = "mse" }, "criterion"},
		{"unknown policy", func(c *Config) { c.UnknownCategory = "drop" }, "unknown_category"},
		{"retention rate", func(c *Config) { c.RetentionRate = 120 }, "retention_rate"},
		{"avg cost", func(c *Config) { c.AvgCost = -1 }, "avg_cost"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			tt.mutate(c)
			err := c.Validate()
			if tt.param == "" {
				assert.NoError(t, err)
				return
			}
			var ve *errors.ValidationError
			if assert.True(t, errors.As(err, &ve), "got %v", err) {
				assert.Equal(t, tt.param, ve.ParamName)
			}
		})
	}
}

func TestOrigins(t *testing.T) {
	c := New()
	c.CORSOrigins = " https://a.example , ,https://b.example"
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Origins())
}
