package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

func TestEstimateSavings(t *testing.T) {
	assert.Equal(t, 10_000_000.0, EstimateSavings(50, 1_000_000, 20))
	assert.Equal(t, 0.0, EstimateSavings(0, 1_000_000, 20))
	assert.Equal(t, 0.0, EstimateSavings(10, 1_000_000, 0))
}

func TestCountHighRisk(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"empty", nil, 0},
		{"threshold itself is not high risk", []float64{0.7}, 0},
		{"just above", []float64{0.7000001}, 1},
		{"mixed", []float64{0.1, 0.95, 0.7, 0.71, 1.0}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountHighRisk(tt.scores))
		})
	}
}

func TestNewROISummary(t *testing.T) {
	scores := make([]float64, 60)
	for i := range scores {
		if i < 50 {
			scores[i] = 0.9
		} else {
			scores[i] = 0.7
		}
	}
	s, err := NewROISummary(scores, 1_000_000, 20)
	require.NoError(t, err)
	assert.Equal(t, 50, s.HighRiskCount)
	assert.Equal(t, 10_000_000.0, s.EstimatedSavings)
	assert.Equal(t, HighRiskThreshold, s.Threshold)
}

func TestFromCountValidation(t *testing.T) {
	tests := []struct {
		name     string
		highRisk int
		cost     float64
		rate     float64
	}{
		{"negative count", -1, 1, 10},
		{"negative cost", 1, -1, 10},
		{"rate above 100", 1, 1, 101},
		{"negative rate", 1, 1, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromCount(tt.highRisk, tt.cost, tt.rate)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}

	_, err := FromCount(3, 0, 100)
	assert.NoError(t, err)
}

func TestFormat(t *testing.T) {
	s, err := FromCount(50, 1_000_000, 20)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.Format(&buf, message.NewPrinter(language.English)))
	out := buf.String()
	assert.Contains(t, out, "10,000,000")
	assert.Contains(t, out, "1,000,000")
	assert.Contains(t, out, "score > 0.7")
	assert.Contains(t, out, ": 50")

	buf.Reset()
	require.NoError(t, s.Format(&buf, nil))
	assert.Contains(t, buf.String(), "10,000,000")

	assert.Equal(t, "50 high-risk employees, estimated savings 10,000,000", s.String())
}
