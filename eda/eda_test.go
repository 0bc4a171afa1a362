package eda

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/attrition/dataset"
	"github.com/YuminosukeSato/attrition/internal/testutil"
	"github.com/YuminosukeSato/attrition/pkg/errors"
)

func TestSummarize(t *testing.T) {
	tbl, err := dataset.NewTable(
		[]string{"Attrition", "JobSatisfaction", "MonthlyIncome", "Department"},
		[][]string{
			{"Yes", "1", "2000", "Sales"},
			{"No", "4", "6000", ""},
			{"No", "3", "5000", "Sales"},
			{"Yes", "2", "NA", "Research & Development"},
			{"No", "2", "7000", "Sales"},
		},
	)
	require.NoError(t, err)

	s, err := Summarize(tbl)
	require.NoError(t, err)

	assert.Equal(t, 5, s.Rows)
	assert.Equal(t, tbl.Header, s.Columns)
	assert.Equal(t, 1, s.Missing["Department"])
	assert.Equal(t, 1, s.Missing["MonthlyIncome"])
	assert.Equal(t, 0, s.Missing["Attrition"])
	assert.Equal(t, map[string]int{"Yes": 2, "No": 3}, s.Attrition)
	assert.InDelta(t, 0.4, s.AttritionRate(), 1e-12)

	sat := s.Groups["JobSatisfaction"]
	assert.Equal(t, 2, sat["Yes"].Count)
	assert.InDelta(t, 1.5, sat["Yes"].Mean, 1e-12)
	assert.LessOrEqual(t, sat["No"].Q1, sat["No"].Median)
	assert.LessOrEqual(t, sat["No"].Median, sat["No"].Q3)
	assert.Equal(t, 2.0, sat["No"].Min)
	assert.Equal(t, 4.0, sat["No"].Max)

	// the NA income is skipped
	assert.Equal(t, 1, s.Groups["MonthlyIncome"]["Yes"].Count)

	var buf bytes.Buffer
	require.NoError(t, s.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "Shape: (5, 4)")
	assert.Contains(t, out, "Missing values:")
	assert.Contains(t, out, "Attrition distribution:")
	assert.Contains(t, out, "MonthlyIncome by Attrition:")
}

func TestSummarizeErrors(t *testing.T) {
	_, err := Summarize(nil)
	var df *errors.DataFormatError
	assert.True(t, errors.As(err, &df))

	tbl := testutil.WithoutColumn(testutil.SyntheticHR(5, 1), "Attrition")
	_, err = Summarize(tbl)
	assert.True(t, errors.As(err, &df))
}

func TestSavePlots(t *testing.T) {
	s, err := Summarize(testutil.SyntheticHR(80, 2))
	require.NoError(t, err)

	paths, err := s.SavePlots(t.TempDir())
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Contains(t, paths[0], "attrition_distribution.png")
}
