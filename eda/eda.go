// Package eda summarizes an HR table before training: shape, missing values,
// the attrition split and how satisfaction and income differ between leavers
// and stayers.
package eda

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/attrition/dataset"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/preprocessing"
)

// DefaultBoxColumns are compared between leavers and stayers.
var DefaultBoxColumns = []string{"JobSatisfaction", "MonthlyIncome"}

// Summary is the EDA report of one table.
type Summary struct {
	Rows    int            `json:"rows" yaml:"rows"`
	Columns []string       `json:"columns" yaml:"columns"`
	Missing map[string]int `json:"missing" yaml:"missing"`

	// Attrition counts by target value ("Yes", "No", and anything unexpected).
	Attrition map[string]int `json:"attrition" yaml:"attrition"`

	// Groups holds the per-class distribution of each compared column.
	Groups map[string]map[string]Distribution `json:"groups" yaml:"groups"`
}

// Distribution is a five-number summary plus mean.
type Distribution struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std" yaml:"std"`
	Min    float64 `json:"min" yaml:"min"`
	Q1     float64 `json:"q1" yaml:"q1"`
	Median float64 `json:"median" yaml:"median"`
	Q3     float64 `json:"q3" yaml:"q3"`
	Max    float64 `json:"max" yaml:"max"`

	values []float64
}

// Summarize builds the report. Columns that are absent are skipped; a missing
// target column is a data format error.
func Summarize(t *dataset.Table, boxColumns ...string) (*Summary, error) {
	if t == nil || t.NumRows() == 0 {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "empty table")
	}
	target, ok := t.Column(preprocessing.TargetColumn)
	if !ok {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, preprocessing.TargetColumn, "target column is missing")
	}
	if len(boxColumns) == 0 {
		boxColumns = DefaultBoxColumns
	}

	s := &Summary{
		Rows:      t.NumRows(),
		Columns:   append([]string(nil), t.Header...),
		Missing:   make(map[string]int, t.NumCols()),
		Attrition: make(map[string]int),
		Groups:    make(map[string]map[string]Distribution),
	}
	for j, name := range t.Header {
		n := 0
		for _, row := range t.Rows {
			if isMissing(row[j]) {
				n++
			}
		}
		s.Missing[name] = n
	}
	for _, v := range target {
		s.Attrition[strings.TrimSpace(v)]++
	}

	for _, col := range boxColumns {
		values, ok := t.Column(col)
		if !ok {
			continue
		}
		byClass := make(map[string][]float64)
		for i, raw := range values {
			v, ok := dataset.ParseNumber(raw)
			if !ok {
				continue
			}
			label := strings.TrimSpace(target[i])
			byClass[label] = append(byClass[label], v)
		}
		groups := make(map[string]Distribution, len(byClass))
		for label, vs := range byClass {
			groups[label] = describe(vs)
		}
		s.Groups[col] = groups
	}
	return s, nil
}

func isMissing(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "na", "nan", "null", "n/a":
		return true
	}
	return false
}

func describe(vs []float64) Distribution {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(sorted, nil)
	return Distribution{
		Count:  len(sorted),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(sorted),
		Q1:     stat.Quantile(0.25, stat.LinInterp, sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.LinInterp, sorted, nil),
		Max:    floats.Max(sorted),
		values: sorted,
	}
}

// AttritionRate is the share of "Yes" among Yes/No rows.
func (s *Summary) AttritionRate() float64 {
	yes, no := s.Attrition["Yes"], s.Attrition["No"]
	if yes+no == 0 {
		return 0
	}
	return float64(yes) / float64(yes+no)
}

// WriteText prints the report in the order an analyst reads it.
func (s *Summary) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Shape: (%d, %d)\n\n", s.Rows, len(s.Columns))
	fmt.Fprintf(&b, "Columns:\n  %s\n\n", strings.Join(s.Columns, ", "))

	b.WriteString("Missing values:\n")
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "  %-26s %d\n", c, s.Missing[c])
	}

	b.WriteString("\nAttrition distribution:\n")
	for _, label := range sortedKeys(s.Attrition) {
		fmt.Fprintf(&b, "  %-6s %d\n", label, s.Attrition[label])
	}
	fmt.Fprintf(&b, "  rate   %.3f\n", s.AttritionRate())

	for _, col := range sortedKeys(s.Groups) {
		fmt.Fprintf(&b, "\n%s by Attrition:\n", col)
		groups := s.Groups[col]
		for _, label := range sortedKeys(groups) {
			d := groups[label]
			fmt.Fprintf(&b, "  %-4s n=%d mean=%.2f std=%.2f min=%.2f q1=%.2f median=%.2f q3=%.2f max=%.2f\n",
				label, d.Count, d.Mean, d.StdDev, d.Min, d.Q1, d.Median, d.Q3, d.Max)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SavePlots writes the attrition count plot and one box plot per compared
// column into dir as PNG files and returns their paths.
func (s *Summary) SavePlots(dir string) ([]string, error) {
	var paths []string

	count := filepath.Join(dir, "attrition_distribution.png")
	if err := s.countPlot(count); err != nil {
		return nil, err
	}
	paths = append(paths, count)

	for _, col := range sortedKeys(s.Groups) {
		p := filepath.Join(dir, strings.ToLower(col)+"_vs_attrition.png")
		if err := s.boxPlot(col, p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
