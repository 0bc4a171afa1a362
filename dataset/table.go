// Package dataset は HR データを文字列セルの矩形テーブルとして読み込みます。
//
// 型推論や欠損値補完は行わない。数値かどうかの判定は preprocessing が
// ParseNumber を使って列単位で行う。
package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// Table is a header plus rectangular rows of raw cell values.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable validates header and rows and returns a Table that shares them.
// Row numbers in errors are 1-based data rows (the header is not counted).
func NewTable(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "missing header row")
	}
	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		if h == "" {
			return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "empty column name in header")
		}
		if _, dup := seen[h]; dup {
			return nil, errors.NewDataFormatError(errors.StageLoad, 0, h, "duplicate column name")
		}
		seen[h] = struct{}{}
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, errors.NewDataFormatError(errors.StageLoad, i+1, "",
				fmt.Sprintf("expected %d fields, got %d", len(header), len(row)))
		}
	}
	return &Table{Header: header, Rows: rows}, nil
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Header) }

// ColumnIndex returns the position of name in the header, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Column returns a copy of the values of column name.
func (t *Table) Column(name string) ([]string, bool) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out, true
}

// Record returns row i as a column name to value map.
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.Header))
	for j, h := range t.Header {
		rec[h] = t.Rows[i][j]
	}
	return rec
}

// Head returns a table with at most the first n rows. Rows are shared.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return &Table{Header: t.Header, Rows: t.Rows[:n]}
}

// Subset returns a table with the given rows in the given order. Rows are shared.
func (t *Table) Subset(indices []int) *Table {
	rows := make([][]string, len(indices))
	for i, idx := range indices {
		rows[i] = t.Rows[idx]
	}
	return &Table{Header: t.Header, Rows: rows}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	header := append([]string(nil), t.Header...)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append([]string(nil), row...)
	}
	return &Table{Header: header, Rows: rows}
}

// ParseNumber parses a numeric cell. Empty, non-numeric and non-finite
// values are rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
