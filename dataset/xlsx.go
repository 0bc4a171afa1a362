package dataset

import (
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

// ReadXLSXFile reads the first sheet of an XLSX workbook. The first row is the header.
func ReadXLSXFile(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, errors.InStage(errors.StageLoad, errors.Wrapf(err, "xlsx: open %s", path))
	}
	return fromWorkbook(f)
}

// ReadXLSXBytes reads an XLSX workbook held in memory (HTTP uploads).
func ReadXLSXBytes(b []byte) (*Table, error) {
	f, err := xlsx.OpenBinary(b)
	if err != nil {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "xlsx: "+err.Error())
	}
	return fromWorkbook(f)
}

func fromWorkbook(f *xlsx.File) (*Table, error) {
	if len(f.Sheets) == 0 {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "missing header row")
	}

	header := trimTrailingEmpty(rowToStrings(sheet.Rows[0]))
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([][]string, 0, len(sheet.Rows)-1)
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if isBlank(cells) {
			continue
		}
		if len(cells) > len(header) {
			cells = trimTrailingEmpty(cells)
			if len(cells) > len(header) {
				return nil, errors.NewDataFormatError(errors.StageLoad, i+1, "", "row wider than header")
			}
		}
		// xlsx は末尾の空セルを省略することがあるためヘッダー幅まで埋める
		if len(cells) < len(header) {
			cells = append(cells, make([]string, len(header)-len(cells))...)
		}
		rows = append(rows, cells)
	}
	return NewTable(header, rows)
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func trimTrailingEmpty(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}

func isBlank(cells []string) bool {
	return len(trimTrailingEmpty(cells)) == 0
}
