package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a comma separated table with a mandatory header row.
// A leading UTF-8 BOM is stripped. Rows whose field count differs from the
// header are reported as data format errors with their row number.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1 // 行ごとに検証して行番号付きのエラーを返す

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "missing header row")
	}
	if err != nil {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "invalid header: "+err.Error())
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewDataFormatError(errors.StageLoad, line, "", err.Error())
		}
		rows = append(rows, record)
	}

	return NewTable(header, rows)
}

// ReadCSVCharset decodes r from the named charset ("shift_jis", "utf-16le", ...)
// before parsing. An empty charset or "utf-8" reads r as is.
func ReadCSVCharset(r io.Reader, charset string) (*Table, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return ReadCSV(r)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, errors.NewDataFormatError(errors.StageLoad, 0, "", "unsupported charset "+charset)
	}
	return ReadCSV(enc.NewDecoder().Reader(r))
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.InStage(errors.StageLoad, errors.Wrapf(err, "open %s", path))
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSVFileCharset opens path and reads it with ReadCSVCharset.
func ReadCSVFileCharset(path, charset string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.InStage(errors.StageLoad, errors.Wrapf(err, "open %s", path))
	}
	defer f.Close()
	return ReadCSVCharset(f, charset)
}

// WriteCSV writes the table including its header.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return errors.Wrap(err, "write header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return errors.Wrap(err, "write rows")
	}
	return nil
}

// IsXLSX reports whether name has an .xlsx extension.
func IsXLSX(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

// Load reads a CSV or XLSX file, chosen by extension.
func Load(path string) (*Table, error) {
	if IsXLSX(path) {
		return ReadXLSXFile(path)
	}
	return ReadCSVFile(path)
}
