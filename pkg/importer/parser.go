package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// ValueKind tags the scalar variants a parsed cell can hold.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
)

// Value is one parsed cell. Rows from heterogeneous files carry arbitrary
// columns, so cells are tagged scalars rather than struct fields.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
}

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func NullValue() Value            { return Value{Kind: KindNull} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Text renders the cell for normalization and storage.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// Row maps source column names to cell values. Column order lives in the
// header list returned alongside the rows.
type Row map[string]Value

// ParseFile decodes tabular file content into headers and row objects,
// dispatched by file extension. CSV and plain text are comma-delimited with
// a required header row; workbooks read the first sheet with the first row
// as headers.
func ParseFile(content []byte, ext string) ([]string, []Row, error) {
	switch strings.ToLower(ext) {
	case ".csv", ".txt":
		return parseCSV(content)
	case ".xlsx", ".xls":
		return parseWorkbook(content)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(content []byte) ([]string, []Row, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}
		if isEmptyRecord(record) {
			continue
		}

		row := make(Row, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				row[header] = StringValue(record[i])
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

func parseWorkbook(content []byte) ([]string, []Row, error) {
	book, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}

	cells, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return nil, nil, nil
	}

	headers := make([]string, len(cells[0]))
	for i, h := range cells[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []Row
	for _, record := range cells[1:] {
		if isEmptyRecord(record) {
			continue
		}
		row := make(Row, len(headers))
		for i, header := range headers {
			if header == "" || i >= len(record) {
				continue
			}
			cell := record[i]
			if cell == "" {
				continue
			}
			if n, err := strconv.ParseFloat(cell, 64); err == nil {
				row[header] = NumberValue(n)
			} else {
				row[header] = StringValue(cell)
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
