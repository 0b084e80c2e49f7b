package exporter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Encoder writes one export file incrementally. Implementations hold no
// state beyond the output stream and the field order; callers count
// records themselves.
type Encoder interface {
	WriteHeader(fields []string) error
	WriteBatch(records []map[string]interface{}) error
	Finalize() error
}

// NewEncoder returns the encoder for a format, or an error for formats the
// pipeline does not produce.
func NewEncoder(format string, w io.Writer) (Encoder, error) {
	switch format {
	case FormatCSV:
		return &csvEncoder{w: bufio.NewWriter(w)}, nil
	case FormatJSON:
		return &jsonEncoder{w: bufio.NewWriter(w)}, nil
	case FormatTXT:
		return &txtEncoder{w: bufio.NewWriter(w)}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

type csvEncoder struct {
	w      *bufio.Writer
	fields []string
}

// quoteCSV wraps a cell in quotes only when it contains a comma, a quote
// or a newline, doubling any internal quotes.
func quoteCSV(cell string) string {
	if strings.ContainsAny(cell, ",\"\n") {
		return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
	}
	return cell
}

func (e *csvEncoder) WriteHeader(fields []string) error {
	e.fields = fields
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = quoteCSV(f)
	}
	_, err := e.w.WriteString(strings.Join(quoted, ",") + "\n")
	return err
}

func (e *csvEncoder) WriteBatch(records []map[string]interface{}) error {
	for _, record := range records {
		cells := make([]string, len(e.fields))
		for i, field := range e.fields {
			cells[i] = quoteCSV(renderValue(record[field]))
		}
		if _, err := e.w.WriteString(strings.Join(cells, ",") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (e *csvEncoder) Finalize() error {
	return e.w.Flush()
}

type jsonEncoder struct {
	w       *bufio.Writer
	fields  []string
	written int
}

func (e *jsonEncoder) WriteHeader(fields []string) error {
	e.fields = fields
	_, err := e.w.WriteString("[\n")
	return err
}

// WriteBatch emits each record as a pretty-printed object holding exactly
// the selected fields in their selected order, missing values as null.
func (e *jsonEncoder) WriteBatch(records []map[string]interface{}) error {
	for _, record := range records {
		if e.written > 0 {
			if _, err := e.w.WriteString(",\n"); err != nil {
				return err
			}
		}
		if err := e.writeObject(record); err != nil {
			return err
		}
		e.written++
	}
	return nil
}

func (e *jsonEncoder) writeObject(record map[string]interface{}) error {
	if _, err := e.w.WriteString("  {\n"); err != nil {
		return err
	}
	for i, field := range e.fields {
		key, err := json.Marshal(field)
		if err != nil {
			return err
		}
		value, err := json.Marshal(record[field])
		if err != nil {
			return err
		}
		line := "    " + string(key) + ": " + string(value)
		if i < len(e.fields)-1 {
			line += ","
		}
		if _, err := e.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	_, err := e.w.WriteString("  }")
	return err
}

func (e *jsonEncoder) Finalize() error {
	if _, err := e.w.WriteString("\n]\n"); err != nil {
		return err
	}
	return e.w.Flush()
}

type txtEncoder struct {
	w      *bufio.Writer
	fields []string
}

func (e *txtEncoder) WriteHeader(fields []string) error {
	e.fields = fields
	_, err := e.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

func (e *txtEncoder) WriteBatch(records []map[string]interface{}) error {
	for _, record := range records {
		cells := make([]string, len(e.fields))
		for i, field := range e.fields {
			// Tab is the column separator, so embedded tabs become spaces.
			cells[i] = strings.ReplaceAll(renderValue(record[field]), "\t", " ")
		}
		if _, err := e.w.WriteString(strings.Join(cells, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (e *txtEncoder) Finalize() error {
	return e.w.Flush()
}
