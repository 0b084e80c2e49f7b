package exporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewEncoderRejectsUnknownFormat(t *testing.T) {
	if _, err := NewEncoder("parquet", &bytes.Buffer{}); err == nil {
		t.Fatal("expected unknown format to be rejected")
	}
}

func encode(t *testing.T, format string, fields []string, records []map[string]interface{}) string {
	t.Helper()
	var buf bytes.Buffer
	enc, err := NewEncoder(format, &buf)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if err := enc.WriteHeader(fields); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := enc.WriteBatch(records); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if err := enc.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return buf.String()
}

func TestCSVEncoder(t *testing.T) {
	out := encode(t, FormatCSV, []string{"email", "firstName", "company"}, []map[string]interface{}{
		{"email": "a@x.com", "firstName": "Ann", "company": "Acme, Inc"},
		{"email": "b@x.com", "firstName": `Bob "The Builder"`, "company": nil},
		{"email": "c@x.com", "firstName": "Multi\nLine", "company": float64(7)},
	})

	lines := strings.Split(out, "\n")
	if lines[0] != "email,firstName,company" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if lines[1] != `a@x.com,Ann,"Acme, Inc"` {
		t.Errorf("comma cell not quoted: %q", lines[1])
	}
	if lines[2] != `b@x.com,"Bob ""The Builder""",` {
		t.Errorf("quote cell not doubled: %q", lines[2])
	}
	if !strings.Contains(out, "\"Multi\nLine\"") {
		t.Error("newline cell not quoted")
	}
	if !strings.Contains(out, "c@x.com,") || !strings.HasSuffix(strings.TrimRight(out, "\n"), ",7") {
		t.Errorf("numeric cell not rendered plainly: %q", out)
	}
}

func TestJSONEncoder(t *testing.T) {
	out := encode(t, FormatJSON, []string{"email", "firstName"}, []map[string]interface{}{
		{"email": "a@x.com", "firstName": "Ann", "extra": "dropped"},
		{"email": "b@x.com"},
	})

	var decoded []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(decoded))
	}

	// Only the selected fields survive, missing ones are explicit nulls.
	if _, ok := decoded[0]["extra"]; ok {
		t.Error("unselected field leaked into output")
	}
	if v, ok := decoded[1]["firstName"]; !ok || v != nil {
		t.Errorf("expected explicit null for missing value, got %v (%v)", v, ok)
	}

	// Fields appear in selection order.
	if !strings.Contains(out, "\"email\": \"a@x.com\",\n    \"firstName\": \"Ann\"") {
		t.Errorf("fields not in selection order:\n%s", out)
	}
}

func TestJSONEncoderEmpty(t *testing.T) {
	out := encode(t, FormatJSON, []string{"email"}, nil)

	var decoded []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("empty export is not valid JSON: %v\n%s", err, out)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty array, got %d records", len(decoded))
	}
}

func TestTXTEncoder(t *testing.T) {
	out := encode(t, FormatTXT, []string{"email", "firstName"}, []map[string]interface{}{
		{"email": "a@x.com", "firstName": "Ann\tMarie"},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if lines[0] != "email\tfirstName" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if lines[1] != "a@x.com\tAnn Marie" {
		t.Errorf("embedded tab should become a space: %q", lines[1])
	}
}
