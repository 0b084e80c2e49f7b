package importer

import (
	"errors"
	"testing"
)

func TestParseFileCSV(t *testing.T) {
	content := []byte("Email, First Name ,Company\n" +
		"alice@example.com,Alice,Acme\n" +
		"\n" +
		"bob@example.com,Bob\n")

	headers, rows, err := ParseFile(content, ".csv")
	if err != nil {
		t.Fatalf("ParseFile returned error: %v", err)
	}

	want := []string{"Email", "First Name", "Company"}
	if len(headers) != len(want) {
		t.Fatalf("expected %d headers, got %d", len(want), len(headers))
	}
	for i, h := range want {
		if headers[i] != h {
			t.Errorf("header %d: expected %q, got %q", i, h, headers[i])
		}
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after skipping blank line, got %d", len(rows))
	}
	if got := rows[0]["Email"].Text(); got != "alice@example.com" {
		t.Errorf("expected first email alice@example.com, got %q", got)
	}
	if got := rows[0]["First Name"].Text(); got != "Alice" {
		t.Errorf("expected first name Alice, got %q", got)
	}

	// Ragged row: the missing trailing column is simply absent.
	if _, ok := rows[1]["Company"]; ok {
		t.Error("expected short row to omit the Company cell")
	}
}

func TestParseFileTXTUsesCSVRules(t *testing.T) {
	content := []byte("email,name\ncarol@example.com,Carol\n")

	headers, rows, err := ParseFile(content, ".txt")
	if err != nil {
		t.Fatalf("ParseFile returned error: %v", err)
	}
	if len(headers) != 2 || len(rows) != 1 {
		t.Fatalf("expected 2 headers and 1 row, got %d and %d", len(headers), len(rows))
	}
}

func TestParseFileEmptyContent(t *testing.T) {
	headers, rows, err := ParseFile(nil, ".csv")
	if err != nil {
		t.Fatalf("ParseFile returned error: %v", err)
	}
	if len(headers) != 0 || len(rows) != 0 {
		t.Fatalf("expected no headers or rows, got %d and %d", len(headers), len(rows))
	}
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	_, _, err := ParseFile([]byte("whatever"), ".pdf")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestValueText(t *testing.T) {
	if got := NumberValue(42).Text(); got != "42" {
		t.Errorf("expected number text 42, got %q", got)
	}
	if got := NumberValue(3.5).Text(); got != "3.5" {
		t.Errorf("expected number text 3.5, got %q", got)
	}
	if got := NullValue().Text(); got != "" {
		t.Errorf("expected null text to be empty, got %q", got)
	}
	if NullValue().IsNull() != true {
		t.Error("expected null value to report IsNull")
	}
}
