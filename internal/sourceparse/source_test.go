package sourceparse

import (
	"io"
	"strings"
	"testing"
)

func readAll(t *testing.T, s Source) []Row {
	t.Helper()
	var rows []Row
	for {
		row, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestOpenCSV_StripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFemail,name\nuser@example.com,Jane\n"
	s, err := OpenCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	rows := readAll(t, s)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != "email" {
		t.Errorf("header[0] = %q, want %q (BOM not stripped)", rows[0][0], "email")
	}
}

func TestOpenCSV_RaggedRows(t *testing.T) {
	input := "email,name,extra\nuser@example.com,Jane\nother@example.com,Bob,Smith,Extra\n"
	s, err := OpenCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	rows := readAll(t, s)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if len(rows[1]) != 2 {
		t.Errorf("short row truncated unexpectedly: %v", rows[1])
	}
}

func TestOpenCSV_TrimsLeadingSpace(t *testing.T) {
	input := "email, name\n user@example.com,  Jane\n"
	s, err := OpenCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	rows := readAll(t, s)
	if rows[1][0] != "user@example.com" {
		t.Errorf("row[0] = %q, want trimmed email", rows[1][0])
	}
}
