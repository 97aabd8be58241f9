package sourceparse

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/qax-os/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one data row of a parsed source file.
type Row []string

// Source streams rows from a source file, one at a time.
type Source interface {
	// Next returns the next row. io.EOF signals a clean end of input.
	// Malformed individual rows are skipped by the reader, not surfaced
	// as errors, matching the teacher's tolerant CSV ingestion.
	Next() (Row, error)
}

type csvSource struct {
	r *csv.Reader
}

// OpenCSV wraps r as a streaming, BOM-tolerant, loosely-quoted CSV source.
// It never buffers more than csv.Reader's own record window.
func OpenCSV(r io.Reader) (Source, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	peek, err := br.Peek(3)
	if err == nil && bytes.Equal(peek, utf8BOM) {
		br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	return &csvSource{r: cr}, nil
}

func (s *csvSource) Next() (Row, error) {
	for {
		record, err := s.r.Read()
		if err == nil {
			return Row(record), nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue // malformed row, try the next one
		}
		return nil, err
	}
}

// sliceSource replays a fully materialised set of rows, used for XLSX
// input which spec.md requires to be buffered in full before streaming.
type sliceSource struct {
	rows [][]string
	pos  int
}

func (s *sliceSource) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return Row(row), nil
}

// OpenXLSX buffers r fully, converts the first worksheet to rows, and
// returns a Source that replays them in order.
func OpenXLSX(r io.Reader) (Source, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("sourceparse: open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("sourceparse: xlsx has no worksheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("sourceparse: read worksheet %q: %w", sheets[0], err)
	}

	return &sliceSource{rows: rows}, nil
}

// Open dispatches to OpenCSV or OpenXLSX by MIME type, matching the two
// formats spec.md §4.8 step 3 recognises.
func Open(mimeType string, r io.Reader) (Source, error) {
	switch mimeType {
	case "text/csv", "application/csv", "text/plain":
		return OpenCSV(r)
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/vnd.ms-excel":
		return OpenXLSX(r)
	default:
		return OpenCSV(r)
	}
}
