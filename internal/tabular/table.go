// Package tabular reads CSV uploads into named-column tables.
package tabular

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"placement-predictor/internal/common/errors"
	"placement-predictor/internal/features"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a parsed CSV: a header plus rows of equal width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read parses CSV from r. The first row is the header; blank or duplicate
// header names and ragged rows are PARSE_ERRORs.
func Read(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIOError("read csv", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.NewParseError("csv file is empty", nil)
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.NewParseError("read csv header", err)
	}
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, errors.NewParseError(fmt.Sprintf("header column %d is blank", i+1), nil)
		}
		if _, dup := seen[h]; dup {
			return nil, errors.NewParseError(fmt.Sprintf("duplicate header column %q", h), nil)
		}
		seen[h] = struct{}{}
		header[i] = h
	}

	t := &Table{Header: header}
	for {
		row, err := cr.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// csv.ErrFieldCount covers ragged rows; the reader reports the line.
			return nil, errors.NewParseError("read csv row", err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadFile parses the CSV file at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open csv", err)
	}
	defer f.Close()
	return Read(f)
}

// Records converts rows to feature records keyed by header name. Cell
// values stay strings; the feature schema decides how to parse them.
func (t *Table) Records() []features.Record {
	out := make([]features.Record, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(features.Record, len(t.Header))
		for j, h := range t.Header {
			rec[h] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }
