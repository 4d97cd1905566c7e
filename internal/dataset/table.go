// Package dataset reads the CSV/XLSX source tables and parses them into
// domain rows with tolerant, per-cell fallbacks.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// Table is a raw tabular source: a header plus string rows. Column lookup is
// case-insensitive on trimmed names.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string

	cols map[string]int
}

// ReadTable loads a source file, dispatching on extension (.xlsx vs CSV).
// encoding names an IANA charset for non-UTF-8 CSV sources; empty means UTF-8.
// A missing file is a fatal load error reported with the path.
func ReadTable(path, encoding string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSXTable(path)
	}
	return readCSVTable(path, encoding)
}

func readCSVTable(path, encoding string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if encoding != "" {
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: unsupported charset %q for %s", encoding, path)
		}
		r = enc.NewDecoder().Reader(f)
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read csv %s", path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("dataset: %s has no header row", path)
	}

	return newTable(path, records[0], records[1:]), nil
}

func readXLSXTable(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("dataset: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.Value
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("dataset: %s has no header row", path)
	}

	return newTable(path, rows[0], rows[1:]), nil
}

func newTable(path string, header []string, rows [][]string) *Table {
	t := &Table{
		Path:   path,
		Header: header,
		Rows:   rows,
		cols:   make(map[string]int, len(header)),
	}
	for i, col := range header {
		t.cols[normalizeCol(col)] = i
	}
	return t
}

// HasColumn reports whether the header contains the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[normalizeCol(name)]
	return ok
}

// RequireColumns returns a fatal error naming the first missing column.
func (t *Table) RequireColumns(names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		if !t.HasColumn(name) {
			return eris.Errorf("dataset: %s is missing required column %q", t.Path, name)
		}
	}
	return nil
}

// Get returns the trimmed cell value for the named column, or "" when the
// column is absent or the row is short.
func (t *Table) Get(row []string, name string) string {
	idx, ok := t.cols[normalizeCol(name)]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// normalizeCol lowercases and trims for cross-format column matching.
func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
