// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table holds tabular data: rows of cells under named columns.
//
// Cells remember that they came from a table. In particular, a missing cell
// and a NaN number cell both mean "no value", which the records package turns
// into an explicit null, whereas NaN in a plain record is an error.
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// CellKind is the type of value held by a Cell.
type CellKind int

// Values of CellKind. The zero value is a missing cell.
const (
	MissingCell CellKind = iota
	StringCell
	NumberCell
	BoolCell
)

// Cell of a table Row which is a union of missing, string, number (float64) or
// bool.
type Cell struct {
	Kind    CellKind
	number  float64
	text    string // exact text of a number read from a file, if any
	string  string
	boolean bool
}

// Missing creates a cell with no value.
func Missing() Cell {
	return Cell{}
}

// String creates a string cell.
func String(s string) Cell {
	return Cell{Kind: StringCell, string: s}
}

// Number creates a number cell. NaN is accepted and treated as missing.
func Number(n float64) Cell {
	return Cell{Kind: NumberCell, number: n}
}

// NumberText creates a number cell from a JSON number literal, keeping its
// exact text. Anything else, e.g. "007", "0x10", "Inf" or " 1", is not a number.
func NumberText(s string) (Cell, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || strings.TrimSpace(s) != s || !json.Valid([]byte(s)) {
		return Cell{}, false
	}
	return Cell{Kind: NumberCell, number: n, text: s}, true
}

// Bool creates a bool cell.
func Bool(b bool) Cell {
	return Cell{Kind: BoolCell, boolean: b}
}

// IsMissing is true for a missing cell or a NaN number.
func (c Cell) IsMissing() bool {
	return c.Kind == MissingCell || (c.Kind == NumberCell && math.IsNaN(c.number))
}

// Str returns the string value of a StringCell.
func (c Cell) Str() string { return c.string }

// Num returns the value of a NumberCell.
func (c Cell) Num() float64 { return c.number }

// Text is the exact text of a NumberCell created by NumberText, and "" for
// other cells.
func (c Cell) Text() string { return c.text }

// Bool returns the value of a BoolCell.
func (c Cell) Bool() bool { return c.boolean }

// String prints the cell for CSV or text output. Missing cells are empty.
func (c Cell) String() string {
	if c.IsMissing() {
		return ""
	}
	switch c.Kind {
	case NumberCell:
		if c.text != "" {
			return c.text
		}
		return strconv.FormatFloat(c.number, 'g', -1, 64)
	case BoolCell:
		return strconv.FormatBool(c.boolean)
	}
	return c.string
}

// Row of a table.
type Row []Cell

// CSV is an encoding/csv compatible row representation.
func (r Row) CSV() []string {
	res := make([]string, len(r))
	for i, c := range r {
		res[i] = c.String()
	}
	return res
}

// Table container.
//
// A typical use:
//   t := NewTable("pk", "name")
//   t.AddRow(Row{Number(1), String("Jane")}, Row{Number(2), Missing()})
type Table struct {
	Header []string
	Rows   []Row
}

// NewTable creates a new Table instance with column headers. It is expected
// that the number of column headers is the same as the number of cells in each
// Row.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Check that every row has exactly one cell per column, and that column names
// are unique and non-empty.
func (t *Table) Check() error {
	seen := make(map[string]struct{}, len(t.Header))
	for i, h := range t.Header {
		if h == "" {
			return errors.Reason("column %d has no name", i)
		}
		if _, ok := seen[h]; ok {
			return errors.Reason("duplicate column name: %s", h)
		}
		seen[h] = struct{}{}
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Header) {
			return errors.Reason("row %d has %d cells, expected %d",
				i, len(r), len(t.Header))
		}
	}
	return nil
}

// ReadParams configure ReadCSV.
type ReadParams struct {
	Header        []string // for headless CSV; nil means the first line is the header
	MissingValues []string // cells equal to any of these are missing; nil = DefaultMissingValues
	StringsOnly   bool     // don't infer numbers and bools
}

// DefaultMissingValues are the CSV cell values that mean "no value".
var DefaultMissingValues = []string{"", "NA", "NaN", "null"}

func parseCell(s string, p ReadParams) Cell {
	missing := p.MissingValues
	if missing == nil {
		missing = DefaultMissingValues
	}
	for _, m := range missing {
		if s == m {
			return Missing()
		}
	}
	if p.StringsOnly {
		return String(s)
	}
	if c, ok := NumberText(s); ok {
		return c
	}
	switch strings.ToLower(s) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(s)
}

// ReadCSV loads the entire CSV stream into a Table.
func ReadCSV(r io.Reader, p ReadParams) (*Table, error) {
	cr := csv.NewReader(r)
	t := NewTable(p.Header...)
	if p.Header == nil {
		header, err := cr.Read()
		if err == io.EOF {
			return nil, errors.Reason("CSV has no header")
		}
		if err != nil {
			return nil, errors.Annotate(err, "failed to read CSV header")
		}
		t.Header = header
	}
	for {
		line, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "failed to read CSV row %d", len(t.Rows)+1)
		}
		row := make(Row, len(line))
		for i, s := range line {
			row[i] = parseCell(s, p)
		}
		t.AddRow(row)
	}
	if err := t.Check(); err != nil {
		return nil, errors.Annotate(err, "invalid CSV table")
	}
	return t, nil
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	header := !p.NoHeader && len(t.Header) > 0
	var lines [][]string
	if header {
		lines = append(lines, t.Header)
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		lines = append(lines, r.CSV())
	}
	if len(lines) == 0 {
		return nil
	}

	widths := make([]int, len(lines[0]))
	for i, line := range lines {
		if len(line) != len(widths) {
			return errors.Reason("line %d size [%d] != expected size [%d]",
				i, len(line), len(widths))
		}
		for j, s := range line {
			n := len([]rune(s))
			if p.MaxColWidth > 0 && n > p.MaxColWidth {
				n = p.MaxColWidth
			}
			if widths[j] < n {
				widths[j] = n
			}
		}
	}

	write := func(line []string) error {
		trimmed := make([]string, len(line))
		for i, s := range line {
			if r := []rune(s); len(r) > widths[i] {
				s = string(r[:widths[i]-2]) + ".."
			}
			trimmed[i] = fmt.Sprintf("%[2]*[1]s", s, widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(trimmed, " | "))
		return err
	}

	for i, line := range lines {
		if err := write(line); err != nil {
			return errors.Annotate(err, "failed to write line %d", i)
		}
		if header && i == 0 {
			dashes := make([]string, len(widths))
			for j, n := range widths {
				dashes[j] = strings.Repeat("-", n)
			}
			if err := write(dashes); err != nil {
				return errors.Annotate(err, "failed to write header separator")
			}
		}
	}
	return nil
}
