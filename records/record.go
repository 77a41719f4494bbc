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

package records

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/stockparfait/errors"
	"github.com/unifyclient/unify/table"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Record is a mapping from field name to value. Field order is not
// significant; JSON output lists fields in sorted order.
type Record map[string]Value

// NewRecord converts a generic JSON-like map.
func NewRecord(m map[string]interface{}) (Record, error) {
	r := make(Record, len(m))
	for k, x := range m {
		v, err := ValueOf(x)
		if err != nil {
			return nil, errors.Annotate(err, "field %s", k)
		}
		r[k] = v
	}
	return r, nil
}

// Interface converts the record to map[string]interface{}.
func (r Record) Interface() map[string]interface{} {
	res := make(map[string]interface{}, len(r))
	for k, v := range r {
		res[k] = v.Interface()
	}
	return res
}

// Equal compares records field by field.
func (r Record) Equal(r2 Record) bool {
	if len(r) != len(r2) {
		return false
	}
	for k, v := range r {
		v2, ok := r2[k]
		if !ok || !v.Equal(v2) {
			return false
		}
	}
	return true
}

// Fields returns the sorted field names.
func (r Record) Fields() []string {
	fields := maps.Keys(r)
	slices.Sort(fields)
	return fields
}

// findNaN returns the path of the first NaN or infinite number in the record,
// if any, visiting fields in sorted order.
func (r Record) findNaN() (string, bool) {
	for _, k := range r.Fields() {
		if path, ok := findNaNValue(r[k]); ok {
			return k + path, true
		}
	}
	return "", false
}

func findNaNValue(v Value) (string, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return "", true
		}
	case KindList:
		for i, e := range v.list {
			if path, ok := findNaNValue(e); ok {
				return fmt.Sprintf("[%d]%s", i, path), true
			}
		}
	case KindObject:
		if path, ok := v.obj.findNaN(); ok {
			return "." + path, true
		}
	}
	return "", false
}

// FromTable converts each table row to a Record, pairing column names with the
// cells. Missing and NaN cells become explicit nulls.
func FromTable(t *table.Table) ([]Record, error) {
	if err := t.Check(); err != nil {
		return nil, errors.Annotate(err, "invalid table")
	}
	res := make([]Record, len(t.Rows))
	for i, row := range t.Rows {
		r := make(Record, len(t.Header))
		for j, c := range row {
			r[t.Header[j]] = fromCell(c)
		}
		res[i] = r
	}
	return res, nil
}

func fromCell(c table.Cell) Value {
	if c.IsMissing() {
		return Null()
	}
	switch c.Kind {
	case table.StringCell:
		return String(c.Str())
	case table.NumberCell:
		if text := c.Text(); text != "" {
			if v, err := numberFromJSON(json.Number(text)); err == nil {
				return v
			}
		}
		return Number(c.Num())
	case table.BoolCell:
		return Bool(c.Bool())
	}
	return Null()
}

func toCell(v Value) table.Cell {
	switch v.kind {
	case KindString:
		return table.String(v.str)
	case KindNumber:
		if v.raw != "" {
			if c, ok := table.NumberText(string(v.raw)); ok {
				return c
			}
		}
		return table.Number(v.num)
	case KindBool:
		return table.Bool(v.boolean)
	case KindList, KindObject:
		return table.String(v.String())
	}
	return table.Missing()
}

// ToTable lays out records as a table. The columns are the union of all the
// field names in sorted order; absent fields become missing cells.
func ToTable(rs []Record) *table.Table {
	columns := make(map[string]struct{})
	for _, r := range rs {
		for k := range r {
			columns[k] = struct{}{}
		}
	}
	header := maps.Keys(columns)
	slices.Sort(header)
	t := table.NewTable(header...)
	for _, r := range rs {
		row := make(table.Row, len(header))
		for i, h := range header {
			if v, ok := r[h]; ok {
				row[i] = toCell(v)
			}
		}
		t.AddRow(row)
	}
	return t
}
