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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Kind of a Value.
type Kind int

// Values of Kind. The zero Value is Null.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value of a record field: null, string, number, bool, list or a nested
// object.
type Value struct {
	kind    Kind
	str     string
	num     float64
	raw     json.Number // exact number text when known
	boolean bool
	list    []Value
	obj     Record
}

// Null value.
func Null() Value { return Value{} }

// String value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number value from a float. NaN is accepted here but cannot be encoded.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int value.
func Int(i int64) Value {
	return Value{kind: KindNumber, num: float64(i), raw: json.Number(strconv.FormatInt(i, 10))}
}

// Bool value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// List value.
func List(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindList, list: vs}
}

// Object value holding a nested record.
func Object(r Record) Value {
	if r == nil {
		r = Record{}
	}
	return Value{kind: KindObject, obj: r}
}

// Uint value. Unlike Int, it covers the whole uint64 range.
func Uint(u uint64) Value {
	return Value{kind: KindNumber, num: float64(u), raw: json.Number(strconv.FormatUint(u, 10))}
}

// numberFromJSON keeps the exact text of a decoded number. The text must be a
// JSON number literal: "NaN", "Inf", hex floats and the like are rejected.
func numberFromJSON(n json.Number) (Value, error) {
	s := string(n)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, errors.Annotate(err, "invalid number %s", s)
	}
	if !json.Valid([]byte(s)) || strings.TrimSpace(s) != s {
		return Value{}, errors.Reason("not a JSON number: %s", s)
	}
	return Value{kind: KindNumber, num: f, raw: n}, nil
}

// Kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull is true for the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNaN is true for a number which is NaN.
func (v Value) IsNaN() bool { return v.kind == KindNumber && math.IsNaN(v.num) }

// Str returns the string of a KindString value.
func (v Value) Str() string { return v.str }

// Float returns the number of a KindNumber value.
func (v Value) Float() float64 { return v.num }

// Bool returns the value of a KindBool value.
func (v Value) Bool() bool { return v.boolean }

// List returns the elements of a KindList value.
func (v Value) List() []Value { return v.list }

// Object returns the record of a KindObject value.
func (v Value) Object() Record { return v.obj }

// Interface converts the value to the generic form used by encoding/json:
// nil, string, float64, bool, []interface{} or map[string]interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.boolean
	case KindList:
		res := make([]interface{}, len(v.list))
		for i, x := range v.list {
			res[i] = x.Interface()
		}
		return res
	case KindObject:
		return v.obj.Interface()
	}
	return nil
}

// String prints the value in its JSON form, or "NaN".
func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	if v.IsNaN() {
		return "NaN"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s: %s>", v.kind, err.Error())
	}
	return string(b)
}

// Equal compares two values. Numbers compare by their float value, so Int(1)
// equals Number(1).
func (v Value) Equal(v2 Value) bool {
	if v.kind != v2.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == v2.str
	case KindNumber:
		return v.num == v2.num
	case KindBool:
		return v.boolean == v2.boolean
	case KindList:
		if len(v.list) != len(v2.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(v2.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.obj.Equal(v2.obj)
	}
	return true
}

// MarshalJSON implements json.Marshaler. NaN and infinite numbers fail with
// *NaNError.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, &NaNError{}
		}
		if v.raw != "" {
			return []byte(v.raw), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.boolean)
	case KindList:
		return json.Marshal(v.list)
	case KindObject:
		return json.Marshal(v.obj)
	}
	return nil, errors.Reason("unknown value kind %d", int(v.kind))
}

// UnmarshalJSON implements json.Unmarshaler, keeping the exact text of
// numbers.
func (v *Value) UnmarshalJSON(data []byte) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var js interface{}
	if err := d.Decode(&js); err != nil {
		return err
	}
	res, err := ValueOf(js)
	if err != nil {
		return err
	}
	*v = res
	return nil
}

// ValueOf converts a native Go value to Value. Supported are nil, Value,
// Record, string, bool, all integer and float types, json.Number, and slices
// and string-keyed maps of those.
func ValueOf(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case Record:
		return Object(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case float32:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case json.Number:
		return numberFromJSON(t)
	case []Value:
		return List(t...), nil
	case []interface{}:
		vs := make([]Value, len(t))
		for i, e := range t {
			v, err := ValueOf(e)
			if err != nil {
				return Value{}, errors.Annotate(err, "element %d", i)
			}
			vs[i] = v
		}
		return List(vs...), nil
	case map[string]interface{}:
		r, err := NewRecord(t)
		if err != nil {
			return Value{}, err
		}
		return Object(r), nil
	}
	return Value{}, errors.Reason("unsupported value type %T", x)
}

// ValuesOf converts a list of native values, e.g. record ids.
func ValuesOf(xs ...interface{}) ([]Value, error) {
	res := make([]Value, len(xs))
	for i, x := range xs {
		v, err := ValueOf(x)
		if err != nil {
			return nil, errors.Annotate(err, "value %d", i)
		}
		res[i] = v
	}
	return res, nil
}
