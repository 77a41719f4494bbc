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

// Package message initializes configuration structs from generic decoded
// documents, as produced by encoding/json or go-toml when unmarshaled into
// interface{}. Struct tags declare required fields, defaults and the allowed
// values of a field.
package message

import (
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Message is implemented by configuration struct pointers, e.g.:
//
//   type Server struct {
//     Host string `json:"host" required:"true"`
//     Port int `json:"port" default:"9100"`
//     Protocol string `json:"protocol" default:"http" choices:"http,https"`
//     Ignored int `json:"-"`
//   }
//
//   func (s *Server) InitMessage(js interface{}) error {
//     return message.Init(s, js)
//   }
type Message interface {
	// InitMessage fills in the message from a decoded document, usually with
	// Init, and then validates whatever the tags cannot express.
	InitMessage(js interface{}) error
}

var messageType = reflect.TypeOf((*Message)(nil)).Elem()

// newMessage creates a new instance of the pointer type t and initializes it
// from doc.
func newMessage(doc interface{}, t reflect.Type) (reflect.Value, error) {
	if t.Kind() != reflect.Ptr {
		return reflect.Value{}, errors.Reason(
			"type %s implements Message but is not a pointer", t.Name())
	}
	ptr := reflect.New(t.Elem())
	if err := ptr.Interface().(Message).InitMessage(doc); err != nil {
		return reflect.Value{}, errors.Annotate(err, "%s.InitMessage() failed", t.Elem().Name())
	}
	return ptr, nil
}

// toInt accepts a JSON number (float64) or a TOML integer (int64). A
// fractional number is an error.
func toInt(doc interface{}) (int64, error) {
	switch v := doc.(type) {
	case int64:
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, errors.Reason("not an integer: %v", v)
		}
		return int64(v), nil
	}
	return 0, errors.Reason("not a numeric type: %v", doc)
}

func toFloat(doc interface{}) (float64, error) {
	switch v := doc.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	}
	return 0, errors.Reason("not a numeric type: %v", doc)
}

// convert turns a decoded value into type t: a nested Message, a pointer,
// a scalar, a slice or a string-keyed map of those. A nil doc gives the zero
// value, except for a Message value type which still gets its defaults.
func convert(doc interface{}, t reflect.Type) (reflect.Value, error) {
	if t.Implements(messageType) {
		if doc == nil {
			return reflect.Zero(t), nil
		}
		return newMessage(doc, t)
	}
	if pt := reflect.PtrTo(t); pt.Implements(messageType) {
		if doc == nil {
			doc = map[string]interface{}{}
		}
		ptr, err := newMessage(doc, pt)
		if err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}
	if doc == nil {
		return reflect.Zero(t), nil
	}
	switch t.Kind() {
	case reflect.Ptr:
		v, err := convert(doc, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		b, ok := doc.(bool)
		if !ok {
			return reflect.Value{}, errors.Reason("not a bool type: %v", doc)
		}
		return reflect.ValueOf(b).Convert(t), nil
	case reflect.Int, reflect.Int64:
		n, err := toInt(doc)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float64:
		f, err := toFloat(doc)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.String:
		s, ok := doc.(string)
		if !ok {
			return reflect.Value{}, errors.Reason("not a string type: %v", doc)
		}
		return reflect.ValueOf(s).Convert(t), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return reflect.Value{}, errors.Reason("map[%s] is not supported", t.Key().Kind())
		}
		m, ok := doc.(map[string]interface{})
		if !ok {
			return reflect.Value{}, errors.Reason("not a map[string] type: %v", doc)
		}
		res := reflect.MakeMapWithSize(t, len(m))
		for k, x := range m {
			v, err := convert(x, t.Elem())
			if err != nil {
				return reflect.Value{}, errors.Annotate(err, "key %s", k)
			}
			res.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), v)
		}
		return res, nil
	case reflect.Slice:
		xs, ok := doc.([]interface{})
		if !ok {
			return reflect.Value{}, errors.Reason("not a slice type: %v", doc)
		}
		res := reflect.MakeSlice(t, len(xs), len(xs))
		for i, x := range xs {
			v, err := convert(x, t.Elem())
			if err != nil {
				return reflect.Value{}, errors.Annotate(err, "element %d", i)
			}
			res.Index(i).Set(v)
		}
		return res, nil
	}
	return reflect.Value{}, errors.Reason("unsupported type: %s", t.Name())
}

// parseDefault converts the text of a default tag to type t.
func parseDefault(s string, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Ptr:
		v, err := parseDefault(s, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, errors.Annotate(err, "invalid bool value: %s", s)
		}
		return reflect.ValueOf(b).Convert(t), nil
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return reflect.Value{}, errors.Annotate(err, "invalid int value: %s", s)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return reflect.Value{}, errors.Annotate(err, "invalid float64 value: %s", s)
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.String:
		return reflect.ValueOf(s).Convert(t), nil
	}
	return reflect.Value{}, errors.Reason("type %s is not supported", t.Name())
}

// assign sets the field to v, checking v against the field's choices tag.
func assign(f reflect.StructField, field, v reflect.Value) error {
	if choices, ok := f.Tag.Lookup("choices"); ok {
		if f.Type.Kind() != reflect.String {
			return errors.Reason("choices tag applied to a non-string field: %s", f.Name)
		}
		if s := v.String(); !StringIn(s, strings.Split(choices, ",")...) {
			return errors.Reason("value for %s is not in its choice list: '%s'", f.Name, s)
		}
	}
	field.Set(v)
	return nil
}

// key is the document key of a struct field, following encoding/json: the
// field name unless the json tag renames it. Unexported and `json:"-"` fields
// have no key.
func key(f reflect.StructField) (string, bool) {
	if r, _ := utf8.DecodeRuneInString(f.Name); !unicode.IsUpper(r) {
		return "", false
	}
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	switch name {
	case "-":
		return "", false
	case "":
		return f.Name, true
	}
	return name, true
}

// Init is the usual implementation of InitMessage. m must be a struct pointer
// and js a map[string]interface{}. Each exported field is set from js, or else:
//
//   - a field tagged `required:"true"` is reported missing;
//   - a field tagged `default:"value"` gets the value (scalars only);
//   - any other field gets its zero value, or its defaults if it's a Message.
//
// A `choices:"a,b,c"` tag restricts a string field, including its default or
// zero value. Keys in js that match no field are an error.
func Init(m Message, js interface{}) error {
	rt := reflect.TypeOf(m)
	if rt.Kind() != reflect.Ptr || rt.Elem().Kind() != reflect.Struct {
		return errors.Reason("expected Message instance to be a struct pointer, but got %s.", rt.Name())
	}
	if js == nil {
		return errors.Reason("JSON object is nil")
	}
	doc, ok := js.(map[string]interface{})
	if !ok {
		return errors.Reason("JSON object is not a map: %v.", js)
	}
	rt = rt.Elem()
	rv := reflect.ValueOf(m).Elem()
	unknown := make(map[string]struct{}, len(doc))
	for k := range doc {
		unknown[k] = struct{}{}
	}
	var missing []string
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		k, ok := key(f)
		if !ok {
			continue
		}
		if x, ok := doc[k]; ok {
			delete(unknown, k)
			v, err := convert(x, f.Type)
			if err != nil {
				return errors.Annotate(err, "error assigning field %s", f.Name)
			}
			if err := assign(f, rv.Field(i), v); err != nil {
				return err
			}
			continue
		}
		if f.Tag.Get("required") == "true" {
			missing = append(missing, k)
			continue
		}
		var v reflect.Value
		var err error
		if d, ok := f.Tag.Lookup("default"); ok {
			v, err = parseDefault(d, f.Type)
		} else {
			v, err = convert(nil, f.Type)
		}
		if err != nil {
			return errors.Annotate(err, "error setting default value for %s", f.Name)
		}
		if err := assign(f, rv.Field(i), v); err != nil {
			return errors.Annotate(err, "error setting default value for %s", f.Name)
		}
	}
	if len(missing) > 0 {
		return errors.Reason("missing required fields: %s", strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		extra := maps.Keys(unknown)
		slices.Sort(extra)
		return errors.Reason("unsupported fields for %s: %s", rt.Name(), strings.Join(extra, ", "))
	}
	return nil
}

// StringIn checks that s equals one of the values.
func StringIn(s string, values ...string) bool {
	return slices.Contains(values, s)
}
