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

	"github.com/stockparfait/errors"
)

// Action of a bulk update Command.
type Action string

// Values of Action.
const (
	ActionCreate Action = "CREATE"
	ActionDelete Action = "DELETE"
)

// Command is one line of a bulk update: CREATE with the full record, or DELETE
// by record id.
type Command struct {
	Action Action
	// Seq is the 1-based position of the command in its request. It is local
	// bookkeeping and is never sent.
	Seq int
	// RecordID on the wire: Seq for CREATE, the record's key for DELETE.
	RecordID Value
	Record   Record // CREATE only
}

type createLine struct {
	Action   Action `json:"action"`
	RecordID Value  `json:"recordId"`
	Record   Record `json:"record"`
}

type deleteLine struct {
	Action   Action `json:"action"`
	RecordID Value  `json:"recordId"`
}

// MarshalJSON implements json.Marshaler.
func (c Command) MarshalJSON() ([]byte, error) {
	switch c.Action {
	case ActionCreate:
		r := c.Record
		if r == nil {
			r = Record{}
		}
		return json.Marshal(createLine{Action: c.Action, RecordID: c.RecordID, Record: r})
	case ActionDelete:
		return json.Marshal(deleteLine{Action: c.Action, RecordID: c.RecordID})
	}
	return nil, errors.Reason("unknown action %q", string(c.Action))
}

// NaNError is returned when a record destined for the server holds a NaN (or
// infinite) number, which has no JSON representation.
type NaNError struct {
	Seq   int    // 1-based position of the offending record; 0 if unknown
	Field string // path of the offending field, e.g. "a.b[2]"
}

func (e *NaNError) Error() string {
	if e.Seq == 0 {
		return "NaN values are not JSON compliant"
	}
	return fmt.Sprintf("record %d: field %q: NaN values are not JSON compliant",
		e.Seq, e.Field)
}

// MissingKeyError is returned when a record lacks its key field.
type MissingKeyError struct {
	Seq      int // 1-based position of the record
	KeyField string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("record %d has no key field %q", e.Seq, e.KeyField)
}

// CreateCommands wraps each record in a CREATE command numbered by its 1-based
// position. Any NaN value fails the whole batch with *NaNError.
func CreateCommands(rs []Record) ([]Command, error) {
	cmds := make([]Command, len(rs))
	for i, r := range rs {
		seq := i + 1
		if field, ok := r.findNaN(); ok {
			return nil, &NaNError{Seq: seq, Field: field}
		}
		cmds[i] = Command{
			Action:   ActionCreate,
			Seq:      seq,
			RecordID: Int(int64(seq)),
			Record:   r,
		}
	}
	return cmds, nil
}

// CheckKeys verifies that every record has the key field.
func CheckKeys(rs []Record, keyField string) error {
	for i, r := range rs {
		if _, ok := r[keyField]; !ok {
			return &MissingKeyError{Seq: i + 1, KeyField: keyField}
		}
	}
	return nil
}

// DeleteCommandsByKey creates DELETE commands addressing each record by the
// value of its key field, in input order.
func DeleteCommandsByKey(rs []Record, keyField string) ([]Command, error) {
	if err := CheckKeys(rs, keyField); err != nil {
		return nil, err
	}
	ids := make([]Value, len(rs))
	for i, r := range rs {
		ids[i] = r[keyField]
	}
	return DeleteCommandsByID(ids), nil
}

// DeleteCommandsByID creates a DELETE command for each id, as is.
func DeleteCommandsByID(ids []Value) []Command {
	cmds := make([]Command, len(ids))
	for i, id := range ids {
		cmds[i] = Command{Action: ActionDelete, Seq: i + 1, RecordID: id}
	}
	return cmds
}
