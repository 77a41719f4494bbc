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
	"context"
	"encoding/json"
	"io"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/unifyclient/unify/session"
)

// ValidationError is a server report about a rejected command, passed through
// as is.
type ValidationError = Record

// BulkUpdateResult is the server response to a bulk update. A partial failure
// is a valid result: check AllSucceeded and ValidationErrors.
type BulkUpdateResult struct {
	CommandsProcessed int               `json:"numCommandsProcessed"`
	AllSucceeded      bool              `json:"allCommandsSucceeded"`
	ValidationErrors  []ValidationError `json:"validationErrors"`
}

// EncodeCommands writes one JSON object per line, in order.
func EncodeCommands(w io.Writer, cmds []Command) error {
	for _, c := range cmds {
		if c.Action == ActionCreate {
			if field, ok := c.Record.findNaN(); ok {
				return &NaNError{Seq: c.Seq, Field: field}
			}
		}
		b, err := json.Marshal(c)
		if err != nil {
			return errors.Annotate(err, "failed to encode command %d", c.Seq)
		}
		b = append(b, '\n')
		if _, err := w.Write(b); err != nil {
			return errors.Annotate(err, "failed to write command %d", c.Seq)
		}
	}
	return nil
}

// Update sends the commands in a single POST request to url, typically
// "{dataset}:updateRecords", using the Session from the context. The body is
// encoded completely before the request is made, so an encoding error leaves
// the server untouched.
func Update(ctx context.Context, url string, cmds []Command) (*BulkUpdateResult, error) {
	s, err := session.MustGetSession(ctx)
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	if err := EncodeCommands(&body, cmds); err != nil {
		return nil, err
	}
	logging.Debugf(ctx, "sending %d commands (%d bytes) to %s", len(cmds), body.Len(), url)
	resp, err := s.Post(ctx, url, "application/json", &body)
	if err != nil {
		return nil, err
	}
	var res BulkUpdateResult
	if err := session.DecodeJSON(resp, &res); err != nil {
		return nil, err
	}
	if !res.AllSucceeded {
		logging.Warningf(ctx, "%s: %d of %d commands processed, %d validation errors",
			url, res.CommandsProcessed, len(cmds), len(res.ValidationErrors))
	}
	return &res, nil
}
