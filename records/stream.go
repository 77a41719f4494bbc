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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/unifyclient/unify/session"
)

// MaxLineLength is the largest record, in bytes, the Iterator accepts.
const MaxLineLength = 16 * 1024 * 1024

// Iterator streams records from a newline-delimited JSON response, one line
// at a time. The request is sent on the first call to Next. An Iterator cannot
// be restarted; create a new one to re-read the records.
type Iterator struct {
	context context.Context
	url     string
	body    io.ReadCloser
	scanner *bufio.Scanner
	count   int  // records returned so far, for logging
	started bool // if at least one Next call was ever made
	done    bool
	err     error
}

var _ iterator.Iterator[Record] = &Iterator{}

// NewIterator creates a lazy iterator over the records at url, using the
// Session from the context.
func NewIterator(ctx context.Context, url string) *Iterator {
	return &Iterator{context: ctx, url: url}
}

// NewReaderIterator decodes records from an already open stream. It takes
// ownership of r and closes it with Close.
func NewReaderIterator(ctx context.Context, r io.ReadCloser) *Iterator {
	it := &Iterator{context: ctx, started: true}
	it.setBody(r)
	return it
}

func (it *Iterator) setBody(r io.ReadCloser) {
	it.body = r
	it.scanner = bufio.NewScanner(r)
	it.scanner.Buffer(make([]byte, 64*1024), MaxLineLength)
}

func (it *Iterator) start() error {
	s, err := session.MustGetSession(it.context)
	if err != nil {
		return err
	}
	resp, err := s.Get(it.context, it.url)
	if err != nil {
		return err
	}
	if resp, err = session.Successful(resp); err != nil {
		return err
	}
	it.setBody(resp.Body)
	logging.Debugf(it.context, "streaming records from %s", it.url)
	return nil
}

func (it *Iterator) fail(err error) (Record, bool) {
	it.err = err
	it.Close()
	return nil, false
}

// Next returns the next record. When there are no more records, or an error
// occurred, the second value is false; check Err afterwards.
func (it *Iterator) Next() (Record, bool) {
	if it.done {
		return nil, false
	}
	if !it.started {
		it.started = true
		if err := it.start(); err != nil {
			return it.fail(err)
		}
	}
	for it.scanner.Scan() {
		line := bytes.TrimSpace(it.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		d := json.NewDecoder(bytes.NewReader(line))
		d.UseNumber()
		var js map[string]interface{}
		if err := d.Decode(&js); err != nil {
			return it.fail(errors.Annotate(err, "failed to decode record %d", it.count+1))
		}
		r, err := NewRecord(js)
		if err != nil {
			return it.fail(errors.Annotate(err, "failed to convert record %d", it.count+1))
		}
		it.count++
		return r, true
	}
	if err := it.scanner.Err(); err != nil {
		return it.fail(errors.Annotate(err, "failed to read record %d", it.count+1))
	}
	logging.Debugf(it.context, "read %d records from %s", it.count, it.url)
	it.Close()
	return nil, false
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the response. It is safe to call Close more than once, and
// Next returns no more records after it.
func (it *Iterator) Close() {
	it.done = true
	it.started = true
	if it.body != nil {
		it.body.Close()
		it.body = nil
	}
}
