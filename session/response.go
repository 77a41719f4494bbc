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

package session

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
)

// maxErrorBodySize limits how much of a failed response is kept in HTTPError.
const maxErrorBodySize = 64 * 1024

// HTTPError is a response with a status code outside of the 2xx range which the
// calling operation did not interpret any further.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string // possibly truncated
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// NotFoundError is returned for a 404 response to a request addressing a
// specific resource.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.URL)
}

// InvalidOperationError is returned for a 400 response when the server refuses
// the requested state transition, e.g. starting a second backup.
type InvalidOperationError struct {
	URL     string
	Message string // as supplied by the server
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation at %s: %s", e.URL, e.Message)
}

// Successful checks the response status. A 2xx response is returned as is.
// Otherwise the body is read and closed, and an *HTTPError is returned.
func Successful(resp *http.Response) (*http.Response, error) {
	if fetch.ResponseOK(resp) {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.URL = resp.Request.URL.String()
	}
	return nil, e
}

// DecodeJSON validates the response status, decodes the JSON body into v and
// closes the body.
func DecodeJSON(resp *http.Response, v interface{}) error {
	resp, err := Successful(resp)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Annotate(err, "failed to decode JSON response")
	}
	return nil
}

// ErrorMessage reads the "message" field of a JSON error response and closes
// the body. A body that is not such JSON is returned verbatim.
func ErrorMessage(resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return ""
	}
	var js struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &js); err != nil || js.Message == "" {
		return string(body)
	}
	return js.Message
}

// Discard drains and closes the response body.
func Discard(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
