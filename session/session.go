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

// Package session implements the transport layer shared by all the API
// packages: the server instance and its URL scheme, credentials, and the
// authenticated HTTP calls.
//
// A Session is injected into the context with UseSession, and the API
// packages (dataset, backup) retrieve it with GetSession, so the calling code
// only needs to set it up once:
//
//   s := session.New(session.DefaultInstance(), session.UsernamePasswordAuth{
//     Username: "admin", Password: "secret"})
//   ctx = session.UseSession(ctx, s)
//   ds, err := dataset.FromResourceID(ctx, "1")
package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

type contextKey int

const (
	sessionContextKey contextKey = iota
)

// Default values of the server Instance.
const (
	DefaultProtocol = "http"
	DefaultHost     = "localhost"
	DefaultPort     = 9100
	DefaultBasePath = "/api/versioned/v1/"
)

// Instance identifies the server and the root of its versioned API.
type Instance struct {
	Protocol string // "http" or "https"
	Host     string
	Port     int // 0 means the protocol's default port
	BasePath string
}

// DefaultInstance is the server running locally on the default port.
func DefaultInstance() Instance {
	return Instance{
		Protocol: DefaultProtocol,
		Host:     DefaultHost,
		Port:     DefaultPort,
		BasePath: DefaultBasePath,
	}
}

// Origin returns the scheme, host and optional port, e.g.
// "http://localhost:9100".
func (i Instance) Origin() string {
	protocol := i.Protocol
	if protocol == "" {
		protocol = DefaultProtocol
	}
	if i.Port != 0 {
		return fmt.Sprintf("%s://%s:%d", protocol, i.Host, i.Port)
	}
	return fmt.Sprintf("%s://%s", protocol, i.Host)
}

// URL resolves an API path. A relative path, e.g. "datasets/1", is appended to
// the base path. A path starting with "/" is taken relative to the origin,
// and a full URL is returned as is.
func (i Instance) URL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return i.Origin() + path
	}
	base := i.BasePath
	if base == "" {
		base = DefaultBasePath
	}
	base = "/" + strings.Trim(base, "/") + "/"
	return i.Origin() + base + path
}

// Auth attaches credentials to an outgoing request.
type Auth interface {
	Authorize(req *http.Request)
}

// UsernamePasswordAuth authenticates every request with the server's
// BasicCreds scheme.
type UsernamePasswordAuth struct {
	Username string
	Password string
}

var _ Auth = UsernamePasswordAuth{}

// Authorize implements Auth.
func (a UsernamePasswordAuth) Authorize(req *http.Request) {
	creds := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	req.Header.Set("Authorization", "BasicCreds "+creds)
}

// Session is an authenticated connection to a server Instance. It holds no
// mutable state and is safe to share.
//
// Requests go through the *http.Client installed in the context by
// fetch.UseClient, or http.DefaultClient.
type Session struct {
	Instance Instance
	Auth     Auth        // may be nil for unauthenticated access
	Header   http.Header // added to every request, e.g. a proxy token
}

// New creates a Session.
func New(instance Instance, auth Auth) *Session {
	return &Session{Instance: instance, Auth: auth}
}

// UseSession injects the Session into the context.
func UseSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// GetSession extracts the Session from the context, if any.
func GetSession(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return s
}

// MustGetSession is like GetSession but fails with an error when there is no
// Session in the context.
func MustGetSession(ctx context.Context) (*Session, error) {
	s := GetSession(ctx)
	if s == nil {
		return nil, errors.Reason("no session in context")
	}
	return s, nil
}

// URL is a shortcut for s.Instance.URL(path).
func (s *Session) URL(path string) string {
	return s.Instance.URL(path)
}

func client(ctx context.Context) *http.Client {
	if c := fetch.GetClient(ctx); c != nil {
		return c
	}
	return http.DefaultClient
}

// Do sends an authenticated request. The status code is not checked; see
// Successful. The caller must close the response body.
func (s *Session) Do(ctx context.Context, method, url string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create %s request for %s", method, url)
	}
	for k, vs := range s.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if s.Auth != nil {
		s.Auth.Authorize(req)
	}
	logging.Debugf(ctx, "%s %s", method, url)
	resp, err := client(ctx).Do(req)
	if err != nil {
		return nil, errors.Annotate(err, "%s %s failed", method, url)
	}
	logging.Debugf(ctx, "%s %s: %s", method, url, resp.Status)
	return resp, nil
}

// Get sends a GET request.
func (s *Session) Get(ctx context.Context, url string) (*http.Response, error) {
	return s.Do(ctx, http.MethodGet, url, nil, nil)
}

// Post sends a POST request with an optional body of the given content type.
func (s *Session) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	var header http.Header
	if contentType != "" {
		header = http.Header{"Content-Type": []string{contentType}}
	}
	return s.Do(ctx, http.MethodPost, url, header, body)
}

// Delete sends a DELETE request without a body.
func (s *Session) Delete(ctx context.Context, url string) (*http.Response, error) {
	return s.Do(ctx, http.MethodDelete, url, nil, nil)
}
