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

// Package backup manages server backups: listing, inspecting, starting and
// canceling them.
package backup

import (
	"context"
	"net/http"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/unifyclient/unify/session"
)

// Backup of the server.
type Backup struct {
	URL          string
	ResourceID   string
	Path         string
	State        string
	ErrorMessage string
}

// backupJSON is the server representation of a Backup.
type backupJSON struct {
	ID           string `json:"id"`
	RelativeID   string `json:"relativeId"`
	BackupPath   string `json:"backupPath"`
	State        string `json:"state"`
	ErrorMessage string `json:"errorMessage"`
}

func (b *backupJSON) backup() *Backup {
	return &Backup{
		URL:          b.ID,
		ResourceID:   b.RelativeID,
		Path:         b.BackupPath,
		State:        b.State,
		ErrorMessage: b.ErrorMessage,
	}
}

func notFound(resp *http.Response, url string) error {
	if resp.StatusCode != http.StatusNotFound {
		return nil
	}
	session.Discard(resp)
	return &session.NotFoundError{URL: url}
}

func invalidOperation(resp *http.Response, url string) error {
	if resp.StatusCode != http.StatusBadRequest {
		return nil
	}
	return &session.InvalidOperationError{URL: url, Message: session.ErrorMessage(resp)}
}

func decode(resp *http.Response) (*Backup, error) {
	var js backupJSON
	if err := session.DecodeJSON(resp, &js); err != nil {
		return nil, err
	}
	return js.backup(), nil
}

// GetAll lists all the backups.
func GetAll(ctx context.Context) ([]*Backup, error) {
	s, err := session.MustGetSession(ctx)
	if err != nil {
		return nil, err
	}
	url := s.URL("backups")
	resp, err := s.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := notFound(resp, url); err != nil {
		return nil, err
	}
	var js []backupJSON
	if err := session.DecodeJSON(resp, &js); err != nil {
		return nil, errors.Annotate(err, "failed to list backups")
	}
	res := make([]*Backup, len(js))
	for i := range js {
		res[i] = js[i].backup()
	}
	return res, nil
}

// FromResourceID fetches a single backup. A missing backup is reported as
// *session.NotFoundError.
func FromResourceID(ctx context.Context, id string) (*Backup, error) {
	s, err := session.MustGetSession(ctx)
	if err != nil {
		return nil, err
	}
	url := s.URL("backups/" + id)
	resp, err := s.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := notFound(resp, url); err != nil {
		return nil, err
	}
	b, err := decode(resp)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch backup %s", id)
	}
	return b, nil
}

// Initiate starts a new backup. If the server refuses, e.g. because another
// backup is running, the result is *session.InvalidOperationError with the
// server's explanation.
func Initiate(ctx context.Context) (*Backup, error) {
	s, err := session.MustGetSession(ctx)
	if err != nil {
		return nil, err
	}
	url := s.URL("backups")
	resp, err := s.Post(ctx, url, "", nil)
	if err != nil {
		return nil, err
	}
	if err := invalidOperation(resp, url); err != nil {
		return nil, err
	}
	b, err := decode(resp)
	if err != nil {
		return nil, errors.Annotate(err, "failed to initiate backup")
	}
	logging.Infof(ctx, "initiated backup %s", b.ResourceID)
	return b, nil
}

// Cancel stops a running backup.
func Cancel(ctx context.Context, b *Backup) (*Backup, error) {
	s, err := session.MustGetSession(ctx)
	if err != nil {
		return nil, err
	}
	url := s.URL("backups/" + b.ResourceID + ":cancel")
	resp, err := s.Post(ctx, url, "", nil)
	if err != nil {
		return nil, err
	}
	if err := notFound(resp, url); err != nil {
		return nil, err
	}
	if err := invalidOperation(resp, url); err != nil {
		return nil, err
	}
	canceled, err := decode(resp)
	if err != nil {
		return nil, errors.Annotate(err, "failed to cancel backup %s", b.ResourceID)
	}
	logging.Infof(ctx, "canceled backup %s: %s", canceled.ResourceID, canceled.State)
	return canceled, nil
}
