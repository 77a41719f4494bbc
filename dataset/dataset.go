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

// Package dataset implements the dataset API: looking up datasets and reading
// and writing their records.
//
// All the calls use the session.Session from the context. Writes go through a
// single bulk update request per call; reads stream the records lazily.
package dataset

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/unifyclient/unify/records"
	"github.com/unifyclient/unify/session"
	"github.com/unifyclient/unify/table"
)

// Dataset is a server-side collection of records.
type Dataset struct {
	URL               string // API location of the dataset
	ID                string // server-side identifier, e.g. "unify://unified-data/v1/datasets/1"
	ResourceID        string
	Name              string
	Description       string
	KeyAttributeNames []string
	Version           string
}

// datasetJSON is the server representation of a Dataset.
type datasetJSON struct {
	ID                string   `json:"id"`
	RelativeID        string   `json:"relativeId"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	KeyAttributeNames []string `json:"keyAttributeNames"`
	Version           string   `json:"version"`
}

func (d *datasetJSON) dataset(s *session.Session) *Dataset {
	ds := &Dataset{
		ID:                d.ID,
		ResourceID:        d.RelativeID,
		Name:              d.Name,
		Description:       d.Description,
		KeyAttributeNames: d.KeyAttributeNames,
		Version:           d.Version,
	}
	if ds.ResourceID != "" {
		ds.URL = s.URL(ds.ResourceID)
	}
	return ds
}

// New creates a Dataset at the given URL without fetching its metadata.
func New(url string) *Dataset {
	return &Dataset{URL: strings.TrimRight(url, "/")}
}

// FromResourceID fetches the dataset "datasets/{id}". A missing dataset is
// reported as *session.NotFoundError.
func FromResourceID(ctx context.Context, id string) (*Dataset, error) {
	s, err := session.MustGetSession(ctx)
	if err != nil {
		return nil, err
	}
	u := s.URL("datasets/" + id)
	resp, err := s.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		session.Discard(resp)
		return nil, &session.NotFoundError{URL: u}
	}
	var js datasetJSON
	if err := session.DecodeJSON(resp, &js); err != nil {
		return nil, errors.Annotate(err, "failed to fetch dataset %s", id)
	}
	ds := js.dataset(s)
	if ds.URL == "" {
		ds.URL = u
	}
	if ds.ResourceID == "" {
		ds.ResourceID = "datasets/" + id
	}
	return ds, nil
}

// FromName finds the unique dataset with the given name.
func FromName(ctx context.Context, name string) (*Dataset, error) {
	s, err := session.MustGetSession(ctx)
	if err != nil {
		return nil, err
	}
	u := s.URL("datasets?" + url.Values{"filter": []string{"name==" + name}}.Encode())
	resp, err := s.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	var js []datasetJSON
	if err := session.DecodeJSON(resp, &js); err != nil {
		return nil, errors.Annotate(err, "failed to list datasets named %s", name)
	}
	switch len(js) {
	case 0:
		return nil, &session.NotFoundError{URL: u}
	case 1:
		ds := js[0].dataset(s)
		if ds.URL == "" {
			return nil, errors.Reason("dataset %s has no relativeId", name)
		}
		return ds, nil
	}
	return nil, errors.Reason("%d datasets are named %s", len(js), name)
}

// RecordsURL is the record collection of the dataset.
func (d *Dataset) RecordsURL() string {
	return d.URL + "/records"
}

// UpdateURL is the bulk update endpoint of the dataset.
func (d *Dataset) UpdateURL() string {
	return d.URL + ":updateRecords"
}

// keyField resolves an empty key field to the dataset's single key attribute.
func (d *Dataset) keyField(keyField string) (string, error) {
	if keyField != "" {
		return keyField, nil
	}
	if len(d.KeyAttributeNames) == 1 {
		return d.KeyAttributeNames[0], nil
	}
	return "", errors.Reason("no key field given and dataset %s has %d key attributes",
		d.URL, len(d.KeyAttributeNames))
}

// Records streams all the records of the dataset. Each call sends a new
// request on the first Next.
func (d *Dataset) Records(ctx context.Context) *records.Iterator {
	return records.NewIterator(ctx, d.RecordsURL())
}

// AllRecords reads all the records into memory.
func (d *Dataset) AllRecords(ctx context.Context) ([]records.Record, error) {
	it := d.Records(ctx)
	defer it.Close()
	rs := iterator.Reduce[records.Record, []records.Record](
		it, []records.Record{}, func(r records.Record, rs []records.Record) []records.Record {
			return append(rs, r)
		})
	if err := it.Err(); err != nil {
		return nil, errors.Annotate(err, "failed to read records of %s", d.URL)
	}
	return rs, nil
}

// Update sends arbitrary commands in one bulk update.
func (d *Dataset) Update(ctx context.Context, cmds []records.Command) (*records.BulkUpdateResult, error) {
	res, err := records.Update(ctx, d.UpdateURL(), cmds)
	if err != nil {
		return nil, err
	}
	logging.Infof(ctx, "%s: %d commands processed, all succeeded: %v",
		d.URL, res.CommandsProcessed, res.AllSucceeded)
	return res, nil
}

// Upsert creates the records, overwriting any existing records with the same
// key. Every record must have keyField; an empty keyField means the dataset's
// key attribute.
func (d *Dataset) Upsert(ctx context.Context, rs []records.Record, keyField string) (*records.BulkUpdateResult, error) {
	key, err := d.keyField(keyField)
	if err != nil {
		return nil, err
	}
	if err := records.CheckKeys(rs, key); err != nil {
		return nil, err
	}
	cmds, err := records.CreateCommands(rs)
	if err != nil {
		return nil, err
	}
	return d.Update(ctx, cmds)
}

// UpsertFromTable is Upsert for tabular data. Missing and NaN cells are sent
// as nulls.
func (d *Dataset) UpsertFromTable(ctx context.Context, t *table.Table, keyField string) (*records.BulkUpdateResult, error) {
	rs, err := records.FromTable(t)
	if err != nil {
		return nil, err
	}
	return d.Upsert(ctx, rs, keyField)
}

// Delete removes the records identified by their keyField values.
func (d *Dataset) Delete(ctx context.Context, rs []records.Record, keyField string) (*records.BulkUpdateResult, error) {
	key, err := d.keyField(keyField)
	if err != nil {
		return nil, err
	}
	cmds, err := records.DeleteCommandsByKey(rs, key)
	if err != nil {
		return nil, err
	}
	return d.Update(ctx, cmds)
}

// DeleteByID removes the records with the given ids.
func (d *Dataset) DeleteByID(ctx context.Context, ids []records.Value) (*records.BulkUpdateResult, error) {
	return d.Update(ctx, records.DeleteCommandsByID(ids))
}

// DeleteAll removes every record of the dataset in a single request. The
// successful response is returned as is, with its (empty) body closed.
func (d *Dataset) DeleteAll(ctx context.Context) (*http.Response, error) {
	s, err := session.MustGetSession(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.Delete(ctx, d.RecordsURL())
	if err != nil {
		return nil, err
	}
	if resp, err = session.Successful(resp); err != nil {
		return nil, err
	}
	session.Discard(resp)
	logging.Infof(ctx, "%s: deleted all records", d.URL)
	return resp, nil
}
