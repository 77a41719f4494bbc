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

package dataset

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stockparfait/fetch"
	"github.com/unifyclient/unify/records"
	"github.com/unifyclient/unify/session"
	"github.com/unifyclient/unify/table"

	. "github.com/smartystreets/goconvey/convey"
)

type testResponse struct {
	Status int
	Body   string
}

type testRequest struct {
	Method string
	URI    string
	Body   string
}

// testServer answers "METHOD /request/uri" from Responses, 404 otherwise, and
// records every request.
type testServer struct {
	*httptest.Server
	Responses map[string]testResponse
	Requests  []testRequest
}

func newTestServer() *testServer {
	ts := &testServer{Responses: make(map[string]testResponse)}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ts.Requests = append(ts.Requests, testRequest{
			Method: r.Method, URI: r.URL.RequestURI(), Body: string(b)})
		resp, ok := ts.Responses[r.Method+" "+r.URL.RequestURI()]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if resp.Status == 0 {
			resp.Status = http.StatusOK
		}
		w.WriteHeader(resp.Status)
		w.Write([]byte(resp.Body))
	}))
	return ts
}

func (ts *testServer) context() context.Context {
	s := &session.Session{
		Instance: session.Instance{
			Host:     strings.TrimPrefix(ts.URL, "http://"),
			BasePath: session.DefaultBasePath,
		},
		Auth: session.UsernamePasswordAuth{Username: "username", Password: "password"},
	}
	ctx := fetch.UseClient(context.Background(), ts.Client())
	return session.UseSession(ctx, s)
}

const (
	datasetPath    = "/api/versioned/v1/datasets/1"
	updatePath     = datasetPath + ":updateRecords"
	recordsPath    = datasetPath + "/records"
	responseJSON   = `{"numCommandsProcessed": 2, "allCommandsSucceeded": true, "validationErrors": []}`
	createPayload  = `{"action":"CREATE","recordId":1,"record":{"attribute1":1}}` + "\n" + `{"action":"CREATE","recordId":2,"record":{"attribute1":2}}` + "\n"
	deletePayload  = `{"action":"DELETE","recordId":1}` + "\n" + `{"action":"DELETE","recordId":2}` + "\n"
	recordsPayload = `{"attribute1": 1}` + "\n" + `{"attribute1": 2}`
)

func testRecords() []records.Record {
	var rs []records.Record
	if err := json.Unmarshal([]byte(`[{"attribute1": 1}, {"attribute1": 2}]`), &rs); err != nil {
		panic(err)
	}
	return rs
}

var expectedResult = &records.BulkUpdateResult{
	CommandsProcessed: 2,
	AllSucceeded:      true,
	ValidationErrors:  []records.ValidationError{},
}

func TestDataset(t *testing.T) {
	t.Parallel()

	Convey("Dataset lookup", t, func() {
		server := newTestServer()
		defer server.Close()
		ctx := server.context()

		Convey("by resource ID", func() {
			server.Responses["GET "+datasetPath] = testResponse{Body: `{
				"id": "unify://unified-data/v1/datasets/1",
				"relativeId": "datasets/1",
				"name": "people",
				"keyAttributeNames": ["pk"],
				"version": "3"}`}
			ds, err := FromResourceID(ctx, "1")
			So(err, ShouldBeNil)
			So(ds, ShouldResemble, &Dataset{
				URL:               server.URL + datasetPath,
				ID:                "unify://unified-data/v1/datasets/1",
				ResourceID:        "datasets/1",
				Name:              "people",
				KeyAttributeNames: []string{"pk"},
				Version:           "3",
			})
		})

		Convey("by resource ID with empty metadata", func() {
			server.Responses["GET "+datasetPath] = testResponse{Body: `{}`}
			ds, err := FromResourceID(ctx, "1")
			So(err, ShouldBeNil)
			So(ds.URL, ShouldEqual, server.URL+datasetPath)
			So(ds.ResourceID, ShouldEqual, "datasets/1")
		})

		Convey("missing dataset", func() {
			_, err := FromResourceID(ctx, "2")
			So(err, ShouldNotBeNil)
			notFound, ok := err.(*session.NotFoundError)
			So(ok, ShouldBeTrue)
			So(notFound.URL, ShouldEqual, server.URL+"/api/versioned/v1/datasets/2")
		})

		Convey("by name", func() {
			uri := "/api/versioned/v1/datasets?filter=name%3D%3Dpeople"
			server.Responses["GET "+uri] = testResponse{
				Body: `[{"relativeId": "datasets/1", "name": "people"}]`}
			ds, err := FromName(ctx, "people")
			So(err, ShouldBeNil)
			So(ds.URL, ShouldEqual, server.URL+datasetPath)

			server.Responses["GET "+uri] = testResponse{Body: `[]`}
			_, err = FromName(ctx, "people")
			_, ok := err.(*session.NotFoundError)
			So(ok, ShouldBeTrue)

			server.Responses["GET "+uri] = testResponse{
				Body: `[{"relativeId": "datasets/1"}, {"relativeId": "datasets/2"}]`}
			_, err = FromName(ctx, "people")
			So(err, ShouldNotBeNil)
		})

		Convey("without a session", func() {
			_, err := FromResourceID(context.Background(), "1")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Dataset records", t, func() {
		server := newTestServer()
		defer server.Close()
		ctx := server.context()
		ds := New(server.URL + datasetPath + "/")
		So(ds.URL, ShouldEqual, server.URL+datasetPath)

		Convey("Records streams the records", func() {
			server.Responses["GET "+recordsPath] = testResponse{Body: recordsPayload}
			it := ds.Records(ctx)
			defer it.Close()
			var rs []records.Record
			for r, ok := it.Next(); ok; r, ok = it.Next() {
				rs = append(rs, r)
			}
			So(it.Err(), ShouldBeNil)
			So(rs, ShouldResemble, testRecords())
		})

		Convey("AllRecords", func() {
			server.Responses["GET "+recordsPath] = testResponse{Body: recordsPayload}
			rs, err := ds.AllRecords(ctx)
			So(err, ShouldBeNil)
			So(rs, ShouldResemble, testRecords())

			server.Responses["GET "+recordsPath] = testResponse{Status: http.StatusForbidden}
			_, err = ds.AllRecords(ctx)
			So(err, ShouldNotBeNil)
		})

		Convey("Upsert", func() {
			server.Responses["POST "+updatePath] = testResponse{Body: responseJSON}
			res, err := ds.Upsert(ctx, testRecords(), "attribute1")
			So(err, ShouldBeNil)
			So(res, ShouldResemble, expectedResult)
			So(server.Requests, ShouldResemble, []testRequest{
				{Method: "POST", URI: updatePath, Body: createPayload}})
		})

		Convey("Upsert with the dataset key", func() {
			server.Responses["POST "+updatePath] = testResponse{Body: responseJSON}
			ds.KeyAttributeNames = []string{"attribute1"}
			res, err := ds.Upsert(ctx, testRecords(), "")
			So(err, ShouldBeNil)
			So(res, ShouldResemble, expectedResult)

			ds.KeyAttributeNames = nil
			_, err = ds.Upsert(ctx, testRecords(), "")
			So(err, ShouldNotBeNil)
		})

		Convey("Upsert checks the key field locally", func() {
			_, err := ds.Upsert(ctx, testRecords(), "pk")
			_, ok := err.(*records.MissingKeyError)
			So(ok, ShouldBeTrue)
			So(len(server.Requests), ShouldEqual, 0)
		})

		Convey("Upsert with NaN fails before sending", func() {
			server.Responses["POST "+updatePath] = testResponse{Body: responseJSON}
			_, err := ds.Upsert(ctx, []records.Record{
				{"pk": records.Int(1), "attribute1": records.Number(math.NaN())},
				{"pk": records.Int(2), "attribute1": records.Number(math.NaN())},
			}, "pk")
			So(err, ShouldNotBeNil)
			nanErr, ok := err.(*records.NaNError)
			So(ok, ShouldBeTrue)
			So(nanErr.Seq, ShouldEqual, 1)
			So(nanErr.Field, ShouldEqual, "attribute1")
			So(len(server.Requests), ShouldEqual, 0)
		})

		Convey("UpsertFromTable", func() {
			server.Responses["POST "+updatePath] = testResponse{Body: responseJSON}
			tbl := table.NewTable("attribute1")
			tbl.AddRow(table.Row{table.Number(1)}, table.Row{table.Number(2)})
			res, err := ds.UpsertFromTable(ctx, tbl, "attribute1")
			So(err, ShouldBeNil)
			So(res, ShouldResemble, expectedResult)
			So(server.Requests, ShouldResemble, []testRequest{
				{Method: "POST", URI: updatePath, Body: createPayload}})
		})

		Convey("UpsertFromTable with NaN sends nulls", func() {
			server.Responses["POST "+updatePath] = testResponse{Body: responseJSON}
			tbl := table.NewTable("pk", "attribute1")
			tbl.AddRow(
				table.Row{table.Number(1), table.Number(math.NaN())},
				table.Row{table.Number(2), table.Missing()})
			res, err := ds.UpsertFromTable(ctx, tbl, "pk")
			So(err, ShouldBeNil)
			So(res, ShouldResemble, expectedResult)
			So(server.Requests, ShouldResemble, []testRequest{{
				Method: "POST",
				URI:    updatePath,
				Body: `{"action":"CREATE","recordId":1,"record":{"attribute1":null,"pk":1}}` + "\n" +
					`{"action":"CREATE","recordId":2,"record":{"attribute1":null,"pk":2}}` + "\n",
			}})
		})

		Convey("Delete", func() {
			server.Responses["POST "+updatePath] = testResponse{Body: responseJSON}
			res, err := ds.Delete(ctx, testRecords(), "attribute1")
			So(err, ShouldBeNil)
			So(res, ShouldResemble, expectedResult)
			So(server.Requests, ShouldResemble, []testRequest{
				{Method: "POST", URI: updatePath, Body: deletePayload}})
		})

		Convey("DeleteByID", func() {
			server.Responses["POST "+updatePath] = testResponse{Body: responseJSON}
			res, err := ds.DeleteByID(ctx, []records.Value{records.Int(1), records.Int(2)})
			So(err, ShouldBeNil)
			So(res, ShouldResemble, expectedResult)
			So(server.Requests, ShouldResemble, []testRequest{
				{Method: "POST", URI: updatePath, Body: deletePayload}})
		})

		Convey("DeleteAll", func() {
			server.Responses["DELETE "+recordsPath] = testResponse{Status: http.StatusNoContent}
			resp, err := ds.DeleteAll(ctx)
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
			So(server.Requests, ShouldResemble, []testRequest{
				{Method: "DELETE", URI: recordsPath}})
		})

		Convey("DeleteAll failure", func() {
			_, err := ds.DeleteAll(ctx)
			So(err, ShouldNotBeNil)
			httpErr, ok := err.(*session.HTTPError)
			So(ok, ShouldBeTrue)
			So(httpErr.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("update failure status", func() {
			server.Responses["POST "+updatePath] = testResponse{
				Status: http.StatusBadRequest, Body: `{"message": "nope"}`}
			_, err := ds.DeleteByID(ctx, []records.Value{records.Int(1)})
			So(err, ShouldNotBeNil)
			_, ok := err.(*session.HTTPError)
			So(ok, ShouldBeTrue)
		})
	})
}
