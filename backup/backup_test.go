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

package backup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stockparfait/fetch"
	"github.com/unifyclient/unify/session"

	. "github.com/smartystreets/goconvey/convey"
)

const backupJSONText = `{
  "id": "unify://unified-data/v1/backups/1",
  "relativeId": "1",
  "backupPath": "/home/backups/2020-06-03_18-27-00-000",
  "state": "RUNNING",
  "errorMessage": ""
}`

var testBackup = &Backup{
	URL:        "unify://unified-data/v1/backups/1",
	ResourceID: "1",
	Path:       "/home/backups/2020-06-03_18-27-00-000",
	State:      "RUNNING",
}

func TestBackup(t *testing.T) {
	t.Parallel()

	Convey("Backup API works", t, func() {
		type response struct {
			status int
			body   string
		}
		responses := make(map[string]response)
		var requests []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Method + " " + r.URL.Path
			requests = append(requests, key)
			resp, ok := responses[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(resp.status)
			w.Write([]byte(resp.body))
		}))
		defer server.Close()

		s := &session.Session{
			Instance: session.Instance{Host: strings.TrimPrefix(server.URL, "http://")},
		}
		ctx := fetch.UseClient(context.Background(), server.Client())
		ctx = session.UseSession(ctx, s)
		base := "/api/versioned/v1/backups"

		Convey("GetAll", func() {
			responses["GET "+base] = response{200, "[" + backupJSONText + "]"}
			bs, err := GetAll(ctx)
			So(err, ShouldBeNil)
			So(bs, ShouldResemble, []*Backup{testBackup})
		})

		Convey("GetAll not found", func() {
			_, err := GetAll(ctx)
			_, ok := err.(*session.NotFoundError)
			So(ok, ShouldBeTrue)
		})

		Convey("FromResourceID", func() {
			responses["GET "+base+"/1"] = response{200, backupJSONText}
			b, err := FromResourceID(ctx, "1")
			So(err, ShouldBeNil)
			So(b, ShouldResemble, testBackup)
		})

		Convey("FromResourceID not found", func() {
			_, err := FromResourceID(ctx, "2")
			So(err, ShouldNotBeNil)
			notFound, ok := err.(*session.NotFoundError)
			So(ok, ShouldBeTrue)
			So(notFound.URL, ShouldEqual, server.URL+base+"/2")
		})

		Convey("Initiate", func() {
			responses["POST "+base] = response{200, backupJSONText}
			b, err := Initiate(ctx)
			So(err, ShouldBeNil)
			So(b, ShouldResemble, testBackup)
			So(requests, ShouldResemble, []string{"POST " + base})
		})

		Convey("Initiate while another backup is running", func() {
			responses["POST "+base] = response{400, `{"message": "Backup already running"}`}
			_, err := Initiate(ctx)
			So(err, ShouldNotBeNil)
			invalid, ok := err.(*session.InvalidOperationError)
			So(ok, ShouldBeTrue)
			So(invalid.URL, ShouldEqual, server.URL+base)
			So(invalid.Message, ShouldEqual, "Backup already running")
		})

		Convey("Cancel", func() {
			canceled := strings.Replace(backupJSONText, "RUNNING", "CANCELED", 1)
			responses["POST "+base+"/1:cancel"] = response{200, canceled}
			b, err := Cancel(ctx, testBackup)
			So(err, ShouldBeNil)
			So(b.State, ShouldEqual, "CANCELED")
		})

		Convey("Cancel errors", func() {
			_, err := Cancel(ctx, &Backup{ResourceID: "2"})
			_, ok := err.(*session.NotFoundError)
			So(ok, ShouldBeTrue)

			responses["POST "+base+"/1:cancel"] = response{400, `{"message": "Backup is not running"}`}
			_, err = Cancel(ctx, testBackup)
			invalid, ok := err.(*session.InvalidOperationError)
			So(ok, ShouldBeTrue)
			So(invalid.Message, ShouldEqual, "Backup is not running")
		})

		Convey("other failures are HTTP errors", func() {
			responses["GET "+base+"/1"] = response{500, "oops"}
			_, err := FromResourceID(ctx, "1")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "status 500")
		})

		Convey("no session", func() {
			_, err := Initiate(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}
