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

package table

import (
	"bytes"
	"math"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTable(t *testing.T) {
	t.Parallel()

	Convey("Cells work", t, func() {
		So(Missing().IsMissing(), ShouldBeTrue)
		So(Number(math.NaN()).IsMissing(), ShouldBeTrue)
		So(Number(0).IsMissing(), ShouldBeFalse)
		So(String("").IsMissing(), ShouldBeFalse)
		So(Number(1.5).String(), ShouldEqual, "1.5")
		So(Number(42).String(), ShouldEqual, "42")
		So(Bool(true).String(), ShouldEqual, "true")
		So(Number(math.NaN()).String(), ShouldEqual, "")
		So(Row{String("a"), Missing(), Number(3)}.CSV(), ShouldResemble,
			[]string{"a", "", "3"})
	})

	Convey("Table methods work", t, func() {
		t := NewTable("pk", "name")
		headless := NewTable()

		So(t.Header, ShouldResemble, []string{"pk", "name"})
		t.AddRow(Row{Number(1), String("Prius")}, Row{Number(2), Missing()})
		headless.AddRow(Row{Number(1), String("Prius")}, Row{Number(2), Missing()})

		Convey("AddRow and Check", func() {
			So(len(t.Rows), ShouldEqual, 2)
			So(t.Check(), ShouldBeNil)
			t.AddRow(Row{Number(3)})
			So(t.Check(), ShouldNotBeNil)
			So(NewTable("a", "a").Check(), ShouldNotBeNil)
			So(NewTable("a", "").Check(), ShouldNotBeNil)
		})

		Convey("WriteCSV", func() {
			var buf bytes.Buffer
			So(t.WriteCSV(&buf, Params{}), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
pk,name
1,Prius
2,
`)
			buf.Reset()
			So(headless.WriteCSV(&buf, Params{Rows: 1}), ShouldBeNil)
			So(buf.String(), ShouldEqual, "1,Prius\n")
		})

		Convey("WriteText", func() {
			Convey("Default Params", func() {
				var buf bytes.Buffer
				So(t.WriteText(&buf, Params{}), ShouldBeNil)
				So(buf.String(), ShouldEqual, "pk |  name\n"+
					"-- | -----\n"+
					" 1 | Prius\n"+
					" 2 |      \n")
			})

			Convey("Limited rows and width, no header", func() {
				var buf bytes.Buffer
				So(t.WriteText(&buf, Params{Rows: 1, NoHeader: true, MaxColWidth: 4}), ShouldBeNil)
				So(buf.String(), ShouldEqual, "1 | Pr..\n")
			})

			Convey("Bad width", func() {
				var buf bytes.Buffer
				So(t.WriteText(&buf, Params{MaxColWidth: 2}), ShouldNotBeNil)
			})
		})
	})

	Convey("NumberText works", t, func() {
		c, ok := NumberText("12345678901234567890")
		So(ok, ShouldBeTrue)
		So(c.Kind, ShouldEqual, NumberCell)
		So(c.Text(), ShouldEqual, "12345678901234567890")
		So(c.String(), ShouldEqual, "12345678901234567890")

		c, ok = NumberText("-2.50e1")
		So(ok, ShouldBeTrue)
		So(c.Num(), ShouldEqual, -25.0)
		So(c.String(), ShouldEqual, "-2.50e1")

		for _, s := range []string{"007", "01234", "0x10", "Inf", "NaN", "+1", " 1", "1.", "1e999", "true"} {
			_, ok := NumberText(s)
			So(ok, ShouldBeFalse)
		}
		So(Number(7).Text(), ShouldEqual, "")
	})

	Convey("ReadCSV works", t, func() {
		num := func(s string) Cell {
			c, ok := NumberText(s)
			So(ok, ShouldBeTrue)
			return c
		}

		Convey("with header and type inference", func() {
			tbl, err := ReadCSV(strings.NewReader(`pk,name,score,ok
1,Jane,,true
2,NA,3.5,false
`), ReadParams{})
			So(err, ShouldBeNil)
			So(tbl.Header, ShouldResemble, []string{"pk", "name", "score", "ok"})
			So(tbl.Rows, ShouldResemble, []Row{
				{num("1"), String("Jane"), Missing(), Bool(true)},
				{num("2"), Missing(), num("3.5"), Bool(false)},
			})
		})

		Convey("keeping leading zeros and large integers exact", func() {
			var buf bytes.Buffer
			tbl, err := ReadCSV(strings.NewReader(
				"pk,zip\n007,01234\n12345678901234567890,1.10\n"), ReadParams{})
			So(err, ShouldBeNil)
			So(tbl.Rows, ShouldResemble, []Row{
				{String("007"), String("01234")},
				{num("12345678901234567890"), num("1.10")},
			})
			So(tbl.WriteCSV(&buf, Params{}), ShouldBeNil)
			So(buf.String(), ShouldEqual, "pk,zip\n007,01234\n12345678901234567890,1.10\n")
		})

		Convey("headless, strings only", func() {
			tbl, err := ReadCSV(strings.NewReader("1,x\n"), ReadParams{
				Header:        []string{"a", "b"},
				MissingValues: []string{"x"},
				StringsOnly:   true,
			})
			So(err, ShouldBeNil)
			So(tbl.Rows, ShouldResemble, []Row{{String("1"), Missing()}})
		})

		Convey("errors", func() {
			_, err := ReadCSV(strings.NewReader(""), ReadParams{})
			So(err, ShouldNotBeNil)
			_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"), ReadParams{})
			So(err, ShouldNotBeNil)
		})
	})
}
