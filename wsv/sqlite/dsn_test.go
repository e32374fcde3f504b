/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sqlite

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDSN(t *testing.T) {
	Convey("DSN should parse and format connection strings", t, func() {
		dsn, err := ParseDSN("file:test.db?b=2&a=1")
		So(err, ShouldBeNil)
		So(dsn.FileName(), ShouldEqual, "test.db")
		So(dsn.Format(), ShouldEqual, "file:test.db?a=1&b=2")

		dsn, err = ParseDSN("test.db")
		So(err, ShouldBeNil)
		So(dsn.Format(), ShouldEqual, "file:test.db")

		Convey("Setting an empty value should remove the parameter", func() {
			dsn.Set("key", "value")
			v, ok := dsn.Get("key")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, "value")
			dsn.Set("key", "")
			_, ok = dsn.Get("key")
			So(ok, ShouldBeFalse)
		})

		Convey("Clones should not share parameters", func() {
			c := dsn.Clone()
			c.Set("mode", "ro")
			_, ok := dsn.Get("mode")
			So(ok, ShouldBeFalse)
			So(c.Format(), ShouldEqual, "file:test.db?mode=ro")
		})

		Convey("Malformed strings should be rejected", func() {
			_, err = ParseDSN("file:test.db?p1")
			So(err, ShouldNotBeNil)
			_, err = ParseDSN("file:?a=1")
			So(err, ShouldNotBeNil)
		})
	})
}
