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
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ledgercore/ledgercore/wsv"
	"github.com/ledgercore/ledgercore/wsv/wsvtest"
)

var dbSeq uint64

func testDSN() string {
	return filepath.Join(testingDataDir, fmt.Sprintf("wsv-%d.db", atomic.AddUint64(&dbSeq, 1)))
}

func TestCompliance(t *testing.T) {
	wsvtest.TestCompliance(t, func(t *testing.T) wsv.WSV {
		v, err := New(context.Background(), testDSN())
		if err != nil {
			t.Fatalf("create sqlite world state failed: %v", err)
		}
		return v
	})
}

func TestReopen(t *testing.T) {
	Convey("Committed state should survive reopening the database", t, func() {
		ctx := context.Background()
		dsn := testDSN()
		v, err := New(ctx, dsn)
		So(err, ShouldBeNil)
		So(v.StartBlock(ctx), ShouldBeNil)
		So(v.AddAccount(ctx, "alice", 1, 0), ShouldBeNil)
		So(v.AddPeer(ctx, "alice", "192.168.1.1", 0), ShouldBeNil)
		So(v.CommitBlock(ctx), ShouldBeNil)
		So(v.StartBlock(ctx), ShouldBeNil)
		So(v.AddAccount(ctx, "bob", 1, 0), ShouldBeNil)
		So(v.Close(), ShouldBeNil)

		v, err = New(ctx, dsn)
		So(err, ShouldBeNil)
		defer v.Close()
		peers, err := v.GetPeers(ctx, true)
		So(err, ShouldBeNil)
		So(peers, ShouldResemble, []string{"192.168.1.1"})
		_, err = v.GetAccount(ctx, true, "bob")
		So(errors.Cause(err), ShouldEqual, wsv.ErrNotFound)
	})
}

func TestOpen(t *testing.T) {
	Convey("Opening should validate the data source", t, func() {
		ctx := context.Background()
		_, err := Open(ctx, "")
		So(err, ShouldNotBeNil)
		_, err = Open(ctx, ":memory:")
		So(err, ShouldNotBeNil)
		_, err = Open(ctx, filepath.Join(testingDataDir, "missing", "dir", "wsv.db"))
		So(err, ShouldNotBeNil)
		_, err = Open(ctx, testDSN()+"?broken")
		So(err, ShouldNotBeNil)
	})
}

func TestClassify(t *testing.T) {
	Convey("Engine errors should map onto the world state taxonomy", t, func() {
		b, err := Open(context.Background(), testDSN())
		So(err, ShouldBeNil)
		defer b.Close()

		So(b.Classify(nil), ShouldBeNil)
		So(errors.Cause(b.Classify(errors.Wrap(sqlite3.Error{Code: sqlite3.ErrConstraint}, "insert"))),
			ShouldEqual, wsv.ErrConstraintViolation)
		other := sqlite3.Error{Code: sqlite3.ErrIoErr}
		So(b.Classify(other), ShouldResemble, other)
	})
}

func TestRegister(t *testing.T) {
	Convey("The backend should register once under its name", t, func() {
		r := wsv.NewRegistry()
		So(Register(r), ShouldBeNil)
		So(errors.Cause(Register(r)), ShouldEqual, wsv.ErrBackendExists)
		So(r.Names(), ShouldResemble, []string{Name})

		v, err := r.Create(context.Background(), Name, testDSN())
		So(err, ShouldBeNil)
		So(v, ShouldNotBeNil)
		So(v.Close(), ShouldBeNil)
	})
}
