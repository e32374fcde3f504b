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

package blockstore

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	bolt "go.etcd.io/bbolt"
)

func writeEntry(dir string, name string, data []byte) {
	So(ioutil.WriteFile(filepath.Join(dir, name), data, 0644), ShouldBeNil)
}

func TestFlatStoreOpen(t *testing.T) {
	Convey("Given a location for a flat store", t, func() {
		location := testLocation(t, KindFlat)

		Convey("An absent location should be created empty", func() {
			s, err := OpenFlat(location)
			So(err, ShouldBeNil)
			So(s.LastID(), ShouldEqual, 0)
			fi, err := os.Stat(location)
			So(err, ShouldBeNil)
			So(fi.IsDir(), ShouldBeTrue)
		})

		Convey("A regular file should be rejected as ErrNotAStore", func() {
			So(ioutil.WriteFile(location, []byte("x"), 0644), ShouldBeNil)
			_, err := OpenFlat(location)
			So(errors.Cause(err), ShouldEqual, ErrNotAStore)
		})

		Convey("When the directory holds externally written entries", func() {
			So(os.MkdirAll(location, 0755), ShouldBeNil)

			Convey("Contiguous entries should rebuild the last id", func() {
				writeEntry(location, IDToName(1), []byte("a"))
				writeEntry(location, IDToName(2), []byte("b"))
				writeEntry(location, IDToName(3), []byte("c"))
				s, err := OpenFlat(location)
				So(err, ShouldBeNil)
				So(s.LastID(), ShouldEqual, 3)
				block, err := s.Get(2)
				So(err, ShouldBeNil)
				So(string(block), ShouldEqual, "b")
			})

			Convey("A gap should fail with ErrInconsistentState", func() {
				writeEntry(location, IDToName(1), []byte("a"))
				writeEntry(location, IDToName(2), []byte("b"))
				writeEntry(location, IDToName(4), []byte("d"))
				_, err := OpenFlat(location)
				So(errors.Cause(err), ShouldEqual, ErrInconsistentState)
			})

			Convey("A log not starting at 1 should fail with ErrInconsistentState", func() {
				writeEntry(location, IDToName(2), []byte("b"))
				_, err := OpenFlat(location)
				So(errors.Cause(err), ShouldEqual, ErrInconsistentState)
			})

			Convey("A foreign entry should fail with ErrInconsistentState", func() {
				writeEntry(location, IDToName(1), []byte("a"))
				writeEntry(location, "README", []byte("hello"))
				_, err := OpenFlat(location)
				So(errors.Cause(err), ShouldEqual, ErrInconsistentState)
			})

			Convey("A sub directory should fail with ErrInconsistentState", func() {
				So(os.Mkdir(filepath.Join(location, IDToName(1)), 0755), ShouldBeNil)
				_, err := OpenFlat(location)
				So(errors.Cause(err), ShouldEqual, ErrInconsistentState)
			})

			Convey("Stale temporary entries should be removed", func() {
				writeEntry(location, IDToName(1), []byte("a"))
				stale := tempPrefix + IDToName(2) + tempSuffix
				writeEntry(location, stale, []byte("partial"))
				s, err := OpenFlat(location)
				So(err, ShouldBeNil)
				So(s.LastID(), ShouldEqual, 1)
				_, err = os.Stat(filepath.Join(location, stale))
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})
	})
}

func TestFlatStoreAppend(t *testing.T) {
	Convey("Given an open flat store with one block", t, func() {
		location := testLocation(t, KindFlat)
		s, err := OpenFlat(location)
		So(err, ShouldBeNil)
		_, err = s.Append([]byte("first"))
		So(err, ShouldBeNil)

		Convey("Each block should be stored raw under its fixed-width name", func() {
			data, err := ioutil.ReadFile(filepath.Join(location, "0000000000000001"))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "first")
			entries, err := ioutil.ReadDir(location)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
		})

		Convey("An entry already present at the next id should not be overwritten", func() {
			writeEntry(location, IDToName(2), []byte("intruder"))
			_, err := s.Append([]byte("second"))
			So(errors.Cause(err), ShouldEqual, ErrAlreadyExists)
			So(s.LastID(), ShouldEqual, 1)

			data, err := ioutil.ReadFile(filepath.Join(location, IDToName(2)))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "intruder")
		})

		Convey("Empty blocks should round trip", func() {
			id, err := s.Append([]byte{})
			So(err, ShouldBeNil)
			block, err := s.Get(id)
			So(err, ShouldBeNil)
			So(block, ShouldHaveLength, 0)
		})

		Convey("A failed write should leave the last id unchanged", func() {
			if os.Geteuid() == 0 {
				// permission bits are not enforced for root
				SkipSo(s.LastID(), ShouldEqual, 1)
				return
			}
			So(os.Chmod(location, 0555), ShouldBeNil)
			defer os.Chmod(location, 0755)
			_, err := s.Append([]byte("denied"))
			So(errors.Cause(err), ShouldEqual, ErrIO)
			So(s.LastID(), ShouldEqual, 1)
		})
	})
}

func TestKeyedStoresAlreadyExistsAndGaps(t *testing.T) {
	Convey("Given a leveldb store", t, func() {
		location := testLocation(t, KindLevelDB)
		s, err := OpenLevelDB(location)
		So(err, ShouldBeNil)
		_, err = s.Append([]byte("one"))
		So(err, ShouldBeNil)

		Convey("A key planted at the next id should fail the append", func() {
			So(s.db.Put(blockKey(levelDBBlockPrefix, 2), []byte("planted"), nil), ShouldBeNil)
			_, err = s.Append([]byte("two"))
			So(errors.Cause(err), ShouldEqual, ErrAlreadyExists)
			So(s.LastID(), ShouldEqual, 1)
			So(s.Close(), ShouldBeNil)
		})

		Convey("A gap should fail reopening with ErrInconsistentState", func() {
			So(s.db.Put(blockKey(levelDBBlockPrefix, 2), []byte("two"), nil), ShouldBeNil)
			So(s.db.Put(blockKey(levelDBBlockPrefix, 4), []byte("four"), nil), ShouldBeNil)
			So(s.Close(), ShouldBeNil)
			_, err = OpenLevelDB(location)
			So(errors.Cause(err), ShouldEqual, ErrInconsistentState)
		})
	})

	Convey("A non leveldb directory should be rejected", t, func() {
		location := testLocation(t, KindLevelDB)
		So(os.MkdirAll(location, 0755), ShouldBeNil)
		writeEntry(location, IDToName(1), []byte("flat entry"))
		_, err := OpenLevelDB(location)
		So(errors.Cause(err), ShouldEqual, ErrNotAStore)
	})

	Convey("Given a bolt store", t, func() {
		location := testLocation(t, KindBolt)
		s, err := OpenBolt(location)
		So(err, ShouldBeNil)
		_, err = s.Append([]byte("one"))
		So(err, ShouldBeNil)

		Convey("A key planted at the next id should fail the append", func() {
			So(s.db.Update(func(tx *bolt.Tx) error {
				return tx.Bucket(boltBlocksBucket).Put(blockKey(boltKeyPrefix, 2), []byte("planted"))
			}), ShouldBeNil)
			_, err = s.Append([]byte("two"))
			So(errors.Cause(err), ShouldEqual, ErrAlreadyExists)
			So(s.LastID(), ShouldEqual, 1)
			So(s.Close(), ShouldBeNil)
		})

		Convey("A gap should fail reopening with ErrInconsistentState", func() {
			So(s.db.Update(func(tx *bolt.Tx) error {
				return tx.Bucket(boltBlocksBucket).Put(blockKey(boltKeyPrefix, 3), []byte("three"))
			}), ShouldBeNil)
			So(s.Close(), ShouldBeNil)
			_, err = OpenBolt(location)
			So(errors.Cause(err), ShouldEqual, ErrInconsistentState)
		})
	})

	Convey("A directory should be rejected as a bolt store", t, func() {
		_, err := OpenBolt(testingDataDir)
		So(errors.Cause(err), ShouldEqual, ErrNotAStore)
	})
}

func TestSyncData(t *testing.T) {
	Convey("Block files should be flushed before they are linked", t, func() {
		f, err := ioutil.TempFile(testingDataDir, "sync")
		So(err, ShouldBeNil)
		defer os.Remove(f.Name())
		_, err = f.Write([]byte("block"))
		So(err, ShouldBeNil)
		So(syncData(f), ShouldBeNil)
		So(f.Close(), ShouldBeNil)
		So(syncData(f), ShouldNotBeNil)
	})
}
