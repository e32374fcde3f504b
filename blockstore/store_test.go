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
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

var storeKinds = []string{KindFlat, KindLevelDB, KindBolt, KindMemory}

func testLocation(t *testing.T, kind string) string {
	return filepath.Join(testingDataDir, fmt.Sprintf("%s-%s-%d", t.Name(), kind, time.Now().UnixNano()))
}

func TestStoreAppendGet(t *testing.T) {
	for _, kind := range storeKinds {
		Convey(fmt.Sprintf("Given an empty %s store", kind), t, func() {
			s, err := Open(kind, testLocation(t, kind))
			So(err, ShouldBeNil)
			Reset(func() { _ = s.Close() })
			So(s.LastID(), ShouldEqual, 0)

			Convey("Appending [0x01, 0x02] should return id 1", func() {
				id, err := s.Append([]byte{0x01, 0x02})
				So(err, ShouldBeNil)
				So(id, ShouldEqual, 1)
				So(s.LastID(), ShouldEqual, 1)

				block, err := s.Get(1)
				So(err, ShouldBeNil)
				So(block, ShouldResemble, []byte{0x01, 0x02})
			})

			Convey("Sequential appends should be dense and readable", func() {
				const n = 20
				for i := 1; i <= n; i++ {
					id, err := s.Append([]byte(fmt.Sprintf("block-%d", i)))
					So(err, ShouldBeNil)
					So(id, ShouldEqual, i)
				}
				So(s.LastID(), ShouldEqual, n)
				for i := 1; i <= n; i++ {
					block, err := s.Get(uint64(i))
					So(err, ShouldBeNil)
					So(string(block), ShouldEqual, fmt.Sprintf("block-%d", i))
				}
			})

			Convey("Get outside [1, last] should fail with ErrNotFound", func() {
				_, err := s.Append([]byte("only"))
				So(err, ShouldBeNil)
				_, err = s.Get(0)
				So(errors.Cause(err), ShouldEqual, ErrNotFound)
				_, err = s.Get(s.LastID() + 1)
				So(errors.Cause(err), ShouldEqual, ErrNotFound)
			})

			Convey("A closed store should reject every operation", func() {
				So(s.Close(), ShouldBeNil)
				_, err := s.Append([]byte("late"))
				So(errors.Cause(err), ShouldEqual, ErrStoreClosed)
				_, err = s.Get(1)
				So(errors.Cause(err), ShouldEqual, ErrStoreClosed)
			})
		})
	}
}

func TestStoreReopen(t *testing.T) {
	for _, kind := range []string{KindFlat, KindLevelDB, KindBolt} {
		Convey(fmt.Sprintf("Given a %s store with appended blocks", kind), t, func() {
			const n = 7
			location := testLocation(t, kind)
			s, err := Open(kind, location)
			So(err, ShouldBeNil)
			for i := 1; i <= n; i++ {
				_, err = s.Append([]byte{byte(i), byte(i * 2)})
				So(err, ShouldBeNil)
			}
			So(s.Close(), ShouldBeNil)

			Convey("Reopening should rebuild the last id without data loss", func() {
				s, err = Open(kind, location)
				So(err, ShouldBeNil)
				defer s.Close()
				So(s.LastID(), ShouldEqual, n)
				for i := 1; i <= n; i++ {
					block, err := s.Get(uint64(i))
					So(err, ShouldBeNil)
					So(block, ShouldResemble, []byte{byte(i), byte(i * 2)})
				}

				id, err := s.Append([]byte("next"))
				So(err, ShouldBeNil)
				So(id, ShouldEqual, n+1)
			})
		})
	}
}

func TestStoreConcurrentReaders(t *testing.T) {
	for _, kind := range storeKinds {
		Convey(fmt.Sprintf("Given a %s store written by a single writer", kind), t, func() {
			defer leaktest.Check(t)()

			s, err := Open(kind, testLocation(t, kind))
			So(err, ShouldBeNil)
			defer s.Close()

			const n = 50
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				readErrs []error
			)
			for r := 0; r < 4; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < n; i++ {
						last := s.LastID()
						if last == 0 {
							continue
						}
						block, err := s.Get(last)
						if err == nil && string(block) != fmt.Sprintf("b%d", last) {
							err = errors.Errorf("block %d has unexpected content %q", last, block)
						}
						if err != nil {
							mu.Lock()
							readErrs = append(readErrs, err)
							mu.Unlock()
						}
					}
				}()
			}
			for i := 1; i <= n; i++ {
				_, err = s.Append([]byte(fmt.Sprintf("b%d", i)))
				So(err, ShouldBeNil)
			}
			wg.Wait()
			So(readErrs, ShouldBeEmpty)
			So(s.LastID(), ShouldEqual, n)
		})
	}
}

func TestOpenUnknownKind(t *testing.T) {
	Convey("Opening an unsupported kind should fail", t, func() {
		_, err := Open("tape", testLocation(t, "tape"))
		So(errors.Cause(err), ShouldEqual, ErrUnknownKind)
	})
}

func TestIDEncoding(t *testing.T) {
	Convey("Block ids should render as 16-digit names", t, func() {
		So(IDToName(1), ShouldEqual, "0000000000000001")
		So(IDToName(MaxID), ShouldEqual, "9999999999999999")

		id, err := NameToID("0000000000000042")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, 42)

		for _, bad := range []string{"42", "000000000000004x", "00000000000000042", ""} {
			_, err = NameToID(bad)
			So(err, ShouldNotBeNil)
		}
	})
	Convey("Lexicographic order of names should equal numeric order", t, func() {
		ids := []uint64{1, 9, 10, 99, 100, 12345, 1 << 40}
		for i := 1; i < len(ids); i++ {
			So(IDToName(ids[i-1]) < IDToName(ids[i]), ShouldBeTrue)
		}
	})
}
