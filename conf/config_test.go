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

package conf

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v2"

	"github.com/ledgercore/ledgercore/blockstore"
	"github.com/ledgercore/ledgercore/utils/log"
)

func writeConfig(dir, content string) string {
	path := filepath.Join(dir, "config.yaml")
	So(ioutil.WriteFile(path, []byte(content), 0644), ShouldBeNil)
	return path
}

func TestConf(t *testing.T) {
	log.SetLevel(log.DebugLevel)
	Convey("LoadConfig", t, func() {
		dir, err := ioutil.TempDir("", "ledgercore-conf")
		So(err, ShouldBeNil)
		Reset(func() {
			os.RemoveAll(dir)
		})

		Convey("A written config should load back", func() {
			config := &Config{
				WorkingRoot: "/var/lib/ledgercore",
				LogLevel:    "debug",
				MetricsAddr: "127.0.0.1:9100",
				BlockStore:  BlockStoreConfig{Kind: blockstore.KindLevelDB, Path: "chain"},
				WorldState:  WorldStateConfig{Backend: "postgres", DSN: "postgres://localhost/wsv"},

				FailurePolicy: RejectCommand,
			}
			data, err := yaml.Marshal(config)
			So(err, ShouldBeNil)
			loaded, err := LoadConfig(writeConfig(dir, string(data)))
			So(err, ShouldBeNil)
			So(loaded.BlockStore.Path, ShouldEqual, "/var/lib/ledgercore/chain")
			So(loaded.WorldState.DSN, ShouldEqual, "postgres://localhost/wsv")
			So(loaded.MetricsAddr, ShouldEqual, "127.0.0.1:9100")
			So(loaded.LogLevel, ShouldEqual, "debug")
			So(loaded.FailurePolicy, ShouldEqual, RejectCommand)
		})

		Convey("An empty config should take defaults relative to its directory", func() {
			loaded, err := LoadConfig(writeConfig(dir, "{}\n"))
			So(err, ShouldBeNil)
			So(loaded.WorkingRoot, ShouldEqual, dir)
			So(loaded.LogLevel, ShouldEqual, DefaultLogLevel)
			So(loaded.BlockStore.Kind, ShouldEqual, blockstore.KindFlat)
			So(loaded.BlockStore.Path, ShouldEqual, filepath.Join(dir, DefaultBlockStorePath))
			So(loaded.WorldState.Backend, ShouldEqual, DefaultBackend)
			So(loaded.WorldState.DSN, ShouldEqual, filepath.Join(dir, DefaultSQLiteDSN))
			So(loaded.MetricsAddr, ShouldBeEmpty)
			So(loaded.FailurePolicy, ShouldEqual, RollbackBlock)
		})

		Convey("Invalid configs should be rejected", func() {
			_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldNotBeNil)

			_, err = LoadConfig(writeConfig(dir, "BlockStore:\n  Kind: tape\n"))
			So(errors.Cause(err), ShouldEqual, blockstore.ErrUnknownKind)

			_, err = LoadConfig(writeConfig(dir, "WorldState:\n  Backend: postgres\n"))
			So(err, ShouldNotBeNil)

			_, err = LoadConfig(writeConfig(dir, "FailurePolicy: shrug\n"))
			So(err, ShouldNotBeNil)

			_, err = LoadConfig(writeConfig(dir, "LogLevel: chatty\n"))
			So(err, ShouldNotBeNil)

			_, err = LoadConfig(writeConfig(dir, "Unknown: 1\n"))
			So(err, ShouldNotBeNil)

			_, err = LoadConfig(writeConfig(dir, "BlockStore: [\n"))
			So(err, ShouldNotBeNil)
		})
	})
}
