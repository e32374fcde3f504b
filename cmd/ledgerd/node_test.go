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

package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ledgercore/ledgercore/blockstore"
	"github.com/ledgercore/ledgercore/conf"
	"github.com/ledgercore/ledgercore/ledger"
	"github.com/ledgercore/ledgercore/utils/log"
	"github.com/ledgercore/ledgercore/wsv"
)

const blocksYAML = `blocks:
  - commands:
      - add_account: {account_id: alice, quorum: 1}
      - add_peer: {account_id: alice, address: 10.0.0.1}
      - add_account: {account_id: alice, quorum: 2}
  - commands:
      - add_domain: {domain_id: root, open: true}
      - add_asset: {asset_id: coin, domain_id: root, data: '{"decimals":2}'}
      - add_wallet:
          wallet_id: 6ba7b810-9dad-11d1-80b4-00c04fd430c8
          asset_id: coin
          amount: 100
          precision: 2
          permissions: 3
`

func TestNode(t *testing.T) {
	log.SetLevel(log.DebugLevel)
	ctx := context.Background()

	Convey("Given a node configured in a temp directory", t, func() {
		dir, err := ioutil.TempDir("", "ledgercore-ledgerd")
		So(err, ShouldBeNil)
		Reset(func() {
			os.RemoveAll(dir)
		})
		configPath := filepath.Join(dir, "config.yaml")
		So(ioutil.WriteFile(configPath, []byte("LogLevel: debug\nFailurePolicy: command\n"), 0644), ShouldBeNil)
		cfg, err := conf.LoadConfig(configPath)
		So(err, ShouldBeNil)

		n, err := openNode(ctx, cfg)
		So(err, ShouldBeNil)

		blocksPath := filepath.Join(dir, "blocks.yaml")
		So(ioutil.WriteFile(blocksPath, []byte(blocksYAML), 0644), ShouldBeNil)

		Convey("Applied blocks should be reported, stored and visible", func() {
			var out bytes.Buffer
			So(runApply(ctx, n, blocksPath, &out), ShouldBeNil)
			So(out.String(), ShouldContainSubstring, "id: 1")
			So(out.String(), ShouldContainSubstring, "rejected:\n  - 2")
			So(out.String(), ShouldContainSubstring, "id: 2")

			out.Reset()
			So(runStatus(ctx, n, &out), ShouldBeNil)
			So(out.String(), ShouldEqual, "last_id: 2\npeers:\n- 10.0.0.1\n")

			out.Reset()
			So(runShow(n, "2", &out), ShouldBeNil)
			So(out.String(), ShouldContainSubstring, "height: 2")
			So(out.String(), ShouldContainSubstring, "asset_id: coin")
			So(runShow(n, "3", &out), ShouldNotBeNil)
			So(runShow(n, "two", &out), ShouldNotBeNil)

			Convey("A reopened node should see the same chain", func() {
				So(n.Close(), ShouldBeNil)
				n, err = openNode(ctx, cfg)
				So(err, ShouldBeNil)
				So(n.ledger.Height(), ShouldEqual, 2)
				acc, err := n.state.GetAccount(ctx, true, "alice")
				So(err, ShouldBeNil)
				So(acc.Quorum, ShouldEqual, 1)
				So(n.Close(), ShouldBeNil)
			})

			Convey("Startup should rebuild a lost world state once", func() {
				So(n.Close(), ShouldBeNil)
				removeWorldState(cfg)
				n, err = openNode(ctx, cfg)
				So(err, ShouldBeNil)
				asset, err := n.state.GetAsset(ctx, true, "coin")
				So(err, ShouldBeNil)
				So(string(asset.Data), ShouldEqual, `{"decimals":2}`)
				acc, err := n.state.GetAccount(ctx, true, "alice")
				So(err, ShouldBeNil)
				So(acc.Quorum, ShouldEqual, 1)

				out.Reset()
				So(runReplay(ctx, n, &out), ShouldBeNil)
				So(out.String(), ShouldEqual, "replayed 0 blocks, height 2\n")
				So(n.Close(), ShouldBeNil)
			})

			Convey("A world state ahead of the block store should abort startup", func() {
				So(n.Close(), ShouldBeNil)
				So(os.RemoveAll(cfg.BlockStore.Path), ShouldBeNil)
				_, err := openNode(ctx, cfg)
				So(errors.Cause(err), ShouldEqual, ledger.ErrStateDiverged)
			})
		})

		Convey("The default policy should reject a block with a failing command", func() {
			So(n.Close(), ShouldBeNil)
			cfg.FailurePolicy = conf.RollbackBlock
			n, err = openNode(ctx, cfg)
			So(err, ShouldBeNil)
			err = runApply(ctx, n, blocksPath, ioutil.Discard)
			So(errors.Cause(err), ShouldEqual, wsv.ErrConstraintViolation)
			So(n.ledger.Height(), ShouldEqual, 0)
			_, err = n.state.GetAccount(ctx, true, "alice")
			So(errors.Cause(err), ShouldEqual, wsv.ErrNotFound)
			So(n.Close(), ShouldBeNil)
		})

		Convey("Malformed block files should be rejected", func() {
			So(runApply(ctx, n, filepath.Join(dir, "missing.yaml"), ioutil.Discard), ShouldNotBeNil)
			bad := filepath.Join(dir, "bad.yaml")
			So(ioutil.WriteFile(bad, []byte("blocks:\n  - commands:\n      - {}\n"), 0644), ShouldBeNil)
			err := runApply(ctx, n, bad, ioutil.Discard)
			So(errors.Cause(err), ShouldEqual, ledger.ErrInvalidCommand)
			So(n.ledger.Height(), ShouldEqual, 0)
			So(n.Close(), ShouldBeNil)
		})

		Convey("An inconsistent block store should abort startup", func() {
			So(n.Close(), ShouldBeNil)
			So(ioutil.WriteFile(filepath.Join(cfg.BlockStore.Path, blockstore.IDToName(2)), []byte("x"), 0644),
				ShouldBeNil)
			_, err := openNode(ctx, cfg)
			So(errors.Cause(err), ShouldEqual, blockstore.ErrInconsistentState)
		})

		Convey("Serving without an address should fail", func() {
			So(runServe(n, ""), ShouldNotBeNil)
			So(n.Close(), ShouldBeNil)
		})
	})
}

func removeWorldState(cfg *conf.Config) {
	So(os.Remove(cfg.WorldState.DSN), ShouldBeNil)
	os.Remove(cfg.WorldState.DSN + "-wal")
	os.Remove(cfg.WorldState.DSN + "-shm")
}

func TestBackendRegistry(t *testing.T) {
	Convey("Both relational backends should be registered", t, func() {
		r, err := newBackendRegistry()
		So(err, ShouldBeNil)
		So(r.Names(), ShouldResemble, []string{"postgres", "sqlite"})
	})
}
