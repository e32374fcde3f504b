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

// Package wsvtest holds the behavior suite every world state backend must pass.
package wsvtest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ledgercore/ledgercore/wsv"
)

// Factory returns a fresh, empty world state view.
type Factory func(t *testing.T) wsv.WSV

func cause(err error) error {
	return errors.Cause(err)
}

// TestCompliance runs the world state suite against views built by f.
func TestCompliance(t *testing.T, f Factory) {
	ctx := context.Background()

	Convey("Given an empty world state view", t, func() {
		v := f(t)
		Reset(func() {
			So(v.Close(), ShouldBeNil)
		})

		Convey("Reads of absent entities should fail with not found", func() {
			peers, err := v.GetPeers(ctx, true)
			So(err, ShouldBeNil)
			So(peers, ShouldBeEmpty)
			_, err = v.GetAccount(ctx, true, "nobody")
			So(cause(err), ShouldEqual, wsv.ErrNotFound)
			_, err = v.GetDomain(ctx, false, "nowhere")
			So(cause(err), ShouldEqual, wsv.ErrNotFound)
			_, err = v.GetAsset(ctx, true, "nothing")
			So(cause(err), ShouldEqual, wsv.ErrNotFound)
			_, err = v.GetWallet(ctx, true, uuid.Must(uuid.NewV4()))
			So(cause(err), ShouldEqual, wsv.ErrNotFound)
			keys, err := v.GetSignatories(ctx, true, "nobody")
			So(err, ShouldBeNil)
			So(keys, ShouldBeEmpty)
		})

		Convey("Transaction calls out of order should be rejected", func() {
			So(cause(v.StartTransaction(ctx)), ShouldEqual, wsv.ErrNoActiveBlock)
			So(cause(v.CommitBlock(ctx)), ShouldEqual, wsv.ErrNoActiveBlock)
			So(cause(v.RollbackBlock(ctx)), ShouldEqual, wsv.ErrNoActiveBlock)
			So(cause(v.CommitTransaction(ctx)), ShouldEqual, wsv.ErrNoActiveTransaction)
			So(cause(v.RollbackTransaction(ctx)), ShouldEqual, wsv.ErrNoActiveTransaction)
			So(cause(v.AddAccount(ctx, "alice", 1, 0)), ShouldEqual, wsv.ErrNoActiveBlock)

			So(v.StartBlock(ctx), ShouldBeNil)
			So(cause(v.StartBlock(ctx)), ShouldEqual, wsv.ErrAlreadyOpen)
			So(cause(v.CommitTransaction(ctx)), ShouldEqual, wsv.ErrNoActiveTransaction)
			So(v.StartTransaction(ctx), ShouldBeNil)
			So(cause(v.StartTransaction(ctx)), ShouldEqual, wsv.ErrAlreadyOpen)
			So(cause(v.CommitBlock(ctx)), ShouldEqual, wsv.ErrAlreadyOpen)
			So(v.CommitTransaction(ctx), ShouldBeNil)
			So(v.CommitBlock(ctx), ShouldBeNil)
		})

		Convey("A committed block should be visible to committed reads", func() {
			So(v.StartBlock(ctx), ShouldBeNil)
			So(v.StartTransaction(ctx), ShouldBeNil)
			So(v.AddAccount(ctx, "alice", 2, 7), ShouldBeNil)
			So(v.AddPeer(ctx, "alice", "10.0.0.1", 0), ShouldBeNil)

			Convey("Pending effects should only be seen by uncommitted reads", func() {
				peers, err := v.GetPeers(ctx, false)
				So(err, ShouldBeNil)
				So(peers, ShouldResemble, []string{"10.0.0.1"})
				peers, err = v.GetPeers(ctx, true)
				So(err, ShouldBeNil)
				So(peers, ShouldBeEmpty)
				_, err = v.GetAccount(ctx, true, "alice")
				So(cause(err), ShouldEqual, wsv.ErrNotFound)
			})

			Convey("Committing should publish every effect", func() {
				So(v.CommitTransaction(ctx), ShouldBeNil)
				peers, err := v.GetPeers(ctx, true)
				So(err, ShouldBeNil)
				So(peers, ShouldBeEmpty)
				So(v.CommitBlock(ctx), ShouldBeNil)

				peers, err = v.GetPeers(ctx, true)
				So(err, ShouldBeNil)
				So(peers, ShouldResemble, []string{"10.0.0.1"})
				acc, err := v.GetAccount(ctx, true, "alice")
				So(err, ShouldBeNil)
				So(acc, ShouldResemble, &wsv.Account{ID: "alice", Quorum: 2, Status: 7})
			})
		})

		Convey("A rejected sub-transaction should not affect the block", func() {
			So(v.StartBlock(ctx), ShouldBeNil)
			So(v.StartTransaction(ctx), ShouldBeNil)
			So(v.AddAccount(ctx, "alice", 1, 0), ShouldBeNil)
			So(v.CommitTransaction(ctx), ShouldBeNil)

			So(v.StartTransaction(ctx), ShouldBeNil)
			So(v.AddAccount(ctx, "bob", 1, 0), ShouldBeNil)
			So(cause(v.AddAccount(ctx, "alice", 3, 0)), ShouldEqual, wsv.ErrConstraintViolation)
			So(v.RollbackTransaction(ctx), ShouldBeNil)
			So(v.CommitBlock(ctx), ShouldBeNil)

			acc, err := v.GetAccount(ctx, true, "alice")
			So(err, ShouldBeNil)
			So(acc.Quorum, ShouldEqual, 1)
			_, err = v.GetAccount(ctx, true, "bob")
			So(cause(err), ShouldEqual, wsv.ErrNotFound)
		})

		Convey("Rolling back a block should discard committed sub-transactions", func() {
			So(v.StartBlock(ctx), ShouldBeNil)
			for _, id := range []string{"alice", "bob", "carol"} {
				So(v.StartTransaction(ctx), ShouldBeNil)
				So(v.AddAccount(ctx, id, 1, 0), ShouldBeNil)
				if id == "carol" {
					break
				}
				So(v.CommitTransaction(ctx), ShouldBeNil)
			}
			So(v.RollbackBlock(ctx), ShouldBeNil)

			for _, id := range []string{"alice", "bob", "carol"} {
				_, err := v.GetAccount(ctx, true, id)
				So(cause(err), ShouldEqual, wsv.ErrNotFound)
				_, err = v.GetAccount(ctx, false, id)
				So(cause(err), ShouldEqual, wsv.ErrNotFound)
			}
			So(v.StartBlock(ctx), ShouldBeNil)
			So(v.RollbackBlock(ctx), ShouldBeNil)
		})

		Convey("A failed mutation should leave the enclosing transaction usable", func() {
			So(v.StartBlock(ctx), ShouldBeNil)
			So(v.AddAccount(ctx, "alice", 1, 0), ShouldBeNil)
			So(cause(v.AddAccount(ctx, "alice", 1, 0)), ShouldEqual, wsv.ErrConstraintViolation)
			So(cause(v.AddSignatory(ctx, "ghost", "key")), ShouldEqual, wsv.ErrConstraintViolation)

			So(v.StartTransaction(ctx), ShouldBeNil)
			So(v.AddSignatory(ctx, "alice", "key-1"), ShouldBeNil)
			So(cause(v.AddSignatory(ctx, "alice", "key-1")), ShouldEqual, wsv.ErrConstraintViolation)
			So(v.CommitTransaction(ctx), ShouldBeNil)
			So(v.CommitBlock(ctx), ShouldBeNil)

			keys, err := v.GetSignatories(ctx, true, "alice")
			So(err, ShouldBeNil)
			So(keys, ShouldResemble, []string{"key-1"})
		})

		Convey("Peers should be listed in insertion order and signatories by key", func() {
			So(v.StartBlock(ctx), ShouldBeNil)
			So(v.AddAccount(ctx, "alice", 1, 0), ShouldBeNil)
			for _, addr := range []string{"10.0.0.3", "10.0.0.1", "10.0.0.2"} {
				So(v.AddPeer(ctx, "alice", addr, 1), ShouldBeNil)
			}
			So(cause(v.AddPeer(ctx, "alice", "10.0.0.1", 1)), ShouldEqual, wsv.ErrConstraintViolation)
			So(cause(v.AddPeer(ctx, "ghost", "10.0.0.9", 1)), ShouldEqual, wsv.ErrConstraintViolation)
			for _, key := range []string{"key-c", "key-a", "key-b"} {
				So(v.AddSignatory(ctx, "alice", key), ShouldBeNil)
			}
			So(v.CommitBlock(ctx), ShouldBeNil)

			peers, err := v.GetPeers(ctx, true)
			So(err, ShouldBeNil)
			So(peers, ShouldResemble, []string{"10.0.0.3", "10.0.0.1", "10.0.0.2"})
			keys, err := v.GetSignatories(ctx, true, "alice")
			So(err, ShouldBeNil)
			So(keys, ShouldResemble, []string{"key-a", "key-b", "key-c"})
		})

		Convey("Domains, assets and wallets should round trip", func() {
			walletID := uuid.Must(uuid.NewV4())
			perms := wsv.Permissions(0).With(0).With(5).With(31)

			So(v.StartBlock(ctx), ShouldBeNil)
			So(v.AddAccount(ctx, "alice", 1, 0), ShouldBeNil)
			So(v.AddDomain(ctx, wsv.Domain{ID: "root", Open: true}), ShouldBeNil)
			So(v.AddDomain(ctx, wsv.Domain{ID: "child", ParentID: "root"}), ShouldBeNil)
			So(cause(v.AddDomain(ctx, wsv.Domain{ID: "orphan", ParentID: "missing"})),
				ShouldEqual, wsv.ErrConstraintViolation)
			So(v.AddAsset(ctx, wsv.Asset{ID: "coin", DomainID: "root", Data: json.RawMessage(`{"decimals":2}`)}),
				ShouldBeNil)
			So(v.AddAsset(ctx, wsv.Asset{ID: "token", DomainID: "child"}), ShouldBeNil)
			So(cause(v.AddAsset(ctx, wsv.Asset{ID: "junk", DomainID: "root", Data: json.RawMessage(`{`)})),
				ShouldEqual, wsv.ErrConstraintViolation)
			So(cause(v.AddAsset(ctx, wsv.Asset{ID: "stray", DomainID: "missing"})),
				ShouldEqual, wsv.ErrConstraintViolation)
			So(v.AddExchange(ctx, wsv.Exchange{Asset1ID: "coin", Asset2ID: "token", Asset1: 1, Asset2: 100}),
				ShouldBeNil)
			So(cause(v.AddExchange(ctx, wsv.Exchange{Asset1ID: "coin", Asset2ID: "token", Asset1: 2, Asset2: 1})),
				ShouldEqual, wsv.ErrConstraintViolation)
			So(v.AddWallet(ctx, wsv.Wallet{
				ID: walletID, AssetID: "coin", Amount: 1500, Precision: 2, Permissions: perms,
			}), ShouldBeNil)
			So(v.AddAccountWallet(ctx, "alice", walletID, perms), ShouldBeNil)
			So(cause(v.AddAccountWallet(ctx, "alice", uuid.Must(uuid.NewV4()), perms)),
				ShouldEqual, wsv.ErrConstraintViolation)
			So(v.AddAccountAsset(ctx, "alice", "coin", perms), ShouldBeNil)
			So(cause(v.AddAccountAsset(ctx, "alice", "coin", perms)), ShouldEqual, wsv.ErrConstraintViolation)
			So(v.AddDomainAccount(ctx, "root", "alice", perms), ShouldBeNil)
			So(cause(v.AddDomainAccount(ctx, "missing", "alice", perms)), ShouldEqual, wsv.ErrConstraintViolation)
			So(v.CommitBlock(ctx), ShouldBeNil)

			root, err := v.GetDomain(ctx, true, "root")
			So(err, ShouldBeNil)
			So(root, ShouldResemble, &wsv.Domain{ID: "root", Open: true})
			child, err := v.GetDomain(ctx, true, "child")
			So(err, ShouldBeNil)
			So(child, ShouldResemble, &wsv.Domain{ID: "child", ParentID: "root"})

			coin, err := v.GetAsset(ctx, true, "coin")
			So(err, ShouldBeNil)
			So(coin.DomainID, ShouldEqual, "root")
			So(string(coin.Data), ShouldEqual, `{"decimals":2}`)
			token, err := v.GetAsset(ctx, true, "token")
			So(err, ShouldBeNil)
			So(token.Data, ShouldBeNil)

			w, err := v.GetWallet(ctx, true, walletID)
			So(err, ShouldBeNil)
			So(w, ShouldResemble, &wsv.Wallet{
				ID: walletID, AssetID: "coin", Amount: 1500, Precision: 2, Permissions: perms,
			})
		})

		Convey("The applied height should follow the block transaction", func() {
			h, err := v.GetAppliedHeight(ctx, true)
			So(err, ShouldBeNil)
			So(h, ShouldEqual, 0)
			So(cause(v.SetAppliedHeight(ctx, 1)), ShouldEqual, wsv.ErrNoActiveBlock)

			So(v.StartBlock(ctx), ShouldBeNil)
			So(v.SetAppliedHeight(ctx, 1), ShouldBeNil)
			So(v.RollbackBlock(ctx), ShouldBeNil)
			h, err = v.GetAppliedHeight(ctx, false)
			So(err, ShouldBeNil)
			So(h, ShouldEqual, 0)

			for _, height := range []uint64{1, 2} {
				So(v.StartBlock(ctx), ShouldBeNil)
				So(v.SetAppliedHeight(ctx, height), ShouldBeNil)
				h, err = v.GetAppliedHeight(ctx, false)
				So(err, ShouldBeNil)
				So(h, ShouldEqual, height)
				h, err = v.GetAppliedHeight(ctx, true)
				So(err, ShouldBeNil)
				So(h, ShouldEqual, height-1)
				So(v.CommitBlock(ctx), ShouldBeNil)
			}
			h, err = v.GetAppliedHeight(ctx, true)
			So(err, ShouldBeNil)
			So(h, ShouldEqual, 2)
		})

		Convey("Committed reads should run alongside the writer", func() {
			So(v.StartBlock(ctx), ShouldBeNil)
			So(v.AddAccount(ctx, "alice", 1, 0), ShouldBeNil)
			So(v.CommitBlock(ctx), ShouldBeNil)

			const rounds = 100
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				readErrs []error
				once     sync.Once
				done     = make(chan struct{})
			)
			stop := func() { once.Do(func() { close(done) }) }
			defer stop()
			for r := 0; r < 4; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					seen := 0
					for {
						select {
						case <-done:
							return
						default:
						}
						peers, err := v.GetPeers(ctx, true)
						if err == nil && len(peers) < seen {
							err = errors.Errorf("committed peers shrank from %d to %d", seen, len(peers))
						}
						if err == nil {
							for _, p := range peers {
								if strings.HasPrefix(p, "10.1.") {
									err = errors.Errorf("rolled back peer %s is visible", p)
								}
							}
							seen = len(peers)
						}
						if err != nil {
							mu.Lock()
							readErrs = append(readErrs, err)
							mu.Unlock()
							return
						}
					}
				}()
			}
			for i := 0; i < rounds; i++ {
				So(v.StartBlock(ctx), ShouldBeNil)
				So(v.StartTransaction(ctx), ShouldBeNil)
				So(v.AddPeer(ctx, "alice", fmt.Sprintf("10.0.%d.%d", i/256, i%256), 0), ShouldBeNil)
				So(v.CommitTransaction(ctx), ShouldBeNil)
				So(v.StartTransaction(ctx), ShouldBeNil)
				So(v.AddPeer(ctx, "alice", fmt.Sprintf("10.1.%d.%d", i/256, i%256), 0), ShouldBeNil)
				So(v.RollbackTransaction(ctx), ShouldBeNil)
				So(v.CommitBlock(ctx), ShouldBeNil)
			}
			stop()
			wg.Wait()
			So(readErrs, ShouldBeEmpty)

			peers, err := v.GetPeers(ctx, true)
			So(err, ShouldBeNil)
			So(peers, ShouldHaveLength, rounds)
		})

		Convey("Closing should discard an open block", func() {
			So(v.StartBlock(ctx), ShouldBeNil)
			So(v.AddAccount(ctx, "alice", 1, 0), ShouldBeNil)
			So(v.Close(), ShouldBeNil)
			So(cause(v.StartBlock(ctx)), ShouldEqual, wsv.ErrClosed)
			_, err := v.GetPeers(ctx, true)
			So(cause(err), ShouldEqual, wsv.ErrClosed)
		})
	})
}
