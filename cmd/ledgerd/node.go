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
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ledgercore/ledgercore/blockstore"
	"github.com/ledgercore/ledgercore/conf"
	"github.com/ledgercore/ledgercore/ledger"
	"github.com/ledgercore/ledgercore/metric"
	"github.com/ledgercore/ledgercore/utils/log"
	"github.com/ledgercore/ledgercore/wsv"
	"github.com/ledgercore/ledgercore/wsv/postgres"
	"github.com/ledgercore/ledgercore/wsv/sqlite"
)

type node struct {
	store    blockstore.Store
	state    wsv.WSV
	ledger   *ledger.Ledger
	registry *prometheus.Registry
}

func newBackendRegistry() (r *wsv.Registry, err error) {
	r = wsv.NewRegistry()
	for _, register := range []func(*wsv.Registry) error{
		sqlite.Register,
		postgres.Register,
	} {
		if err = register(r); err != nil {
			return nil, err
		}
	}
	return
}

// openNode opens the block store and the world state named by cfg.
func openNode(ctx context.Context, cfg *conf.Config) (n *node, err error) {
	store, err := blockstore.Open(cfg.BlockStore.Kind, cfg.BlockStore.Path)
	if err != nil {
		return nil, errors.WithMessagef(err, "open %s block store at %s", cfg.BlockStore.Kind, cfg.BlockStore.Path)
	}
	log.WithFields(log.Fields{
		"kind":    cfg.BlockStore.Kind,
		"path":    cfg.BlockStore.Path,
		"last_id": store.LastID(),
	}).Info("block store opened")

	backends, err := newBackendRegistry()
	if err != nil {
		store.Close()
		return
	}
	state, err := backends.Create(ctx, cfg.WorldState.Backend, cfg.WorldState.DSN)
	if err != nil {
		store.Close()
		return nil, err
	}
	log.WithField("backend", cfg.WorldState.Backend).Info("world state opened")

	reg := metric.NewRegistry()
	reg.MustRegister(metric.NewStoreCollector(cfg.BlockStore.Kind, store.LastID))
	n = &node{
		store:    store,
		state:    state,
		ledger:   ledger.New(store, state, metric.NewLedgerMetrics(reg), cfg.FailurePolicy),
		registry: reg,
	}

	// catch up blocks stored before the world state committed them
	replayed, err := n.ledger.Replay(ctx)
	if err != nil {
		log.WithError(err).Error("world state does not match the block store")
		n.Close()
		return nil, err
	}
	if replayed > 0 {
		log.WithField("blocks", replayed).Warning("replayed stored blocks into world state")
	}
	return
}

func (n *node) Close() (err error) {
	if err = n.state.Close(); err != nil {
		log.WithError(err).Error("close world state failed")
	}
	if serr := n.store.Close(); serr != nil {
		log.WithError(serr).Error("close block store failed")
		if err == nil {
			err = serr
		}
	}
	return
}
