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

// Package ledger applies blocks of commands to the world state and appends them to the
// block store.
package ledger

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/ledgercore/ledgercore/blockstore"
	"github.com/ledgercore/ledgercore/conf"
	"github.com/ledgercore/ledgercore/metric"
	"github.com/ledgercore/ledgercore/utils/log"
	"github.com/ledgercore/ledgercore/wsv"
)

// Ledger drives a block store and a world state view as the single writer of both.
//
// The world state records the id of the last block it applied in the same transaction
// as the block's effects, so a state lagging behind the store is caught up by Replay
// and never re-applies a block.
type Ledger struct {
	sync.Mutex
	store   blockstore.Store
	state   wsv.WSV
	metrics *metric.LedgerMetrics
	policy  conf.FailurePolicy
}

// New returns a ledger over store and state. A nil m counts into unregistered metrics,
// an empty policy means conf.DefaultFailurePolicy.
func New(store blockstore.Store, state wsv.WSV, m *metric.LedgerMetrics, policy conf.FailurePolicy) *Ledger {
	if m == nil {
		m = metric.NewLedgerMetrics(nil)
	}
	if policy == "" {
		policy = conf.DefaultFailurePolicy
	}
	return &Ledger{
		store:   store,
		state:   state,
		metrics: m,
		policy:  policy,
	}
}

// Height returns the id of the last stored block.
func (l *Ledger) Height() uint64 {
	return l.store.LastID()
}

// State returns the world state view the ledger writes to.
func (l *Ledger) State() wsv.WSV {
	return l.state
}

// Block returns the stored block with id.
func (l *Ledger) Block(id uint64) (b *Block, err error) {
	data, err := l.store.Get(id)
	if err != nil {
		return
	}
	if b, err = DecodeBlock(data); err != nil {
		err = errors.WithMessagef(err, "block %d", id)
	}
	return
}

func recoverable(err error) bool {
	switch errors.Cause(err) {
	case wsv.ErrConstraintViolation, wsv.ErrNotFound:
		return true
	}
	return false
}

// applied returns the last block id the committed world state holds, failing when it
// is ahead of the store.
func (l *Ledger) applied(ctx context.Context) (applied uint64, err error) {
	if applied, err = l.state.GetAppliedHeight(ctx, true); err != nil {
		return
	}
	if last := l.store.LastID(); applied > last {
		err = errors.Wrapf(ErrStateDiverged, "world state at block %d, block store at %d", applied, last)
	}
	return
}

// ApplyBlock runs every command of b in its own sub-transaction, stores b and commits
// the world state. A command failing with a recoverable error rolls back the whole
// block under conf.RollbackBlock; under conf.RejectCommand only the command is rolled
// back and its index returned in rejected. Any other failure discards the block.
func (l *Ledger) ApplyBlock(ctx context.Context, b *Block) (id uint64, rejected []int, err error) {
	l.Lock()
	defer l.Unlock()

	if expected := l.store.LastID() + 1; b.Height != expected {
		err = errors.Wrapf(ErrHeightMismatch, "got height %d, expected %d", b.Height, expected)
		return
	}
	if len(b.Commands) > conf.MaxCommandsPerBlock {
		err = errors.Wrapf(ErrBlockTooLarge, "%d commands", len(b.Commands))
		return
	}
	for i := range b.Commands {
		if err = b.Commands[i].Validate(); err != nil {
			err = errors.WithMessagef(err, "command %d", i)
			return
		}
	}
	applied, err := l.applied(ctx)
	if err != nil {
		return
	}
	if applied != l.store.LastID() {
		err = errors.Wrapf(ErrStateDiverged, "world state at block %d, block store at %d, replay needed",
			applied, l.store.LastID())
		return
	}
	data, err := EncodeBlock(b)
	if err != nil {
		return
	}

	le := log.WithFields(log.Fields{
		"height":   b.Height,
		"commands": len(b.Commands),
		"policy":   l.policy,
	})

	if rejected, err = l.execute(ctx, b, l.policy, le); err != nil {
		return 0, nil, err
	}

	if id, err = l.store.Append(data); err != nil {
		le.WithError(err).Error("append block failed")
		l.abort(ctx)
		return 0, nil, err
	}
	if err = l.state.CommitBlock(ctx); err != nil {
		// the block is stored, Replay recovers the world state
		le.WithError(err).WithField("id", id).Error("commit world state failed")
		l.metrics.BlocksFailed.Inc()
		return
	}

	l.metrics.BlocksApplied.Inc()
	le.WithFields(log.Fields{
		"id":       id,
		"rejected": len(rejected),
	}).Debug("block applied")
	return
}

// Replay applies the stored blocks the world state has not applied yet, without
// storing them again, and returns how many it applied. Stored blocks are replayed
// rejecting failing commands: a block stored under either policy yields the state it
// produced when it was first applied.
func (l *Ledger) Replay(ctx context.Context) (replayed uint64, err error) {
	l.Lock()
	defer l.Unlock()

	applied, err := l.applied(ctx)
	if err != nil {
		return
	}
	last := l.store.LastID()
	for id := applied + 1; id <= last; id++ {
		var (
			data []byte
			b    *Block
		)
		if data, err = l.store.Get(id); err != nil {
			return
		}
		if b, err = DecodeBlock(data); err != nil {
			return replayed, errors.WithMessagef(err, "block %d", id)
		}
		if b.Height != id {
			return replayed, errors.Wrapf(ErrHeightMismatch, "block %d carries height %d", id, b.Height)
		}
		le := log.WithFields(log.Fields{"height": b.Height, "id": id})
		if _, err = l.execute(ctx, b, conf.RejectCommand, le); err != nil {
			return replayed, errors.WithMessagef(err, "replay block %d", id)
		}
		if err = l.state.CommitBlock(ctx); err != nil {
			return replayed, errors.WithMessagef(err, "replay block %d", id)
		}
		replayed++
		le.Debug("block replayed")
	}
	return
}

// execute opens a block transaction, runs every command of b in it and records b as
// applied. The block is left open unless an error rolled it back.
func (l *Ledger) execute(ctx context.Context, b *Block, policy conf.FailurePolicy, le *log.Entry) (
	rejected []int, err error) {
	if err = l.state.StartBlock(ctx); err != nil {
		return
	}
	for i := range b.Commands {
		if err = l.applyCommand(ctx, &b.Commands[i]); err != nil {
			if !recoverable(err) {
				le.WithError(err).WithField("index", i).Error("apply command failed")
				l.abort(ctx)
				return nil, err
			}
			l.metrics.Commands.WithLabelValues(metric.OutcomeRejected).Inc()
			if policy == conf.RollbackBlock {
				le.WithError(err).WithField("index", i).Info("block rejected")
				l.abort(ctx)
				return nil, errors.WithMessagef(err, "command %d", i)
			}
			le.WithError(err).WithField("index", i).Info("command rejected")
			rejected = append(rejected, i)
			err = nil
			continue
		}
		l.metrics.Commands.WithLabelValues(metric.OutcomeApplied).Inc()
	}
	if err = l.state.SetAppliedHeight(ctx, b.Height); err != nil {
		le.WithError(err).Error("record applied height failed")
		l.abort(ctx)
		return nil, err
	}
	return
}

func (l *Ledger) applyCommand(ctx context.Context, c *Command) (err error) {
	if err = l.state.StartTransaction(ctx); err != nil {
		return
	}
	if err = c.Apply(ctx, l.state); err != nil {
		if rerr := l.state.RollbackTransaction(ctx); rerr != nil {
			return rerr
		}
		return
	}
	return l.state.CommitTransaction(ctx)
}

func (l *Ledger) abort(ctx context.Context) {
	l.metrics.BlocksFailed.Inc()
	if err := l.state.RollbackBlock(ctx); err != nil {
		log.WithError(err).Error("rollback block failed")
	}
}
