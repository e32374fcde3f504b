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

package wsv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/ledgercore/ledgercore/utils/log"
)

// SQLView implements WSV over a relational Backend.
//
// A SQLView is driven by a single writer which owns the transaction state. Committed
// reads never touch that state: they go through the backend's committed querier and
// may run alongside the writer.
type SQLView struct {
	backend Backend
	dialect Dialect
	closed  uint32
	state   txState
}

// NewSQLView creates every missing table and returns a view in idle state.
func NewSQLView(ctx context.Context, b Backend) (v *SQLView, err error) {
	tx, err := b.Begin(ctx)
	if err != nil {
		err = errors.Wrap(b.Classify(err), "begin schema transaction failed")
		return
	}
	for _, ddl := range b.Schema() {
		if err = tx.Exec(ctx, ddl); err != nil {
			_ = tx.Rollback(ctx)
			err = errors.Wrapf(b.Classify(err), "create schema failed: %s", ddl)
			return
		}
	}
	if err = tx.Commit(ctx); err != nil {
		err = errors.Wrap(b.Classify(err), "commit schema failed")
		return
	}
	v = &SQLView{
		backend: b,
		dialect: b.Dialect(),
		state:   stateIdle{},
	}
	return
}

func (v *SQLView) misuse(op string, sentinel error) error {
	if atomic.LoadUint32(&v.closed) == 1 {
		sentinel = ErrClosed
	}
	err := errors.Wrapf(sentinel, "%s in state %s", op, v.state)
	log.WithFields(log.Fields{
		"op":    op,
		"state": v.state.String(),
	}).WithError(err).Error("invalid transaction call")
	return err
}

// StartBlock opens the block transaction.
func (v *SQLView) StartBlock(ctx context.Context) (err error) {
	if _, ok := v.state.(stateIdle); !ok {
		return v.misuse("start block", ErrAlreadyOpen)
	}
	blk, err := v.backend.Begin(ctx)
	if err != nil {
		return errors.Wrap(v.backend.Classify(err), "begin block transaction failed")
	}
	v.state = stateBlock{block: blk}
	return
}

// CommitBlock makes every effect folded into the block durable.
func (v *SQLView) CommitBlock(ctx context.Context) (err error) {
	var st stateBlock
	switch s := v.state.(type) {
	case stateBlock:
		st = s
	case stateTx:
		return v.misuse("commit block", ErrAlreadyOpen)
	default:
		return v.misuse("commit block", ErrNoActiveBlock)
	}
	v.state = stateIdle{}
	if err = st.block.Commit(ctx); err != nil {
		err = errors.Wrap(v.backend.Classify(err), "commit block transaction failed")
		log.WithError(err).Error("block discarded")
	}
	return
}

// RollbackBlock discards the block, including committed sub-transactions.
func (v *SQLView) RollbackBlock(ctx context.Context) (err error) {
	var blk Tx
	switch s := v.state.(type) {
	case stateBlock:
		blk = s.block
	case stateTx:
		blk = s.block
	default:
		return v.misuse("rollback block", ErrNoActiveBlock)
	}
	v.state = stateIdle{}
	if err = blk.Rollback(ctx); err != nil {
		err = errors.Wrap(v.backend.Classify(err), "rollback block transaction failed")
	}
	return
}

// StartTransaction opens a sub-transaction inside the block.
func (v *SQLView) StartTransaction(ctx context.Context) (err error) {
	var st stateBlock
	switch s := v.state.(type) {
	case stateBlock:
		st = s
	case stateTx:
		return v.misuse("start transaction", ErrAlreadyOpen)
	default:
		return v.misuse("start transaction", ErrNoActiveBlock)
	}
	tx, err := st.block.Begin(ctx)
	if err != nil {
		return errors.Wrap(v.backend.Classify(err), "begin transaction failed")
	}
	v.state = stateTx{block: st.block, tx: tx}
	return
}

// CommitTransaction folds the sub-transaction into the block.
func (v *SQLView) CommitTransaction(ctx context.Context) (err error) {
	st, ok := v.state.(stateTx)
	if !ok {
		return v.misuse("commit transaction", ErrNoActiveTransaction)
	}
	v.state = stateBlock{block: st.block}
	if err = st.tx.Commit(ctx); err != nil {
		err = errors.Wrap(v.backend.Classify(err), "commit transaction failed")
	}
	return
}

// RollbackTransaction discards the sub-transaction, leaving the block intact.
func (v *SQLView) RollbackTransaction(ctx context.Context) (err error) {
	st, ok := v.state.(stateTx)
	if !ok {
		return v.misuse("rollback transaction", ErrNoActiveTransaction)
	}
	v.state = stateBlock{block: st.block}
	if err = st.tx.Rollback(ctx); err != nil {
		err = errors.Wrap(v.backend.Classify(err), "rollback transaction failed")
	}
	return
}

// Close rolls back any open block and releases the backend.
func (v *SQLView) Close() (err error) {
	if !atomic.CompareAndSwapUint32(&v.closed, 0, 1) {
		return
	}
	switch s := v.state.(type) {
	case stateBlock:
		_ = s.block.Rollback(context.Background())
	case stateTx:
		_ = s.block.Rollback(context.Background())
	}
	v.state = stateClosed{}
	return v.backend.Close()
}

// target returns the innermost open transaction mutations run in.
func (v *SQLView) target(op string) (Tx, error) {
	switch s := v.state.(type) {
	case stateTx:
		return s.tx, nil
	case stateBlock:
		return s.block, nil
	}
	return nil, v.misuse(op, ErrNoActiveBlock)
}

func (v *SQLView) exec(ctx context.Context, op string, query string, args ...interface{}) (err error) {
	target, err := v.target(op)
	if err != nil {
		return
	}

	sp, err := target.Begin(ctx)
	if err != nil {
		return errors.Wrapf(v.backend.Classify(err), "%s: begin savepoint failed", op)
	}
	if err = sp.Exec(ctx, query, args...); err != nil {
		if rerr := sp.Rollback(ctx); rerr != nil {
			log.WithError(rerr).WithField("op", op).Warning("rollback savepoint failed")
		}
		err = errors.Wrapf(v.backend.Classify(err), "%s failed", op)
		log.WithError(err).WithField("op", op).Debug("mutation rejected")
		return
	}
	if err = sp.Commit(ctx); err != nil {
		err = errors.Wrapf(v.backend.Classify(err), "%s: release savepoint failed", op)
	}
	return
}

// AddAccount inserts an account.
func (v *SQLView) AddAccount(ctx context.Context, accountID string, quorum uint8, status uint32) error {
	return v.exec(ctx, "add account", insertAccount, accountID, int64(quorum), int64(status))
}

// AddSignatory attaches a public key to an account.
func (v *SQLView) AddSignatory(ctx context.Context, accountID, publicKey string) error {
	return v.exec(ctx, "add signatory", insertSignatory, accountID, publicKey)
}

// AddPeer inserts a peer owned by an account. Peers are listed in insertion order.
func (v *SQLView) AddPeer(ctx context.Context, accountID, address string, state uint32) error {
	return v.exec(ctx, "add peer", insertPeer, accountID, address, int64(state))
}

// AddDomain inserts a domain. An empty ParentID makes a root domain.
func (v *SQLView) AddDomain(ctx context.Context, d Domain) error {
	return v.exec(ctx, "add domain", insertDomain, d.ID, nullString(d.ParentID), d.Open)
}

// AddAsset inserts an asset. Data must be empty or valid JSON.
func (v *SQLView) AddAsset(ctx context.Context, a Asset) error {
	if _, err := v.target("add asset"); err != nil {
		return err
	}
	var data interface{}
	if len(a.Data) != 0 {
		if !json.Valid(a.Data) {
			return errors.Wrapf(ErrConstraintViolation, "add asset %s: data is not valid json", a.ID)
		}
		data = string(a.Data)
	}
	return v.exec(ctx, "add asset", insertAsset, a.ID, a.DomainID, data)
}

// AddExchange inserts an exchange rate.
func (v *SQLView) AddExchange(ctx context.Context, e Exchange) error {
	return v.exec(ctx, "add exchange", insertExchange,
		e.Asset1ID, e.Asset2ID, int64(e.Asset1), int64(e.Asset2))
}

// AddWallet inserts a wallet.
func (v *SQLView) AddWallet(ctx context.Context, w Wallet) error {
	return v.exec(ctx, "add wallet", insertWallet,
		w.ID.String(), nullString(w.AssetID), w.Amount, int64(w.Precision), w.Permissions.String())
}

// AddAccountWallet grants an account permissions on a wallet.
func (v *SQLView) AddAccountWallet(ctx context.Context, accountID string, walletID uuid.UUID, p Permissions) error {
	return v.exec(ctx, "add account wallet", insertAccountWallet, accountID, walletID.String(), p.String())
}

// AddAccountAsset grants an account permissions on an asset.
func (v *SQLView) AddAccountAsset(ctx context.Context, accountID, assetID string, p Permissions) error {
	return v.exec(ctx, "add account asset", insertAccountAsset, accountID, assetID, p.String())
}

// AddDomainAccount grants an account permissions in a domain.
func (v *SQLView) AddDomainAccount(ctx context.Context, domainID, accountID string, p Permissions) error {
	return v.exec(ctx, "add domain account", insertDomainAccount, domainID, accountID, p.String())
}

// SetAppliedHeight records height as the last block applied to the state. It commits
// or rolls back together with the enclosing block transaction.
func (v *SQLView) SetAppliedHeight(ctx context.Context, height uint64) error {
	return v.exec(ctx, "set applied height", upsertAppliedHeight, int64(height))
}

// reader returns the querier a read runs on. Only the writer may ask for uncommitted
// reads.
func (v *SQLView) reader(committed bool) Querier {
	if committed {
		return v.backend.Committed()
	}
	switch s := v.state.(type) {
	case stateTx:
		return s.tx
	case stateBlock:
		return s.block
	}
	return v.backend.Committed()
}

func (v *SQLView) checkOpen(op string) error {
	if atomic.LoadUint32(&v.closed) == 1 {
		return errors.Wrap(ErrClosed, op)
	}
	return nil
}

func (v *SQLView) queryRow(ctx context.Context, committed bool, op string, query string, args []interface{}, dest ...interface{}) (err error) {
	if err = v.checkOpen(op); err != nil {
		return
	}
	if err = v.reader(committed).QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		err = errors.Wrapf(v.backend.Classify(err), "%s failed", op)
	}
	return
}

func (v *SQLView) queryStrings(ctx context.Context, committed bool, op string, query string, args ...interface{}) (res []string, err error) {
	if err = v.checkOpen(op); err != nil {
		return
	}
	rows, err := v.reader(committed).Query(ctx, query, args...)
	if err != nil {
		err = errors.Wrapf(v.backend.Classify(err), "%s failed", op)
		return
	}
	defer rows.Close()
	res = []string{}
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			err = errors.Wrapf(v.backend.Classify(err), "%s: scan failed", op)
			return nil, err
		}
		res = append(res, trimFixed(s))
	}
	if err = rows.Err(); err != nil {
		err = errors.Wrapf(v.backend.Classify(err), "%s failed", op)
		return nil, err
	}
	return
}

// GetPeers returns peer addresses in insertion order.
func (v *SQLView) GetPeers(ctx context.Context, committed bool) ([]string, error) {
	return v.queryStrings(ctx, committed, "get peers", fmt.Sprintf(selectPeers, v.dialect.PeerAddress))
}

// GetAccount returns an account.
func (v *SQLView) GetAccount(ctx context.Context, committed bool, accountID string) (a *Account, err error) {
	var (
		id             string
		quorum, status int64
	)
	if err = v.queryRow(ctx, committed, "get account", selectAccount,
		[]interface{}{accountID}, &id, &quorum, &status); err != nil {
		return
	}
	a = &Account{
		ID:     trimFixed(id),
		Quorum: uint8(quorum),
		Status: uint32(status),
	}
	return
}

// GetSignatories returns the public keys of an account ordered by key.
func (v *SQLView) GetSignatories(ctx context.Context, committed bool, accountID string) ([]string, error) {
	return v.queryStrings(ctx, committed, "get signatories", selectSignatories, accountID)
}

// GetDomain returns a domain.
func (v *SQLView) GetDomain(ctx context.Context, committed bool, domainID string) (d *Domain, err error) {
	var (
		id     string
		parent sql.NullString
		open   bool
	)
	if err = v.queryRow(ctx, committed, "get domain", selectDomain,
		[]interface{}{domainID}, &id, &parent, &open); err != nil {
		return
	}
	d = &Domain{
		ID:       trimFixed(id),
		ParentID: trimFixed(parent.String),
		Open:     open,
	}
	return
}

// GetAsset returns an asset.
func (v *SQLView) GetAsset(ctx context.Context, committed bool, assetID string) (a *Asset, err error) {
	var (
		id, domain string
		data       sql.NullString
	)
	if err = v.queryRow(ctx, committed, "get asset", selectAsset,
		[]interface{}{assetID}, &id, &domain, &data); err != nil {
		return
	}
	a = &Asset{
		ID:       trimFixed(id),
		DomainID: trimFixed(domain),
	}
	if data.Valid {
		a.Data = json.RawMessage(data.String)
	}
	return
}

// GetWallet returns a wallet.
func (v *SQLView) GetWallet(ctx context.Context, committed bool, walletID uuid.UUID) (w *Wallet, err error) {
	var (
		id, perms         string
		asset             sql.NullString
		amount, precision int64
	)
	if err = v.queryRow(ctx, committed, "get wallet", selectWallet,
		[]interface{}{walletID.String()}, &id, &asset, &amount, &precision, &perms); err != nil {
		return
	}
	w = &Wallet{
		AssetID:   trimFixed(asset.String),
		Amount:    amount,
		Precision: int32(precision),
	}
	if w.ID, err = uuid.FromString(id); err != nil {
		err = errors.Wrapf(err, "get wallet: invalid stored id %q", id)
		return nil, err
	}
	if w.Permissions, err = ParsePermissions(perms); err != nil {
		err = errors.Wrap(err, "get wallet")
		return nil, err
	}
	return
}

// GetAppliedHeight returns the last height recorded by SetAppliedHeight, or 0.
func (v *SQLView) GetAppliedHeight(ctx context.Context, committed bool) (height uint64, err error) {
	var h int64
	err = v.queryRow(ctx, committed, "get applied height", selectAppliedHeight, nil, &h)
	if errors.Cause(err) == ErrNotFound {
		return 0, nil
	} else if err != nil {
		return
	}
	return uint64(h), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// trimFixed strips the padding fixed width character columns carry.
func trimFixed(s string) string {
	return strings.TrimRight(s, " ")
}
