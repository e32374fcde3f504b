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

// Package wsv implements the world state view: the ledger state materialized from
// committed blocks, mutated through a block transaction holding at most one
// sub-transaction per ledger operation.
package wsv

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// WSV is the world state view capability consumed by the ledger processing layer.
type WSV interface {
	StartBlock(ctx context.Context) error
	CommitBlock(ctx context.Context) error
	RollbackBlock(ctx context.Context) error
	StartTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error

	AddAccount(ctx context.Context, accountID string, quorum uint8, status uint32) error
	AddSignatory(ctx context.Context, accountID, publicKey string) error
	AddPeer(ctx context.Context, accountID, address string, state uint32) error
	AddDomain(ctx context.Context, d Domain) error
	AddAsset(ctx context.Context, a Asset) error
	AddExchange(ctx context.Context, e Exchange) error
	AddWallet(ctx context.Context, w Wallet) error
	AddAccountWallet(ctx context.Context, accountID string, walletID uuid.UUID, p Permissions) error
	AddAccountAsset(ctx context.Context, accountID, assetID string, p Permissions) error
	AddDomainAccount(ctx context.Context, domainID, accountID string, p Permissions) error
	// SetAppliedHeight records the id of the block the open block transaction applies.
	SetAppliedHeight(ctx context.Context, height uint64) error

	GetPeers(ctx context.Context, committed bool) ([]string, error)
	GetAccount(ctx context.Context, committed bool, accountID string) (*Account, error)
	GetSignatories(ctx context.Context, committed bool, accountID string) ([]string, error)
	GetDomain(ctx context.Context, committed bool, domainID string) (*Domain, error)
	GetAsset(ctx context.Context, committed bool, assetID string) (*Asset, error)
	GetWallet(ctx context.Context, committed bool, walletID uuid.UUID) (*Wallet, error)
	// GetAppliedHeight returns the last recorded block id, 0 on a fresh state.
	GetAppliedHeight(ctx context.Context, committed bool) (uint64, error)

	Close() error
}

// Account is a ledger account.
type Account struct {
	ID     string
	Quorum uint8
	Status uint32
}

// Domain is a node of the domain tree. Root domains have an empty ParentID.
type Domain struct {
	ID       string
	ParentID string
	Open     bool
}

// Asset is an asset defined in a domain, with optional JSON data.
type Asset struct {
	ID       string
	DomainID string
	Data     json.RawMessage
}

// Exchange is an exchange rate between two assets.
type Exchange struct {
	Asset1ID string
	Asset2ID string
	Asset1   int32
	Asset2   int32
}

// Wallet holds an amount of an asset.
type Wallet struct {
	ID          uuid.UUID
	AssetID     string
	Amount      int64
	Precision   int32
	Permissions Permissions
}

// PermissionBits is the width of a stored permission bitset.
const PermissionBits = 32

// Permissions is a fixed-width permission bitset.
type Permissions uint32

// With returns p with bit set.
func (p Permissions) With(bit uint) Permissions {
	return p | 1<<bit
}

// Has reports whether bit is set.
func (p Permissions) Has(bit uint) bool {
	return p&(1<<bit) != 0
}

// String renders p as PermissionBits '0'/'1' characters, most significant bit first.
func (p Permissions) String() string {
	var b strings.Builder
	b.Grow(PermissionBits)
	for i := PermissionBits - 1; i >= 0; i-- {
		if p.Has(uint(i)) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// ParsePermissions reverses Permissions.String.
func ParsePermissions(s string) (p Permissions, err error) {
	if len(s) != PermissionBits {
		err = errors.Errorf("invalid permission bitset %q: want %d bits", s, PermissionBits)
		return
	}
	for i, c := range s {
		switch c {
		case '1':
			p = p.With(uint(PermissionBits - 1 - i))
		case '0':
		default:
			err = errors.Errorf("invalid permission bitset %q", s)
			return
		}
	}
	return
}
