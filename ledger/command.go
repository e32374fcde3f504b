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

package ledger

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/ledgercore/ledgercore/wsv"
)

// Command is a single state change. Exactly one field is set.
type Command struct {
	AddAccount       *AddAccount       `codec:"add_account,omitempty" yaml:"add_account,omitempty"`
	AddSignatory     *AddSignatory     `codec:"add_signatory,omitempty" yaml:"add_signatory,omitempty"`
	AddPeer          *AddPeer          `codec:"add_peer,omitempty" yaml:"add_peer,omitempty"`
	AddDomain        *AddDomain        `codec:"add_domain,omitempty" yaml:"add_domain,omitempty"`
	AddAsset         *AddAsset         `codec:"add_asset,omitempty" yaml:"add_asset,omitempty"`
	AddExchange      *AddExchange      `codec:"add_exchange,omitempty" yaml:"add_exchange,omitempty"`
	AddWallet        *AddWallet        `codec:"add_wallet,omitempty" yaml:"add_wallet,omitempty"`
	AddAccountWallet *AddAccountWallet `codec:"add_account_wallet,omitempty" yaml:"add_account_wallet,omitempty"`
	AddAccountAsset  *AddAccountAsset  `codec:"add_account_asset,omitempty" yaml:"add_account_asset,omitempty"`
	AddDomainAccount *AddDomainAccount `codec:"add_domain_account,omitempty" yaml:"add_domain_account,omitempty"`
}

// AddAccount creates an account.
type AddAccount struct {
	AccountID string `codec:"account_id" yaml:"account_id"`
	Quorum    uint8  `codec:"quorum" yaml:"quorum"`
	Status    uint32 `codec:"status" yaml:"status"`
}

// AddSignatory attaches a public key to an account.
type AddSignatory struct {
	AccountID string `codec:"account_id" yaml:"account_id"`
	PublicKey string `codec:"public_key" yaml:"public_key"`
}

// AddPeer registers a peer address owned by an account.
type AddPeer struct {
	AccountID string `codec:"account_id" yaml:"account_id"`
	Address   string `codec:"address" yaml:"address"`
	State     uint32 `codec:"state" yaml:"state"`
}

// AddDomain creates a domain, a root domain when ParentID is empty.
type AddDomain struct {
	DomainID string `codec:"domain_id" yaml:"domain_id"`
	ParentID string `codec:"parent_id" yaml:"parent_id"`
	Open     bool   `codec:"open" yaml:"open"`
}

// AddAsset defines an asset. Data is optional JSON.
type AddAsset struct {
	AssetID  string `codec:"asset_id" yaml:"asset_id"`
	DomainID string `codec:"domain_id" yaml:"domain_id"`
	Data     string `codec:"data" yaml:"data"`
}

// AddExchange sets the exchange rate between two assets.
type AddExchange struct {
	Asset1ID string `codec:"asset1_id" yaml:"asset1_id"`
	Asset2ID string `codec:"asset2_id" yaml:"asset2_id"`
	Asset1   int32  `codec:"asset1" yaml:"asset1"`
	Asset2   int32  `codec:"asset2" yaml:"asset2"`
}

// AddWallet creates a wallet.
type AddWallet struct {
	WalletID    string `codec:"wallet_id" yaml:"wallet_id"`
	AssetID     string `codec:"asset_id" yaml:"asset_id"`
	Amount      int64  `codec:"amount" yaml:"amount"`
	Precision   int32  `codec:"precision" yaml:"precision"`
	Permissions uint32 `codec:"permissions" yaml:"permissions"`
}

// AddAccountWallet grants an account permissions on a wallet.
type AddAccountWallet struct {
	AccountID   string `codec:"account_id" yaml:"account_id"`
	WalletID    string `codec:"wallet_id" yaml:"wallet_id"`
	Permissions uint32 `codec:"permissions" yaml:"permissions"`
}

// AddAccountAsset grants an account permissions on an asset.
type AddAccountAsset struct {
	AccountID   string `codec:"account_id" yaml:"account_id"`
	AssetID     string `codec:"asset_id" yaml:"asset_id"`
	Permissions uint32 `codec:"permissions" yaml:"permissions"`
}

// AddDomainAccount grants an account permissions in a domain.
type AddDomainAccount struct {
	DomainID    string `codec:"domain_id" yaml:"domain_id"`
	AccountID   string `codec:"account_id" yaml:"account_id"`
	Permissions uint32 `codec:"permissions" yaml:"permissions"`
}

// Name returns the kind of the command, or "" when it is not exactly one kind.
func (c *Command) Name() (name string) {
	set := 0
	check := func(ok bool, n string) {
		if ok {
			set++
			name = n
		}
	}
	check(c.AddAccount != nil, "add_account")
	check(c.AddSignatory != nil, "add_signatory")
	check(c.AddPeer != nil, "add_peer")
	check(c.AddDomain != nil, "add_domain")
	check(c.AddAsset != nil, "add_asset")
	check(c.AddExchange != nil, "add_exchange")
	check(c.AddWallet != nil, "add_wallet")
	check(c.AddAccountWallet != nil, "add_account_wallet")
	check(c.AddAccountAsset != nil, "add_account_asset")
	check(c.AddDomainAccount != nil, "add_domain_account")
	if set != 1 {
		return ""
	}
	return
}

// Validate checks the command can be applied without consulting state.
func (c *Command) Validate() error {
	name := c.Name()
	if name == "" {
		return errors.Wrap(ErrInvalidCommand, "command must set exactly one kind")
	}
	switch {
	case c.AddAsset != nil && c.AddAsset.Data != "" && !json.Valid([]byte(c.AddAsset.Data)):
		return errors.Wrapf(ErrInvalidCommand, "%s: data is not valid json", name)
	case c.AddWallet != nil:
		if _, err := uuid.FromString(c.AddWallet.WalletID); err != nil {
			return errors.Wrapf(ErrInvalidCommand, "%s: %v", name, err)
		}
	case c.AddAccountWallet != nil:
		if _, err := uuid.FromString(c.AddAccountWallet.WalletID); err != nil {
			return errors.Wrapf(ErrInvalidCommand, "%s: %v", name, err)
		}
	}
	return nil
}

// Apply runs the command against v inside whatever transaction v has open.
func (c *Command) Apply(ctx context.Context, v wsv.WSV) error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch {
	case c.AddAccount != nil:
		a := c.AddAccount
		return v.AddAccount(ctx, a.AccountID, a.Quorum, a.Status)
	case c.AddSignatory != nil:
		return v.AddSignatory(ctx, c.AddSignatory.AccountID, c.AddSignatory.PublicKey)
	case c.AddPeer != nil:
		p := c.AddPeer
		return v.AddPeer(ctx, p.AccountID, p.Address, p.State)
	case c.AddDomain != nil:
		d := c.AddDomain
		return v.AddDomain(ctx, wsv.Domain{ID: d.DomainID, ParentID: d.ParentID, Open: d.Open})
	case c.AddAsset != nil:
		a := wsv.Asset{ID: c.AddAsset.AssetID, DomainID: c.AddAsset.DomainID}
		if c.AddAsset.Data != "" {
			a.Data = json.RawMessage(c.AddAsset.Data)
		}
		return v.AddAsset(ctx, a)
	case c.AddExchange != nil:
		e := c.AddExchange
		return v.AddExchange(ctx, wsv.Exchange{
			Asset1ID: e.Asset1ID, Asset2ID: e.Asset2ID, Asset1: e.Asset1, Asset2: e.Asset2,
		})
	case c.AddWallet != nil:
		w := c.AddWallet
		return v.AddWallet(ctx, wsv.Wallet{
			ID:          uuid.FromStringOrNil(w.WalletID),
			AssetID:     w.AssetID,
			Amount:      w.Amount,
			Precision:   w.Precision,
			Permissions: wsv.Permissions(w.Permissions),
		})
	case c.AddAccountWallet != nil:
		aw := c.AddAccountWallet
		return v.AddAccountWallet(ctx, aw.AccountID, uuid.FromStringOrNil(aw.WalletID), wsv.Permissions(aw.Permissions))
	case c.AddAccountAsset != nil:
		aa := c.AddAccountAsset
		return v.AddAccountAsset(ctx, aa.AccountID, aa.AssetID, wsv.Permissions(aa.Permissions))
	default:
		da := c.AddDomainAccount
		return v.AddDomainAccount(ctx, da.DomainID, da.AccountID, wsv.Permissions(da.Permissions))
	}
}
