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

const (
	insertAccount   = `INSERT INTO account (account_id, quorum, status) VALUES (?, ?, ?)`
	insertSignatory = `INSERT INTO signatory (account_id, public_key) VALUES (?, ?)`
	insertPeer      = `INSERT INTO peer (account_id, address, state) VALUES (?, ?, ?)`
	insertDomain    = `INSERT INTO domain (domain_id, parent_domain_id, open) VALUES (?, ?, ?)`
	insertAsset     = `INSERT INTO asset (asset_id, domain_id, data) VALUES (?, ?, ?)`
	insertExchange  = `INSERT INTO exchange (asset1_id, asset2_id, asset1, asset2) VALUES (?, ?, ?, ?)`
	insertWallet    = `INSERT INTO wallet (wallet_id, asset_id, amount, "precision", permissions)
VALUES (?, ?, ?, ?, ?)`
	insertAccountWallet = `INSERT INTO account_has_wallet (account_id, wallet_id, permissions) VALUES (?, ?, ?)`
	insertAccountAsset  = `INSERT INTO account_has_asset (account_id, asset_id, permissions) VALUES (?, ?, ?)`
	insertDomainAccount = `INSERT INTO domain_has_account (domain_id, account_id, permissions) VALUES (?, ?, ?)`
	upsertAppliedHeight = `INSERT INTO applied_height (id, height) VALUES (0, ?)
ON CONFLICT (id) DO UPDATE SET height = excluded.height`

	// %s is the dialect peer address expression.
	selectPeers       = `SELECT %s FROM peer ORDER BY peer_id ASC`
	selectAccount     = `SELECT account_id, quorum, status FROM account WHERE account_id = ?`
	selectSignatories = `SELECT public_key FROM signatory WHERE account_id = ? ORDER BY public_key ASC`
	selectDomain      = `SELECT domain_id, parent_domain_id, open FROM domain WHERE domain_id = ?`
	selectAsset       = `SELECT asset_id, domain_id, CAST(data AS TEXT) FROM asset WHERE asset_id = ?`
	selectWallet      = `SELECT CAST(wallet_id AS TEXT), asset_id, amount, "precision", CAST(permissions AS TEXT)
FROM wallet WHERE wallet_id = ?`

	selectAppliedHeight = `SELECT height FROM applied_height WHERE id = 0`
)
