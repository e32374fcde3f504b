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

package sqlite

// schema mirrors the postgres layout with sqlite storage classes.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS account (
    account_id TEXT NOT NULL,
    quorum INTEGER NOT NULL,
    status INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (account_id)
)`,
	`CREATE TABLE IF NOT EXISTS signatory (
    account_id TEXT NOT NULL REFERENCES account(account_id),
    public_key TEXT NOT NULL,
    PRIMARY KEY (account_id, public_key)
)`,
	`CREATE TABLE IF NOT EXISTS peer (
    peer_id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id TEXT NOT NULL REFERENCES account(account_id),
    address TEXT NOT NULL UNIQUE,
    state INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS domain (
    domain_id TEXT NOT NULL,
    parent_domain_id TEXT REFERENCES domain(domain_id),
    open INTEGER NOT NULL,
    PRIMARY KEY (domain_id)
)`,
	`CREATE TABLE IF NOT EXISTS asset (
    asset_id TEXT NOT NULL,
    domain_id TEXT NOT NULL REFERENCES domain(domain_id),
    data TEXT,
    PRIMARY KEY (asset_id)
)`,
	`CREATE TABLE IF NOT EXISTS exchange (
    asset1_id TEXT NOT NULL REFERENCES asset(asset_id),
    asset2_id TEXT NOT NULL REFERENCES asset(asset_id),
    asset1 INTEGER NOT NULL,
    asset2 INTEGER NOT NULL,
    PRIMARY KEY (asset1_id, asset2_id)
)`,
	`CREATE TABLE IF NOT EXISTS wallet (
    wallet_id TEXT NOT NULL,
    asset_id TEXT,
    amount INTEGER NOT NULL,
    "precision" INTEGER NOT NULL,
    permissions TEXT NOT NULL,
    PRIMARY KEY (wallet_id)
)`,
	`CREATE TABLE IF NOT EXISTS account_has_wallet (
    account_id TEXT NOT NULL REFERENCES account(account_id),
    wallet_id TEXT NOT NULL REFERENCES wallet(wallet_id),
    permissions TEXT NOT NULL,
    PRIMARY KEY (account_id, wallet_id)
)`,
	`CREATE TABLE IF NOT EXISTS account_has_asset (
    account_id TEXT NOT NULL REFERENCES account(account_id),
    asset_id TEXT NOT NULL REFERENCES asset(asset_id),
    permissions TEXT NOT NULL,
    PRIMARY KEY (account_id, asset_id)
)`,
	`CREATE TABLE IF NOT EXISTS domain_has_account (
    domain_id TEXT NOT NULL REFERENCES domain(domain_id),
    account_id TEXT NOT NULL REFERENCES account(account_id),
    permissions TEXT NOT NULL,
    PRIMARY KEY (domain_id, account_id)
)`,
	`CREATE TABLE IF NOT EXISTS applied_height (
    id INTEGER NOT NULL,
    height INTEGER NOT NULL,
    PRIMARY KEY (id)
)`,
}
