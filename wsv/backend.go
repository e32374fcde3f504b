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
)

// Row is a single result row.
type Row interface {
	Scan(dest ...interface{}) error
}

// Rows is a result set cursor.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close()
}

// Querier runs statements. Statements use '?' placeholders.
type Querier interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
}

// Tx is an open transaction. Begin opens a nested transaction backed by a savepoint,
// committing a nested transaction folds its effects into the parent.
type Tx interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Dialect holds the engine specific fragments of otherwise portable statements.
type Dialect struct {
	// PeerAddress renders peer.address as text.
	PeerAddress string
}

// Backend is the relational engine capability a SQLView runs on.
type Backend interface {
	// Schema returns idempotent DDL statements creating every table.
	Schema() []string
	Dialect() Dialect
	// Begin opens a top level transaction.
	Begin(ctx context.Context) (Tx, error)
	// Committed returns a querier observing durably committed state only.
	Committed() Querier
	// Classify maps an engine error onto the package taxonomy. The result keeps the
	// engine message.
	Classify(err error) error
	Close() error
}
