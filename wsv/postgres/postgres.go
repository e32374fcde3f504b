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

// Package postgres provides the PostgreSQL world state backend.
package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ledgercore/ledgercore/utils/log"
	"github.com/ledgercore/ledgercore/wsv"
)

// Name is the registry name of the backend.
const Name = "postgres"

// Backend is the PostgreSQL implementation of wsv.Backend. Block transactions run on a
// pooled connection, sub-transactions are server savepoints and committed reads go
// through the pool outside any transaction.
type Backend struct {
	pool *pgxpool.Pool
}

// Open connects to the database at url.
func Open(ctx context.Context, url string) (b *Backend, err error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres config failed")
	}
	config.MinConns = 1
	config.MaxConns = 8

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "create postgres pool failed")
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres failed")
	}

	log.WithFields(log.Fields{
		"host":     config.ConnConfig.Host,
		"database": config.ConnConfig.Database,
	}).Debug("opened postgres world state")
	return &Backend{pool: pool}, nil
}

// New connects to the database and wraps it in a world state view.
func New(ctx context.Context, url string) (v wsv.WSV, err error) {
	b, err := Open(ctx, url)
	if err != nil {
		return
	}
	if v, err = wsv.NewSQLView(ctx, b); err != nil {
		_ = b.Close()
		return nil, err
	}
	return
}

// Register registers the backend under Name.
func Register(r *wsv.Registry) error {
	return r.Register(Name, New)
}

// Schema implements wsv.Backend.
func (b *Backend) Schema() []string {
	return schema
}

// Dialect implements wsv.Backend.
func (b *Backend) Dialect() wsv.Dialect {
	return wsv.Dialect{PeerAddress: "host(address)"}
}

// Begin implements wsv.Backend.
func (b *Backend) Begin(ctx context.Context) (wsv.Tx, error) {
	t, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx{t}, nil
}

// Committed implements wsv.Backend.
func (b *Backend) Committed() wsv.Querier {
	return poolQuerier{b.pool}
}

// Classify implements wsv.Backend. Integrity constraint (class 23) and data exception
// (class 22) errors are rejected mutations.
func (b *Backend) Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return wsv.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"), strings.HasPrefix(pgErr.Code, "22"):
			return errors.Wrapf(wsv.ErrConstraintViolation, "%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
		}
	}
	return err
}

// Close implements wsv.Backend.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

// rebind turns '?' placeholders into numbered ones.
func rebind(query string) string {
	if strings.IndexByte(query, '?') < 0 {
		return query
	}
	var (
		sb strings.Builder
		n  int
	)
	sb.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

type poolQuerier struct {
	pool *pgxpool.Pool
}

func (q poolQuerier) Exec(ctx context.Context, query string, args ...interface{}) (err error) {
	_, err = q.pool.Exec(ctx, rebind(query), args...)
	return
}

func (q poolQuerier) Query(ctx context.Context, query string, args ...interface{}) (wsv.Rows, error) {
	return q.pool.Query(ctx, rebind(query), args...)
}

func (q poolQuerier) QueryRow(ctx context.Context, query string, args ...interface{}) wsv.Row {
	return q.pool.QueryRow(ctx, rebind(query), args...)
}

// tx wraps both top level and nested pgx transactions.
type tx struct {
	tx pgx.Tx
}

func (t tx) Exec(ctx context.Context, query string, args ...interface{}) (err error) {
	_, err = t.tx.Exec(ctx, rebind(query), args...)
	return
}

func (t tx) Query(ctx context.Context, query string, args ...interface{}) (wsv.Rows, error) {
	return t.tx.Query(ctx, rebind(query), args...)
}

func (t tx) QueryRow(ctx context.Context, query string, args ...interface{}) wsv.Row {
	return t.tx.QueryRow(ctx, rebind(query), args...)
}

func (t tx) Begin(ctx context.Context) (wsv.Tx, error) {
	nested, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx{nested}, nil
}

func (t tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
