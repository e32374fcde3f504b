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

// Package sqlite provides the sqlite world state backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/ledgercore/ledgercore/utils/log"
	"github.com/ledgercore/ledgercore/wsv"
)

const (
	// Name is the registry name of the backend.
	Name = "sqlite"

	driverName = "sqlite3-ledgercore"
)

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(c *sqlite3.SQLiteConn) (err error) {
			_, err = c.Exec("PRAGMA foreign_keys=ON", nil)
			return
		},
	})
}

// Backend is the sqlite implementation of wsv.Backend. Writes go through a single
// writer connection, committed reads through a separate read only pool which in WAL
// mode observes the last committed snapshot while a block is open.
type Backend struct {
	filename string
	reader   *sql.DB
	writer   *sql.DB
	spSeq    uint64
}

// Open opens the database named by dsn, a file name optionally carrying sqlite
// parameters.
func Open(ctx context.Context, dsn string) (b *Backend, err error) {
	d, err := ParseDSN(dsn)
	if err != nil {
		return
	}
	if d.FileName() == ":memory:" {
		return nil, errors.New("sqlite backend needs a database file")
	}

	wd := d.Clone()
	wd.Set("_journal_mode", "WAL")
	wd.Set("_busy_timeout", "5000")
	wd.Set("_txlock", "immediate")

	rd := d.Clone()
	rd.Set("_query_only", "on")
	rd.Set("_busy_timeout", "5000")

	instance := &Backend{filename: d.FileName()}
	if instance.writer, err = sql.Open(driverName, wd.Format()); err != nil {
		return nil, errors.Wrap(err, "open sqlite writer failed")
	}
	instance.writer.SetMaxOpenConns(1)
	if err = instance.writer.PingContext(ctx); err != nil {
		_ = instance.writer.Close()
		return nil, errors.Wrapf(err, "connect sqlite database %s failed", instance.filename)
	}
	if instance.reader, err = sql.Open(driverName, rd.Format()); err != nil {
		_ = instance.writer.Close()
		return nil, errors.Wrap(err, "open sqlite reader failed")
	}

	log.WithField("file", instance.filename).Debug("opened sqlite world state")
	b = instance
	return
}

// New opens the database and wraps it in a world state view.
func New(ctx context.Context, dsn string) (v wsv.WSV, err error) {
	b, err := Open(ctx, dsn)
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
	return wsv.Dialect{PeerAddress: "address"}
}

// Begin implements wsv.Backend.
func (b *Backend) Begin(ctx context.Context) (wsv.Tx, error) {
	t, err := b.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &tx{b: b, tx: t}, nil
}

// Committed implements wsv.Backend.
func (b *Backend) Committed() wsv.Querier {
	return dbQuerier{db: b.reader}
}

// Classify implements wsv.Backend.
func (b *Backend) Classify(err error) error {
	if err == nil {
		return nil
	}
	cause := errors.Cause(err)
	if cause == sql.ErrNoRows {
		return wsv.ErrNotFound
	}
	if se, ok := cause.(sqlite3.Error); ok {
		switch se.Code {
		case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrTooBig:
			return errors.Wrap(wsv.ErrConstraintViolation, se.Error())
		}
	}
	return err
}

// Close implements wsv.Backend.
func (b *Backend) Close() (err error) {
	if err = b.reader.Close(); err != nil {
		_ = b.writer.Close()
		return
	}
	return b.writer.Close()
}

type rows struct {
	*sql.Rows
}

func (r rows) Close() {
	_ = r.Rows.Close()
}

type dbQuerier struct {
	db *sql.DB
}

func (q dbQuerier) Exec(ctx context.Context, query string, args ...interface{}) (err error) {
	_, err = q.db.ExecContext(ctx, query, args...)
	return
}

func (q dbQuerier) Query(ctx context.Context, query string, args ...interface{}) (wsv.Rows, error) {
	r, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows{r}, nil
}

func (q dbQuerier) QueryRow(ctx context.Context, query string, args ...interface{}) wsv.Row {
	return q.db.QueryRowContext(ctx, query, args...)
}

type tx struct {
	b  *Backend
	tx *sql.Tx
}

func (t *tx) Exec(ctx context.Context, query string, args ...interface{}) (err error) {
	_, err = t.tx.ExecContext(ctx, query, args...)
	return
}

func (t *tx) Query(ctx context.Context, query string, args ...interface{}) (wsv.Rows, error) {
	r, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows{r}, nil
}

func (t *tx) QueryRow(ctx context.Context, query string, args ...interface{}) wsv.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *tx) Begin(ctx context.Context) (wsv.Tx, error) {
	name := fmt.Sprintf("sp_%d", atomic.AddUint64(&t.b.spSeq, 1))
	if err := t.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	return &savepoint{tx: t, name: name}, nil
}

func (t *tx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

func (t *tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback()
}

// savepoint shares the enclosing sql.Tx.
type savepoint struct {
	*tx
	name string
}

func (s *savepoint) Commit(ctx context.Context) error {
	return s.Exec(ctx, "RELEASE SAVEPOINT "+s.name)
}

func (s *savepoint) Rollback(ctx context.Context) (err error) {
	if err = s.Exec(ctx, "ROLLBACK TO SAVEPOINT "+s.name); err != nil {
		return
	}
	return s.Exec(ctx, "RELEASE SAVEPOINT "+s.name)
}
