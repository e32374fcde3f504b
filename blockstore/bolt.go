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

package blockstore

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/ledgercore/ledgercore/utils/log"
)

var (
	boltBlocksBucket = []byte("ledgercore-blocks")
	boltKeyPrefix    = []byte{}
)

// BoltStore keeps blocks in a bolt database file under big endian id keys.
type BoltStore struct {
	db      *bolt.DB
	current uint64
	closed  uint32
}

// OpenBolt opens the bolt store file at location, creating it empty if absent.
func OpenBolt(location string) (s *BoltStore, err error) {
	if fi, serr := os.Stat(location); serr == nil && fi.IsDir() {
		err = errors.Wrapf(ErrNotAStore, "%s is a directory", location)
		return
	}

	p := &BoltStore{}
	if p.db, err = bolt.Open(location, 0600, &bolt.Options{Timeout: time.Second}); err != nil {
		if err == bolt.ErrInvalid || err == bolt.ErrVersionMismatch || err == bolt.ErrChecksum {
			err = errors.Wrapf(ErrNotAStore, "open bolt %s: %v", location, err)
		} else {
			err = errors.Wrapf(ErrIO, "open bolt %s: %v", location, err)
		}
		return
	}

	if err = p.db.Update(func(tx *bolt.Tx) (err error) {
		_, err = tx.CreateBucketIfNotExists(boltBlocksBucket)
		return
	}); err != nil {
		_ = p.db.Close()
		err = errors.Wrapf(ErrIO, "create bucket: %v", err)
		return
	}

	if p.current, err = p.checkConsistency(); err != nil {
		_ = p.db.Close()
		log.WithError(err).WithField("location", location).Error("block store consistency check failed")
		return
	}
	log.WithFields(log.Fields{
		"location": location,
		"last":     p.current,
	}).Info("opened bolt block store")
	s = p
	return
}

func (p *BoltStore) checkConsistency() (last uint64, err error) {
	var w walker
	if err = p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBlocksBucket).ForEach(func(k, v []byte) error {
			id, ok := keyToID(boltKeyPrefix, k)
			if !ok {
				return errors.Wrapf(ErrInconsistentState, "malformed block key %x", k)
			}
			return w.next(id, IDToName(id))
		})
	}); err != nil {
		if errors.Cause(err) != ErrInconsistentState {
			err = errors.Wrapf(ErrIO, "scan bolt: %v", err)
		}
		return
	}
	last = w.last
	return
}

// Append implements Store.Append.
func (p *BoltStore) Append(block []byte) (id uint64, err error) {
	if atomic.LoadUint32(&p.closed) == 1 {
		err = ErrStoreClosed
		return
	}

	next := atomic.LoadUint64(&p.current) + 1
	key := blockKey(boltKeyPrefix, next)
	if err = p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBlocksBucket)
		if b.Get(key) != nil {
			return errors.Wrapf(ErrAlreadyExists, "block %d", next)
		}
		return b.Put(key, block)
	}); err != nil {
		if errors.Cause(err) != ErrAlreadyExists {
			err = errors.Wrapf(ErrIO, "write block %d: %v", next, err)
		}
		return
	}

	atomic.StoreUint64(&p.current, next)
	id = next
	return
}

// Get implements Store.Get.
func (p *BoltStore) Get(id uint64) (block []byte, err error) {
	if atomic.LoadUint32(&p.closed) == 1 {
		err = ErrStoreClosed
		return
	}
	if id == 0 || id > atomic.LoadUint64(&p.current) {
		err = errors.Wrapf(ErrNotFound, "block %d", id)
		return
	}
	err = p.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBlocksBucket).Get(blockKey(boltKeyPrefix, id))
		if v == nil {
			return errors.Wrapf(ErrIO, "block %d missing from bucket", id)
		}
		// bolt values are only valid inside the transaction
		block = append([]byte{}, v...)
		return nil
	})
	return
}

// LastID implements Store.LastID.
func (p *BoltStore) LastID() uint64 {
	return atomic.LoadUint64(&p.current)
}

// Close implements Store.Close.
func (p *BoltStore) Close() (err error) {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	return p.db.Close()
}
