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
	"io/ioutil"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ledgercore/ledgercore/utils/log"
)

// levelDBBlockPrefix defines the leveldb block key prefix.
var levelDBBlockPrefix = []byte{'B'}

// LevelDBStore keeps blocks in leveldb under prefix ++ big endian id keys.
type LevelDBStore struct {
	db      *leveldb.DB
	current uint64
	closed  uint32
}

// OpenLevelDB opens the leveldb store at location, creating it empty if absent.
func OpenLevelDB(location string) (s *LevelDBStore, err error) {
	if err = checkLevelDBLocation(location); err != nil {
		return
	}

	p := &LevelDBStore{}
	if p.db, err = leveldb.OpenFile(location, nil); err != nil {
		if lerrors.IsCorrupted(err) {
			err = errors.Wrapf(ErrNotAStore, "open leveldb %s: %v", location, err)
		} else {
			err = errors.Wrapf(ErrIO, "open leveldb %s: %v", location, err)
		}
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
	}).Info("opened leveldb block store")
	s = p
	return
}

// checkLevelDBLocation rejects files and non-empty directories that are not leveldb databases.
func checkLevelDBLocation(location string) (err error) {
	var fi os.FileInfo
	if fi, err = os.Stat(location); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Wrapf(ErrIO, "stat %s: %v", location, err)
	}
	if !fi.IsDir() {
		return errors.Wrapf(ErrNotAStore, "%s is not a directory", location)
	}
	var entries []os.FileInfo
	if entries, err = ioutil.ReadDir(location); err != nil {
		return errors.Wrapf(ErrIO, "scan %s: %v", location, err)
	}
	if len(entries) == 0 {
		return nil
	}
	if _, err = os.Stat(filepath.Join(location, "CURRENT")); err != nil {
		return errors.Wrapf(ErrNotAStore, "%s is not a leveldb database", location)
	}
	return nil
}

func (p *LevelDBStore) checkConsistency() (last uint64, err error) {
	var w walker
	it := p.db.NewIterator(util.BytesPrefix(levelDBBlockPrefix), nil)
	defer it.Release()
	for it.Next() {
		id, ok := keyToID(levelDBBlockPrefix, it.Key())
		if !ok {
			err = errors.Wrapf(ErrInconsistentState, "malformed block key %x", it.Key())
			return
		}
		if err = w.next(id, IDToName(id)); err != nil {
			return
		}
	}
	if err = it.Error(); err != nil {
		err = errors.Wrapf(ErrIO, "scan leveldb: %v", err)
		return
	}
	last = w.last
	return
}

// Append implements Store.Append.
func (p *LevelDBStore) Append(block []byte) (id uint64, err error) {
	if atomic.LoadUint32(&p.closed) == 1 {
		err = ErrStoreClosed
		return
	}

	next := atomic.LoadUint64(&p.current) + 1
	key := blockKey(levelDBBlockPrefix, next)

	var exists bool
	if exists, err = p.db.Has(key, nil); err != nil {
		err = errors.Wrapf(ErrIO, "check block %d: %v", next, err)
		return
	} else if exists {
		err = errors.Wrapf(ErrAlreadyExists, "block %d", next)
		return
	}

	if err = p.db.Put(key, block, &opt.WriteOptions{Sync: true}); err != nil {
		err = errors.Wrapf(ErrIO, "write block %d: %v", next, err)
		return
	}

	atomic.StoreUint64(&p.current, next)
	id = next
	return
}

// Get implements Store.Get.
func (p *LevelDBStore) Get(id uint64) (block []byte, err error) {
	if atomic.LoadUint32(&p.closed) == 1 {
		err = ErrStoreClosed
		return
	}
	if id == 0 || id > atomic.LoadUint64(&p.current) {
		err = errors.Wrapf(ErrNotFound, "block %d", id)
		return
	}
	if block, err = p.db.Get(blockKey(levelDBBlockPrefix, id), nil); err != nil {
		err = errors.Wrapf(ErrIO, "read block %d: %v", id, err)
	}
	return
}

// LastID implements Store.LastID.
func (p *LevelDBStore) LastID() uint64 {
	return atomic.LoadUint64(&p.current)
}

// Close implements Store.Close.
func (p *LevelDBStore) Close() (err error) {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	return p.db.Close()
}
