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
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ledgercore/ledgercore/utils/log"
)

const (
	tempPrefix = "."
	tempSuffix = ".tmp"
)

// FlatStore keeps one file per block in a directory, named by IDToName.
type FlatStore struct {
	dir     string
	current uint64
	closed  uint32
}

// OpenFlat opens the directory store at location, creating it empty if absent.
func OpenFlat(location string) (s *FlatStore, err error) {
	var fi os.FileInfo
	if fi, err = os.Stat(location); os.IsNotExist(err) {
		if err = os.MkdirAll(location, 0755); err != nil {
			err = errors.Wrapf(ErrIO, "create block directory %s: %v", location, err)
			return
		}
		log.WithField("location", location).Info("created empty block store")
		s = &FlatStore{dir: location}
		return
	} else if err != nil {
		err = errors.Wrapf(ErrIO, "stat %s: %v", location, err)
		return
	}
	if !fi.IsDir() {
		err = errors.Wrapf(ErrNotAStore, "%s is not a directory", location)
		return
	}

	p := &FlatStore{dir: location}
	if p.current, err = p.checkConsistency(); err != nil {
		log.WithError(err).WithField("location", location).Error("block store consistency check failed")
		return
	}
	log.WithFields(log.Fields{
		"location": location,
		"last":     p.current,
	}).Info("opened block store")
	s = p
	return
}

// checkConsistency walks the directory in name order and returns the last contiguous id.
func (p *FlatStore) checkConsistency() (last uint64, err error) {
	var entries []os.FileInfo
	if entries, err = ioutil.ReadDir(p.dir); err != nil {
		err = errors.Wrapf(ErrIO, "scan %s: %v", p.dir, err)
		return
	}

	var w walker
	for _, e := range entries {
		name := e.Name()
		if isTempName(name) {
			// leftover of an interrupted append, never linked to its final name
			if rerr := os.Remove(filepath.Join(p.dir, name)); rerr != nil {
				log.WithError(rerr).WithField("entry", name).Warning("remove stale temporary block failed")
			} else {
				log.WithField("entry", name).Warning("removed stale temporary block")
			}
			continue
		}
		if !e.Mode().IsRegular() {
			err = errors.Wrapf(ErrInconsistentState, "entry %s is not a regular file", name)
			return
		}
		var id uint64
		if id, err = NameToID(name); err != nil {
			err = errors.Wrapf(ErrInconsistentState, "%v", err)
			return
		}
		if err = w.next(id, name); err != nil {
			return
		}
	}
	last = w.last
	return
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempSuffix)
}

func (p *FlatStore) path(id uint64) string {
	return filepath.Join(p.dir, IDToName(id))
}

// Append implements Store.Append.
//
// The block is written to a temporary file and synced, then hard linked to its final
// name. Linking never replaces an existing entry, so a concurrent or stale entry is
// reported as ErrAlreadyExists instead of being overwritten.
func (p *FlatStore) Append(block []byte) (id uint64, err error) {
	if atomic.LoadUint32(&p.closed) == 1 {
		err = ErrStoreClosed
		return
	}

	next := atomic.LoadUint64(&p.current) + 1
	if next > MaxID {
		err = errors.Wrapf(ErrIDSpaceExhausted, "next id %d", next)
		return
	}

	final := p.path(next)
	if _, err = os.Lstat(final); err == nil {
		err = errors.Wrapf(ErrAlreadyExists, "block %d", next)
		return
	} else if !os.IsNotExist(err) {
		err = errors.Wrapf(ErrIO, "stat block %d: %v", next, err)
		return
	}

	tmp := filepath.Join(p.dir, tempPrefix+IDToName(next)+tempSuffix)
	if err = writeFileSync(tmp, block); err != nil {
		_ = os.Remove(tmp)
		err = errors.Wrapf(ErrIO, "write block %d: %v", next, err)
		return
	}
	if err = os.Link(tmp, final); err != nil {
		_ = os.Remove(tmp)
		if os.IsExist(err) {
			err = errors.Wrapf(ErrAlreadyExists, "block %d", next)
		} else {
			err = errors.Wrapf(ErrIO, "link block %d: %v", next, err)
		}
		return
	}
	if rerr := os.Remove(tmp); rerr != nil {
		log.WithError(rerr).WithField("block", next).Warning("remove temporary block failed")
	}
	if err = syncDir(p.dir); err != nil {
		_ = os.Remove(final)
		err = errors.Wrapf(ErrIO, "sync block directory for block %d: %v", next, err)
		return
	}

	atomic.StoreUint64(&p.current, next)
	id = next
	log.WithFields(log.Fields{"block": id, "size": len(block)}).Debug("appended block")
	return
}

// Get implements Store.Get.
func (p *FlatStore) Get(id uint64) (block []byte, err error) {
	if atomic.LoadUint32(&p.closed) == 1 {
		err = ErrStoreClosed
		return
	}
	if id == 0 || id > atomic.LoadUint64(&p.current) {
		err = errors.Wrapf(ErrNotFound, "block %d", id)
		return
	}
	if block, err = ioutil.ReadFile(p.path(id)); err != nil {
		err = errors.Wrapf(ErrIO, "read block %d: %v", id, err)
	}
	return
}

// LastID implements Store.LastID.
func (p *FlatStore) LastID() uint64 {
	return atomic.LoadUint64(&p.current)
}

// Close implements Store.Close.
func (p *FlatStore) Close() error {
	atomic.StoreUint32(&p.closed, 1)
	return nil
}

func writeFileSync(name string, data []byte) (err error) {
	var f *os.File
	if f, err = os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644); err != nil {
		return
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return
	}
	if err = syncData(f); err != nil {
		_ = f.Close()
		return
	}
	return f.Close()
}

func syncDir(dir string) (err error) {
	var d *os.File
	if d, err = os.Open(dir); err != nil {
		return
	}
	defer d.Close()
	return d.Sync()
}
