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

// Package blockstore implements the append-only block log of a ledger node.
//
// A store holds opaque blocks addressed by a dense id starting at 1. The last
// assigned id is never persisted separately: every implementation rebuilds it
// at open time by walking its entries in ascending order and refuses to open
// if the walk finds a gap, a duplicate or an out-of-order entry.
//
// Stores follow a single-writer discipline. Append must be serialized by the
// caller, while Get and LastID may run concurrently with the writer.
package blockstore

import (
	"github.com/pkg/errors"
)

// Store is the block log capability.
type Store interface {
	// Append stores block under LastID()+1 and returns the assigned id.
	Append(block []byte) (uint64, error)
	// Get returns the bytes previously appended for id.
	Get(id uint64) ([]byte, error)
	// LastID returns the last assigned id, 0 for an empty store.
	LastID() uint64
	// Close releases the underlying medium.
	Close() error
}

// Supported store kinds.
const (
	KindFlat    = "flat"
	KindLevelDB = "leveldb"
	KindBolt    = "bolt"
	KindMemory  = "memory"
)

// Open opens a store of the given kind at location.
func Open(kind, location string) (Store, error) {
	switch kind {
	case KindFlat, "":
		return OpenFlat(location)
	case KindLevelDB:
		return OpenLevelDB(location)
	case KindBolt:
		return OpenBolt(location)
	case KindMemory:
		return NewMemStore(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "kind %q", kind)
	}
}

// walker verifies that ids are seen as 1, 2, 3, ... while scanning a store.
type walker struct {
	last uint64
}

func (w *walker) next(id uint64, entry string) error {
	if id != w.last+1 {
		return errors.Wrapf(ErrInconsistentState,
			"expected block %d, found entry %s", w.last+1, entry)
	}
	w.last = id
	return nil
}
