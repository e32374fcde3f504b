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
	"sync"

	"github.com/pkg/errors"
)

// MemStore keeps blocks in memory. Nothing survives Close.
type MemStore struct {
	sync.RWMutex
	blocks [][]byte
	closed bool
}

// NewMemStore returns an empty memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Append implements Store.Append.
func (p *MemStore) Append(block []byte) (id uint64, err error) {
	p.Lock()
	defer p.Unlock()
	if p.closed {
		err = ErrStoreClosed
		return
	}
	p.blocks = append(p.blocks, append([]byte{}, block...))
	id = uint64(len(p.blocks))
	return
}

// Get implements Store.Get.
func (p *MemStore) Get(id uint64) (block []byte, err error) {
	p.RLock()
	defer p.RUnlock()
	if p.closed {
		err = ErrStoreClosed
		return
	}
	if id == 0 || id > uint64(len(p.blocks)) {
		err = errors.Wrapf(ErrNotFound, "block %d", id)
		return
	}
	block = append([]byte{}, p.blocks[id-1]...)
	return
}

// LastID implements Store.LastID.
func (p *MemStore) LastID() uint64 {
	p.RLock()
	defer p.RUnlock()
	return uint64(len(p.blocks))
}

// Close implements Store.Close.
func (p *MemStore) Close() error {
	p.Lock()
	defer p.Unlock()
	p.closed = true
	p.blocks = nil
	return nil
}
