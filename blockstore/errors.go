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
	"github.com/pkg/errors"
)

var (
	// ErrIO indicates a failure of the storage medium while reading or writing a block.
	ErrIO = errors.New("block store io failure")
	// ErrAlreadyExists indicates an entry already occupies the id an append was about to use.
	ErrAlreadyExists = errors.New("block already exists")
	// ErrNotFound indicates the requested block id is outside [1, last id].
	ErrNotFound = errors.New("block not found")
	// ErrInconsistentState indicates a gap, duplicate or out-of-order entry found at open time.
	ErrInconsistentState = errors.New("block store is inconsistent")
	// ErrNotAStore indicates the location exists but is not a block store container.
	ErrNotAStore = errors.New("location is not a block store")
	// ErrIDSpaceExhausted indicates the next id does not fit the fixed-width entry name.
	ErrIDSpaceExhausted = errors.New("block id space exhausted")
	// ErrStoreClosed indicates the store is closed.
	ErrStoreClosed = errors.New("block store is closed")
	// ErrUnknownKind indicates an unsupported store kind was requested.
	ErrUnknownKind = errors.New("unknown block store kind")
)
