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
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

const (
	// NameWidth is the number of decimal digits of a rendered block id.
	NameWidth = 16
	// MaxID is the largest block id that fits NameWidth digits.
	MaxID uint64 = 9999999999999999
)

// IDToName renders id as a fixed-width zero-padded decimal string, so that the
// lexicographic order of names equals the numeric order of ids.
func IDToName(id uint64) string {
	return fmt.Sprintf("%0*d", NameWidth, id)
}

// NameToID parses a name produced by IDToName.
func NameToID(name string) (id uint64, err error) {
	if len(name) != NameWidth {
		err = errors.Errorf("invalid block entry name %q: want %d digits", name, NameWidth)
		return
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			err = errors.Errorf("invalid block entry name %q: non-digit character", name)
			return
		}
	}
	if id, err = strconv.ParseUint(name, 10, 64); err != nil {
		err = errors.Wrapf(err, "invalid block entry name %q", name)
	}
	return
}

// blockKey builds a natively ordered key: prefix ++ big endian id.
func blockKey(prefix []byte, id uint64) (key []byte) {
	key = make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return
}

func keyToID(prefix []byte, key []byte) (id uint64, ok bool) {
	if len(key) != len(prefix)+8 {
		return
	}
	return binary.BigEndian.Uint64(key[len(prefix):]), true
}
