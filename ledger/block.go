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

package ledger

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
)

var msgpackHandle = newMsgpackHandle()

func newMsgpackHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{WriteExt: true}
	h.RawToString = true
	return h
}

// Block is an ordered batch of commands at a height.
type Block struct {
	Height    uint64    `codec:"height" yaml:"height"`
	Timestamp int64     `codec:"timestamp" yaml:"timestamp"`
	Commands  []Command `codec:"commands" yaml:"commands"`
}

// EncodeBlock serializes b into the bytes stored in the block store.
func EncodeBlock(b *Block) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := codec.NewEncoder(buf, msgpackHandle).Encode(b); err != nil {
		return nil, errors.Wrap(err, "encode block failed")
	}
	return buf.Bytes(), nil
}

// DecodeBlock reverses EncodeBlock.
func DecodeBlock(data []byte) (b *Block, err error) {
	b = &Block{}
	if err = codec.NewDecoderBytes(data, msgpackHandle).Decode(b); err != nil {
		return nil, errors.Wrap(ErrInvalidBlock, err.Error())
	}
	return
}
