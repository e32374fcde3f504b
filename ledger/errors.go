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
	"github.com/pkg/errors"
)

var (
	// ErrHeightMismatch indicates a block does not extend the stored chain.
	ErrHeightMismatch = errors.New("block height does not follow the last stored block")
	// ErrInvalidCommand indicates a command is empty, ambiguous or malformed.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrBlockTooLarge indicates a block carries more commands than allowed.
	ErrBlockTooLarge = errors.New("too many commands in block")
	// ErrInvalidBlock indicates stored bytes do not decode to a block.
	ErrInvalidBlock = errors.New("invalid block encoding")
	// ErrStateDiverged indicates the world state applied a different number of blocks
	// than the block store holds.
	ErrStateDiverged = errors.New("world state and block store diverged")
)
