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

package wsv

// txState is the transaction context of a SQLView.
type txState interface {
	String() string
}

type stateIdle struct{}

func (stateIdle) String() string { return "idle" }

type stateBlock struct {
	block Tx
}

func (stateBlock) String() string { return "block open" }

type stateTx struct {
	block Tx
	tx    Tx
}

func (stateTx) String() string { return "transaction open" }

type stateClosed struct{}

func (stateClosed) String() string { return "closed" }
