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

import (
	"github.com/pkg/errors"
)

var (
	// ErrConstraintViolation indicates a mutation broke a uniqueness, reference or data
	// constraint. The enclosing transaction stays usable.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrNoActiveTransaction indicates a sub-transaction operation without an open sub-transaction.
	ErrNoActiveTransaction = errors.New("no active transaction")
	// ErrNoActiveBlock indicates a block operation without an open block transaction.
	ErrNoActiveBlock = errors.New("no active block")
	// ErrAlreadyOpen indicates a transaction is already open at the requested level.
	ErrAlreadyOpen = errors.New("transaction already open")
	// ErrUnknownBackend indicates the registry has no backend under the requested name.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrBackendExists indicates a backend name is already registered.
	ErrBackendExists = errors.New("backend already registered")
	// ErrClosed indicates the view is closed.
	ErrClosed = errors.New("world state view is closed")
)
