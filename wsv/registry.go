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
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/ledgercore/ledgercore/utils/log"
)

// Factory creates a WSV from a backend specific data source name.
type Factory func(ctx context.Context, dsn string) (WSV, error)

// Registry maps backend names to factories. It is created at startup and handed to
// whoever selects a backend.
type Registry struct {
	sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name. Names are registered once.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("empty backend name")
	}
	if f == nil {
		return errors.Errorf("nil factory for backend %s", name)
	}
	r.Lock()
	defer r.Unlock()
	if _, ok := r.factories[name]; ok {
		return errors.Wrapf(ErrBackendExists, "register %s", name)
	}
	r.factories[name] = f
	log.WithField("backend", name).Debug("registered world state backend")
	return nil
}

// Create builds a WSV with the factory registered under name.
func (r *Registry) Create(ctx context.Context, name, dsn string) (v WSV, err error) {
	r.RLock()
	f, ok := r.factories[name]
	r.RUnlock()
	if !ok {
		err = errors.Wrapf(ErrUnknownBackend, "create %s", name)
		return
	}
	if v, err = f(ctx, dsn); err != nil {
		err = errors.WithMessagef(err, "create %s backend failed", name)
		return nil, err
	}
	return
}

// Names returns the registered backend names in order.
func (r *Registry) Names() (names []string) {
	r.RLock()
	defer r.RUnlock()
	names = make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}
