// Copyright 2026 The Nova26 Authors
// This file is part of Nova26.
//
// Nova26 is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Nova26 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Nova26. If not, see <http://www.gnu.org/licenses/>.

// Package registry is the C2 LogRegistry: a namespaced collection of
// LogStores, analogous to the teacher's corestore pattern of one store
// per logical name.
package registry

import (
	"sort"
	"sync"

	"github.com/nova26/hypercore/hypercore/logstore"
)

// Factory constructs a LogStore for a name the registry hasn't seen yet.
type Factory func(name string) *logstore.LogStore

// Registry is the C2 LogRegistry.
type Registry struct {
	mu      sync.Mutex
	stores  map[string]*logstore.LogStore
	factory Factory
}

// New constructs a Registry. factory is used to lazily create a LogStore
// the first time Get is called for a name.
func New(factory Factory) *Registry {
	if factory == nil {
		factory = func(name string) *logstore.LogStore {
			return logstore.New(name, logstore.Options{Writable: true})
		}
	}
	return &Registry{stores: make(map[string]*logstore.LogStore), factory: factory}
}

// Get returns the existing store for name, creating one via the factory
// if it doesn't exist yet.
func (r *Registry) Get(name string) *logstore.LogStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s
	}
	s := r.factory(name)
	r.stores[name] = s
	return s
}

// Has reports whether name has already been created.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stores[name]
	return ok
}

// List enumerates every known store name, sorted for deterministic
// iteration by callers (replication syncs logs in name order, spec §5).
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every store. LogStore itself holds no external resources
// in this implementation, so Close only drops the registry's references.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[string]*logstore.LogStore)
}
