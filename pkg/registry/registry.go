// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package registry provides a small generic name-keyed registry used
// wherever this runtime needs "globally unique name within a
// collection" semantics: LLM providers, local/MCP tools.
package registry

import (
	"sync"

	"github.com/openagentc/agentc/pkg/agentcerr"
)

// BaseRegistry is a name-keyed, concurrency-safe collection of T.
type BaseRegistry[T any] struct {
	mu    sync.RWMutex
	names []string
	items map[string]T
}

// New returns an empty registry.
func New[T any]() *BaseRegistry[T] {
	return &BaseRegistry[T]{items: make(map[string]T)}
}

// Register adds item under name, failing if name is empty or already
// registered.
func (r *BaseRegistry[T]) Register(name string, item T) error {
	if name == "" {
		return agentcerr.New(agentcerr.KindInvalidArg, "registry: name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return agentcerr.New(agentcerr.KindInvalidState, "registry: %q already registered", name)
	}
	r.items[name] = item
	r.names = append(r.names, name)
	return nil
}

// RegisterIfAbsent registers item under name unless one is already
// registered, in which case it is a silent no-op and the existing
// registration remains in force. Returns true if item was newly
// registered.
func (r *BaseRegistry[T]) RegisterIfAbsent(name string, item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return false
	}
	r.items[name] = item
	r.names = append(r.names, name)
	return true
}

// Get returns the item registered under name, if any.
func (r *BaseRegistry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[name]
	return item, ok
}

// List returns every registered item, in registration order.
func (r *BaseRegistry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.items[name])
	}
	return out
}

// Remove deletes the item registered under name.
func (r *BaseRegistry[T]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; !exists {
		return agentcerr.Wrap(agentcerr.KindNotFound, agentcerr.ErrNotFound, "registry: %q not found", name)
	}
	delete(r.items, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	return nil
}

// Count reports the number of registered items.
func (r *BaseRegistry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Clear removes every registered item.
func (r *BaseRegistry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]T)
	r.names = nil
}
