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

package llm

import (
	"sync"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/registry"
)

// Registry maps a provider name to a Factory. Built-in providers are
// registered lazily: the builtins function given to NewRegistry is
// invoked once, on the first Get or Select call.
type Registry struct {
	base     *registry.BaseRegistry[Factory]
	once     sync.Once
	builtins func(*Registry)
}

// NewRegistry returns an empty provider registry. builtins, if non-nil,
// is invoked exactly once on first Select/Get call to lazily register
// the runtime's built-in drivers.
func NewRegistry(builtins func(*Registry)) *Registry {
	return &Registry{base: registry.New[Factory](), builtins: builtins}
}

// Register adds factory under name. A second registration under the
// same name is a silent no-op; the first registration remains in force.
func (r *Registry) Register(name string, factory Factory) {
	r.base.RegisterIfAbsent(name, factory)
}

func (r *Registry) ensureBuiltins() {
	r.once.Do(func() {
		if r.builtins != nil {
			r.builtins(r)
		}
	})
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.ensureBuiltins()
	return r.base.Get(name)
}

// Select resolves Params to a Driver: compatible wins over provider,
// provider is required if compatible is unset.
func (r *Registry) Select(params Params) (Driver, error) {
	name := params.Compatible
	if name == "" {
		name = params.Provider
	}
	if name == "" {
		return nil, agentcerr.New(agentcerr.KindInvalidArg, "llm: one of compatible or provider must be set")
	}

	factory, ok := r.Get(name)
	if !ok {
		return nil, agentcerr.New(agentcerr.KindInvalidArg, "llm: no provider registered under %q", name)
	}
	return factory(), nil
}
