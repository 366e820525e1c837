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

// Package session ties the runtime together: a root arena plus the
// agents and MCP clients created against it, closed as a unit in
// reverse creation order.
package session

import (
	"sync"

	"github.com/openagentc/agentc/pkg/agent"
	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/arena"
	"github.com/openagentc/agentc/pkg/llm"
	"github.com/openagentc/agentc/pkg/mcp"
)

// DefaultArenaCapacity sizes a session's root arena when Open is
// called without an explicit capacity. Sessions size their arena for
// the worst case up front, like every other caller of pkg/arena.
const DefaultArenaCapacity = 1 << 20 // 1 MiB

// closer is implemented by both *agent.Agent and mcpCloser so Session
// can track them uniformly and close them in reverse creation order.
type closer interface {
	Close() error
}

// mcpCloser adapts *mcp.Client's Disconnect to the closer interface.
type mcpCloser struct{ client *mcp.Client }

func (c mcpCloser) Close() error { return c.client.Disconnect() }

// Session owns a root arena and every agent/MCP client created from
// it. Not safe for concurrent mutation from multiple goroutines without
// external synchronization beyond what's needed to serialize Close
// against concurrent CreateAgent/RegisterMCPClient calls.
type Session struct {
	mu      sync.Mutex
	arena   *arena.Arena
	closers []closer
	closed  bool
}

// Open creates a session with a root arena of capacity bytes. A
// non-positive capacity uses DefaultArenaCapacity.
func Open(capacity int) (*Session, error) {
	if capacity <= 0 {
		capacity = DefaultArenaCapacity
	}
	a, err := arena.New(capacity)
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindBackend, err, "opening session arena")
	}
	return &Session{arena: a}, nil
}

// Arena returns the session's root arena.
func (s *Session) Arena() *arena.Arena {
	return s.arena
}

// CreateAgent builds an Agent bound to driver and registers it with
// the session so Close tears it down. cfg and driver are otherwise
// unchanged from agent.New.
func (s *Session) CreateAgent(cfg agent.Config, driver llm.Driver) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, agentcerr.New(agentcerr.KindInvalidState, "session is closed")
	}
	a := agent.New(cfg, driver)
	s.closers = append(s.closers, a)
	return a, nil
}

// RegisterMCPClient tracks client so Close disconnects it. Callers
// that construct and Connect an *mcp.Client outside of a session
// config (e.g. via mcp.ConnectAll) should still register it here if
// they want session-scoped cleanup.
func (s *Session) RegisterMCPClient(client *mcp.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return agentcerr.New(agentcerr.KindInvalidState, "session is closed")
	}
	s.closers = append(s.closers, mcpCloser{client: client})
	return nil
}

// Close destroys every agent and MCP client registered with the
// session, in reverse creation order, then destroys the root arena.
// Close is idempotent; a second call is a no-op. Errors from
// individual closers are collected but do not stop the remaining
// teardown, since spec.md's lifecycle contract is "destroy everything",
// not "abort on the first failure".
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	s.arena.Destroy()
	return firstErr
}
