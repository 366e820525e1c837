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

// Package httppool implements a bounded, process-wide pool of reusable
// httpclient.Client instances. It exists for hosts that want to cap the
// number of concurrent outbound HTTP connections independent of the
// per-request clients LLM drivers and MCP transports would otherwise
// create; using it is optional.
package httppool

import (
	"sync"
	"time"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/httpclient"
)

// Config configures a Pool. The zero value is not usable; use
// DefaultConfig as a starting point.
type Config struct {
	MaxConnections        int
	IdleTimeout           time.Duration
	AcquireTimeout        time.Duration
	DefaultRequestTimeout time.Duration
	NewClient             func() *httpclient.Client
}

// DefaultConfig returns sane defaults for an interactive agent workload.
func DefaultConfig() Config {
	return Config{
		MaxConnections:        8,
		IdleTimeout:           5 * time.Minute,
		AcquireTimeout:        10 * time.Second,
		DefaultRequestTimeout: 60 * time.Second,
		NewClient:             func() *httpclient.Client { return httpclient.New() },
	}
}

// entry is one pooled client slot.
type entry struct {
	client   *httpclient.Client
	lastUsed time.Time
	inUse    bool
}

// Stats reports pool-wide counters, all incremented under the pool lock.
type Stats struct {
	Max      int
	Total    int
	Active   int
	Waiting  int
	Hits     int
	Misses   int
	Timeouts int
}

// Pool is a bounded, thread-safe set of reusable HTTP clients with a
// single mutex and a single condition variable — no per-entry locks, per
// spec.md §4.3.
type Pool struct {
	cfg Config

	mu       sync.Mutex
	cond     *sync.Cond
	entries  []*entry
	waiting  int
	hits     int
	misses   int
	timeouts int
	draining bool
}

var (
	singleton     *Pool
	singletonOnce sync.Once
)

// Init creates the process-wide pool singleton. It is idempotent: the
// first call's configuration wins and later calls are no-ops that
// return the existing pool.
func Init(cfg Config) *Pool {
	singletonOnce.Do(func() {
		singleton = New(cfg)
	})
	return singleton
}

// IsInitialized reports whether Init has been called.
func IsInitialized() bool {
	return singleton != nil
}

// Instance returns the process-wide pool, or nil if Init has not been
// called.
func Instance() *Pool {
	return singleton
}

// New creates a standalone pool; most callers should use Init for the
// process-wide singleton instead.
func New(cfg Config) *Pool {
	if cfg.NewClient == nil {
		cfg.NewClient = func() *httpclient.Client { return httpclient.New() }
	}
	p := &Pool{cfg: cfg}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Acquire returns an idle client, creating one if capacity remains, or
// blocks until one is released or timeout elapses. A zero timeout blocks
// indefinitely.
func (p *Pool) Acquire(timeout time.Duration) (*httpclient.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.draining {
		return nil, agentcerr.New(agentcerr.KindInvalidState, "pool is shutting down")
	}

	if e := p.findIdleLocked(); e != nil {
		e.inUse = true
		e.lastUsed = time.Now()
		p.hits++
		return e.client, nil
	}

	if len(p.entries) < p.cfg.MaxConnections {
		e := &entry{client: p.cfg.NewClient(), inUse: true, lastUsed: time.Now()}
		p.entries = append(p.entries, e)
		p.misses++
		return e.client, nil
	}

	deadline, hasDeadline := deadlineFrom(timeout)
	p.waiting++
	defer func() { p.waiting-- }()

	for {
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				p.timeouts++
				return nil, agentcerr.New(agentcerr.KindTimeout, "acquire timed out after %v", timeout)
			}
			if !p.waitWithTimeout(remaining) {
				p.timeouts++
				return nil, agentcerr.New(agentcerr.KindTimeout, "acquire timed out after %v", timeout)
			}
		} else {
			p.cond.Wait()
		}

		if p.draining {
			return nil, agentcerr.New(agentcerr.KindInvalidState, "pool is shutting down")
		}
		if e := p.findIdleLocked(); e != nil {
			e.inUse = true
			e.lastUsed = time.Now()
			p.hits++
			return e.client, nil
		}
	}
}

// waitWithTimeout waits on the condition variable for up to d, returning
// false on timeout. sync.Cond has no native timeout, so a waiter goroutine
// signals the condition after d elapses; the real signal (from Release or
// Shutdown) races it and wins if it arrives first.
func (p *Pool) waitWithTimeout(d time.Duration) bool {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		p.mu.Lock()
		close(done)
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	p.cond.Wait()

	select {
	case <-done:
		return false
	default:
		return true
	}
}

func deadlineFrom(timeout time.Duration) (time.Time, bool) {
	if timeout <= 0 {
		return time.Time{}, false
	}
	return time.Now().Add(timeout), true
}

func (p *Pool) findIdleLocked() *entry {
	for _, e := range p.entries {
		if !e.inUse {
			return e
		}
	}
	return nil
}

// Release marks client idle and wakes one waiter.
func (p *Pool) Release(client *httpclient.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.client == client {
			e.inUse = false
			e.lastUsed = time.Now()
			p.cond.Signal()
			return
		}
	}
	// Orphaned client released after Shutdown removed it from entries;
	// nothing to do.
}

// ScavengeIdle destroys entries idle longer than IdleTimeout, always
// keeping at least one entry alive. Callers typically run this on a
// ticker.
func (p *Pool) ScavengeIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var kept, expired []*entry
	for _, e := range p.entries {
		if !e.inUse && now.Sub(e.lastUsed) > p.cfg.IdleTimeout {
			expired = append(expired, e)
		} else {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 && len(expired) > 0 {
		kept = append(kept, expired[0])
	}
	p.entries = kept
}

// Shutdown drains the pool: sets a draining flag, wakes every waiter (who
// then fail with KindInvalidState), waits up to 10s for in-flight entries
// to be released, then destroys all survivors.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.draining = true
	p.cond.Broadcast()
	p.mu.Unlock()

	deadline := time.Now().Add(10 * time.Second)
	for {
		p.mu.Lock()
		allIdle := true
		for _, e := range p.entries {
			if e.inUse {
				allIdle = false
				break
			}
		}
		if allIdle || time.Now().After(deadline) {
			p.entries = nil
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	active := 0
	for _, e := range p.entries {
		if e.inUse {
			active++
		}
	}
	return Stats{
		Max:      p.cfg.MaxConnections,
		Total:    len(p.entries),
		Active:   active,
		Waiting:  p.waiting,
		Hits:     p.hits,
		Misses:   p.misses,
		Timeouts: p.timeouts,
	}
}
