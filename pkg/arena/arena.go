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

// Package arena implements a bump allocator used to give every object
// created within one session or agent a single, explicit owner. Nothing
// allocated from an Arena is individually freed; Reset voids every
// outstanding slice at once and Destroy releases the backing storage.
package arena

import (
	"sync"

	"github.com/openagentc/agentc/pkg/agentcerr"
)

// Arena hands out byte slices monotonically from a fixed-size backing
// buffer. It is safe for concurrent use; a single mutex guards the bump
// pointer, mirroring the single-lock discipline used elsewhere in this
// runtime (see pkg/httppool).
type Arena struct {
	mu       sync.Mutex
	data     []byte
	count    int
	capacity int
}

// Stats reports current utilization, useful for sizing decisions and
// metrics export.
type Stats struct {
	Capacity int
	Used     int
	Free     int
}

// New creates an arena with the given byte capacity. Capacity must be
// positive.
func New(capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, agentcerr.New(agentcerr.KindInvalidArg, "arena capacity must be positive, got %d", capacity)
	}
	return &Arena{
		data:     make([]byte, capacity),
		capacity: capacity,
	}, nil
}

// Alloc returns a zeroed slice of size bytes carved out of the arena's
// backing buffer. It fails once remaining capacity is insufficient;
// callers must size the arena for their worst-case workload up front,
// since this implementation does not chain additional blocks.
func (a *Arena) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, agentcerr.New(agentcerr.KindInvalidArg, "alloc size must be non-negative, got %d", size)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.count+size > a.capacity {
		return nil, agentcerr.New(agentcerr.KindNoMemory, "arena exhausted: requested %d, %d of %d remain", size, a.capacity-a.count, a.capacity)
	}
	p := a.data[a.count : a.count+size : a.count+size]
	a.count += size
	return p, nil
}

// Strdup copies s into arena-owned storage, charging len(s) bytes to the
// arena, and returns that storage converted to a string. The conversion
// copies the bytes, so the returned string does not alias arena memory.
func (a *Arena) Strdup(s string) (string, error) {
	buf, err := a.Alloc(len(s))
	if err != nil {
		return "", err
	}
	copy(buf, s)
	return string(buf), nil
}

// Reset voids every slice previously handed out by Alloc or Strdup. It
// zeros the backing buffer so a subsequent Alloc never observes stale
// data from a prior generation, then rewinds the bump pointer to zero.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.data {
		a.data[i] = 0
	}
	a.count = 0
}

// Destroy releases the arena's backing storage. Any slice previously
// returned by Alloc or Strdup must not be accessed afterward; Go's
// garbage collector does not enforce this, so callers are responsible
// for not holding references past Destroy.
func (a *Arena) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = nil
	a.count = 0
	a.capacity = 0
}

// Stats reports the arena's current capacity and usage.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Capacity: a.capacity,
		Used:     a.count,
		Free:     a.capacity - a.count,
	}
}
