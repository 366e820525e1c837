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

// Package history trims a message.History down to a token budget
// before it is replayed to an LLM driver, so a long-running agent
// doesn't grow its request payload without bound. System messages are
// never dropped; everything else is dropped oldest-first once the
// running estimate clears a threshold above the budget.
package history

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/message"
)

const fallbackEncoding = "cl100k_base"

// Counter estimates token counts for a specific model's encoding,
// falling back to cl100k_base when the model isn't recognized by
// tiktoken-go. Encodings are cached process-wide since construction is
// the expensive part.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

var (
	encodingCache   = map[string]*tiktoken.Tiktoken{}
	encodingCacheMu sync.Mutex
)

// NewCounter returns a Counter for model.
func NewCounter(model string) (*Counter, error) {
	encodingCacheMu.Lock()
	defer encodingCacheMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return &Counter{encoding: enc}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, agentcerr.Wrap(agentcerr.KindBackend, err, "loading token encoding")
		}
	}
	encodingCache[model] = enc
	return &Counter{encoding: enc}, nil
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// CountMessage returns the token count of one message, including a
// small fixed per-message overhead mirroring the chat-completion
// framing tokens (role + message delimiters) a provider adds on top
// of raw content.
func (c *Counter) CountMessage(m *message.Message) int {
	const perMessageOverhead = 3
	total := perMessageOverhead + c.Count(string(m.Role)) + c.Count(m.Content)
	for _, b := range m.Blocks {
		total += c.Count(b.Text) + c.Count(b.Input)
	}
	return total
}

// CountAll returns the total token count across msgs.
func (c *Counter) CountAll(msgs []*message.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.CountMessage(m)
	}
	return total
}

// Budget bounds how much history is replayed to the provider.
type Budget struct {
	counter   *Counter
	maxTokens int
}

// NewBudget returns a Budget that trims to maxTokens using counter.
func NewBudget(counter *Counter, maxTokens int) *Budget {
	return &Budget{counter: counter, maxTokens: maxTokens}
}

// Trim returns msgs unchanged if their total is at or below 2x
// maxTokens (the same "don't thrash on every call" threshold the
// teacher's token-aware history service uses); once exceeded, it
// drops the oldest non-system messages, most-recent-first, until the
// remainder fits maxTokens. System messages are always kept and never
// count against eviction order.
func (b *Budget) Trim(msgs []*message.Message) []*message.Message {
	if len(msgs) == 0 || b.maxTokens <= 0 {
		return msgs
	}

	total := b.counter.CountAll(msgs)
	if total <= 2*b.maxTokens {
		return msgs
	}

	var system []*message.Message
	var rest []*message.Message
	for _, m := range msgs {
		if m.Role == message.RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}

	budget := b.maxTokens - b.counter.CountAll(system)
	fitted := make([]*message.Message, 0, len(rest))
	used := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := b.counter.CountMessage(rest[i])
		if used+cost > budget && len(fitted) > 0 {
			break
		}
		fitted = append([]*message.Message{rest[i]}, fitted...)
		used += cost
	}

	out := make([]*message.Message, 0, len(system)+len(fitted))
	out = append(out, system...)
	out = append(out, fitted...)
	return out
}
