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

// Package llm defines the polymorphic LLM provider interface every
// driver (OpenAI-compatible, Anthropic) implements, plus the registry
// that dispatches to them by name.
package llm

import (
	"context"

	"github.com/openagentc/agentc/pkg/message"
)

// Thinking configures Anthropic-style extended reasoning.
type Thinking struct {
	Enabled      bool
	BudgetTokens int
}

// Params holds the parameters for one chat call, shared across drivers.
type Params struct {
	Provider     string
	Compatible   string
	Model        string
	APIKey       string
	APIBase      string
	Instructions string
	Temperature  float64
	TopP         float64
	TopK         int
	MaxTokens    int
	TimeoutMs    int
	Stream       bool
	Thinking     Thinking
}

// FinishReason classifies why a chat response ended.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
	FinishError     FinishReason = "error"
)

// Usage reports token accounting for one response.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	ReasoningTokens int
	TotalTokens     int
}

// Response is a driver's blocking or fully-assembled-streaming result.
type Response struct {
	ID           string
	Model        string
	Blocks       []message.Block
	FinishReason FinishReason
	Usage        Usage
}

// StreamEventKind tags a StreamEvent.
type StreamEventKind string

const (
	EventMessageStart      StreamEventKind = "message_start"
	EventContentBlockStart StreamEventKind = "content_block_start"
	EventDelta             StreamEventKind = "delta"
	EventContentBlockStop  StreamEventKind = "content_block_stop"
	EventMessageDelta      StreamEventKind = "message_delta"
	EventMessageStop       StreamEventKind = "message_stop"
	EventError             StreamEventKind = "error"
)

// StreamEvent is one provider-neutral event delivered to an OnEvent
// callback while streaming.
type StreamEvent struct {
	Kind         StreamEventKind
	Index        int
	BlockKind    message.BlockKind
	ToolName     string
	Bytes        string
	StopReason   FinishReason
	Usage        *Usage
	Message      string
}

// OnEvent is invoked for every StreamEvent. Returning false aborts the
// in-flight stream.
type OnEvent func(StreamEvent) bool

// ToolSchema is the JSON-Schema-bearing tool definition a driver sends
// to the provider so the model knows what it can call.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  string // JSON-Schema, verbatim
}

// Driver is the virtual table every provider implements: create is
// modeled as the constructor returning a Driver instance bound to
// Params, chat/chat_stream/cleanup become Chat/ChatStream/Close.
type Driver interface {
	// Chat performs one blocking request.
	Chat(ctx context.Context, params Params, history []*message.Message, tools []ToolSchema) (*Response, error)

	// ChatStream performs one streaming request, forwarding events to
	// onEvent, and returns the fully-assembled response once the stream
	// ends. On a network or decode failure it returns a nil response and
	// the error; when onEvent aborts, it returns the content assembled so
	// far and a nil error.
	ChatStream(ctx context.Context, params Params, history []*message.Message, tools []ToolSchema, onEvent OnEvent) (*Response, error)

	// Close releases any resources (idle connections, pooled clients)
	// the driver holds.
	Close() error
}

// Factory constructs a Driver.
type Factory func() Driver
